/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	"github.com/jordigilh/alertpipe/pkg/definition"
)

// handleListDefinitions implements `GET /definitions/`.
func (s *Server) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := s.Definitions.List(r.Context())
	if err != nil {
		writeError(w, "", apperrors.Wrap(err, apperrors.KindTransient, "failed to list definitions").WithRetryable(true))
		return
	}
	out := make([]DefinitionSummary, 0, len(defs))
	for _, def := range defs {
		out = append(out, newDefinitionSummary(def))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetDefinition implements `GET /definitions/{name}/`.
func (s *Server) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	def, err := s.Definitions.Get(r.Context(), name)
	if err != nil {
		writeError(w, "", apperrors.Wrap(err, apperrors.KindNotFound, "definition not found").WithRetryable(false))
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleValidateDefinition implements `POST /definitions/{name}/validate/`:
// schema admission (ValidateSchema) followed by semantic Validate, matching
// §4.5's two-pass admission.
func (s *Server) handleValidateDefinition(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	def, err := s.Definitions.Get(r.Context(), name)
	if err != nil {
		writeError(w, "", apperrors.Wrap(err, apperrors.KindNotFound, "definition not found").WithRetryable(false))
		return
	}

	var errs []error
	if raw, err := json.Marshal(def.Config); err == nil {
		if err := definition.ValidateSchema(raw); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, definition.Validate(def, s.NodeRegistry)...)

	resp := ValidateDefinitionResponse{Valid: len(errs) == 0, Errors: make([]string, 0, len(errs))}
	for _, e := range errs {
		resp.Errors = append(resp.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleExecuteDefinition implements `POST /definitions/{name}/execute/`.
func (s *Server) handleExecuteDefinition(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	def, err := s.Definitions.Get(r.Context(), name)
	if err != nil {
		writeError(w, "", apperrors.Wrap(err, apperrors.KindNotFound, "definition not found").WithRetryable(false))
		return
	}
	if !def.IsActive {
		writeError(w, "", apperrors.Newf(apperrors.KindValidation, "definition %q is not active", name))
		return
	}

	var req ExecuteDefinitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "", apperrors.Wrap(err, apperrors.KindValidation, "malformed request body"))
		return
	}

	environment := req.Environment
	if environment == "" {
		environment = defaultEnvironment
	}

	run, report, err := s.Runner.RunFrom(r.Context(), def, req.TraceID, req.Source, environment, req.Payload, req.Source, req.IncidentID)
	if err != nil && run == nil {
		writeError(w, req.TraceID, err)
		return
	}

	writeJSON(w, http.StatusOK, newExecuteDefinitionResponse(run, report))
}
