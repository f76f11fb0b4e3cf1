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
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
)

const defaultEnvironment = "production"

// handleSubmitPipeline implements `POST /pipeline/` (§6): body is the raw,
// opaque alert payload; `source` names the ingest driver hint. An
// `incident_id` query param makes IngestStage a no-op per §4.2. The
// `async=true` query param switches to the async variant, returning
// {run_id, trace_id} immediately while the run drives to completion in the
// background; otherwise the full run result is returned once terminal.
func (s *Server) handleSubmitPipeline(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, "", apperrors.Wrap(err, apperrors.KindValidation, "failed to read request body"))
		return
	}

	q := r.URL.Query()
	sourceHint := q.Get("source")
	environment := q.Get("environment")
	if environment == "" {
		environment = defaultEnvironment
	}
	traceID := q.Get("trace_id")
	incidentID := q.Get("incident_id")
	async, _ := strconv.ParseBool(q.Get("async"))

	if async {
		run, err := s.Orchestrator.SubmitAsyncFrom(r.Context(), traceID, sourceHint, environment, payload, sourceHint, incidentID)
		if err != nil {
			writeError(w, traceID, err)
			return
		}
		writeJSON(w, http.StatusAccepted, SubmitResponse{RunID: run.ID, TraceID: run.TraceID})
		return
	}

	run, err := s.Orchestrator.SubmitFrom(r.Context(), traceID, sourceHint, environment, payload, sourceHint, incidentID)
	if err != nil {
		writeError(w, traceID, err)
		return
	}
	writeJSON(w, http.StatusOK, newSubmitResponse(run))
}

// handleListRuns implements `GET /pipelines/` with pagination and an
// optional `status` filter.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	limit := atoiDefault(q.Get("limit"), 50)
	offset := atoiDefault(q.Get("offset"), 0)

	runs, err := s.Runs.List(r.Context(), status, limit, offset)
	if err != nil {
		writeError(w, "", apperrors.Wrap(err, apperrors.KindTransient, "failed to list pipeline runs").WithRetryable(true))
		return
	}

	resp := RunListResponse{Runs: make([]RunSummary, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, newRunSummary(run))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetRun implements `GET /pipeline/{run_id}/`: run detail plus every
// StageExecution row.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.Runs.Get(r.Context(), runID)
	if err != nil {
		writeError(w, "", apperrors.Wrap(err, apperrors.KindNotFound, "pipeline run not found").WithRetryable(false))
		return
	}

	execs, err := s.StageExecs.ListByRun(r.Context(), runID)
	if err != nil {
		writeError(w, run.TraceID, apperrors.Wrap(err, apperrors.KindTransient, "failed to list stage executions").WithRetryable(true))
		return
	}

	writeJSON(w, http.StatusOK, newRunDetail(run, execs))
}

// handleResumeRun implements `POST /pipeline/{run_id}/resume/`: re-enters
// the fixed-topology state machine at the first non-succeeded stage.
func (s *Server) handleResumeRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.Orchestrator.Resume(r.Context(), runID)
	if err != nil {
		writeError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, newSubmitResponse(run))
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
