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
	"errors"
	"net/http"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
)

// ErrorResponse is the §7 "user-visible behavior" envelope every failed
// request surfaces: {status, error_type, error_message, trace_id}.
type ErrorResponse struct {
	Status       int    `json:"status"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
	TraceID      string `json:"trace_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError classifies err through internal/errors and writes the §7
// envelope with the matching HTTP status: 4xx for Validation/NotFound/Auth,
// 5xx for Transient/Catastrophic, per §6's "exit codes" table.
func writeError(w http.ResponseWriter, traceID string, err error) {
	var appErr *apperrors.AppError
	status := http.StatusInternalServerError
	kind := apperrors.KindCatastrophic
	msg := err.Error()

	if errors.As(err, &appErr) {
		kind = appErr.Type
		msg = appErr.Message
		if appErr.StatusCode != 0 {
			status = appErr.StatusCode
		}
	}

	writeJSON(w, status, ErrorResponse{
		Status:       status,
		ErrorType:    string(kind),
		ErrorMessage: msg,
		TraceID:      traceID,
	})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}
