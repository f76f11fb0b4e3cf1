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

package stages

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	"github.com/jordigilh/alertpipe/pkg/alerts"
)

// Ingest wraps the alert normalizer. Per §4.2, it is skippable when the
// caller already supplied an incident_id.
type Ingest struct {
	Normalizer *alerts.Normalizer
	Log        logr.Logger
}

func NewIngest(normalizer *alerts.Normalizer, log logr.Logger) *Ingest {
	return &Ingest{Normalizer: normalizer, Log: log}
}

// IngestOutput is the StageExecution output for the ingest stage.
type IngestOutput struct {
	IncidentID string
	Result     *alerts.IngestResult
}

func (s *Ingest) Execute(ctx context.Context, sc Context) Result {
	start := time.Now()

	if sc.IncidentID != "" {
		return Result{
			Skip:       true,
			SkipReason: "caller already supplied incident_id",
			DurationMS: time.Since(start).Milliseconds(),
		}
	}

	ingestResult, err := s.Normalizer.Normalize(ctx, sc.RawPayload, sc.SourceHint)
	if err != nil {
		s.Log.Error(err, "ingest stage failed", "trace_id", sc.TraceID, "run_id", sc.RunID)
		return Result{
			Errors:     []string{err.Error()},
			Failed:     true,
			Retryable:  apperrors.IsRetryable(err),
			DurationMS: time.Since(start).Milliseconds(),
		}
	}

	return Result{
		Output: IngestOutput{
			IncidentID: ingestResult.PrimaryIncidentID,
			Result:     ingestResult,
		},
		DurationMS: time.Since(start).Milliseconds(),
	}
}
