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
	"github.com/google/uuid"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	"github.com/jordigilh/alertpipe/pkg/intelligence"
	"github.com/jordigilh/alertpipe/pkg/storage/repository"
	"github.com/jordigilh/alertpipe/pkg/types"
)

// analyzeDeadline bounds the call into an intelligence provider, per §5's
// "every external call must be bounded by a deadline supplied by the
// orchestrator."
const analyzeDeadline = 30 * time.Second

// Analyze selects the active intelligence provider, falling back to the
// local rule engine on any error (§4.2: "fallback is always available,
// never fails to instantiate"). Provider errors never fail the stage unless
// the local fallback also fails; a failed incident lookup does fail it.
type Analyze struct {
	Registry  *intelligence.Registry
	Incidents repository.IncidentRepository
	Runs      repository.AnalysisRunRepository
	Providers repository.ProviderRepository
	Log       logr.Logger
}

func NewAnalyze(registry *intelligence.Registry, incidents repository.IncidentRepository, runs repository.AnalysisRunRepository, providers repository.ProviderRepository, log logr.Logger) *Analyze {
	return &Analyze{Registry: registry, Incidents: incidents, Runs: runs, Providers: providers, Log: log}
}

// AnalyzeOutput is the StageExecution output for the analyze stage.
type AnalyzeOutput struct {
	Provider        string
	Status          types.AnalysisStatus
	Recommendations []types.Recommendation
	TotalTokens     int
}

func (s *Analyze) Execute(ctx context.Context, sc Context) Result {
	start := time.Now()

	if sc.IncidentID == "" {
		return Result{
			Skip:       true,
			SkipReason: "no incident to analyze",
			DurationMS: time.Since(start).Milliseconds(),
		}
	}

	incident, err := s.Incidents.Get(ctx, sc.IncidentID)
	if err != nil {
		return Result{
			Errors:     []string{err.Error()},
			Failed:     true,
			Retryable:  apperrors.IsRetryable(err),
			DurationMS: time.Since(start).Milliseconds(),
		}
	}

	checks := checksFromPreviousOutputs(sc)

	providerName := sc.stringConfig("provider")
	if providerName == "" {
		if active, err := s.Providers.GetActive(ctx); err == nil && active != nil {
			providerName = active.Type
		}
	}

	provider := s.Registry.Resolve(providerName)
	status := types.AnalysisSucceeded

	analyzeCtx, cancel := context.WithTimeout(ctx, analyzeDeadline)
	recs, tokens, err := provider.Analyze(analyzeCtx, incident, checks)
	cancel()

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		s.Log.Info("intelligence provider failed, falling back to local", "trace_id", sc.TraceID, "provider", provider.Name(), "error", errMsg)

		local := s.Registry.Local()
		var fallbackErr error
		recs, tokens, fallbackErr = local.Analyze(ctx, incident, checks)
		status = types.AnalysisFallback
		providerName = local.Name()
		if fallbackErr != nil {
			// local fallback is documented to never fail; surfacing this as
			// catastrophic rather than silently swallowing it.
			return Result{
				Errors:     []string{apperrors.Wrap(fallbackErr, apperrors.KindCatastrophic, "local intelligence fallback failed").Error()},
				Failed:     true,
				Retryable:  false,
				DurationMS: time.Since(start).Milliseconds(),
			}
		}
	}

	run := &types.AnalysisRun{
		ID:              uuid.NewString(),
		TraceID:         sc.TraceID,
		PipelineRunID:   sc.RunID,
		IncidentID:      sc.IncidentID,
		Provider:        providerName,
		Recommendations: recs,
		TotalTokens:     tokens,
		Status:          status,
		Error:           errMsg,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.Runs.Insert(ctx, run); err != nil {
		s.Log.Error(err, "failed to persist analysis run", "trace_id", sc.TraceID)
	}

	return Result{
		Output: AnalyzeOutput{
			Provider:        providerName,
			Status:          status,
			Recommendations: recs,
			TotalTokens:     tokens,
		},
		DurationMS: time.Since(start).Milliseconds(),
	}
}

func checksFromPreviousOutputs(sc Context) []types.CheckResult {
	checkOut, ok := sc.PreviousOutputs[string(types.StageCheck)]
	if !ok {
		return nil
	}
	co, ok := checkOut.(CheckOutput)
	if !ok {
		return nil
	}
	out := make([]types.CheckResult, 0, len(co.Results))
	for _, r := range co.Results {
		out = append(out, r)
	}
	return out
}
