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

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jordigilh/alertpipe/pkg/storage/repository"
	"github.com/jordigilh/alertpipe/pkg/types"
)

type checkRunRow struct {
	ID          string       `db:"id"`
	CheckerName string       `db:"checker_name"`
	Hostname    string       `db:"hostname"`
	Status      string       `db:"status"`
	Message     string       `db:"message"`
	Metrics     jsonAny      `db:"metrics"`
	Error       string       `db:"error"`
	TraceID     string       `db:"trace_id"`
	ExecutedAt  sql.NullTime `db:"executed_at"`
}

func (r checkRunRow) toDomain() (*types.CheckRun, error) {
	cr := &types.CheckRun{
		ID:          r.ID,
		CheckerName: r.CheckerName,
		Hostname:    r.Hostname,
		Status:      types.CheckStatus(r.Status),
		Message:     r.Message,
		Error:       r.Error,
		TraceID:     r.TraceID,
		ExecutedAt:  r.ExecutedAt.Time,
	}
	if len(r.Metrics) > 0 {
		if err := json.Unmarshal(r.Metrics, &cr.Metrics); err != nil {
			return nil, err
		}
	}
	return cr, nil
}

func fromCheckRun(cr *types.CheckRun) (checkRunRow, error) {
	metrics, err := json.Marshal(cr.Metrics)
	if err != nil {
		return checkRunRow{}, err
	}
	return checkRunRow{
		ID:          cr.ID,
		CheckerName: cr.CheckerName,
		Hostname:    cr.Hostname,
		Status:      string(cr.Status),
		Message:     cr.Message,
		Metrics:     jsonAny(metrics),
		Error:       cr.Error,
		TraceID:     cr.TraceID,
		ExecutedAt:  sql.NullTime{Time: cr.ExecutedAt, Valid: !cr.ExecutedAt.IsZero()},
	}, nil
}

// CheckRunRepository persists one row per checker execution, the audit
// trail §4.2's "check stage runs every enabled checker" leaves behind.
type CheckRunRepository struct{ DB *sqlx.DB }

var _ repository.CheckRunRepository = CheckRunRepository{}

func (r CheckRunRepository) Insert(ctx context.Context, run *types.CheckRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	row, err := fromCheckRun(run)
	if err != nil {
		return err
	}
	_, err = r.DB.NamedExecContext(ctx, `
		INSERT INTO check_runs (id, checker_name, hostname, status, message, metrics, error, trace_id, executed_at)
		VALUES (:id, :checker_name, :hostname, :status, :message, :metrics, :error, :trace_id, :executed_at)`, row)
	return err
}

func (r CheckRunRepository) ListByTrace(ctx context.Context, traceID string) ([]*types.CheckRun, error) {
	var rows []checkRunRow
	if err := r.DB.SelectContext(ctx, &rows, `
		SELECT id, checker_name, hostname, status, message, metrics, error, trace_id, executed_at
		FROM check_runs WHERE trace_id = $1 ORDER BY executed_at`, traceID); err != nil {
		return nil, err
	}
	out := make([]*types.CheckRun, len(rows))
	for i, row := range rows {
		cr, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out[i] = cr
	}
	return out, nil
}

type analysisRunRow struct {
	ID              string         `db:"id"`
	TraceID         string         `db:"trace_id"`
	PipelineRunID   string         `db:"pipeline_run_id"`
	IncidentID      sql.NullString `db:"incident_id"`
	Provider        string         `db:"provider"`
	ProviderConfig  jsonAny        `db:"provider_config"`
	Recommendations jsonAny        `db:"recommendations"`
	TotalTokens     int            `db:"total_tokens"`
	Status          string         `db:"status"`
	Error           string         `db:"error"`
	CreatedAt       sql.NullTime   `db:"created_at"`
}

func (r analysisRunRow) toDomain() (*types.AnalysisRun, error) {
	ar := &types.AnalysisRun{
		ID:            r.ID,
		TraceID:       r.TraceID,
		PipelineRunID: r.PipelineRunID,
		IncidentID:    r.IncidentID.String,
		Provider:      r.Provider,
		TotalTokens:   r.TotalTokens,
		Status:        types.AnalysisStatus(r.Status),
		Error:         r.Error,
		CreatedAt:     r.CreatedAt.Time,
	}
	if len(r.ProviderConfig) > 0 {
		if err := json.Unmarshal(r.ProviderConfig, &ar.ProviderConfig); err != nil {
			return nil, err
		}
	}
	if len(r.Recommendations) > 0 {
		if err := json.Unmarshal(r.Recommendations, &ar.Recommendations); err != nil {
			return nil, err
		}
	}
	return ar, nil
}

func fromAnalysisRun(ar *types.AnalysisRun) (analysisRunRow, error) {
	cfg, err := json.Marshal(ar.ProviderConfig)
	if err != nil {
		return analysisRunRow{}, err
	}
	recs, err := json.Marshal(ar.Recommendations)
	if err != nil {
		return analysisRunRow{}, err
	}
	return analysisRunRow{
		ID:              ar.ID,
		TraceID:         ar.TraceID,
		PipelineRunID:   ar.PipelineRunID,
		IncidentID:      sql.NullString{String: ar.IncidentID, Valid: ar.IncidentID != ""},
		Provider:        ar.Provider,
		ProviderConfig:  jsonAny(cfg),
		Recommendations: jsonAny(recs),
		TotalTokens:     ar.TotalTokens,
		Status:          string(ar.Status),
		Error:           ar.Error,
		CreatedAt:       sql.NullTime{Time: ar.CreatedAt, Valid: !ar.CreatedAt.IsZero()},
	}, nil
}

// AnalysisRunRepository persists one row per intelligence-provider
// invocation, per §4.2's analyze stage audit trail.
type AnalysisRunRepository struct{ DB *sqlx.DB }

var _ repository.AnalysisRunRepository = AnalysisRunRepository{}

func (r AnalysisRunRepository) Insert(ctx context.Context, run *types.AnalysisRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	row, err := fromAnalysisRun(run)
	if err != nil {
		return err
	}
	_, err = r.DB.NamedExecContext(ctx, `
		INSERT INTO analysis_runs (id, trace_id, pipeline_run_id, incident_id, provider, provider_config, recommendations, total_tokens, status, error, created_at)
		VALUES (:id, :trace_id, :pipeline_run_id, :incident_id, :provider, :provider_config, :recommendations, :total_tokens, :status, :error, :created_at)`, row)
	return err
}

func (r AnalysisRunRepository) ListByIncident(ctx context.Context, incidentID string) ([]*types.AnalysisRun, error) {
	var rows []analysisRunRow
	if err := r.DB.SelectContext(ctx, &rows, `
		SELECT id, trace_id, pipeline_run_id, incident_id, provider, provider_config, recommendations, total_tokens, status, error, created_at
		FROM analysis_runs WHERE incident_id = $1 ORDER BY created_at`, incidentID); err != nil {
		return nil, err
	}
	out := make([]*types.AnalysisRun, len(rows))
	for i, row := range rows {
		ar, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out[i] = ar
	}
	return out, nil
}
