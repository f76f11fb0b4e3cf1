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
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jordigilh/alertpipe/pkg/storage/repository"
	"github.com/jordigilh/alertpipe/pkg/types"
)

type pipelineRunRow struct {
	ID                 string       `db:"id"`
	TraceID            string       `db:"trace_id"`
	Source             string       `db:"source"`
	Environment        string       `db:"environment"`
	IncidentID         sql.NullString `db:"incident_id"`
	Status             string       `db:"status"`
	CurrentStage       string       `db:"current_stage"`
	TotalAttempts      int          `db:"total_attempts"`
	MaxRetries         int          `db:"max_retries"`
	LastErrorType      string       `db:"last_error_type"`
	LastErrorMessage   string       `db:"last_error_message"`
	LastErrorRetryable bool         `db:"last_error_retryable"`
	CreatedAt          sql.NullTime `db:"created_at"`
	StartedAt          sql.NullTime `db:"started_at"`
	CompletedAt        sql.NullTime `db:"completed_at"`
	TotalDurationMS    int64        `db:"total_duration_ms"`
}

func (r pipelineRunRow) toDomain() *types.PipelineRun {
	run := &types.PipelineRun{
		ID:                 r.ID,
		TraceID:            r.TraceID,
		Source:             r.Source,
		Environment:        r.Environment,
		IncidentID:         r.IncidentID.String,
		Status:             types.RunStatus(r.Status),
		CurrentStage:       types.Stage(r.CurrentStage),
		TotalAttempts:      r.TotalAttempts,
		MaxRetries:         r.MaxRetries,
		LastErrorType:      r.LastErrorType,
		LastErrorMessage:   r.LastErrorMessage,
		LastErrorRetryable: r.LastErrorRetryable,
		CreatedAt:          r.CreatedAt.Time,
		TotalDurationMS:    r.TotalDurationMS,
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		run.StartedAt = &t
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		run.CompletedAt = &t
	}
	return run
}

func fromRun(run *types.PipelineRun) pipelineRunRow {
	row := pipelineRunRow{
		ID:                 run.ID,
		TraceID:            run.TraceID,
		Source:             run.Source,
		Environment:        run.Environment,
		IncidentID:         sql.NullString{String: run.IncidentID, Valid: run.IncidentID != ""},
		Status:             string(run.Status),
		CurrentStage:       string(run.CurrentStage),
		TotalAttempts:      run.TotalAttempts,
		MaxRetries:         run.MaxRetries,
		LastErrorType:      run.LastErrorType,
		LastErrorMessage:   run.LastErrorMessage,
		LastErrorRetryable: run.LastErrorRetryable,
		CreatedAt:          sql.NullTime{Time: run.CreatedAt, Valid: !run.CreatedAt.IsZero()},
		TotalDurationMS:    run.TotalDurationMS,
	}
	if run.StartedAt != nil {
		row.StartedAt = sql.NullTime{Time: *run.StartedAt, Valid: true}
	}
	if run.CompletedAt != nil {
		row.CompletedAt = sql.NullTime{Time: *run.CompletedAt, Valid: true}
	}
	return row
}

type PipelineRunRepository struct{ DB *sqlx.DB }

var _ repository.PipelineRunRepository = PipelineRunRepository{}

func (r PipelineRunRepository) Insert(ctx context.Context, run *types.PipelineRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	row := fromRun(run)
	_, err := r.DB.NamedExecContext(ctx, `
		INSERT INTO pipeline_runs (id, trace_id, source, environment, incident_id, status, current_stage,
		       total_attempts, max_retries, last_error_type, last_error_message, last_error_retryable,
		       created_at, started_at, completed_at, total_duration_ms)
		VALUES (:id, :trace_id, :source, :environment, :incident_id, :status, :current_stage,
		       :total_attempts, :max_retries, :last_error_type, :last_error_message, :last_error_retryable,
		       :created_at, :started_at, :completed_at, :total_duration_ms)`, row)
	return err
}

func (r PipelineRunRepository) Update(ctx context.Context, run *types.PipelineRun) error {
	row := fromRun(run)
	res, err := r.DB.NamedExecContext(ctx, `
		UPDATE pipeline_runs SET incident_id=:incident_id, status=:status, current_stage=:current_stage,
		       total_attempts=:total_attempts, max_retries=:max_retries, last_error_type=:last_error_type,
		       last_error_message=:last_error_message, last_error_retryable=:last_error_retryable,
		       started_at=:started_at, completed_at=:completed_at, total_duration_ms=:total_duration_ms
		WHERE id=:id`, row)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r PipelineRunRepository) Get(ctx context.Context, id string) (*types.PipelineRun, error) {
	var row pipelineRunRow
	err := r.DB.GetContext(ctx, &row, `
		SELECT id, trace_id, source, environment, incident_id, status, current_stage, total_attempts,
		       max_retries, last_error_type, last_error_message, last_error_retryable, created_at,
		       started_at, completed_at, total_duration_ms
		FROM pipeline_runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r PipelineRunRepository) List(ctx context.Context, statusFilter string, limit, offset int) ([]*types.PipelineRun, error) {
	query := `SELECT id, trace_id, source, environment, incident_id, status, current_stage, total_attempts,
	          max_retries, last_error_type, last_error_message, last_error_retryable, created_at,
	          started_at, completed_at, total_duration_ms FROM pipeline_runs`
	args := []interface{}{}
	if statusFilter != "" {
		query += ` WHERE status = $1`
		args = append(args, statusFilter)
	}
	query += ` ORDER BY created_at LIMIT ? OFFSET ?`
	query = r.DB.Rebind(query)
	args = append(args, limit, offset)

	var rows []pipelineRunRow
	if err := r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]*types.PipelineRun, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
