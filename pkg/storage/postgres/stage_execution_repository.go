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
	"github.com/lib/pq"

	"github.com/jordigilh/alertpipe/pkg/storage/repository"
	"github.com/jordigilh/alertpipe/pkg/types"
)

type stageExecRow struct {
	ID             string       `db:"id"`
	PipelineRunID  string       `db:"pipeline_run_id"`
	Stage          string       `db:"stage"`
	Attempt        int          `db:"attempt"`
	IdempotencyKey string       `db:"idempotency_key"`
	Status         string       `db:"status"`
	InputRef       string       `db:"input_ref"`
	OutputRef      string       `db:"output_ref"`
	OutputSnapshot jsonAny      `db:"output_snapshot"`
	ErrorType      string       `db:"error_type"`
	ErrorMessage   string       `db:"error_message"`
	ErrorStack     string       `db:"error_stack"`
	ErrorRetryable bool         `db:"error_retryable"`
	StartedAt      sql.NullTime `db:"started_at"`
	CompletedAt    sql.NullTime `db:"completed_at"`
	DurationMS     int64        `db:"duration_ms"`
}

func (r stageExecRow) toDomain() *types.StageExecution {
	se := &types.StageExecution{
		ID:             r.ID,
		PipelineRunID:  r.PipelineRunID,
		Stage:          r.Stage,
		Attempt:        r.Attempt,
		IdempotencyKey: r.IdempotencyKey,
		Status:         types.StageStatus(r.Status),
		InputRef:       r.InputRef,
		OutputRef:      r.OutputRef,
		OutputSnapshot: []byte(r.OutputSnapshot),
		ErrorType:      r.ErrorType,
		ErrorMessage:   r.ErrorMessage,
		ErrorStack:     r.ErrorStack,
		ErrorRetryable: r.ErrorRetryable,
		DurationMS:     r.DurationMS,
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		se.StartedAt = &t
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		se.CompletedAt = &t
	}
	return se
}

func fromStageExec(se *types.StageExecution) stageExecRow {
	row := stageExecRow{
		ID:             se.ID,
		PipelineRunID:  se.PipelineRunID,
		Stage:          se.Stage,
		Attempt:        se.Attempt,
		IdempotencyKey: se.IdempotencyKey,
		Status:         string(se.Status),
		InputRef:       se.InputRef,
		OutputRef:      se.OutputRef,
		OutputSnapshot: jsonAny(se.OutputSnapshot),
		ErrorType:      se.ErrorType,
		ErrorMessage:   se.ErrorMessage,
		ErrorStack:     se.ErrorStack,
		ErrorRetryable: se.ErrorRetryable,
		DurationMS:     se.DurationMS,
	}
	if se.StartedAt != nil {
		row.StartedAt = sql.NullTime{Time: *se.StartedAt, Valid: true}
	}
	if se.CompletedAt != nil {
		row.CompletedAt = sql.NullTime{Time: *se.CompletedAt, Valid: true}
	}
	return row
}

type StageExecutionRepository struct{ DB *sqlx.DB }

var _ repository.StageExecutionRepository = StageExecutionRepository{}

// postgres unique_violation — see https://www.postgresql.org/docs/current/errcodes-appendix.html
const pqUniqueViolation = "23505"

func (r StageExecutionRepository) Insert(ctx context.Context, se *types.StageExecution) error {
	if se.ID == "" {
		se.ID = uuid.NewString()
	}
	row := fromStageExec(se)
	_, err := r.DB.NamedExecContext(ctx, `
		INSERT INTO stage_executions (id, pipeline_run_id, stage, attempt, idempotency_key, status,
		       input_ref, output_ref, output_snapshot, error_type, error_message, error_stack,
		       error_retryable, started_at, completed_at, duration_ms)
		VALUES (:id, :pipeline_run_id, :stage, :attempt, :idempotency_key, :status,
		       :input_ref, :output_ref, :output_snapshot, :error_type, :error_message, :error_stack,
		       :error_retryable, :started_at, :completed_at, :duration_ms)`, row)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return repository.ErrDuplicateIdempotencyKey
	}
	return err
}

func (r StageExecutionRepository) Update(ctx context.Context, se *types.StageExecution) error {
	row := fromStageExec(se)
	res, err := r.DB.NamedExecContext(ctx, `
		UPDATE stage_executions SET status=:status, input_ref=:input_ref, output_ref=:output_ref,
		       output_snapshot=:output_snapshot, error_type=:error_type, error_message=:error_message,
		       error_stack=:error_stack, error_retryable=:error_retryable, started_at=:started_at,
		       completed_at=:completed_at, duration_ms=:duration_ms
		WHERE id=:id`, row)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return repository.ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r StageExecutionRepository) Get(ctx context.Context, id string) (*types.StageExecution, error) {
	var row stageExecRow
	err := r.DB.GetContext(ctx, &row, `
		SELECT id, pipeline_run_id, stage, attempt, idempotency_key, status, input_ref, output_ref,
		       output_snapshot, error_type, error_message, error_stack, error_retryable,
		       started_at, completed_at, duration_ms
		FROM stage_executions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r StageExecutionRepository) ListByRun(ctx context.Context, runID string) ([]*types.StageExecution, error) {
	var rows []stageExecRow
	err := r.DB.SelectContext(ctx, &rows, `
		SELECT id, pipeline_run_id, stage, attempt, idempotency_key, status, input_ref, output_ref,
		       output_snapshot, error_type, error_message, error_stack, error_retryable,
		       started_at, completed_at, duration_ms
		FROM stage_executions WHERE pipeline_run_id = $1 ORDER BY stage, attempt`, runID)
	if err != nil {
		return nil, err
	}
	out := make([]*types.StageExecution, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r StageExecutionRepository) MaxAttempt(ctx context.Context, runID, stage string) (int, error) {
	var max sql.NullInt64
	err := r.DB.GetContext(ctx, &max, `
		SELECT MAX(attempt) FROM stage_executions WHERE pipeline_run_id = $1 AND stage = $2`, runID, stage)
	if err != nil {
		return 0, err
	}
	return int(max.Int64), nil
}

func (r StageExecutionRepository) SucceededStages(ctx context.Context, runID string) (map[string]*types.StageExecution, error) {
	var rows []stageExecRow
	err := r.DB.SelectContext(ctx, &rows, `
		SELECT id, pipeline_run_id, stage, attempt, idempotency_key, status, input_ref, output_ref,
		       output_snapshot, error_type, error_message, error_stack, error_retryable,
		       started_at, completed_at, duration_ms
		FROM stage_executions WHERE pipeline_run_id = $1 AND status = 'succeeded'`, runID)
	if err != nil {
		return nil, err
	}
	out := map[string]*types.StageExecution{}
	for _, row := range rows {
		out[row.Stage] = row.toDomain()
	}
	return out, nil
}
