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

// Package repository defines the storage-agnostic interfaces every
// orchestrator and stage executor programs against. Concrete
// implementations live in pkg/storage/memory (tests) and
// pkg/storage/postgres (production). Keeping domain types in pkg/types and
// confining ORM-shaped concerns here is what lets the orchestration core be
// tested without a database.
package repository

import (
	"context"

	"github.com/jordigilh/alertpipe/pkg/types"
)

// AlertRepository persists Alert rows and enforces the at-most-one-firing-
// per-fingerprint invariant.
type AlertRepository interface {
	FindFiringByFingerprint(ctx context.Context, fingerprint string) (*types.Alert, error)
	Insert(ctx context.Context, alert *types.Alert) error
	Update(ctx context.Context, alert *types.Alert) error
	Get(ctx context.Context, id string) (*types.Alert, error)
	ListByIncident(ctx context.Context, incidentID string) ([]*types.Alert, error)
}

type AlertHistoryRepository interface {
	Append(ctx context.Context, h *types.AlertHistory) error
	ListByAlert(ctx context.Context, alertID string) ([]*types.AlertHistory, error)
}

// IncidentRepository persists Incident rows. FindOpenByGroupingKey is used
// by the normalizer to decide whether a firing alert joins an existing
// incident or opens a new one.
type IncidentRepository interface {
	FindOpenByGroupingKey(ctx context.Context, groupingKey string) (*types.Incident, error)
	Insert(ctx context.Context, incident *types.Incident) error
	Update(ctx context.Context, incident *types.Incident) error
	Get(ctx context.Context, id string) (*types.Incident, error)
	List(ctx context.Context, statusFilter string, limit, offset int) ([]*types.Incident, error)
}

type CheckRunRepository interface {
	Insert(ctx context.Context, run *types.CheckRun) error
	ListByTrace(ctx context.Context, traceID string) ([]*types.CheckRun, error)
}

type AnalysisRunRepository interface {
	Insert(ctx context.Context, run *types.AnalysisRun) error
	ListByIncident(ctx context.Context, incidentID string) ([]*types.AnalysisRun, error)
}

// PipelineRunRepository persists PipelineRun rows.
type PipelineRunRepository interface {
	Insert(ctx context.Context, run *types.PipelineRun) error
	Update(ctx context.Context, run *types.PipelineRun) error
	Get(ctx context.Context, id string) (*types.PipelineRun, error)
	List(ctx context.Context, statusFilter string, limit, offset int) ([]*types.PipelineRun, error)
}

// StageExecutionRepository persists StageExecution rows and enforces the
// idempotency-key uniqueness and at-most-one-succeeded-per-stage invariants.
type StageExecutionRepository interface {
	// Insert returns ErrDuplicateIdempotencyKey if a row with the same
	// IdempotencyKey already exists.
	Insert(ctx context.Context, se *types.StageExecution) error
	Update(ctx context.Context, se *types.StageExecution) error
	Get(ctx context.Context, id string) (*types.StageExecution, error)
	ListByRun(ctx context.Context, runID string) ([]*types.StageExecution, error)
	// MaxAttempt returns the highest attempt number recorded for (runID,
	// stage), and 0 if none exists.
	MaxAttempt(ctx context.Context, runID, stage string) (int, error)
	// SucceededStages returns the set of stage names with a succeeded row
	// for runID, used by resume to compute the restart point.
	SucceededStages(ctx context.Context, runID string) (map[string]*types.StageExecution, error)
}

type DefinitionRepository interface {
	Get(ctx context.Context, name string) (*types.PipelineDefinition, error)
	Upsert(ctx context.Context, def *types.PipelineDefinition) error
	List(ctx context.Context) ([]*types.PipelineDefinition, error)
}

type ChannelRepository interface {
	ListActiveByDrivers(ctx context.Context, drivers []string) ([]*types.NotificationChannel, error)
	ListActive(ctx context.Context) ([]*types.NotificationChannel, error)
}

type ProviderRepository interface {
	GetActive(ctx context.Context) (*types.IntelligenceProvider, error)
}

// FingerprintLocker serializes normalization of alerts sharing the same
// fingerprint. Implementations must use a storage-backed lock (DB advisory
// lock, Redis lock) — never an in-process mutex, which would not hold across
// a multi-worker deployment.
type FingerprintLocker interface {
	// Lock blocks until the fingerprint lock is acquired or ctx is
	// cancelled, and returns an unlock function.
	Lock(ctx context.Context, fingerprint string) (unlock func(), err error)
}

// ErrDuplicateIdempotencyKey is returned by StageExecutionRepository.Insert
// when the unique constraint on idempotency_key would be violated, and by
// Insert or Update when a row would give a (run_id, stage) a second
// succeeded row.
var ErrDuplicateIdempotencyKey = &dupKeyError{}

type dupKeyError struct{}

func (*dupKeyError) Error() string { return "duplicate idempotency key" }

// ErrNotFound is returned by Get/Find methods when no matching row exists.
var ErrNotFound = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "not found" }
