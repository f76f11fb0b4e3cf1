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

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordigilh/alertpipe/pkg/storage/repository"
	"github.com/jordigilh/alertpipe/pkg/types"
)

func TestStageExecution_IdempotencyKeyUnique(t *testing.T) {
	ctx := context.Background()
	repo := StageExecutionRepo{S: NewStore()}

	se1 := &types.StageExecution{PipelineRunID: "run-1", Stage: "ingest", Attempt: 1, IdempotencyKey: "k1", Status: types.StagePending}
	require.NoError(t, repo.Insert(ctx, se1))

	se2 := &types.StageExecution{PipelineRunID: "run-1", Stage: "ingest", Attempt: 1, IdempotencyKey: "k1", Status: types.StagePending}
	err := repo.Insert(ctx, se2)
	assert.ErrorIs(t, err, repository.ErrDuplicateIdempotencyKey)
}

func TestStageExecution_AtMostOneSucceededPerStage(t *testing.T) {
	ctx := context.Background()
	repo := StageExecutionRepo{S: NewStore()}

	se1 := &types.StageExecution{PipelineRunID: "run-1", Stage: "ingest", Attempt: 1, IdempotencyKey: "k1", Status: types.StageSucceeded}
	require.NoError(t, repo.Insert(ctx, se1))

	se2 := &types.StageExecution{PipelineRunID: "run-1", Stage: "ingest", Attempt: 2, IdempotencyKey: "k2", Status: types.StageSucceeded}
	err := repo.Insert(ctx, se2)
	assert.ErrorIs(t, err, repository.ErrDuplicateIdempotencyKey)

	rows, err := repo.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	succeeded := 0
	for _, r := range rows {
		if r.Status == types.StageSucceeded {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestAlert_FiringFingerprintDedup(t *testing.T) {
	ctx := context.Background()
	repo := AlertRepo{S: NewStore()}

	a := &types.Alert{Fingerprint: "fp-1", Status: types.AlertStatusFiring, StartsAt: time.Now()}
	require.NoError(t, repo.Insert(ctx, a))

	existing, err := repo.FindFiringByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, existing.ID)

	_, err = repo.FindFiringByFingerprint(ctx, "fp-missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestIncident_MonotonicTransitions(t *testing.T) {
	assert.True(t, types.IsValidTransition(types.IncidentOpen, types.IncidentAcknowledged))
	assert.True(t, types.IsValidTransition(types.IncidentAcknowledged, types.IncidentResolved))
	assert.False(t, types.IsValidTransition(types.IncidentResolved, types.IncidentOpen))
	assert.False(t, types.IsValidTransition(types.IncidentClosed, types.IncidentAcknowledged))
}

func TestDefinition_VersionIncrementsOnUpsert(t *testing.T) {
	ctx := context.Background()
	repo := DefinitionRepo{S: NewStore()}

	def := &types.PipelineDefinition{Name: "d1", Config: types.DefinitionConfig{Version: "1.0"}}
	require.NoError(t, repo.Upsert(ctx, def))
	assert.Equal(t, 1, def.Version)

	def2 := &types.PipelineDefinition{Name: "d1", Config: types.DefinitionConfig{Version: "1.0"}}
	require.NoError(t, repo.Upsert(ctx, def2))
	assert.Equal(t, 2, def2.Version)
}

func TestFingerprintLocker_SerializesSameFingerprint(t *testing.T) {
	ctx := context.Background()
	locker := FingerprintLockRepo{S: NewStore()}

	unlock, err := locker.Lock(ctx, "fp-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u2, err := locker.Lock(ctx, "fp-1")
		require.NoError(t, err)
		close(acquired)
		u2()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired before first was released")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	<-acquired
}
