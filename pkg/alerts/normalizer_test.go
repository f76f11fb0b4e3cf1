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

package alerts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	"github.com/jordigilh/alertpipe/pkg/alerts"
	"github.com/jordigilh/alertpipe/pkg/alerts/drivers"
	"github.com/jordigilh/alertpipe/pkg/storage/memory"
	"github.com/jordigilh/alertpipe/pkg/types"
)

func newNormalizer(t *testing.T) (*alerts.Normalizer, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	reg := alerts.NewRegistry()
	require.NoError(t, reg.Register(drivers.NewAlertmanager()))
	require.NoError(t, reg.Register(drivers.NewGeneric()))

	n := alerts.NewNormalizer(
		reg,
		memory.AlertRepo{S: store},
		memory.AlertHistoryRepo{S: store},
		memory.IncidentRepo{S: store},
		memory.FingerprintLockRepo{S: store},
	)
	return n, store
}

const amPayload = `{
	"version": "4",
	"groupKey": "{}",
	"receiver": "default",
	"alerts": [
		{
			"status": "firing",
			"labels": {"alertname": "HighCPU", "severity": "critical", "host": "web-1"},
			"annotations": {"summary": "CPU above threshold"},
			"startsAt": "2026-07-29T10:00:00Z",
			"endsAt": "0001-01-01T00:00:00Z",
			"fingerprint": "abc123"
		}
	]
}`

func TestNormalize_CreatesAlertAndIncidentOnFirstFiring(t *testing.T) {
	n, _ := newNormalizer(t)

	result, err := n.Normalize(context.Background(), []byte(amPayload), "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.AlertsCreated)
	assert.Equal(t, 1, result.IncidentsCreated)
	assert.NotEmpty(t, result.PrimaryIncidentID)
}

func TestNormalize_UpdatesExistingFiringAlertOnRepeat(t *testing.T) {
	n, store := newNormalizer(t)

	_, err := n.Normalize(context.Background(), []byte(amPayload), "")
	require.NoError(t, err)

	result, err := n.Normalize(context.Background(), []byte(amPayload), "")
	require.NoError(t, err)
	assert.Equal(t, 0, result.AlertsCreated)
	assert.Equal(t, 1, result.AlertsUpdated)

	alert, err := memory.AlertRepo{S: store}.FindFiringByFingerprint(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, types.SeverityCritical, alert.Severity)
}

func TestNormalize_ResolveTransitionsAlertAndIncident(t *testing.T) {
	n, store := newNormalizer(t)

	_, err := n.Normalize(context.Background(), []byte(amPayload), "")
	require.NoError(t, err)

	resolvedPayload := `{
		"version": "4", "groupKey": "{}", "receiver": "default",
		"alerts": [{
			"status": "resolved",
			"labels": {"alertname": "HighCPU", "severity": "critical", "host": "web-1"},
			"annotations": {},
			"startsAt": "2026-07-29T10:00:00Z",
			"endsAt": "2026-07-29T10:05:00Z",
			"fingerprint": "abc123"
		}]
	}`
	result, err := n.Normalize(context.Background(), []byte(resolvedPayload), "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.AlertsResolved)
	assert.Equal(t, 1, result.IncidentsResolved)

	incidentRepo := memory.IncidentRepo{S: store}
	incident, err := incidentRepo.Get(context.Background(), result.PrimaryIncidentID)
	require.NoError(t, err)
	assert.Equal(t, types.IncidentResolved, incident.Status)
}

func TestNormalize_ResolveWithNoMatchingFiringAlertIsNoop(t *testing.T) {
	n, _ := newNormalizer(t)

	resolvedPayload := `{
		"version": "4", "groupKey": "{}", "receiver": "default",
		"alerts": [{
			"status": "resolved",
			"labels": {"alertname": "Ghost", "severity": "warning"},
			"annotations": {},
			"startsAt": "2026-07-29T10:00:00Z",
			"fingerprint": "never-seen"
		}]
	}`
	result, err := n.Normalize(context.Background(), []byte(resolvedPayload), "")
	require.NoError(t, err)
	assert.Equal(t, 0, result.AlertsResolved)
}

func TestNormalize_GenericDriverUsedWhenShapeUnrecognized(t *testing.T) {
	n, _ := newNormalizer(t)

	genericPayload := `{"name": "DiskFull", "severity": "warning", "status": "firing", "labels": {"host": "db-1"}}`
	result, err := n.Normalize(context.Background(), []byte(genericPayload), "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.AlertsCreated)
}

func TestNormalize_SourceHintSelectsDriverDirectly(t *testing.T) {
	n, _ := newNormalizer(t)

	_, err := n.Normalize(context.Background(), []byte(amPayload), "alertmanager")
	require.NoError(t, err)

	_, err = n.Normalize(context.Background(), []byte(amPayload), "unknown-source")
	assert.Error(t, err)
}

func TestNormalize_MalformedPayloadIsNonRetryable(t *testing.T) {
	n, _ := newNormalizer(t)

	_, err := n.Normalize(context.Background(), []byte(`not json`), "generic")
	require.Error(t, err)
	assert.False(t, apperrors.IsRetryable(err))
}
