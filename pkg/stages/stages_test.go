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

package stages_test

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	"github.com/jordigilh/alertpipe/pkg/alerts"
	"github.com/jordigilh/alertpipe/pkg/alerts/drivers"
	"github.com/jordigilh/alertpipe/pkg/checkers"
	"github.com/jordigilh/alertpipe/pkg/intelligence"
	"github.com/jordigilh/alertpipe/pkg/notify"
	"github.com/jordigilh/alertpipe/pkg/stages"
	"github.com/jordigilh/alertpipe/pkg/storage/memory"
	"github.com/jordigilh/alertpipe/pkg/types"
)

const amPayload = `{
	"version": "4",
	"groupKey": "{}",
	"alerts": [{
		"status": "firing",
		"labels": {"alertname": "HighCPU", "severity": "critical", "instance": "web-01"},
		"annotations": {"description": "CPU>90%"},
		"startsAt": "2026-01-01T00:00:00Z",
		"endsAt": "0001-01-01T00:00:00Z"
	}]
}`

func TestIngest_SkipsWhenIncidentAlreadyKnown(t *testing.T) {
	stage := stages.NewIngest(nil, logr.Discard())
	result := stage.Execute(context.Background(), stages.Context{IncidentID: "already-known"})
	assert.True(t, result.Skip)
}

func TestIngest_NormalizesAndReturnsPrimaryIncident(t *testing.T) {
	store := memory.NewStore()
	reg := alerts.NewRegistry()
	require.NoError(t, reg.Register(drivers.NewAlertmanager()))
	require.NoError(t, reg.Register(drivers.NewGeneric()))

	normalizer := alerts.NewNormalizer(reg, memory.AlertRepo{S: store}, memory.AlertHistoryRepo{S: store}, memory.IncidentRepo{S: store}, memory.FingerprintLockRepo{S: store})

	stage := stages.NewIngest(normalizer, logr.Discard())
	result := stage.Execute(context.Background(), stages.Context{RawPayload: []byte(amPayload)})

	require.False(t, result.Failed)
	out, ok := result.Output.(stages.IngestOutput)
	require.True(t, ok)
	assert.NotEmpty(t, out.IncidentID)
	assert.Equal(t, 1, out.Result.AlertsCreated)
}

type fakeChecker struct {
	name   string
	status types.CheckStatus
	err    string
}

func (f fakeChecker) Name() string { return f.name }
func (f fakeChecker) Check(ctx context.Context, hostname string) types.CheckResult {
	return types.CheckResult{CheckerName: f.name, Hostname: hostname, Status: f.status, Error: f.err}
}

func TestCheck_AggregatesStatusesAcrossCheckers(t *testing.T) {
	reg := checkers.NewRegistry()
	require.NoError(t, reg.Register(fakeChecker{name: "disk", status: types.CheckCritical}))
	require.NoError(t, reg.Register(fakeChecker{name: "mem", status: types.CheckOK}))

	stage := stages.NewCheck(reg, logr.Discard())
	result := stage.Execute(context.Background(), stages.Context{Config: map[string]interface{}{"hostname": "host-1"}})

	require.False(t, result.Failed)
	out, ok := result.Output.(stages.CheckOutput)
	require.True(t, ok)
	assert.Equal(t, 2, out.ChecksRun)
	assert.Equal(t, 1, out.ChecksCritical)
	assert.Equal(t, 1, out.ChecksOK)
}

func TestCheck_FailsStageWhenZeroCheckersAvailable(t *testing.T) {
	reg := checkers.NewRegistry()
	require.NoError(t, reg.Register(fakeChecker{name: "disk", status: types.CheckOK}))

	stage := stages.NewCheck(reg, logr.Discard())
	result := stage.Execute(context.Background(), stages.Context{Config: map[string]interface{}{"skip": []string{"disk"}}})

	assert.True(t, result.Failed)
}

func TestCheck_IndividualCheckerFailureDoesNotFailStage(t *testing.T) {
	reg := checkers.NewRegistry()
	require.NoError(t, reg.Register(fakeChecker{name: "disk", status: types.CheckUnknown, err: "probe failed"}))
	require.NoError(t, reg.Register(fakeChecker{name: "mem", status: types.CheckOK}))

	stage := stages.NewCheck(reg, logr.Discard())
	result := stage.Execute(context.Background(), stages.Context{})

	assert.False(t, result.Failed)
	assert.Len(t, result.Errors, 1)
}

func TestAnalyze_SkipsWhenNoIncident(t *testing.T) {
	store := memory.NewStore()
	reg := intelligence.NewRegistry(intelligence.NewLocal())
	stage := stages.NewAnalyze(reg, memory.IncidentRepo{S: store}, memory.AnalysisRunRepo{S: store}, memory.ProviderRepo{S: store}, logr.Discard())

	result := stage.Execute(context.Background(), stages.Context{})
	assert.True(t, result.Skip)
}

func TestAnalyze_FallsBackToLocalWhenConfiguredProviderErrors(t *testing.T) {
	store := memory.NewStore()
	incident := &types.Incident{ID: "inc-1", Title: "test", Severity: types.SeverityCritical, Status: types.IncidentOpen}
	require.NoError(t, memory.IncidentRepo{S: store}.Insert(context.Background(), incident))

	reg := intelligence.NewRegistry(intelligence.NewLocal())
	require.NoError(t, reg.Register(brokenProvider{}))

	stage := stages.NewAnalyze(reg, memory.IncidentRepo{S: store}, memory.AnalysisRunRepo{S: store}, memory.ProviderRepo{S: store}, logr.Discard())
	result := stage.Execute(context.Background(), stages.Context{
		IncidentID: "inc-1",
		Config:     map[string]interface{}{"provider": "broken"},
	})

	require.False(t, result.Failed)
	out, ok := result.Output.(stages.AnalyzeOutput)
	require.True(t, ok)
	assert.Equal(t, types.AnalysisFallback, out.Status)
	assert.Equal(t, intelligence.LocalProviderName, out.Provider)
	assert.NotEmpty(t, out.Recommendations)
}

type brokenProvider struct{}

func (brokenProvider) Name() string { return "broken" }
func (brokenProvider) Analyze(ctx context.Context, incident *types.Incident, checks []types.CheckResult) ([]types.Recommendation, int, error) {
	return nil, 0, apperrors.New(apperrors.KindTransient, "provider unreachable")
}

type stubDriver struct {
	fn func(ctx context.Context, config map[string]interface{}, msg notify.Message) error
}

func (s stubDriver) Name() string { return "stub" }
func (s stubDriver) Send(ctx context.Context, config map[string]interface{}, msg notify.Message) error {
	return s.fn(ctx, config, msg)
}

func TestNotify_SucceedsWithNoActiveChannels(t *testing.T) {
	store := memory.NewStore()
	reg := notify.NewRegistry()
	stage := stages.NewNotify(memory.ChannelRepo{S: store}, notify.NewDispatcher(reg), logr.Discard())

	result := stage.Execute(context.Background(), stages.Context{})
	assert.False(t, result.Failed)
}

func TestNotify_SucceedsIfAnyChannelSucceeds(t *testing.T) {
	store := memory.NewStore()
	store.PutChannel(&types.NotificationChannel{ID: "c1", Name: "chan-1", Driver: "stub", IsActive: true})

	reg := notify.NewRegistry()
	require.NoError(t, reg.Register(stubDriver{fn: func(ctx context.Context, config map[string]interface{}, msg notify.Message) error {
		return nil
	}}))

	stage := stages.NewNotify(memory.ChannelRepo{S: store}, notify.NewDispatcher(reg), logr.Discard())
	result := stage.Execute(context.Background(), stages.Context{})

	assert.False(t, result.Failed)
	out, ok := result.Output.(stages.NotifyOutput)
	require.True(t, ok)
	assert.True(t, out.Deliveries[0].Succeeded)
}

func TestNotify_FailsWhenAllDeliveriesFailRetryably(t *testing.T) {
	store := memory.NewStore()
	store.PutChannel(&types.NotificationChannel{ID: "c1", Name: "chan-1", Driver: "stub", IsActive: true})

	reg := notify.NewRegistry()
	require.NoError(t, reg.Register(stubDriver{fn: func(ctx context.Context, config map[string]interface{}, msg notify.Message) error {
		return apperrors.New(apperrors.KindTransient, "down").WithRetryable(true)
	}}))

	dispatcher := notify.NewDispatcher(reg)
	dispatcher.Backoff.MaxAttempts = 1
	stage := stages.NewNotify(memory.ChannelRepo{S: store}, dispatcher, logr.Discard())
	result := stage.Execute(context.Background(), stages.Context{})

	assert.True(t, result.Failed)
	assert.Len(t, result.Errors, 1)
}
