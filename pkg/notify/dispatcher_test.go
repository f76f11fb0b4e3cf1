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

package notify_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	"github.com/jordigilh/alertpipe/pkg/notify"
	"github.com/jordigilh/alertpipe/pkg/retry"
	"github.com/jordigilh/alertpipe/pkg/types"
)

type stubDriver struct {
	name string
	fn   func(ctx context.Context, config map[string]interface{}, msg notify.Message) error
}

func (s stubDriver) Name() string { return s.name }
func (s stubDriver) Send(ctx context.Context, config map[string]interface{}, msg notify.Message) error {
	return s.fn(ctx, config, msg)
}

func TestDispatch_SucceedsIfAnyChannelSucceeds(t *testing.T) {
	reg := notify.NewRegistry()
	require.NoError(t, reg.Register(stubDriver{name: "ok", fn: func(ctx context.Context, config map[string]interface{}, msg notify.Message) error {
		return nil
	}}))
	require.NoError(t, reg.Register(stubDriver{name: "broken", fn: func(ctx context.Context, config map[string]interface{}, msg notify.Message) error {
		return apperrors.New(apperrors.KindValidation, "nope")
	}}))

	d := notify.NewDispatcher(reg)
	statuses := d.Dispatch(context.Background(), []*types.NotificationChannel{
		{ID: "c1", Name: "chan-1", Driver: "ok"},
		{ID: "c2", Name: "chan-2", Driver: "broken"},
	}, notify.Message{Title: "t", Body: "b"})

	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Succeeded)
	assert.False(t, statuses[1].Succeeded)
}

func TestDispatch_UnregisteredDriverRecordedAsFailure(t *testing.T) {
	reg := notify.NewRegistry()
	d := notify.NewDispatcher(reg)

	statuses := d.Dispatch(context.Background(), []*types.NotificationChannel{
		{ID: "c1", Name: "chan-1", Driver: "nonexistent"},
	}, notify.Message{Title: "t", Body: "b"})

	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Succeeded)
	assert.Contains(t, statuses[0].Error, "unregistered driver")
}

func TestDispatch_RetriesTransientFailureThenSucceeds(t *testing.T) {
	reg := notify.NewRegistry()
	attempts := 0
	require.NoError(t, reg.Register(stubDriver{name: "flaky", fn: func(ctx context.Context, config map[string]interface{}, msg notify.Message) error {
		attempts++
		if attempts == 1 {
			return apperrors.New(apperrors.KindTransient, "transient").WithRetryable(true)
		}
		return nil
	}}))

	d := notify.NewDispatcher(reg)
	d.Backoff = retry.BackoffConfig{MaxAttempts: 3, InitialDelay: 0}
	statuses := d.Dispatch(context.Background(), []*types.NotificationChannel{
		{ID: "c1", Name: "chan-1", Driver: "flaky"},
	}, notify.Message{Title: "t", Body: "b"})

	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Succeeded)
	assert.Equal(t, 2, attempts)
}

func TestDispatch_LimiterRejectionRecordedAsFailure(t *testing.T) {
	reg := notify.NewRegistry()
	require.NoError(t, reg.Register(stubDriver{name: "ok", fn: func(ctx context.Context, config map[string]interface{}, msg notify.Message) error {
		return nil
	}}))

	d := notify.NewDispatcher(reg)
	// A zero-token limiter with no burst and an already-cancelled context
	// guarantees Wait returns immediately with an error instead of blocking.
	d.Limiter = rate.NewLimiter(rate.Limit(1), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	statuses := d.Dispatch(ctx, []*types.NotificationChannel{
		{ID: "c1", Name: "chan-1", Driver: "ok"},
	}, notify.Message{Title: "t", Body: "b"})

	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Succeeded)
	assert.NotEmpty(t, statuses[0].Error)
}
