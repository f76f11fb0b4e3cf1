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

package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
)

func TestDo_RetriesOnlyRetryableErrors(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), BackoffConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(ctx context.Context, attempt int) error {
		attempts++
		return apperrors.New(apperrors.KindTransient, "boom").WithRetryable(true)
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_StopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), BackoffConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func(ctx context.Context, attempt int) error {
		attempts++
		return apperrors.New(apperrors.KindValidation, "bad input")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_SucceedsWithoutExhaustingAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), BackoffConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func(ctx context.Context, attempt int) error {
		attempts++
		if attempt < 2 {
			return apperrors.New(apperrors.KindTransient, "retry me").WithRetryable(true)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestIdempotencyKey_DeterministicAndDistinct(t *testing.T) {
	k1 := IdempotencyKey("run-1", "check", 1)
	k2 := IdempotencyKey("run-1", "check", 1)
	k3 := IdempotencyKey("run-1", "check", 2)
	k4 := IdempotencyKey("run-1", "analyze", 1)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.NotEqual(t, k1, k4)
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{Name: "test", MaxFailures: 2, Timeout: time.Minute, HalfOpenMax: 1})

	for i := 0; i < 2; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, assert.AnError })
	}
	assert.Equal(t, StateOpen, cb.State())

	_, err := cb.Execute(func() (interface{}, error) { return "unreachable", nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
