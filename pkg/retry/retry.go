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

// Package retry provides the backoff, circuit breaking and idempotency-key
// derivation used by stage executors when re-attempting a failed stage, per
// the retry/idempotency policy: only classify-retryable errors are retried,
// attempts are capped per stage, and every attempt gets a stable key derived
// from (run_id, stage, attempt) so a duplicate attempt is rejected by the
// storage layer rather than executed twice.
package retry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
)

// State mirrors gobreaker.State under a name that doesn't leak the backing
// library into callers logging or comparing breaker state.
type State int

const (
	StateClosed State = State(gobreaker.StateClosed)
	StateOpen   State = State(gobreaker.StateOpen)
	StateHalf   State = State(gobreaker.StateHalfOpen)
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalf:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrCircuitOpen = errors.New("retry: circuit breaker is open")

// BreakerConfig configures a CircuitBreaker. Zero values fall back to
// DefaultBreakerConfig's thresholds.
type BreakerConfig struct {
	Name          string
	MaxFailures   uint32
	Timeout       time.Duration
	HalfOpenMax   uint32
	OnStateChange func(name string, from, to State)
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:        name,
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		HalfOpenMax: 1,
	}
}

// CircuitBreaker wraps sony/gobreaker, one instance per external dependency
// (an intelligence provider, a notification driver) so a failing downstream
// trips independently of the others.
type CircuitBreaker struct {
	gb *gobreaker.CircuitBreaker
}

func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenMax == 0 {
		cfg.HalfOpenMax = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMax,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, State(from), State(to))
		}
	}

	return &CircuitBreaker{gb: gobreaker.NewCircuitBreaker(settings)}
}

func (cb *CircuitBreaker) State() State { return State(cb.gb.State()) }

// Execute runs fn through the breaker, translating gobreaker's own open-state
// sentinel into ErrCircuitOpen so callers only need to check one error.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	out, err := cb.gb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return out, err
}

// BackoffConfig configures the retry schedule for a stage's re-attempts.
type BackoffConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	JitterPct    uint64
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		JitterPct:    20,
	}
}

// Delay computes the §4.6 backoff schedule directly (base * 2^(attempt-1)),
// capped at MaxDelay, for callers that schedule a retry themselves rather
// than driving it through Do — the fixed-topology orchestrator, which
// persists a new StageExecution row per attempt instead of looping in
// process.
func (c BackoffConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := c.InitialDelay
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	d := base << uint(attempt-1)
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Do runs fn with exponential backoff via sethvargo/go-retry, retrying only
// when fn returns an error classified retryable by internal/errors (or one
// explicitly wrapped with retry.RetryableError by the caller). A non-retryable
// error returns immediately on the first attempt.
func Do(ctx context.Context, cfg BackoffConfig, fn func(ctx context.Context, attempt int) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	base := cfg.InitialDelay
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	b := retry.NewExponential(base)
	if cfg.MaxDelay > 0 {
		b = retry.WithCappedDuration(cfg.MaxDelay, b)
	}
	if cfg.JitterPct > 0 {
		b = retry.WithJitterPercent(cfg.JitterPct, b)
	}
	b = retry.WithMaxRetries(uint64(cfg.MaxAttempts-1), b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if apperrors.IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// IdempotencyKey derives the stable key stored alongside a stage_executions
// row: hash(run_id, stage, attempt). Identical inputs always produce the same
// key so a re-submitted attempt collides with the storage layer's unique
// index instead of executing the stage a second time.
func IdempotencyKey(runID, stage string, attempt int) string {
	h := sha256.New()
	h.Write([]byte(runID))
	h.Write([]byte{0})
	h.Write([]byte(stage))
	h.Write([]byte{0})
	h.Write([]byte{byte(attempt), byte(attempt >> 8), byte(attempt >> 16), byte(attempt >> 24)})
	return hex.EncodeToString(h.Sum(nil))
}
