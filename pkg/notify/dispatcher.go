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

package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	"github.com/jordigilh/alertpipe/pkg/retry"
	"github.com/jordigilh/alertpipe/pkg/types"
)

// Dispatcher sends one Message to every given channel in bounded parallel
// fan-out, per §5's "per-channel work runs in bounded parallel fan-out,
// joined before the stage completes." Each channel gets its own retry
// schedule; a channel whose driver name isn't registered is recorded as a
// failed, non-retryable delivery rather than aborting the whole dispatch.
type Dispatcher struct {
	Registry    *Registry
	Concurrency int
	Backoff     retry.BackoffConfig

	// Limiter caps the outbound rate of driver.Send calls across the whole
	// dispatcher, independent of Concurrency (which only bounds how many run
	// at once). Nil means unlimited.
	Limiter *rate.Limiter
}

func NewDispatcher(reg *Registry) *Dispatcher {
	return &Dispatcher{Registry: reg, Concurrency: 4, Backoff: retry.DefaultBackoffConfig()}
}

// Dispatch returns one DeliveryStatus per channel, in the same order as
// channels. It never returns an error itself — partial failure is expressed
// entirely through the returned statuses, per the notify stage's
// "succeeds if any channel succeeded" contract.
func (d *Dispatcher) Dispatch(ctx context.Context, channels []*types.NotificationChannel, msg Message) []DeliveryStatus {
	statuses := make([]DeliveryStatus, len(channels))

	concurrency := d.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	for i, ch := range channels {
		i, ch := i, ch
		g.Go(func() error {
			status := d.sendOne(gctx, ch, msg)
			mu.Lock()
			statuses[i] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return statuses
}

func (d *Dispatcher) sendOne(ctx context.Context, ch *types.NotificationChannel, msg Message) DeliveryStatus {
	status := DeliveryStatus{ChannelID: ch.ID, ChannelName: ch.Name, Driver: ch.Driver}

	driver, ok := d.Registry.Get(ch.Driver)
	if !ok {
		status.Error = "unregistered driver: " + ch.Driver
		return status
	}

	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if d.Limiter != nil {
		if err := d.Limiter.Wait(sendCtx); err != nil {
			status.Error = err.Error()
			return status
		}
	}

	err := retry.Do(sendCtx, d.Backoff, func(ctx context.Context, attempt int) error {
		return driver.Send(ctx, ch.Config, msg)
	})
	if err != nil {
		status.Error = err.Error()
		status.Retryable = apperrors.IsRetryable(err)
		return status
	}

	status.Succeeded = true
	return status
}
