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

package stages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	"github.com/jordigilh/alertpipe/pkg/notify"
	"github.com/jordigilh/alertpipe/pkg/storage/repository"
	"github.com/jordigilh/alertpipe/pkg/types"
)

// Notify loads active channels matching the configured driver set, builds a
// message from prior stage outputs, and dispatches. Per §4.2, per-channel
// failures are recorded but the stage succeeds if any channel succeeded;
// the stage fails only when zero deliveries succeeded and at least one was
// attempted with a retryable error.
type Notify struct {
	Channels   repository.ChannelRepository
	Dispatcher *notify.Dispatcher
	Log        logr.Logger
}

func NewNotify(channels repository.ChannelRepository, dispatcher *notify.Dispatcher, log logr.Logger) *Notify {
	return &Notify{Channels: channels, Dispatcher: dispatcher, Log: log}
}

// NotifyOutput is the StageExecution output for the notify stage.
type NotifyOutput struct {
	Message    notify.Message
	Deliveries []notify.DeliveryStatus
}

func (s *Notify) Execute(ctx context.Context, sc Context) Result {
	start := time.Now()

	drivers := sc.stringSliceConfig("drivers")

	var channels []*types.NotificationChannel
	var err error
	if len(drivers) > 0 {
		channels, err = s.Channels.ListActiveByDrivers(ctx, drivers)
	} else {
		channels, err = s.Channels.ListActive(ctx)
	}
	if err != nil {
		return Result{
			Errors:     []string{err.Error()},
			Failed:     true,
			Retryable:  apperrors.IsRetryable(err),
			DurationMS: time.Since(start).Milliseconds(),
		}
	}

	if len(channels) == 0 {
		// §9 open question resolved: zero matching active channels is a
		// no-op success, not a misconfiguration failure.
		return Result{
			Output:     NotifyOutput{Message: buildMessage(sc)},
			Skip:       true,
			SkipReason: "no_active_channels",
			DurationMS: time.Since(start).Milliseconds(),
		}
	}

	msg := buildMessage(sc)
	deliveries := s.Dispatcher.Dispatch(ctx, channels, msg)

	var errs []string
	succeeded := false
	attemptedRetryable := false
	for _, d := range deliveries {
		if d.Succeeded {
			succeeded = true
			continue
		}
		errs = append(errs, fmt.Sprintf("%s: %s", d.ChannelName, d.Error))
		if d.Retryable {
			attemptedRetryable = true
		}
	}

	failed := !succeeded && attemptedRetryable

	return Result{
		Output: NotifyOutput{
			Message:    msg,
			Deliveries: deliveries,
		},
		Errors:     errs,
		Failed:     failed,
		Retryable:  failed,
		DurationMS: time.Since(start).Milliseconds(),
	}
}

func buildMessage(sc Context) notify.Message {
	severity := types.SeverityInfo
	var titleParts []string

	if checkOut, ok := sc.PreviousOutputs[string(types.StageCheck)].(CheckOutput); ok {
		if checkOut.ChecksCritical > 0 {
			titleParts = append(titleParts, fmt.Sprintf("%d critical check(s)", checkOut.ChecksCritical))
			severity = types.SeverityCritical
		}
		if checkOut.ChecksWarning > 0 {
			titleParts = append(titleParts, fmt.Sprintf("%d warning check(s)", checkOut.ChecksWarning))
			severity = types.MaxSeverity(severity, types.SeverityWarning)
		}
	}

	var bodyParts []string
	if analyzeOut, ok := sc.PreviousOutputs[string(types.StageAnalyze)].(AnalyzeOutput); ok {
		for _, r := range analyzeOut.Recommendations {
			bodyParts = append(bodyParts, fmt.Sprintf("- %s (%.0f%% confidence)", r.Action, r.Confidence*100))
		}
	}

	title := "incident update"
	if len(titleParts) > 0 {
		title = strings.Join(titleParts, ", ")
	}

	body := "no recommendations available"
	if len(bodyParts) > 0 {
		body = strings.Join(bodyParts, "\n")
	}

	return notify.Message{
		Title:    title,
		Body:     body,
		Severity: string(severity),
		Labels:   map[string]string{"trace_id": sc.TraceID, "run_id": sc.RunID},
	}
}
