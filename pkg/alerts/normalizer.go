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

package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	"github.com/jordigilh/alertpipe/pkg/storage/repository"
	"github.com/jordigilh/alertpipe/pkg/types"
)

// Normalizer implements the ingest contract of §4.1: detect the source
// driver, parse the payload into NormalizedAlert records, and reconcile each
// one against Alert/AlertHistory/Incident storage under a per-fingerprint
// lock so concurrent posts for the same fingerprint never race into
// duplicate incidents.
type Normalizer struct {
	Registry  *Registry
	Alerts    repository.AlertRepository
	History   repository.AlertHistoryRepository
	Incidents repository.IncidentRepository
	Locker    repository.FingerprintLocker
}

func NewNormalizer(reg *Registry, alertsRepo repository.AlertRepository, history repository.AlertHistoryRepository, incidents repository.IncidentRepository, locker repository.FingerprintLocker) *Normalizer {
	return &Normalizer{Registry: reg, Alerts: alertsRepo, History: history, Incidents: incidents, Locker: locker}
}

// Normalize runs the full ingest contract for one raw payload. Malformed
// payloads return a non-retryable KindValidation error; any storage failure
// is wrapped here as a retryable KindTransient error around the repository's
// own error.
func (n *Normalizer) Normalize(ctx context.Context, rawPayload []byte, sourceHint string) (*IngestResult, error) {
	driver, err := n.Registry.Detect(rawPayload, sourceHint)
	if err != nil {
		return nil, err
	}

	parsed, err := driver.Parse(ctx, rawPayload)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{}
	for _, na := range parsed {
		if na.Fingerprint == "" {
			return nil, apperrors.New(apperrors.KindValidation, "driver produced alert with empty fingerprint")
		}
		if err := n.reconcile(ctx, na, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (n *Normalizer) reconcile(ctx context.Context, na NormalizedAlert, result *IngestResult) error {
	unlock, err := n.Locker.Lock(ctx, na.Fingerprint)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindTransient, "acquire fingerprint lock").WithRetryable(true)
	}
	defer unlock()

	if na.Status == "resolved" {
		return n.reconcileResolved(ctx, na, result)
	}
	return n.reconcileFiring(ctx, na, result)
}

func (n *Normalizer) reconcileFiring(ctx context.Context, na NormalizedAlert, result *IngestResult) error {
	existing, err := n.Alerts.FindFiringByFingerprint(ctx, na.Fingerprint)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperrors.Wrap(err, apperrors.KindTransient, "find firing alert").WithRetryable(true)
	}

	if existing != nil {
		changed := existing.Severity != types.Severity(na.Severity)
		existing.Severity = types.Severity(na.Severity)
		existing.Labels = na.Labels
		existing.Annotations = na.Annotations
		existing.RawPayload = na.RawPayload
		existing.ReceivedAt = time.Now().UTC()
		if err := n.Alerts.Update(ctx, existing); err != nil {
			return apperrors.Wrap(err, apperrors.KindTransient, "update firing alert").WithRetryable(true)
		}
		if changed {
			if err := n.History.Append(ctx, &types.AlertHistory{
				AlertID:        existing.ID,
				PreviousStatus: types.AlertStatusFiring,
				NewStatus:      types.AlertStatusFiring,
				At:             time.Now().UTC(),
				Details:        "severity changed to " + na.Severity,
			}); err != nil {
				return apperrors.Wrap(err, apperrors.KindTransient, "append alert history").WithRetryable(true)
			}
		}
		result.AlertsUpdated++
		return nil
	}

	alert := &types.Alert{
		ID:          uuid.NewString(),
		Fingerprint: na.Fingerprint,
		Source:      na.Source,
		Name:        na.Name,
		Severity:    types.Severity(na.Severity),
		Status:      types.AlertStatusFiring,
		Labels:      na.Labels,
		Annotations: na.Annotations,
		RawPayload:  na.RawPayload,
		ReceivedAt:  time.Now().UTC(),
		StartsAt:    na.StartsAt,
	}
	if err := n.Alerts.Insert(ctx, alert); err != nil {
		return apperrors.Wrap(err, apperrors.KindTransient, "insert alert").WithRetryable(true)
	}
	result.AlertsCreated++

	incident, err := n.Incidents.FindOpenByGroupingKey(ctx, na.Fingerprint)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperrors.Wrap(err, apperrors.KindTransient, "find open incident").WithRetryable(true)
	}
	if incident != nil {
		if types.MaxSeverity(incident.Severity, alert.Severity) != incident.Severity {
			incident.Severity = types.MaxSeverity(incident.Severity, alert.Severity)
		}
		incident.UpdatedAt = time.Now().UTC()
		if err := n.Incidents.Update(ctx, incident); err != nil {
			return apperrors.Wrap(err, apperrors.KindTransient, "update incident").WithRetryable(true)
		}
		result.IncidentsUpdated++
	} else {
		incident = &types.Incident{
			ID:          uuid.NewString(),
			Title:       alert.Name,
			Severity:    alert.Severity,
			Status:      types.IncidentOpen,
			GroupingKey: na.Fingerprint,
			CreatedAt:   time.Now().UTC(),
			UpdatedAt:   time.Now().UTC(),
		}
		if err := n.Incidents.Insert(ctx, incident); err != nil {
			return apperrors.Wrap(err, apperrors.KindTransient, "insert incident").WithRetryable(true)
		}
		result.IncidentsCreated++
	}

	alert.IncidentID = incident.ID
	if err := n.Alerts.Update(ctx, alert); err != nil {
		return apperrors.Wrap(err, apperrors.KindTransient, "attach alert to incident").WithRetryable(true)
	}
	result.PrimaryIncidentID = incident.ID
	return nil
}

func (n *Normalizer) reconcileResolved(ctx context.Context, na NormalizedAlert, result *IngestResult) error {
	existing, err := n.Alerts.FindFiringByFingerprint(ctx, na.Fingerprint)
	if errors.Is(err, repository.ErrNotFound) {
		// Resolution for an alert we never saw firing: nothing to reconcile.
		return nil
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindTransient, "find firing alert to resolve").WithRetryable(true)
	}

	existing.Status = types.AlertStatusResolved
	endsAt := na.EndsAt
	if endsAt == nil {
		t := time.Now().UTC()
		endsAt = &t
	}
	existing.EndsAt = endsAt
	if err := n.Alerts.Update(ctx, existing); err != nil {
		return apperrors.Wrap(err, apperrors.KindTransient, "resolve alert").WithRetryable(true)
	}
	if err := n.History.Append(ctx, &types.AlertHistory{
		AlertID:        existing.ID,
		PreviousStatus: types.AlertStatusFiring,
		NewStatus:      types.AlertStatusResolved,
		At:             time.Now().UTC(),
	}); err != nil {
		return apperrors.Wrap(err, apperrors.KindTransient, "append resolve history").WithRetryable(true)
	}
	result.AlertsResolved++

	if existing.IncidentID == "" {
		return nil
	}
	incident, err := n.Incidents.Get(ctx, existing.IncidentID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindTransient, "get incident for resolve check").WithRetryable(true)
	}
	siblings, err := n.Alerts.ListByIncident(ctx, incident.ID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindTransient, "list incident alerts").WithRetryable(true)
	}
	allResolved := true
	for _, a := range siblings {
		if a.Status != types.AlertStatusResolved {
			allResolved = false
			break
		}
	}
	if allResolved && types.IsValidTransition(incident.Status, types.IncidentResolved) {
		incident.Status = types.IncidentResolved
		t := time.Now().UTC()
		incident.ResolvedAt = &t
		incident.UpdatedAt = t
		if err := n.Incidents.Update(ctx, incident); err != nil {
			return apperrors.Wrap(err, apperrors.KindTransient, "resolve incident").WithRetryable(true)
		}
		result.IncidentsResolved++
	}
	result.PrimaryIncidentID = incident.ID
	return nil
}
