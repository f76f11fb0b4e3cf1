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

// Package alerts implements the alert normalizer: source detection via a
// probe-ordered driver registry, mapping each driver's native payload shape
// to NormalizedAlert records, and the dedup/update/incident-grouping policy
// that turns those records into Alert, AlertHistory and Incident rows.
package alerts

import "time"

// NormalizedAlert is a driver's output shape before it is reconciled against
// existing storage state.
type NormalizedAlert struct {
	Fingerprint string
	Source      string
	Name        string
	Severity    string
	Status      string // "firing" or "resolved"
	Labels      map[string]string
	Annotations map[string]string
	StartsAt    time.Time
	EndsAt      *time.Time
	RawPayload  []byte
}

// IngestResult summarizes the effect of normalizing one payload, per the
// normalizer contract: counts of alerts/incidents created, updated or
// resolved, plus the primary incident touched, if any.
type IngestResult struct {
	AlertsCreated     int
	AlertsUpdated     int
	AlertsResolved    int
	IncidentsCreated  int
	IncidentsUpdated  int
	IncidentsResolved int
	PrimaryIncidentID string
}
