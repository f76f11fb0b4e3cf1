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

// Package types holds the pure domain value objects from the data model:
// Alert, Incident, AlertHistory, CheckRun, AnalysisRun, PipelineRun,
// StageExecution, PipelineDefinition, NotificationChannel and
// IntelligenceProvider. These are plain values — no ORM tags, no behavior
// tied to a storage engine. Repository interfaces in pkg/storage/repository
// own the persistence concern.
package types

import "time"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
)

// severityRank orders severities from least to most urgent so an incident's
// severity can be recomputed as the max over its member alerts.
var severityRank = map[Severity]int{
	SeveritySuccess:  0,
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityCritical: 3,
}

// MaxSeverity returns the most urgent severity among sev, defaulting to
// SeverityInfo when sev is empty.
func MaxSeverity(sev ...Severity) Severity {
	max := SeverityInfo
	seen := false
	for _, s := range sev {
		if !seen || severityRank[s] > severityRank[max] {
			max = s
			seen = true
		}
	}
	return max
}

type AlertStatus string

const (
	AlertStatusFiring   AlertStatus = "firing"
	AlertStatusResolved AlertStatus = "resolved"
)

// Alert is one observation from a monitoring source.
type Alert struct {
	ID          string
	Fingerprint string
	Source      string
	Name        string
	Severity    Severity
	Status      AlertStatus
	Labels      map[string]string
	Annotations map[string]string
	RawPayload  []byte
	ReceivedAt  time.Time
	IncidentID  string
	StartsAt    time.Time
	EndsAt      *time.Time
}

// AlertHistory is an append-only audit record of an alert's status changes.
type AlertHistory struct {
	ID             int64
	AlertID        string
	PreviousStatus AlertStatus
	NewStatus      AlertStatus
	At             time.Time
	Details        string
}

type IncidentStatus string

const (
	IncidentOpen         IncidentStatus = "open"
	IncidentAcknowledged IncidentStatus = "acknowledged"
	IncidentResolved     IncidentStatus = "resolved"
	IncidentClosed       IncidentStatus = "closed"
)

// incidentOrder is the monotonic chain an incident's status may advance
// through; IsValidTransition enforces it never runs backward.
var incidentOrder = map[IncidentStatus]int{
	IncidentOpen:         0,
	IncidentAcknowledged: 1,
	IncidentResolved:     2,
	IncidentClosed:       3,
}

// IsValidTransition reports whether moving from `from` to `to` is allowed:
// strictly forward in the chain, or a no-op.
func IsValidTransition(from, to IncidentStatus) bool {
	if from == to {
		return true
	}
	return incidentOrder[to] > incidentOrder[from]
}

// Incident is the operator-facing grouping of related alerts.
type Incident struct {
	ID          string
	Title       string
	Description string
	Severity    Severity
	Status      IncidentStatus
	GroupingKey string
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ResolvedAt  *time.Time
}
