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

package types

import "time"

type CheckStatus string

const (
	CheckOK       CheckStatus = "ok"
	CheckWarning  CheckStatus = "warning"
	CheckCritical CheckStatus = "critical"
	CheckUnknown  CheckStatus = "unknown"
)

// CheckResult is the value a single checker produces for one invocation.
type CheckResult struct {
	CheckerName string
	Hostname    string
	Status      CheckStatus
	Message     string
	Metrics     map[string]interface{}
	Error       string
}

// CheckRun is the persisted record of one checker execution; immutable once
// created.
type CheckRun struct {
	ID          string
	CheckerName string
	Hostname    string
	Status      CheckStatus
	Message     string
	Metrics     map[string]interface{}
	Error       string
	TraceID     string
	ExecutedAt  time.Time
}

// Recommendation is one suggested action produced by an intelligence
// provider for an incident.
type Recommendation struct {
	Action     string
	Confidence float64
	Reasoning  string
	Parameters map[string]interface{}
}

type AnalysisStatus string

const (
	AnalysisSucceeded AnalysisStatus = "succeeded"
	AnalysisFailed    AnalysisStatus = "failed"
	AnalysisFallback  AnalysisStatus = "fallback"
)

// AnalysisRun is one execution of one intelligence provider for one incident.
type AnalysisRun struct {
	ID              string
	TraceID         string
	PipelineRunID   string
	IncidentID      string
	Provider        string
	ProviderConfig  map[string]interface{}
	Recommendations []Recommendation
	TotalTokens     int
	Status          AnalysisStatus
	Error           string
	CreatedAt       time.Time
}
