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

import "testing"

func TestMaxSeverity(t *testing.T) {
	cases := []struct {
		name string
		in   []Severity
		want Severity
	}{
		{"empty defaults to info", nil, SeverityInfo},
		{"single critical", []Severity{SeverityCritical}, SeverityCritical},
		{"warning beats info", []Severity{SeverityInfo, SeverityWarning}, SeverityWarning},
		{"critical beats everything", []Severity{SeverityWarning, SeverityCritical, SeveritySuccess}, SeverityCritical},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MaxSeverity(tc.in...); got != tc.want {
				t.Errorf("MaxSeverity(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestIsValidTransition(t *testing.T) {
	cases := []struct {
		from, to IncidentStatus
		want     bool
	}{
		{IncidentOpen, IncidentAcknowledged, true},
		{IncidentOpen, IncidentResolved, true},
		{IncidentOpen, IncidentClosed, true},
		{IncidentResolved, IncidentOpen, false},
		{IncidentClosed, IncidentOpen, false},
		{IncidentClosed, IncidentClosed, true},
		{IncidentAcknowledged, IncidentOpen, false},
	}
	for _, tc := range cases {
		if got := IsValidTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("IsValidTransition(%v, %v) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNextStage(t *testing.T) {
	next, ok := NextStage(StageIngest)
	if !ok || next != StageCheck {
		t.Fatalf("NextStage(ingest) = %v, %v", next, ok)
	}
	_, ok = NextStage(StageNotify)
	if ok {
		t.Fatalf("NextStage(notify) should have no next stage")
	}
}
