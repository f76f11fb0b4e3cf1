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

package intelligence

import (
	"context"
	"fmt"

	"github.com/jordigilh/alertpipe/pkg/types"
)

// Local is the always-available rule-engine fallback: it derives
// recommendations purely from check result statuses, never calls out to a
// network dependency, and cannot itself fail.
type Local struct{}

func NewLocal() *Local { return &Local{} }

func (l *Local) Name() string { return LocalProviderName }

func (l *Local) Analyze(ctx context.Context, incident *types.Incident, checks []types.CheckResult) ([]types.Recommendation, int, error) {
	var recs []types.Recommendation
	for _, c := range checks {
		switch c.Status {
		case types.CheckCritical:
			recs = append(recs, types.Recommendation{
				Action:     "escalate",
				Confidence: 0.6,
				Reasoning:  fmt.Sprintf("checker %q reported critical on %s: %s", c.CheckerName, c.Hostname, c.Message),
			})
		case types.CheckWarning:
			recs = append(recs, types.Recommendation{
				Action:     "monitor",
				Confidence: 0.4,
				Reasoning:  fmt.Sprintf("checker %q reported warning on %s: %s", c.CheckerName, c.Hostname, c.Message),
			})
		}
	}
	if len(recs) == 0 {
		recs = append(recs, types.Recommendation{
			Action:     "acknowledge",
			Confidence: 0.3,
			Reasoning:  "no checker reported a non-ok status; default low-confidence acknowledgement",
		})
	}
	return recs, 0, nil
}
