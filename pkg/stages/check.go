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
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/jordigilh/alertpipe/pkg/checkers"
	"github.com/jordigilh/alertpipe/pkg/types"
)

// Check resolves the checker set from config and invokes each checker in
// bounded parallel fan-out. Per §4.2, an individual checker failure is
// recorded but never fails the stage; the stage fails only if zero checkers
// could run.
type Check struct {
	Registry    *checkers.Registry
	Concurrency int
	Log         logr.Logger
}

func NewCheck(registry *checkers.Registry, log logr.Logger) *Check {
	return &Check{Registry: registry, Concurrency: 4, Log: log}
}

// CheckOutput is the StageExecution output for the check stage.
type CheckOutput struct {
	ChecksRun      int
	ChecksOK       int
	ChecksWarning  int
	ChecksCritical int
	ChecksUnknown  int
	Results        map[string]types.CheckResult
}

func (s *Check) Execute(ctx context.Context, sc Context) Result {
	start := time.Now()

	hostname := sc.stringConfig("hostname")
	skip := sc.stringSliceConfig("skip")

	enabled := s.Registry.Enabled(skip)
	if len(enabled) == 0 {
		return Result{
			Errors:     []string{"no checkers available after applying skip list"},
			Failed:     true,
			Retryable:  false,
			DurationMS: time.Since(start).Milliseconds(),
		}
	}

	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make(map[string]types.CheckResult, len(enabled))
	var mu sync.Mutex
	var errs []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, c := range enabled {
		c := c
		g.Go(func() error {
			res := c.Check(gctx, hostname)
			mu.Lock()
			results[c.Name()] = res
			if res.Error != "" {
				errs = append(errs, c.Name()+": "+res.Error)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out := CheckOutput{Results: results}
	for _, r := range results {
		out.ChecksRun++
		switch r.Status {
		case types.CheckOK:
			out.ChecksOK++
		case types.CheckWarning:
			out.ChecksWarning++
		case types.CheckCritical:
			out.ChecksCritical++
		default:
			out.ChecksUnknown++
		}
	}

	return Result{
		Output:     out,
		Errors:     errs,
		DurationMS: time.Since(start).Milliseconds(),
	}
}
