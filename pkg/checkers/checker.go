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

// Package checkers implements the health-checker registry: a small,
// intentionally-thin set of probes producing CheckResult values for the
// check stage/context node to fan out over. Per spec scope, checkers
// themselves are an opaque registry — this package exists to give that
// registry something real to hold in tests, not to be a serious probe
// library.
package checkers

import (
	"context"

	"github.com/jordigilh/alertpipe/pkg/types"
)

// Checker produces one CheckResult per invocation against a target host.
type Checker interface {
	Name() string
	Check(ctx context.Context, hostname string) types.CheckResult
}
