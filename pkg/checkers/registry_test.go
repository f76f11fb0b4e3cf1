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

package checkers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordigilh/alertpipe/pkg/checkers"
	"github.com/jordigilh/alertpipe/pkg/types"
)

type fakeChecker struct{ name string }

func (f fakeChecker) Name() string { return f.name }
func (f fakeChecker) Check(ctx context.Context, hostname string) types.CheckResult {
	return types.CheckResult{CheckerName: f.name, Hostname: hostname, Status: types.CheckOK}
}

func TestRegistry_RejectsDuplicateRegistration(t *testing.T) {
	r := checkers.NewRegistry()
	require.NoError(t, r.Register(fakeChecker{name: "disk"}))

	err := r.Register(fakeChecker{name: "disk"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_EnabledHonorsSkipList(t *testing.T) {
	r := checkers.NewRegistry()
	require.NoError(t, r.Register(fakeChecker{name: "disk"}))
	require.NoError(t, r.Register(fakeChecker{name: "process"}))
	require.NoError(t, r.Register(fakeChecker{name: "memory"}))

	enabled := r.Enabled([]string{"process"})
	names := make([]string, len(enabled))
	for i, c := range enabled {
		names[i] = c.Name()
	}
	assert.Equal(t, []string{"disk", "memory"}, names)
}

func TestRegistry_GetUnknownCheckerNotFound(t *testing.T) {
	r := checkers.NewRegistry()
	_, ok := r.Get("nope")
	assert.False(t, ok)
}
