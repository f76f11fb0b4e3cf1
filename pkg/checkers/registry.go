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

package checkers

import (
	"sync"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
)

// Registry holds process-wide checkers. It has no sealed state: Register
// keeps accepting new checkers after startup, guarded only by the mutex.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{checkers: map[string]Checker{}}
}

func (r *Registry) Register(c Checker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := c.Name()
	if _, exists := r.checkers[name]; exists {
		return apperrors.Newf(apperrors.KindValidation, "checker %q already registered", name)
	}
	r.checkers[name] = c
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Get(name string) (Checker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.checkers[name]
	return c, ok
}

// Enabled returns the registry's checkers honoring skip, in registration
// order, per §4.2's "get_enabled_checkers() which honors skip list".
func (r *Registry) Enabled(skip []string) []Checker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	skipSet := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipSet[s] = true
	}

	out := make([]Checker, 0, len(r.order))
	for _, name := range r.order {
		if skipSet[name] {
			continue
		}
		out = append(out, r.checkers[name])
	}
	return out
}
