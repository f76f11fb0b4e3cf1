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
	"sync"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
)

// Registry holds process-wide intelligence providers, always including the
// local rule engine as a guaranteed fallback.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	local     Provider
}

func NewRegistry(local Provider) *Registry {
	r := &Registry{providers: map[string]Provider{}, local: local}
	r.providers[local.Name()] = local
	return r
}

func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if _, exists := r.providers[name]; exists {
		return apperrors.Newf(apperrors.KindValidation, "intelligence provider %q already registered", name)
	}
	r.providers[name] = p
	return nil
}

// Resolve returns the provider named by preferredName, falling back to the
// local rule engine if preferredName is empty or unregistered — the
// fallback is never itself absent, per §4.2's guarantee.
func (r *Registry) Resolve(preferredName string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if preferredName == "" {
		return r.local
	}
	if p, ok := r.providers[preferredName]; ok {
		return p
	}
	return r.local
}

func (r *Registry) Local() Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.local
}
