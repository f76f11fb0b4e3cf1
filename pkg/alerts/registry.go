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

package alerts

import (
	"sync"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
)

// genericDriverName matches drivers.GenericName; duplicated here rather than
// imported to avoid alerts <-> alerts/drivers forming an import cycle.
const genericDriverName = "generic"

// Registry holds the set of source drivers available for normalization,
// grounded on the adapter registry pattern: duplicate registration is a
// startup-time configuration error, not a runtime one.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{drivers: map[string]Driver{}}
}

func (r *Registry) Register(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := d.Name()
	if _, exists := r.drivers[name]; exists {
		return apperrors.Newf(apperrors.KindValidation, "driver %q already registered", name)
	}
	r.drivers[name] = d
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Get(name string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[name]
	return d, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drivers)
}

// Detect picks the driver for payload. When sourceHint is non-empty it must
// name a registered driver. Otherwise drivers are probed in registration
// order, with any driver named "generic" tried last regardless of when it
// was registered, since it accepts any JSON object and would otherwise
// shadow more specific drivers registered after it.
func (r *Registry) Detect(payload []byte, sourceHint string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if sourceHint != "" {
		d, ok := r.drivers[sourceHint]
		if !ok {
			return nil, apperrors.Newf(apperrors.KindValidation, "unknown source_hint %q", sourceHint)
		}
		return d, nil
	}

	var generic Driver
	for _, name := range r.order {
		d := r.drivers[name]
		if name == genericDriverName {
			generic = d
			continue
		}
		if d.Probe(payload) {
			return d, nil
		}
	}
	if generic != nil && generic.Probe(payload) {
		return generic, nil
	}
	return nil, apperrors.New(apperrors.KindValidation, "no driver matched payload")
}
