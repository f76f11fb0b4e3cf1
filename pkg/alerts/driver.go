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

import "context"

// Driver maps one monitoring source's native payload shape to
// NormalizedAlert records. Probe is used for shape-based source detection
// when the caller did not supply a source_hint.
type Driver interface {
	Name() string
	Probe(payload []byte) bool
	Parse(ctx context.Context, payload []byte) ([]NormalizedAlert, error)
}
