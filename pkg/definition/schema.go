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

package definition

import (
	"encoding/json"

	"github.com/getkin/kin-openapi/openapi3"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
)

// admissionSchema describes the shape a PipelineDefinition.Config JSON
// document must have before it is even semantically validated (Validate).
// It is intentionally loose on "config"/"next"/etc — those are checked by
// Validate.
var admissionSchema = openapi3.NewObjectSchema().
	WithProperty("version", openapi3.NewStringSchema()).
	WithProperty("description", openapi3.NewStringSchema()).
	WithProperty("defaults", openapi3.NewObjectSchema().
		WithProperty("max_retries", openapi3.NewIntegerSchema()).
		WithProperty("timeout_seconds", openapi3.NewIntegerSchema())).
	WithProperty("nodes", openapi3.NewArraySchema().WithMinItems(1).WithItems(
		openapi3.NewObjectSchema().
			WithProperty("id", openapi3.NewStringSchema()).
			WithProperty("type", openapi3.NewStringSchema().WithEnum(
				"ingest", "context", "intelligence", "notify", "transform",
			)).
			WithProperty("next", openapi3.NewStringSchema()).
			WithProperty("required", openapi3.NewBoolSchema()).
			WithRequired([]string{"id", "type"}),
	)).
	WithRequired([]string{"version", "nodes"})

// ValidateSchema admits raw against the PipelineDefinition.Config JSON
// schema — the first of the two validation passes §4.5 describes (schema
// admission, then semantic Validate).
func ValidateSchema(raw []byte) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return apperrors.Wrap(err, apperrors.KindValidation, "definition: malformed JSON")
	}
	if err := admissionSchema.VisitJSON(doc); err != nil {
		return apperrors.Wrap(err, apperrors.KindValidation, "definition: schema admission failed")
	}
	return nil
}
