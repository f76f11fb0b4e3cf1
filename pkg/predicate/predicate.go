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

// Package predicate evaluates a definition node's skip_if_condition (§4.4):
// a documented, minimal grammar over prior node results. Arbitrary code
// execution is forbidden by spec, so only the one documented shape
// (`<node_id>.has_errors`) is accepted — everything else is rejected before
// it ever reaches the jq evaluator.
package predicate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/itchyny/gojq"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
)

var grammar = regexp.MustCompile(`^[A-Za-z0-9_-]+\.has_errors$`)

// Evaluate returns whether condition holds against hasErrors, a map of node
// id -> whether that node's result carried errors. An empty condition always
// evaluates false (no skip).
func Evaluate(condition string, hasErrors map[string]bool) (bool, error) {
	if condition == "" {
		return false, nil
	}
	if !grammar.MatchString(condition) {
		return false, apperrors.Newf(apperrors.KindValidation, "predicate: unsupported condition %q, only \"<node_id>.has_errors\" is allowed", condition)
	}

	nodeID := strings.TrimSuffix(condition, ".has_errors")

	query, err := gojq.Parse(fmt.Sprintf(".%s.has_errors", gojqKey(nodeID)))
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.KindValidation, "predicate: parse condition")
	}

	doc := map[string]interface{}{
		nodeID: map[string]interface{}{"has_errors": hasErrors[nodeID]},
	}

	iter := query.Run(doc)
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, ok := v.(error); ok {
		return false, apperrors.Wrap(err, apperrors.KindValidation, "predicate: evaluate condition")
	}
	b, ok := v.(bool)
	if !ok {
		return false, nil
	}
	return b, nil
}

// gojqKey quotes a node id as a jq object-index key, so ids containing `-`
// (invalid in a bare jq identifier) still parse.
func gojqKey(nodeID string) string {
	return fmt.Sprintf("%q", nodeID)
}
