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

// Package postgres implements the repository.* interfaces against
// PostgreSQL via sqlx + lib/pq, plus a pgx/v5 pool dedicated to the
// fingerprint advisory lock (§4.1/§5: "never an in-process lock").
package postgres

import (
	"database/sql/driver"
	"fmt"

	"github.com/go-faster/jx"
)

// jsonMap is a map[string]string that round-trips through a jsonb column
// using go-faster/jx for encode and its decoder for decode, avoiding the
// allocation-heavy encoding/json path on the hot ingest write path.
type jsonMap map[string]string

func (m jsonMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	var e jx.Encoder
	e.ObjStart()
	for k, v := range m {
		e.FieldStart(k)
		e.Str(v)
	}
	e.ObjEnd()
	return e.Bytes(), nil
}

func (m *jsonMap) Scan(src interface{}) error {
	raw, ok := asBytes(src)
	if !ok {
		return fmt.Errorf("jsonMap.Scan: unsupported source type %T", src)
	}
	out := jsonMap{}
	d := jx.DecodeBytes(raw)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		v, err := d.Str()
		if err != nil {
			return err
		}
		out[string(key)] = v
		return nil
	}); err != nil {
		return err
	}
	*m = out
	return nil
}

// jsonAny is an opaque JSON-typed column (recommendations, provider_config,
// raw_payload) stored and retrieved as raw bytes — callers decode further
// with whatever shape they expect.
type jsonAny []byte

func (b jsonAny) Value() (driver.Value, error) {
	if len(b) == 0 {
		return []byte("{}"), nil
	}
	return []byte(b), nil
}

func (b *jsonAny) Scan(src interface{}) error {
	raw, ok := asBytes(src)
	if !ok {
		return fmt.Errorf("jsonAny.Scan: unsupported source type %T", src)
	}
	*b = append([]byte(nil), raw...)
	return nil
}

func asBytes(src interface{}) ([]byte, bool) {
	switch v := src.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	case nil:
		return []byte("{}"), true
	default:
		return nil, false
	}
}
