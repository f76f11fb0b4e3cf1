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

// Package drivers implements alerts.Driver for concrete monitoring sources.
package drivers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/jx"

	"github.com/jordigilh/alertpipe/pkg/alerts"
	apperrors "github.com/jordigilh/alertpipe/internal/errors"
)

const GenericName = "generic"

// Generic accepts any well-formed JSON object, per the normalizer contract's
// requirement that a catch-all driver always exists and is always probed
// last. It expects (but does not require) alertmanager-shaped fields so that
// a hand-rolled webhook posting roughly that shape still normalizes
// correctly.
type Generic struct{}

func NewGeneric() *Generic { return &Generic{} }

func (g *Generic) Name() string { return GenericName }

func (g *Generic) Probe(payload []byte) bool {
	d := jx.DecodeBytes(payload)
	return d.Next() == jx.Object
}

func (g *Generic) Parse(ctx context.Context, payload []byte) ([]alerts.NormalizedAlert, error) {
	var raw genericPayload
	if err := decodeGeneric(payload, &raw); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindValidation, "generic driver: malformed payload")
	}

	status := strings.ToLower(raw.Status)
	if status != "firing" && status != "resolved" {
		status = "firing"
	}

	na := alerts.NormalizedAlert{
		Source:      GenericName,
		Name:        firstNonEmpty(raw.Labels["alertname"], raw.Name),
		Severity:    firstNonEmpty(raw.Labels["severity"], raw.Severity, "warning"),
		Status:      status,
		Labels:      raw.Labels,
		Annotations: raw.Annotations,
		RawPayload:  payload,
	}
	if raw.StartsAt != "" {
		if t, err := time.Parse(time.RFC3339, raw.StartsAt); err == nil {
			na.StartsAt = t
		}
	}
	if na.StartsAt.IsZero() {
		na.StartsAt = time.Now().UTC()
	}
	if raw.EndsAt != "" {
		if t, err := time.Parse(time.RFC3339, raw.EndsAt); err == nil {
			na.EndsAt = &t
		}
	}
	na.Fingerprint = firstNonEmpty(raw.Fingerprint, Fingerprint(na.Source, na.Name, na.Labels))

	return []alerts.NormalizedAlert{na}, nil
}

type genericPayload struct {
	Name        string
	Severity    string
	Status      string
	Fingerprint string
	StartsAt    string
	EndsAt      string
	Labels      map[string]string
	Annotations map[string]string
}

func decodeGeneric(payload []byte, out *genericPayload) error {
	out.Labels = map[string]string{}
	out.Annotations = map[string]string{}
	d := jx.DecodeBytes(payload)
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name", "alertname":
			s, err := d.Str()
			if err != nil {
				return err
			}
			out.Name = s
		case "severity":
			s, err := d.Str()
			if err != nil {
				return err
			}
			out.Severity = s
		case "status":
			s, err := d.Str()
			if err != nil {
				return err
			}
			out.Status = s
		case "fingerprint":
			s, err := d.Str()
			if err != nil {
				return err
			}
			out.Fingerprint = s
		case "starts_at", "startsAt":
			s, err := d.Str()
			if err != nil {
				return err
			}
			out.StartsAt = s
		case "ends_at", "endsAt":
			s, err := d.Str()
			if err != nil {
				return err
			}
			out.EndsAt = s
		case "labels":
			return d.ObjBytes(func(d *jx.Decoder, k []byte) error {
				s, err := d.Str()
				if err != nil {
					return err
				}
				out.Labels[string(k)] = s
				return nil
			})
		case "annotations":
			return d.ObjBytes(func(d *jx.Decoder, k []byte) error {
				s, err := d.Str()
				if err != nil {
					return err
				}
				out.Annotations[string(k)] = s
				return nil
			})
		default:
			return d.Skip()
		}
		return nil
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Fingerprint derives a stable fingerprint from source, name and sorted
// labels, per the normalizer's fallback rule for drivers that cannot compute
// one natively.
func Fingerprint(source, name string, labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(name))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(labels[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}
