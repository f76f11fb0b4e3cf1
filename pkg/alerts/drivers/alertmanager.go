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

package drivers

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/jx"

	"github.com/jordigilh/alertpipe/pkg/alerts"
	apperrors "github.com/jordigilh/alertpipe/internal/errors"
)

const AlertmanagerName = "alertmanager"

// Alertmanager parses Prometheus Alertmanager's webhook_config payload shape:
// a top-level "alerts" array of objects each carrying labels, annotations,
// status and startsAt/endsAt — the shape prometheus-alertmanager's own
// notification pipeline produces.
type Alertmanager struct{}

func NewAlertmanager() *Alertmanager { return &Alertmanager{} }

func (a *Alertmanager) Name() string { return AlertmanagerName }

func (a *Alertmanager) Probe(payload []byte) bool {
	d := jx.DecodeBytes(payload)
	hasAlerts := false
	hasVersion := false
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "alerts":
			hasAlerts = true
		case "version", "groupKey", "receiver":
			hasVersion = true
		}
		return d.Skip()
	})
	return err == nil && hasAlerts && hasVersion
}

func (a *Alertmanager) Parse(ctx context.Context, payload []byte) ([]alerts.NormalizedAlert, error) {
	var webhook amWebhook
	if err := decodeAMWebhook(payload, &webhook); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindValidation, "alertmanager driver: malformed payload")
	}

	out := make([]alerts.NormalizedAlert, 0, len(webhook.Alerts))
	for _, raw := range webhook.Alerts {
		status := strings.ToLower(raw.Status)
		if status != "firing" && status != "resolved" {
			status = "firing"
		}

		na := alerts.NormalizedAlert{
			Source:      AlertmanagerName,
			Name:        raw.Labels["alertname"],
			Severity:    firstNonEmpty(raw.Labels["severity"], "warning"),
			Status:      status,
			Labels:      raw.Labels,
			Annotations: raw.Annotations,
			RawPayload:  payload,
		}
		if t, err := time.Parse(time.RFC3339, raw.StartsAt); err == nil {
			na.StartsAt = t
		} else {
			na.StartsAt = time.Now().UTC()
		}
		if raw.EndsAt != "" && raw.EndsAt != "0001-01-01T00:00:00Z" {
			if t, err := time.Parse(time.RFC3339, raw.EndsAt); err == nil {
				na.EndsAt = &t
			}
		}
		na.Fingerprint = firstNonEmpty(raw.Fingerprint, Fingerprint(na.Source, na.Name, na.Labels))
		out = append(out, na)
	}
	return out, nil
}

type amAlert struct {
	Status      string
	Labels      map[string]string
	Annotations map[string]string
	StartsAt    string
	EndsAt      string
	Fingerprint string
}

type amWebhook struct {
	Alerts []amAlert
}

func decodeAMWebhook(payload []byte, out *amWebhook) error {
	d := jx.DecodeBytes(payload)
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "alerts" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var a amAlert
			a.Labels = map[string]string{}
			a.Annotations = map[string]string{}
			if err := d.Obj(func(d *jx.Decoder, k string) error {
				switch k {
				case "status":
					s, err := d.Str()
					if err != nil {
						return err
					}
					a.Status = s
				case "startsAt":
					s, err := d.Str()
					if err != nil {
						return err
					}
					a.StartsAt = s
				case "endsAt":
					s, err := d.Str()
					if err != nil {
						return err
					}
					a.EndsAt = s
				case "fingerprint":
					s, err := d.Str()
					if err != nil {
						return err
					}
					a.Fingerprint = s
				case "labels":
					return d.ObjBytes(func(d *jx.Decoder, kk []byte) error {
						s, err := d.Str()
						if err != nil {
							return err
						}
						a.Labels[string(kk)] = s
						return nil
					})
				case "annotations":
					return d.ObjBytes(func(d *jx.Decoder, kk []byte) error {
						s, err := d.Str()
						if err != nil {
							return err
						}
						a.Annotations[string(kk)] = s
						return nil
					})
				default:
					return d.Skip()
				}
				return nil
			}); err != nil {
				return err
			}
			out.Alerts = append(out.Alerts, a)
			return nil
		})
	})
}
