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

// Package drivers implements notify.Driver for concrete channel types.
package drivers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	"github.com/jordigilh/alertpipe/pkg/notify"
)

const WebhookName = "webhook"

// Webhook POSTs the message as JSON to a URL taken from channel config.
// Grounded on no ecosystem library — a generic JSON POST has no meaningful
// library surface beyond net/http's own Client.
type Webhook struct {
	Client *http.Client
}

func NewWebhook() *Webhook {
	return &Webhook{Client: &http.Client{Timeout: 10 * time.Second}}
}

func (w *Webhook) Name() string { return WebhookName }

func (w *Webhook) Send(ctx context.Context, config map[string]interface{}, msg notify.Message) error {
	url, _ := config["url"].(string)
	if url == "" {
		return apperrors.New(apperrors.KindValidation, "webhook driver: missing url in channel config")
	}

	body, err := json.Marshal(map[string]interface{}{
		"title":    msg.Title,
		"body":     msg.Body,
		"severity": msg.Severity,
		"labels":   msg.Labels,
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindValidation, "webhook driver: marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindValidation, "webhook driver: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindTransient, "webhook driver: request failed").WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return apperrors.New(apperrors.KindTransient, fmt.Sprintf("webhook driver: upstream %d", resp.StatusCode)).WithRetryable(true)
	}
	if resp.StatusCode >= 400 {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("webhook driver: upstream %d", resp.StatusCode))
	}
	return nil
}
