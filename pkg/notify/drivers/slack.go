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
	"fmt"

	"github.com/slack-go/slack"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	"github.com/jordigilh/alertpipe/pkg/notify"
)

const SlackName = "slack"

// Slack posts the message to a Slack channel via github.com/slack-go/slack.
// Channel config carries "token" and "channel_id"; both are per-channel so a
// single process can notify into several distinct Slack workspaces.
type Slack struct{}

func NewSlack() *Slack { return &Slack{} }

func (s *Slack) Name() string { return SlackName }

func (s *Slack) Send(ctx context.Context, config map[string]interface{}, msg notify.Message) error {
	token, _ := config["token"].(string)
	channelID, _ := config["channel_id"].(string)
	if token == "" || channelID == "" {
		return apperrors.New(apperrors.KindValidation, "slack driver: missing token or channel_id in channel config")
	}

	client := slack.New(token)
	text := fmt.Sprintf("*%s*\n%s", msg.Title, msg.Body)

	_, _, err := client.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		if rlErr, ok := err.(*slack.RateLimitedError); ok {
			return apperrors.Wrapf(rlErr, apperrors.KindTransient, "slack driver: rate limited, retry after %s", rlErr.RetryAfter).WithRetryable(true)
		}
		return apperrors.Wrap(err, apperrors.KindTransient, "slack driver: send failed").WithRetryable(true)
	}
	return nil
}
