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

package providers

import (
	"context"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	"github.com/jordigilh/alertpipe/pkg/types"
)

const LangchainName = "langchain"

// Langchain wraps any langchaingo-compatible chat model behind the generic
// llms.Model interface, giving operators a configuration-only path to new
// OpenAI-API-compatible backends without a new provider implementation.
type Langchain struct {
	model llms.Model
}

func NewLangchainOpenAI(apiKey, baseURL, model string) (*Langchain, error) {
	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindValidation, "langchain provider: construct model")
	}
	return &Langchain{model: m}, nil
}

func (l *Langchain) Name() string { return LangchainName }

func (l *Langchain) Analyze(ctx context.Context, incident *types.Incident, checks []types.CheckResult) ([]types.Recommendation, int, error) {
	prompt := buildPrompt(incident, checks)

	resp, err := l.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, llms.WithMaxTokens(512))
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.KindTransient, "langchain provider: generate failed").WithRetryable(true)
	}
	if len(resp.Choices) == 0 {
		return nil, 0, apperrors.New(apperrors.KindTransient, "langchain provider: no choices returned").WithRetryable(true)
	}

	recs := parseRecommendations(resp.Choices[0].Content)
	tokens := 0
	if info := resp.Choices[0].GenerationInfo; info != nil {
		if v, ok := info["TotalTokens"].(int); ok {
			tokens = v
		}
	}
	return recs, tokens, nil
}
