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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	alertpipetypes "github.com/jordigilh/alertpipe/pkg/types"
)

const BedrockName = "bedrock"

// Bedrock analyzes an incident via the AWS Bedrock Converse API, which is
// uniform across the foundation models Bedrock hosts (Claude, Titan, Llama).
type Bedrock struct {
	client  *bedrockruntime.Client
	modelID string
}

func NewBedrock(ctx context.Context, region, modelID string) (*Bedrock, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindTransient, "bedrock provider: load aws config").WithRetryable(true)
	}
	return &Bedrock{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
	}, nil
}

func (b *Bedrock) Name() string { return BedrockName }

func (b *Bedrock) Analyze(ctx context.Context, incident *alertpipetypes.Incident, checks []alertpipetypes.CheckResult) ([]alertpipetypes.Recommendation, int, error) {
	prompt := buildPrompt(incident, checks)

	out, err := b.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.modelID),
		Messages: []types.Message{
			{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
			},
		},
	})
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.KindTransient, "bedrock provider: converse failed").WithRetryable(true)
	}

	msgOutput, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, 0, apperrors.New(apperrors.KindTransient, "bedrock provider: unexpected output shape").WithRetryable(true)
	}

	var text string
	for _, block := range msgOutput.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			text += tb.Value
		}
	}

	recs := parseRecommendations(text)
	tokens := 0
	if out.Usage != nil {
		tokens = int(aws.ToInt32(out.Usage.InputTokens) + aws.ToInt32(out.Usage.OutputTokens))
	}
	return recs, tokens, nil
}
