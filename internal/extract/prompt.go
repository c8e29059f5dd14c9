// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"strings"
	"text/template"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// systemPrompt is the fixed instruction sent with every fallback request.
const systemPrompt = `You are an expert in pharmacokinetics and bioequivalence studies.

Your task is to extract the intra-subject coefficient of variation (CVintra) from a scientific abstract.

Rules:
1. Extract ONLY CVintra (intra-subject or within-subject variability). Do not report inter-subject (between-subject) variability.
2. CVintra is expressed as a percentage. Report the number without the % sign.
3. If several CVintra values are given, choose the one for Cmax or AUC.
4. Ignore values below 5% or above 100%.
5. If CVintra is not stated, return null. Never guess or fabricate a value.
6. The evidence must be the exact sentence or phrase from the text that states the value.

Respond with a single JSON object and nothing else:
{"cvintra": <number or null>, "confidence": <number between 0 and 1>, "evidence": <string or null>}`

var userPromptTmpl = template.Must(template.New("cvintra").Parse(`Extract CVintra from this scientific abstract:

ABSTRACT:
{{.Text}}

Extract the CVintra value if present.`))

func renderPrompt(text string) (string, error) {
	var buf bytes.Buffer
	if err := userPromptTmpl.Execute(&buf, struct{ Text string }{Text: text}); err != nil {
		return "", eris.Wrap(err, "executing prompt template")
	}
	return buf.String(), nil
}

// AnthropicService implements Service with the Anthropic Messages API.
type AnthropicService struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// ConfiguredService returns the Service described by cfg, or a nil Service
// when the fallback is disabled or has no API key.
func ConfiguredService(cfg types.FallbackConfig) Service {
	if !cfg.Enabled || cfg.APIKey == "" {
		return nil
	}
	return NewAnthropicService(cfg)
}

// NewAnthropicService returns a service for cfg. SDK-level retries are
// disabled; a failed call yields no result.
func NewAnthropicService(cfg types.FallbackConfig, opts ...option.RequestOption) *AnthropicService {
	model := cfg.Model
	if model == "" {
		model = "claude-haiku-4-5-20251001"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	all := append([]option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}, opts...)
	return &AnthropicService{
		client:    sdk.NewClient(all...),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Complete sends one system instruction and one user message and returns
// the concatenated text blocks of the reply.
func (s *AnthropicService) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(s.model),
		MaxTokens: s.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
		Temperature: sdk.Float(0),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}

	msg, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "anthropic: create message")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
