// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/cvintra-engine/pkg/types"
)

func TestRenderPrompt(t *testing.T) {
	p, err := renderPrompt("Mean CVintra was 30%.")
	require.NoError(t, err)
	assert.Contains(t, p, "ABSTRACT:\nMean CVintra was 30%.")
	assert.Contains(t, p, "Extract the CVintra value if present.")
}

func TestConfiguredService(t *testing.T) {
	assert.Nil(t, ConfiguredService(types.FallbackConfig{Enabled: true}))
	assert.Nil(t, ConfiguredService(types.FallbackConfig{Enabled: false, APIKey: "k"}))
	assert.NotNil(t, ConfiguredService(types.FallbackConfig{Enabled: true, APIKey: "k"}))
}

func TestAnthropicService_Complete(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_cv_001",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": `{"cvintra": 22.0, `},
				{"type": "text", "text": `"confidence": 0.9, "evidence": "CVintra 22%"}`},
			},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage": map[string]any{
				"input_tokens":  120,
				"output_tokens": 20,
			},
		})
	}))
	defer ts.Close()

	svc := NewAnthropicService(types.FallbackConfig{
		Enabled: true,
		APIKey:  "test-key",
	}, option.WithBaseURL(ts.URL))

	reply, err := svc.Complete(context.Background(), systemPrompt, "Extract CVintra")
	require.NoError(t, err)
	assert.Equal(t, `{"cvintra": 22.0, "confidence": 0.9, "evidence": "CVintra 22%"}`, reply)

	assert.Equal(t, "claude-haiku-4-5-20251001", got["model"])
	assert.EqualValues(t, 512, got["max_tokens"])
	system, ok := got["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)

	parsed, err := ParseResponse(reply)
	require.NoError(t, err)
	assert.Equal(t, 22.0, *parsed.Value)
}

func TestAnthropicService_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`)) //nolint:errcheck
	}))
	defer ts.Close()

	svc := NewAnthropicService(types.FallbackConfig{Enabled: true, APIKey: "k"}, option.WithBaseURL(ts.URL))
	_, err := svc.Complete(context.Background(), "", "x")
	assert.Error(t, err)
}
