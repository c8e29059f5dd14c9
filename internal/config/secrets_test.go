// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/cvintra-engine/pkg/types"
)

func TestLoadSecrets(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  map[string]string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, SecretNCBIAPIKey, "  ncbi_abc123  \n")
				writeFile(t, dir, SecretAnthropicAPIKey, "sk-ant-xyz")
				writeFile(t, dir, SecretNCBIEmail, "user@example.com\n")
				return dir
			},
			want: map[string]string{
				SecretNCBIAPIKey:      "ncbi_abc123",
				SecretAnthropicAPIKey: "sk-ant-xyz",
				SecretNCBIEmail:       "user@example.com",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files and dotfiles",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, SecretAnthropicAPIKey, "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				return dir
			},
			want: map[string]string{
				SecretAnthropicAPIKey: "valid-key",
			},
		},
		{
			name: "skips subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, SecretNCBIAPIKey, "k")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: map[string]string{SecretNCBIAPIKey: "k"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadSecrets(tt.setup(t), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplySecrets(t *testing.T) {
	cfg := &types.Config{}
	cfg.Fallback.APIKey = "from-env"

	ApplySecrets(cfg, map[string]string{
		SecretNCBIAPIKey:      "ncbi",
		SecretNCBIEmail:       "me@example.org",
		SecretAnthropicAPIKey: "from-file",
	})

	assert.Equal(t, "ncbi", cfg.PubMed.APIKey)
	assert.Equal(t, "me@example.org", cfg.PubMed.Email)
	assert.Equal(t, "from-env", cfg.Fallback.APIKey, "configured values win")
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
