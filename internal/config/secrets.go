// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// DefaultSecretsDir holds one credential per file.
const DefaultSecretsDir = ".secrets"

// Secret file names understood by ApplySecrets.
const (
	SecretNCBIAPIKey      = "ncbi-api-key"
	SecretNCBIEmail       = "ncbi-email"
	SecretAnthropicAPIKey = "anthropic-api-key"
)

// LoadSecrets reads every regular, non-hidden file in dir and returns a
// map of file name to trimmed contents. A missing directory yields an
// empty map. Unreadable or empty files are skipped.
func LoadSecrets(dir string, logger *zap.Logger) (map[string]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, eris.Wrapf(err, "config: reading secrets directory %s", dir)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("config: could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// ApplySecrets fills credentials in cfg that are still empty after file
// and environment loading.
func ApplySecrets(cfg *types.Config, secrets map[string]string) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = secrets[key]
		}
	}
	fill(&cfg.PubMed.APIKey, SecretNCBIAPIKey)
	fill(&cfg.PubMed.Email, SecretNCBIEmail)
	fill(&cfg.Fallback.APIKey, SecretAnthropicAPIKey)
}
