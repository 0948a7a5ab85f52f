// Package secrets resolves provider API keys from the environment, the OS
// keyring, and the config file, in that order.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const keyringService = "quill"

// Sources reported by Resolver.APIKey.
const (
	SourceEnv     = "env"
	SourceKeyring = "keyring"
	SourceConfig  = "config"
)

// EnvVar returns the quill-specific environment variable for a provider,
// e.g. QUILL_OPENAI_API_KEY.
func EnvVar(provider string) string {
	return "QUILL_" + strings.ToUpper(provider) + "_API_KEY"
}

// conventionalEnvVar returns the provider's own conventional variable,
// e.g. OPENAI_API_KEY or ANTHROPIC_API_KEY.
func conventionalEnvVar(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

// Resolver resolves API keys for providers. ConfigKeys is the api_keys map
// from the config file; values there may be AES-GCM encrypted (see crypto.go).
type Resolver struct {
	ConfigKeys map[string]string
}

// APIKey returns the key for a provider and where it came from. Resolution
// order: QUILL_<PROVIDER>_API_KEY, <PROVIDER>_API_KEY, the OS keyring, then
// the config file. Returns ("", "") when nothing is set.
func (r *Resolver) APIKey(provider string) (key, source string) {
	if v := os.Getenv(EnvVar(provider)); v != "" {
		return v, SourceEnv
	}
	if v := os.Getenv(conventionalEnvVar(provider)); v != "" {
		return v, SourceEnv
	}

	if v, err := keyring.Get(keyringService, provider); err == nil && v != "" {
		return v, SourceKeyring
	} else if err != nil && err != keyring.ErrNotFound {
		slog.Debug("keyring lookup failed", "provider", provider, "error", err)
	}

	if r != nil && r.ConfigKeys != nil {
		if v := r.ConfigKeys[provider]; v != "" {
			plain, err := DecryptValue(v)
			if err != nil {
				slog.Warn("could not decrypt config api key", "provider", provider, "error", err)
				return "", ""
			}
			return plain, SourceConfig
		}
	}

	return "", ""
}

// Store saves a key in the OS keyring.
func Store(provider, key string) error {
	if err := keyring.Set(keyringService, provider, key); err != nil {
		return fmt.Errorf("keyring store for %s: %w", provider, err)
	}
	return nil
}

// Delete removes a provider's key from the OS keyring. Missing entries are
// not an error.
func Delete(provider string) error {
	err := keyring.Delete(keyringService, provider)
	if err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("keyring delete for %s: %w", provider, err)
	}
	return nil
}

// KeyringAvailable probes whether an OS keyring backend is usable.
func KeyringAvailable() bool {
	_, err := keyring.Get(keyringService, "__probe__")
	return err == nil || err == keyring.ErrNotFound
}
