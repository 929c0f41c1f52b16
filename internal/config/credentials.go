package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "aikeys"
	keyringUser    = "api-token"
)

// Token sources reported by LoadToken.
const (
	TokenSourceEnv     = "env"
	TokenSourceKeyring = "keyring"
	TokenSourceFile    = "file"
)

// LoadToken returns the admin API token and where it came from. AIKEYS_TOKEN
// wins, then the keyring (when enabled), then the token file. An empty token
// with no error means none is configured.
func LoadToken(cfg Config) (string, string, error) {
	if v := strings.TrimSpace(os.Getenv("AIKEYS_TOKEN")); v != "" {
		return v, TokenSourceEnv, nil
	}
	if cfg.Credentials.UseKeyring {
		v, err := keyring.Get(keyringService, keyringUser)
		switch {
		case err == nil && strings.TrimSpace(v) != "":
			return strings.TrimSpace(v), TokenSourceKeyring, nil
		case err != nil && !errors.Is(err, keyring.ErrNotFound):
			return "", "", fmt.Errorf("reading token from keyring: %w", err)
		}
	}
	data, err := os.ReadFile(TokenFile())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("reading token: %w", err)
	}
	if v := strings.TrimSpace(string(data)); v != "" {
		return v, TokenSourceFile, nil
	}
	return "", "", nil
}

// SaveToken stores the token in the keyring when enabled, otherwise in the
// token file with 0600 permissions.
func SaveToken(cfg Config, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("token cannot be empty")
	}
	if cfg.Credentials.UseKeyring {
		if err := keyring.Set(keyringService, keyringUser, token); err != nil {
			return "", fmt.Errorf("writing token to keyring: %w", err)
		}
		return TokenSourceKeyring, nil
	}
	if err := writeSecretFile(TokenFile(), []byte(token)); err != nil {
		return "", err
	}
	return TokenSourceFile, nil
}

// DeleteToken removes the token from both stores. It reports whether
// anything was removed.
func DeleteToken(cfg Config) (bool, error) {
	removed := false
	if cfg.Credentials.UseKeyring {
		err := keyring.Delete(keyringService, keyringUser)
		switch {
		case err == nil:
			removed = true
		case !errors.Is(err, keyring.ErrNotFound):
			return false, fmt.Errorf("deleting token from keyring: %w", err)
		}
	}
	if err := os.Remove(TokenFile()); err == nil {
		removed = true
	} else if !errors.Is(err, os.ErrNotExist) {
		return removed, fmt.Errorf("deleting token: %w", err)
	}
	return removed, nil
}

func writeSecretFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o600); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	return nil
}
