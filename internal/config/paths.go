package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "aikeys"

func ConfigDir() string {
	if v := os.Getenv("AIKEYS_CONFIG_DIR"); v != "" {
		return v
	}
	return filepath.Join(xdg.ConfigHome, appName)
}

func CredentialsDir() string { return filepath.Join(ConfigDir(), "credentials") }
func ConfigFile() string     { return filepath.Join(ConfigDir(), "config.toml") }
func TokenFile() string      { return filepath.Join(CredentialsDir(), "token") }
