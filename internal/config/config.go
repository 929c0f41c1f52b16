package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// Roles understood by the viewer section.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
)

// PermissionManageAISettings gates access to the provider settings screens.
const PermissionManageAISettings = "ai_settings.manage"

type APIConfig struct {
	BaseURL string  `toml:"base_url" json:"base_url" yaml:"base_url"`
	Timeout float64 `toml:"timeout" json:"timeout" yaml:"timeout"`
}

type ViewerConfig struct {
	Role        string   `toml:"role" json:"role" yaml:"role"`
	Permissions []string `toml:"permissions" json:"permissions" yaml:"permissions"`
}

type CredentialsConfig struct {
	UseKeyring bool `toml:"use_keyring" json:"use_keyring" yaml:"use_keyring"`
}

type DisplayConfig struct {
	RevealKeys bool `toml:"reveal_keys" json:"reveal_keys" yaml:"reveal_keys"`
	Color      bool `toml:"color" json:"color" yaml:"color"`
}

type MetricsConfig struct {
	Textfile string `toml:"textfile" json:"textfile" yaml:"textfile"`
}

type Config struct {
	API         APIConfig         `toml:"api" json:"api" yaml:"api"`
	Viewer      ViewerConfig      `toml:"viewer" json:"viewer" yaml:"viewer"`
	Credentials CredentialsConfig `toml:"credentials" json:"credentials" yaml:"credentials"`
	Display     DisplayConfig     `toml:"display" json:"display" yaml:"display"`
	Metrics     MetricsConfig     `toml:"metrics" json:"metrics" yaml:"metrics"`
}

func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000/api/ai",
			Timeout: 30.0,
		},
		Viewer: ViewerConfig{
			Role:        RoleAdmin,
			Permissions: []string{PermissionManageAISettings},
		},
		Credentials: CredentialsConfig{
			UseKeyring: false,
		},
		Display: DisplayConfig{
			RevealKeys: false,
			Color:      true,
		},
	}
}

func (c Config) clone() Config {
	out := c
	if c.Viewer.Permissions != nil {
		out.Viewer.Permissions = make([]string, len(c.Viewer.Permissions))
		copy(out.Viewer.Permissions, c.Viewer.Permissions)
	}
	return out
}

// IsSuperAdmin reports whether the configured viewer role is privileged.
func (c Config) IsSuperAdmin() bool {
	return normalizeRole(c.Viewer.Role) == RoleSuperAdmin
}

// HasPermission reports whether the viewer holds permission. Super admins
// hold every permission.
func (c Config) HasPermission(permission string) bool {
	if c.IsSuperAdmin() {
		return true
	}
	for _, p := range c.Viewer.Permissions {
		if strings.EqualFold(strings.TrimSpace(p), permission) {
			return true
		}
	}
	return false
}

// PermissionList returns the viewer's permissions sorted, for display.
func (c Config) PermissionList() []string {
	out := append([]string(nil), c.Viewer.Permissions...)
	sort.Strings(out)
	return out
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	r = strings.ReplaceAll(r, "-", "_")
	if r == "superadmin" {
		return RoleSuperAdmin
	}
	return r
}

var (
	globalConfig *Config
	configMu     sync.RWMutex
)

func Get() Config {
	configMu.RLock()
	if c := globalConfig; c != nil {
		configMu.RUnlock()
		return c.clone()
	}
	configMu.RUnlock()

	configMu.Lock()
	defer configMu.Unlock()
	if globalConfig != nil {
		return globalConfig.clone()
	}
	c, _ := Load("")
	globalConfig = &c
	return c.clone()
}

// Init loads the config from disk and installs it as the global config. A
// malformed file yields defaults plus the parse error.
func Init() (Config, error) {
	return Reload()
}

func Reload() (Config, error) {
	configMu.Lock()
	defer configMu.Unlock()
	c, err := Load("")
	globalConfig = &c
	return c.clone(), err
}

func set(cfg Config) {
	configMu.Lock()
	defer configMu.Unlock()
	c := cfg.clone()
	globalConfig = &c
}

func Load(path string) (Config, error) {
	if path == "" {
		path = ConfigFile()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return applyEnvOverrides(cfg), nil
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return applyEnvOverrides(DefaultConfig()), fmt.Errorf("parsing config %s: %w", path, err)
	}

	return applyEnvOverrides(cfg), nil
}

func Save(cfg Config, path string) error {
	if path == "" {
		path = ConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg Config) Config {
	if v := strings.TrimSpace(os.Getenv("AIKEYS_API_URL")); v != "" {
		cfg.API.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("AIKEYS_TIMEOUT")); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			cfg.API.Timeout = secs
		}
	}
	if v := strings.TrimSpace(os.Getenv("AIKEYS_ROLE")); v != "" {
		cfg.Viewer.Role = v
	}
	if os.Getenv("AIKEYS_NO_COLOR") != "" || os.Getenv("NO_COLOR") != "" {
		cfg.Display.Color = false
	}
	return cfg
}
