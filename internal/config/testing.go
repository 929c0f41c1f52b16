package config

import "testing"

// Override installs cfg as the global config until the test ends.
func Override(t testing.TB, cfg Config) {
	t.Helper()
	configMu.RLock()
	prev := globalConfig
	configMu.RUnlock()

	set(cfg)
	t.Cleanup(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig = prev
	})
}

// OverrideViewer replaces only the viewer section of the current config for
// the duration of the test.
func OverrideViewer(t testing.TB, role string, permissions ...string) Config {
	t.Helper()
	cfg := Get()
	cfg.Viewer = ViewerConfig{Role: role, Permissions: permissions}
	Override(t, cfg)
	return cfg
}
