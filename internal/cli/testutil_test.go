package cli

import (
	"bytes"
	"os"
	"testing"

	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/aikeys/internal/api"
	"github.com/joshuadavidthomas/aikeys/internal/api/apitest"
	"github.com/joshuadavidthomas/aikeys/internal/config"
	"github.com/joshuadavidthomas/aikeys/internal/logging"
	"github.com/joshuadavidthomas/aikeys/internal/prompt"
	"github.com/joshuadavidthomas/aikeys/internal/testenv"
)

func boolPtr(v bool) *bool { return &v }

type cliEnv struct {
	fake *apitest.Fake
	out  *bytes.Buffer
	dirs testenv.Dirs
}

// setupCLI points the CLI at a fake admin API seeded with openai (shared API,
// id 1, personal key sk-mine) and anthropic (id 2, no keys), running as role.
func setupCLI(t *testing.T, role string) *cliEnv {
	t.Helper()
	dirs := testenv.ApplyAikeys(t.Setenv, t.TempDir())

	f := apitest.New()
	f.AddProvider(api.ProviderRecord{ID: 1, Name: "openai", IsActive: true, HasSharedAPI: boolPtr(true), SharedAPIKey: "sk-org"})
	f.AddProvider(api.ProviderRecord{ID: 2, Name: "anthropic", IsActive: true})
	f.AddSetting(api.PersonalSettingRecord{ID: 50, ProviderName: "openai", PersonalAPIKeyValue: "sk-mine", IsActive: true})
	srv := apitest.NewServer(t, f)

	t.Setenv("AIKEYS_TOKEN", apitest.Token)
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = apitest.BaseURL(srv)
	cfg.Viewer.Role = role
	cfg.Display.Color = false
	config.Override(t, cfg)

	var buf bytes.Buffer
	outWriter = &buf
	t.Cleanup(func() { outWriter = os.Stdout })

	return &cliEnv{fake: f, out: &buf, dirs: dirs}
}

// runCmd invokes cmd's RunE directly with a quiet test logger.
func runCmd(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	ctx, _ := logging.NewTestContext(logging.Flags{})
	cmd.SetContext(ctx)
	return cmd.RunE(cmd, args)
}

// setFlag sets a command flag for the duration of the test.
func setFlag(t *testing.T, cmd *cobra.Command, name, value string) {
	t.Helper()
	f := cmd.Flags().Lookup(name)
	if f == nil {
		t.Fatalf("command %q has no flag %q", cmd.Name(), name)
	}
	if err := cmd.Flags().Set(name, value); err != nil {
		t.Fatalf("setting --%s: %v", name, err)
	}
	t.Cleanup(func() {
		_ = cmd.Flags().Set(name, f.DefValue)
		f.Changed = false
	})
}

// setGlobal sets a global output flag for the duration of the test.
func setGlobal[T any](t *testing.T, p *T, v T) {
	t.Helper()
	prev := *p
	*p = v
	t.Cleanup(func() { *p = prev })
}

func useMock(t *testing.T, m *prompt.Mock) {
	t.Helper()
	old := prompt.Default
	prompt.SetDefault(m)
	t.Cleanup(func() { prompt.SetDefault(old) })
}

func findSubcommand(parent *cobra.Command, name string) *cobra.Command {
	for _, cmd := range parent.Commands() {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func keySubcommand(t *testing.T, providerID, name string) *cobra.Command {
	t.Helper()
	prov := findSubcommand(keyCmd, providerID)
	if prov == nil {
		t.Fatalf("expected %q subcommand under 'key'", providerID)
	}
	if name == "" {
		return prov
	}
	sub := findSubcommand(prov, name)
	if sub == nil {
		t.Fatalf("expected %q subcommand under 'key %s'", name, providerID)
	}
	return sub
}
