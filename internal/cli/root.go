package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/aikeys/internal/config"
	"github.com/joshuadavidthomas/aikeys/internal/logging"
)

// version is injected at build time via -ldflags.
var version = "dev"

var (
	jsonOutput  bool
	yamlOutput  bool
	noColor     bool
	verbose     bool
	quiet       bool
	metricsFile string
)

var rootCmd = &cobra.Command{
	Use:          "aikeys",
	Short:        "Manage AI provider API keys for the admin console",
	Long:         "Inspect and change personal and organization-wide API keys for the AI providers configured on the admin backend.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose && quiet {
			verbose = false
		}
		l := newConfiguredLogger()
		ctx := logging.WithLogger(cmd.Context(), l)
		cmd.SetContext(ctx)

		// Load config from disk so malformed files surface a warning.
		if _, err := config.Init(); err != nil {
			l.Warn("config file is malformed, using defaults", "err", err)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			out("aikeys %s\n", version)
			return nil
		}
		return runList(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&yamlOutput, "yaml", false, "Output as YAML")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Minimal output")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write mutation metrics to this file in Prometheus text format")
	rootCmd.Flags().Bool("version", false, "Show version and exit")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(makeToggleCmd(true))
	rootCmd.AddCommand(makeToggleCmd(false))
	rootCmd.AddCommand(scopeCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(configCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with the given context.
// Commands access it via cmd.Context().
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// commandContext returns the command's context, or a background context
// when the command was invoked directly rather than through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
