package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/aikeys/internal/api"
	"github.com/joshuadavidthomas/aikeys/internal/config"
	"github.com/joshuadavidthomas/aikeys/internal/httpclient"
	"github.com/joshuadavidthomas/aikeys/internal/prompt"
)

var loginCmd = &cobra.Command{
	Use:   "login [token]",
	Short: "Store the admin API token or show where it comes from",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		if showStatus, _ := cmd.Flags().GetBool("status"); showStatus {
			return loginStatus(cfg)
		}

		var token string
		if len(args) > 0 {
			token = args[0]
		} else {
			var err error
			token, err = prompt.Default.Input(prompt.InputConfig{
				Title:       "Admin API token",
				Description: cfg.API.BaseURL,
				Placeholder: "paste token here",
				Secret:      true,
				Validate:    prompt.ValidateNotEmpty,
			})
			if err != nil {
				return err
			}
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return fmt.Errorf("token cannot be empty")
		}

		if noVerify, _ := cmd.Flags().GetBool("no-verify"); !noVerify {
			if err := api.ValidateBaseURL(cfg.API.BaseURL); err != nil {
				return err
			}
			client := api.New(cfg.API.BaseURL, token, httpclient.NewFromConfig(cfg.API.Timeout))
			if _, err := client.ListProviders(commandContext(cmd)); err != nil {
				return fmt.Errorf("verifying token: %w", err)
			}
		}

		source, err := config.SaveToken(cfg, token)
		if err != nil {
			return err
		}

		if structured() {
			return emit(map[string]any{"success": true, "source": source})
		}
		out("✓ Token saved (%s)\n", tokenSourceLabel(source))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored admin API token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := config.DeleteToken(config.Get())
		if err != nil {
			return err
		}
		if structured() {
			return emit(map[string]any{"success": true, "removed": removed})
		}
		if removed {
			outln("✓ Token removed")
		} else {
			outln("No stored token found")
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().Bool("status", false, "Show where the token is loaded from")
	loginCmd.Flags().Bool("no-verify", false, "Save the token without checking it against the API")
}

func loginStatus(cfg config.Config) error {
	token, source, err := config.LoadToken(cfg)
	if err != nil {
		return err
	}
	configured := token != ""

	if structured() {
		return emit(map[string]any{
			"configured": configured,
			"source":     source,
			"api":        cfg.API.BaseURL,
		})
	}
	if quiet {
		if configured {
			outln(source)
		}
		return nil
	}
	if !configured {
		outln("✗ No API token configured")
		outln("\nRun 'aikeys login' to store one")
		return nil
	}
	out("✓ API token configured (%s)\n", tokenSourceLabel(source))
	out("  API: %s\n", cfg.API.BaseURL)
	return nil
}

func tokenSourceLabel(source string) string {
	switch source {
	case config.TokenSourceEnv:
		return "environment variable"
	case config.TokenSourceKeyring:
		return "system keyring"
	case config.TokenSourceFile:
		return "token file"
	default:
		return source
	}
}
