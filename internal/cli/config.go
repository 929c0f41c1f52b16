package cli

import (
	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/aikeys/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		cfgPath := config.ConfigFile()

		if structured() {
			return emit(struct {
				config.Config `yaml:",inline"`
				Path          string `json:"path" yaml:"path"`
			}{cfg, cfgPath})
		}

		if quiet {
			outln(cfgPath)
			return nil
		}

		out("Config: %s\n\n", cfgPath)
		_ = toml.NewEncoder(outWriter).Encode(cfg)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show directory paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		showCreds, _ := cmd.Flags().GetBool("credentials")

		if structured() {
			if showCreds {
				return emit(map[string]string{"credentials_dir": config.CredentialsDir()})
			}
			return emit(map[string]string{
				"config_dir":      config.ConfigDir(),
				"config_file":     config.ConfigFile(),
				"credentials_dir": config.CredentialsDir(),
				"token_file":      config.TokenFile(),
			})
		}

		if quiet || showCreds {
			if showCreds {
				outln(config.CredentialsDir())
			} else {
				outln(config.ConfigDir())
			}
			return nil
		}

		out("Config dir:    %s\n", config.ConfigDir())
		out("Config file:   %s\n", config.ConfigFile())
		out("Credentials:   %s\n", config.CredentialsDir())
		out("Token file:    %s\n", config.TokenFile())
		return nil
	},
}

func init() {
	configPathCmd.Flags().Bool("credentials", false, "Show credentials directory")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}
