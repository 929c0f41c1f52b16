package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/aikeys/internal/catalog"
	"github.com/joshuadavidthomas/aikeys/internal/display"
	"github.com/joshuadavidthomas/aikeys/internal/models"
	"github.com/joshuadavidthomas/aikeys/internal/mutation"
	"github.com/joshuadavidthomas/aikeys/internal/prompt"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Show or change provider API keys",
	RunE:  runList,
}

func init() {
	for _, id := range catalog.IDs() {
		keyCmd.AddCommand(makeKeyProviderCmd(id))
	}
}

func keyLabel(d models.ProviderDescriptor) string {
	if d.APIKeyLabel != "" {
		return d.APIKeyLabel
	}
	return "API key"
}

func makeKeyProviderCmd(providerID string) *cobra.Command {
	titleName := catalog.DisplayName(providerID)

	provCmd := &cobra.Command{
		Use:   providerID,
		Short: fmt.Sprintf("Show %s key details", titleName),
		RunE: func(cmd *cobra.Command, args []string) error {
			reveal, _ := cmd.Flags().GetBool("reveal")
			ctx := commandContext(cmd)
			s, err := newSession(ctx, reveal)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			if err := s.load(ctx); err != nil {
				return err
			}
			v, err := s.view(providerID)
			if err != nil {
				return err
			}

			if structured() {
				return emit(display.ToProviderJSON(v))
			}
			if quiet {
				out("%s: %s\n", providerID, v.State.AccessStatus)
				return nil
			}
			outln(display.RenderProviderDetail(v, noColor))
			return nil
		},
	}
	provCmd.Flags().Bool("reveal", false, "Show the key in full")

	setCmd := &cobra.Command{
		Use:   "set [value]",
		Short: "Set the API key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shared, _ := cmd.Flags().GetBool("shared")
			clearKey, _ := cmd.Flags().GetBool("clear")
			scope := scopeFlag(shared)

			ctx := commandContext(cmd)
			s, err := newSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			if err := s.load(ctx); err != nil {
				return err
			}
			v, err := s.view(providerID)
			if err != nil {
				return err
			}

			var value string
			switch {
			case clearKey:
			case len(args) > 0:
				value = args[0]
			default:
				value, err = prompt.Default.Input(prompt.InputConfig{
					Title:       fmt.Sprintf("%s %s (%s)", titleName, keyLabel(v.Descriptor), s.coord.WriteKey(providerID, scope).Scope),
					Placeholder: "paste key here",
					Secret:      true,
					Validate:    prompt.ValidateAPIKey,
				})
				if err != nil {
					return err
				}
			}
			value = strings.TrimSpace(value)
			if value == "" && !clearKey {
				return fmt.Errorf("key cannot be empty; use --clear to remove it")
			}

			target := s.coord.WriteKey(providerID, scope)
			if err := s.await(ctx, fmt.Sprintf("Saving %s key", titleName), s.console.SaveKey(ctx, providerID, scope, value)); err != nil {
				return err
			}

			msg := fmt.Sprintf("Saved %s %s key", titleName, target.Scope)
			if clearKey {
				msg = fmt.Sprintf("Cleared %s %s key", titleName, target.Scope)
			}
			if structured() {
				return emit(actionResult{Success: true, Provider: providerID, Action: string(mutation.OpSaveKey), Scope: target.Scope, Message: msg})
			}
			out("✓ %s\n", msg)
			return nil
		},
	}
	setCmd.Flags().Bool("shared", false, "Set the organization-wide key (super admins) or opt in to it with your own key")
	setCmd.Flags().Bool("clear", false, "Clear the key instead of setting one")

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			shared, _ := cmd.Flags().GetBool("shared")
			force, _ := cmd.Flags().GetBool("force")
			scope := scopeFlag(shared)

			if !force {
				ok, err := prompt.Default.Confirm(prompt.ConfirmConfig{
					Title: fmt.Sprintf("Delete %s %s key?", titleName, scope),
				})
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}

			ctx := commandContext(cmd)
			s, err := newSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			if err := s.load(ctx); err != nil {
				return err
			}
			if err := s.await(ctx, fmt.Sprintf("Deleting %s key", titleName), s.console.DeleteKey(ctx, providerID, scope)); err != nil {
				return err
			}

			msg := fmt.Sprintf("Deleted %s %s key", titleName, scope)
			if structured() {
				return emit(actionResult{Success: true, Provider: providerID, Action: "delete_key", Scope: scope, Message: msg})
			}
			out("✓ %s\n", msg)
			return nil
		},
	}
	deleteCmd.Flags().Bool("shared", false, "Delete the organization-wide key (super admins only)")
	deleteCmd.Flags().BoolP("force", "f", false, "Skip confirmation")

	provCmd.AddCommand(setCmd)
	provCmd.AddCommand(deleteCmd)
	return provCmd
}
