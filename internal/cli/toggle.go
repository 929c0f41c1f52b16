package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/aikeys/internal/catalog"
	"github.com/joshuadavidthomas/aikeys/internal/models"
	"github.com/joshuadavidthomas/aikeys/internal/mutation"
	"github.com/joshuadavidthomas/aikeys/internal/prompt"
)

func makeToggleCmd(enable bool) *cobra.Command {
	use, short, verb := "disable", "Disable a provider credential", "Disabled"
	if enable {
		use, short, verb = "enable", "Enable a provider credential", "Enabled"
	}

	cmd := &cobra.Command{
		Use:       use + " <provider>",
		Short:     short,
		Args:      cobra.ExactArgs(1),
		ValidArgs: catalog.IDs(),
		RunE: func(cmd *cobra.Command, args []string) error {
			shared, _ := cmd.Flags().GetBool("shared")
			providerID := providerArg(args[0])

			ctx := commandContext(cmd)
			s, err := newSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			if err := s.load(ctx); err != nil {
				return err
			}
			scope := scopeFlag(shared)
			if !cmd.Flags().Changed("shared") {
				scope = s.activeScope(providerID)
			}
			name := catalog.DisplayName(providerID)
			in := s.console.ToggleActive(ctx, providerID, enable, scope)
			if err := s.await(ctx, fmt.Sprintf("Updating %s", name), in); err != nil {
				return err
			}

			msg := fmt.Sprintf("%s %s (%s)", verb, name, scope)
			if structured() {
				return emit(actionResult{Success: true, Provider: providerID, Action: string(mutation.OpToggleActive), Scope: scope, Message: msg})
			}
			out("✓ %s\n", msg)
			return nil
		},
	}
	cmd.Flags().Bool("shared", false, "Toggle the organization-wide provider instead of your own credential (default: the record in effect)")
	return cmd
}

var scopeCmd = &cobra.Command{
	Use:   "scope <provider> [shared|personal]",
	Short: "Choose whether to use the shared or your personal key",
	Long: "Opt in to or out of the organization-wide key for a provider. " +
		"Opting in needs the shared key to be enabled for your role.",
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: catalog.IDs(),
	RunE: func(cmd *cobra.Command, args []string) error {
		providerID := providerArg(args[0])

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

		var choice string
		if len(args) > 1 {
			choice = args[1]
		} else {
			choice, err = prompt.Default.Select(prompt.SelectConfig{
				Title: fmt.Sprintf("%s key scope", v.Descriptor.Name),
				Options: []prompt.SelectOption{
					{Label: "Personal key", Value: string(models.ScopePersonal)},
					{Label: "Shared key", Value: string(models.ScopeShared)},
				},
				Initial: string(v.State.ActiveScope()),
			})
			if err != nil {
				return err
			}
		}
		scope, ok := models.ParseScope(choice)
		if !ok {
			return fmt.Errorf("invalid scope %q: expected shared or personal", choice)
		}

		in := s.console.ToggleUseShared(ctx, providerID, scope == models.ScopeShared)
		if err := s.await(ctx, fmt.Sprintf("Updating %s", v.Descriptor.Name), in); err != nil {
			return err
		}

		msg := fmt.Sprintf("%s now uses the %s key", v.Descriptor.Name, scope)
		if structured() {
			return emit(actionResult{Success: true, Provider: providerID, Action: string(mutation.OpToggleUseShared), Scope: scope, Message: msg})
		}
		out("✓ %s\n", msg)
		return nil
	},
}
