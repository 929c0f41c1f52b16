package cli

import (
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reload providers, settings and models from the backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		s, err := newSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.close(ctx)

		if err := s.load(ctx); err != nil {
			return err
		}
		store := s.coord.Store()
		n := len(store.Providers())

		if structured() {
			return emit(map[string]any{
				"providers":  n,
				"generation": store.Generation(),
			})
		}
		if quiet {
			return nil
		}
		out("✓ Loaded %d providers\n", n)
		return nil
	},
}
