package cli

import (
	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/aikeys/internal/console"
	"github.com/joshuadavidthomas/aikeys/internal/display"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List providers with their access status",
	RunE:    runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	s, err := newSession(ctx, false)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	if err := s.load(ctx); err != nil {
		return err
	}
	return renderViews(s.console.Views())
}

func renderViews(views []console.ProviderView) error {
	if structured() {
		return emit(display.ToProvidersJSON(views))
	}

	if quiet {
		for _, v := range views {
			out("%s: %s\n", v.Descriptor.FrontendID, v.State.AccessStatus)
		}
		return nil
	}

	if len(views) == 0 {
		outln("No providers are configured on the backend")
		return nil
	}

	outln(display.RenderProviderTable(views, display.TableOptions{
		Title:   "AI Providers",
		NoColor: noColor,
		Width:   display.TerminalWidth(),
	}))
	return nil
}
