package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kaelzs/ThreeW/internal/resolver"
	"github.com/Kaelzs/ThreeW/internal/script"
)

func newPreviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <event>",
		Short: "Show when an event would fire and the script it would run",
		Long: `Resolves the trigger against the current time and prints the AppleScript
the event would execute. Nothing is scheduled or run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s fires %s\n", ev.Name, resolver.Describe(ev.When, time.Now()))

			src, err := script.Generate(ev.Which, ev.What)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout)
			fmt.Fprintln(a.stdout, src)
			return nil
		},
	}
}

func newAppsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "apps",
		Short: "List running applications that can be targeted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			running, err := a.provider().RunningApps(cmd.Context())
			if err != nil {
				return err
			}
			if len(running) == 0 {
				fmt.Fprintln(a.stdout, "No applications running.")
				return nil
			}
			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tBUNDLE ID")
			for _, ra := range running {
				fmt.Fprintf(w, "%s\t%s\n", ra.DisplayName, ra.BundleID)
			}
			return w.Flush()
		},
	}
}
