package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kaelzs/ThreeW/internal/resolver"
	"github.com/Kaelzs/ThreeW/pkg/models"
)

func newNewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new [name]",
		Short: "Create an event",
		Long: `Creates an event with the default trigger (next 09:41:00), no target and
no keystrokes. Without a name the first free "Action N" name is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ev, err := a.store.Create(ctx)
			if err != nil {
				return err
			}
			if len(args) == 1 && args[0] != ev.Name {
				if err := a.store.Rename(ctx, ev.ID, args[0]); err != nil {
					// A failed rename leaves no event behind.
					if derr := a.store.Delete(ctx, ev.ID); derr != nil {
						return fmt.Errorf("%w (cleanup failed: %v)", err, derr)
					}
					return err
				}
				ev.Name = args[0]
			}
			fmt.Fprintf(a.stdout, "Created event %q (%s)\n", ev.Name, ev.ID)
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List events",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events := a.store.List()
			if len(events) == 0 {
				fmt.Fprintln(a.stdout, "No events defined.")
				return nil
			}
			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tWHEN\tWHICH\tWHAT")
			for _, ev := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d action(s)\n",
					shortID(ev.ID), ev.Name, resolver.Label(ev.When), targetLabel(ev.Which), len(ev.What.Actions))
			}
			return w.Flush()
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <event>",
		Short: "Show one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			printEvent(a, ev, time.Now())
			return nil
		},
	}
}

func newRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <event> <name>",
		Short: "Rename an event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			if err := a.store.Rename(cmd.Context(), ev.ID, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Renamed %q to %q\n", ev.Name, args[1])
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <event>",
		Aliases: []string{"rm"},
		Short:   "Delete an event",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			if err := a.store.Delete(cmd.Context(), ev.ID); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Deleted event %q\n", ev.Name)
			return nil
		},
	}
}

func printEvent(a *app, ev models.Event, now time.Time) {
	fmt.Fprintf(a.stdout, "ID:     %s\n", ev.ID)
	fmt.Fprintf(a.stdout, "Name:   %s\n", ev.Name)
	fmt.Fprintf(a.stdout, "When:   %s\n", resolver.Describe(ev.When, now))
	fmt.Fprintf(a.stdout, "Which:  %s\n", targetLabel(ev.Which))
	if len(ev.What.Actions) == 0 {
		fmt.Fprintln(a.stdout, "What:   (no keystrokes)")
		return
	}
	fmt.Fprintln(a.stdout, "What:")
	for i, act := range ev.What.Actions {
		fmt.Fprintf(a.stdout, "  %d. %s\n", i+1, actionLabel(act))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func targetLabel(t models.Target) string {
	switch t := t.(type) {
	case models.App:
		if t.Name == "" {
			return t.BundleID
		}
		return fmt.Sprintf("%s (%s)", t.Name, t.BundleID)
	case models.NoTarget:
		return "(none)"
	default:
		return fmt.Sprintf("unknown (%T)", t)
	}
}

func actionLabel(act models.Action) string {
	switch act := act.(type) {
	case models.Keycode:
		label := "keys " + models.FormatKeycodes(act.Codes)
		if mods := act.Modifiers.Active(); len(mods) > 0 {
			label += " +" + strings.Join(mods, "+")
		}
		return label
	default:
		return fmt.Sprintf("unknown (%T)", act)
	}
}
