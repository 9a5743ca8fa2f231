package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Kaelzs/ThreeW/internal/apps"
	"github.com/Kaelzs/ThreeW/internal/resolver"
	"github.com/Kaelzs/ThreeW/pkg/models"
)

func newWhenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "when <event> (next HH:MM[:SS] | after DURATION | at DATETIME)",
		Short: "Set when an event fires",
		Long: `Sets the trigger of an event.

  next HH:MM[:SS]     the next time the wall clock shows this time
  after DURATION      this long after the event is scheduled, e.g. 1h30m or 01:30:00
  at DATETIME         an absolute local time, e.g. "2026-03-01 09:30" or RFC 3339`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			spec, err := parseTimeSpec(args[1], args[2], time.Local)
			if err != nil {
				return err
			}
			updated, err := a.store.Update(cmd.Context(), ev.ID, func(e *models.Event) { e.When = spec })
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s: %s\n", updated.Name, resolver.Describe(updated.When, time.Now()))
			return nil
		},
	}
}

func newTargetCmd(a *app) *cobra.Command {
	var (
		bundleID string
		none     bool
	)
	cmd := &cobra.Command{
		Use:   "target <event> [app]",
		Short: "Set which application an event activates",
		Long: `Sets the application an event brings to the front before typing.

Without --bundle the app is looked up by name or bundle id among the
running applications (see 'threew apps'). With --bundle the app argument
is used as the display name and is not checked. --none clears the target.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := a.lookup(args[0])
			if err != nil {
				return err
			}

			var target models.Target
			switch {
			case none:
				if len(args) > 1 || bundleID != "" {
					return fmt.Errorf("--none takes no app")
				}
				target = models.NoTarget{}
			case bundleID != "":
				name := bundleID
				if len(args) > 1 {
					name = args[1]
				}
				target = models.App{Name: name, BundleID: bundleID}
			case len(args) > 1:
				running, err := a.provider().RunningApps(cmd.Context())
				if err != nil {
					return err
				}
				found, ok := apps.Find(running, args[1])
				if !ok {
					return fmt.Errorf("%w: %q is not running", models.ErrInvalidApp, args[1])
				}
				target = found.Target()
			default:
				return fmt.Errorf("%w: give an app, --bundle or --none", models.ErrInvalidApp)
			}

			updated, err := a.store.Update(cmd.Context(), ev.ID, func(e *models.Event) { e.Which = target })
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s: %s\n", updated.Name, targetLabel(updated.Which))
			return nil
		},
	}
	cmd.Flags().StringVar(&bundleID, "bundle", "", "Bundle identifier of the app, skips the running-app lookup")
	cmd.Flags().BoolVar(&none, "none", false, "Clear the target")
	return cmd
}

func newKeysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Edit the keystrokes of an event",
	}
	cmd.AddCommand(newKeysAddCmd(a), newKeysClearCmd(a))
	return cmd
}

func newKeysAddCmd(a *app) *cobra.Command {
	var mods models.Modifiers
	cmd := &cobra.Command{
		Use:   "add <event> <codes>",
		Short: "Append a key code action",
		Long: `Appends an action pressing the comma separated key codes in order while
holding the selected modifiers. Characters other than digits and commas are
ignored, so "36, 1" and "36,1" are the same.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			codes := models.ParseKeycodes(args[1])
			if len(codes) == 0 {
				return fmt.Errorf("%w: %q", models.ErrInvalidAction, args[1])
			}
			act := models.Keycode{Codes: codes, Modifiers: mods}
			updated, err := a.store.Update(cmd.Context(), ev.ID, func(e *models.Event) {
				e.What.Actions = append(e.What.Actions, act)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s: added %s (%d action(s))\n", updated.Name, actionLabel(act), len(updated.What.Actions))
			return nil
		},
	}
	addModifierFlags(cmd.Flags(), &mods)
	return cmd
}

// addModifierFlags binds one boolean flag per modifier key to mods.
func addModifierFlags(fs *pflag.FlagSet, mods *models.Modifiers) {
	fs.BoolVar(&mods.Command, "command", false, "Hold command")
	fs.BoolVar(&mods.Option, "option", false, "Hold option")
	fs.BoolVar(&mods.Shift, "shift", false, "Hold shift")
	fs.BoolVar(&mods.Control, "control", false, "Hold control")
}

func newKeysClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <event>",
		Short: "Remove every action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			updated, err := a.store.Update(cmd.Context(), ev.ID, func(e *models.Event) { e.What.Actions = nil })
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s: cleared\n", updated.Name)
			return nil
		},
	}
}

var atLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// parseTimeSpec turns the when subcommand arguments into a TimeSpec.
func parseTimeSpec(kind, value string, loc *time.Location) (models.TimeSpec, error) {
	switch strings.ToLower(kind) {
	case "next":
		h, m, s, err := parseClock(value)
		if err != nil {
			return nil, err
		}
		return models.NextTime{Hour: h, Minute: m, Second: s}, nil
	case "after":
		h, m, s, err := parseAfter(value)
		if err != nil {
			return nil, err
		}
		return models.TimeAfter{Hour: h, Minute: m, Second: s}, nil
	case "at":
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return models.Specific{Date: t}, nil
		}
		for _, layout := range atLayouts {
			if t, err := time.ParseInLocation(layout, value, loc); err == nil {
				return models.Specific{Date: t}, nil
			}
		}
		return nil, fmt.Errorf("%w: %q is not a date", models.ErrInvalidDate, value)
	default:
		return nil, fmt.Errorf("unknown trigger %q (must be next, after or at)", kind)
	}
}

// parseClock reads HH:MM or HH:MM:SS.
func parseClock(value string) (int, int, int, error) {
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("%w: %q is not HH:MM[:SS]", models.ErrInvalidDate, value)
	}
	fields := [3]int{}
	limits := [3]int{23, 59, 59}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, 0, 0, fmt.Errorf("%w: %q is not HH:MM[:SS]", models.ErrInvalidDate, value)
		}
		fields[i] = n
	}
	return fields[0], fields[1], fields[2], nil
}

// parseAfter reads a clock-style or Go duration shorter than a day.
func parseAfter(value string) (int, int, int, error) {
	if strings.Contains(value, ":") {
		return parseClock(value)
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 || d >= 24*time.Hour {
		return 0, 0, 0, fmt.Errorf("%w: %q is not a duration under 24h", models.ErrInvalidDate, value)
	}
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return h, m, s, nil
}
