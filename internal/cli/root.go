package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Kaelzs/ThreeW/internal/action"
	"github.com/Kaelzs/ThreeW/internal/apps"
	"github.com/Kaelzs/ThreeW/internal/config"
	"github.com/Kaelzs/ThreeW/internal/kv"
	"github.com/Kaelzs/ThreeW/internal/logger"
	"github.com/Kaelzs/ThreeW/internal/store"
	"github.com/Kaelzs/ThreeW/pkg/models"
)

// Runner executes scripts for the run command and queries System Events for
// the apps and target commands.
type Runner interface {
	Execute(ctx context.Context, script string) error
	Output(ctx context.Context, script string) (string, error)
}

// Option customizes the command tree, mainly for tests.
type Option func(*app)

// WithOutput redirects command output and error output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *app) {
		a.stdout = stdout
		a.stderr = stderr
	}
}

// WithConfig uses cfg instead of loading the configuration file.
func WithConfig(cfg *models.Config) Option {
	return func(a *app) { a.cfg = cfg }
}

// WithBackend uses b as the event storage. The caller keeps ownership of b.
func WithBackend(b kv.Store) Option {
	return func(a *app) { a.backend = b }
}

// WithRunner replaces the osascript runner.
func WithRunner(r Runner) Option {
	return func(a *app) { a.runner = r }
}

// app holds what the subcommands share once the root command has loaded
// configuration and opened the store.
type app struct {
	cfgFile  string
	logLevel string
	stdout   io.Writer
	stderr   io.Writer

	cfg     *models.Config
	backend kv.Store
	runner  Runner

	closer io.Closer
	store  *store.Store
}

// NewRootCommand builds the threew command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(a)
	}

	rootCmd := &cobra.Command{
		Use:   "threew",
		Short: "ThreeW schedules keystrokes for macOS applications",
		Long: `ThreeW ("When, Which, What") keeps a list of named events. Each event
says when to fire, which application to bring to the front and what key
codes to send to it.

Edit events with the new, when, target and keys commands, check them with
preview and schedule them with run.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "Path to the configuration file (default ~/.threew/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newNewCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newRenameCmd(a),
		newDeleteCmd(a),
		newWhenCmd(a),
		newTargetCmd(a),
		newKeysCmd(a),
		newPreviewCmd(a),
		newRunCmd(a),
		newAppsCmd(a),
	)
	return rootCmd
}

// Execute runs the command tree against os.Args. Errors are printed to
// stderr and returned for the exit code.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.cfg == nil {
		cfg, err := config.Load(a.cfgFile)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		a.cfg = cfg
	}
	if a.logLevel != "" {
		a.cfg.Application.LogLevel = a.logLevel
	}
	// Logs go to stderr so command output stays clean.
	if err := logger.Init(a.cfg.Application, a.stderr); err != nil {
		return err
	}

	if a.runner == nil {
		a.runner = action.NewExecutor(a.cfg.Runner)
	}

	ctx := cmd.Context()
	if a.backend == nil {
		b, err := kv.Open(ctx, a.cfg.Storage)
		if err != nil {
			return err
		}
		a.backend = b
		a.closer = b
	}

	s, err := store.Open(ctx, a.backend)
	if err != nil {
		// PersistentPostRunE does not run after a failed pre-run.
		_ = a.teardown()
		return err
	}
	a.store = s
	return nil
}

func (a *app) teardown() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

func (a *app) provider() apps.Provider {
	return apps.NewSystemEventsProvider(a.runner)
}

// lookup finds an event by exact id, exact name or unique id prefix.
func (a *app) lookup(ref string) (models.Event, error) {
	if ref == "" {
		return models.Event{}, fmt.Errorf("%w: empty reference", models.ErrEventNotFound)
	}
	if ev, ok := a.store.Get(ref); ok {
		return ev, nil
	}
	if ev, ok := a.store.FindByName(ref); ok {
		return ev, nil
	}

	var matches []models.Event
	for _, ev := range a.store.List() {
		if strings.HasPrefix(ev.ID, ref) {
			matches = append(matches, ev)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return models.Event{}, fmt.Errorf("%w: %q", models.ErrEventNotFound, ref)
	default:
		return models.Event{}, fmt.Errorf("%q matches %d events, use a longer id", ref, len(matches))
	}
}

// errNoEvents is returned when a command needs events but the store is empty.
var errNoEvents = errors.New("no events defined, create one with 'threew new'")
