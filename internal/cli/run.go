package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Kaelzs/ThreeW/internal/logger"
	"github.com/Kaelzs/ThreeW/internal/metrics"
	"github.com/Kaelzs/ThreeW/internal/scheduler"
	"github.com/Kaelzs/ThreeW/internal/server"
	"github.com/Kaelzs/ThreeW/pkg/models"
)

const shutdownTimeout = 30 * time.Second

func newRunCmd(a *app) *cobra.Command {
	var exitWhenDone bool
	cmd := &cobra.Command{
		Use:   "run [event...]",
		Short: "Schedule events and run them in the foreground",
		Long: `Schedules the given events, or every event when none are given, and waits
for them to fire. Each outcome is printed as it happens. Stop with Ctrl-C;
pending runs are cancelled and running scripts are waited for.

An event that cannot be scheduled is reported and skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), args, exitWhenDone)
		},
	}
	cmd.Flags().BoolVar(&exitWhenDone, "exit-when-done", false, "Exit once every scheduled event has fired")
	return cmd
}

func (a *app) run(ctx context.Context, refs []string, exitWhenDone bool) error {
	log := logger.L()

	events, err := a.selectEvents(refs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []scheduler.Option{scheduler.WithCompileCheck(a.cfg.Runner.CompileCheckEnabled())}
	var reg *prometheus.Registry
	if a.cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, scheduler.WithMetrics(metrics.NewPrometheusSink(reg)))
	}
	sched := scheduler.New(a.runner, opts...)

	var httpServer *server.HTTPServer
	if reg != nil {
		httpServer = server.NewHTTPServer(a.cfg.Metrics.Listen, sched, reg)
	} else {
		log.Debug("Metrics disabled")
	}
	return a.runWith(ctx, sched, httpServer, events, exitWhenDone)
}

func (a *app) runWith(ctx context.Context, sched *scheduler.Scheduler, httpServer *server.HTTPServer, events []models.Event, exitWhenDone bool) error {
	log := logger.L()

	if httpServer != nil {
		httpServer.Start()
	}
	outcomes := sched.Subscribe(len(events))

	names := make(map[string]string, len(events))
	pending := 0
	for _, ev := range events {
		sr, err := sched.Start(ctx, ev.ID, ev.When, ev.Which, ev.What)
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %s: %v\n", ev.Name, err)
			continue
		}
		names[ev.ID] = ev.Name
		pending++
		fmt.Fprintf(a.stdout, "Scheduled %q at %s\n", ev.Name, sr.FireAt.Format("2006-01-02 15:04:05 -0700"))
	}

	var runErr error
	if pending == 0 {
		runErr = fmt.Errorf("no events could be scheduled")
	} else {
		log.Info("Waiting for events", "count", pending)
	loop:
		for {
			select {
			case <-ctx.Done():
				log.Info("Received shutdown signal")
				break loop
			case out, ok := <-outcomes:
				if !ok {
					break loop
				}
				a.printOutcome(names[out.EventID], out)
				pending--
				if exitWhenDone && pending == 0 {
					break loop
				}
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sched.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping scheduler", "error", err)
	}
	if httpServer != nil {
		if err := httpServer.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping HTTP server", "error", err)
		}
	}
	return runErr
}

func (a *app) printOutcome(name string, out scheduler.Outcome) {
	if out.Err != nil {
		fmt.Fprintf(a.stdout, "%q failed at %s: %s\n", name, out.FinishedAt.Format(time.TimeOnly), out.Message)
		return
	}
	fmt.Fprintf(a.stdout, "%q ran at %s\n", name, out.FiredAt.Format(time.TimeOnly))
}

// selectEvents resolves refs, or returns every event when refs is empty.
func (a *app) selectEvents(refs []string) ([]models.Event, error) {
	if len(refs) == 0 {
		events := a.store.List()
		if len(events) == 0 {
			return nil, errNoEvents
		}
		return events, nil
	}
	seen := make(map[string]struct{}, len(refs))
	events := make([]models.Event, 0, len(refs))
	for _, ref := range refs {
		ev, err := a.lookup(ref)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[ev.ID]; dup {
			continue
		}
		seen[ev.ID] = struct{}{}
		events = append(events, ev)
	}
	return events, nil
}
