package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/ephvault/internal/monitor"
	"github.com/roach88/ephvault/internal/vault"
)

// MonitorOptions holds flags for the monitor command.
type MonitorOptions struct {
	*RootOptions
	Once     bool
	Schedule string
}

// sweepSummary is the output payload of a single sweep.
type sweepSummary struct {
	Cleaner vault.Identity `json:"cleaner"`
	Closed  []vault.Vault  `json:"closed"`
	Skipped int            `json:"skipped"`
	Failed  int            `json:"failed"`
}

func (s sweepSummary) String() string {
	msg := fmt.Sprintf("Sweep as %s: %d closed, %d skipped, %d failed", s.Cleaner, len(s.Closed), s.Skipped, s.Failed)
	for _, v := range s.Closed {
		msg += fmt.Sprintf("\n  closed %s (owner %s)", v.Address, v.UserWallet)
	}
	return msg
}

// NewMonitorCommand creates the monitor command.
func NewMonitorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MonitorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Clean up expired vaults on a schedule",
		Long: `Run the vault monitor: on every tick, close each vault that has been
revoked and idle for at least the expiry threshold.

The monitor acts as the identity given with --as, or monitor.cleaner from
the config, and collects the cleaner reward if one is configured. The
schedule comes from --schedule or monitor.cron.

Examples:
  ephvault monitor --db ./ephvault.db
  ephvault monitor --once --as carol`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session) error {
				return runMonitor(opts, s, cmd)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "sweep once and exit")
	cmd.Flags().StringVar(&opts.Schedule, "schedule", "", "cron schedule (overrides config)")

	return cmd
}

func runMonitor(opts *MonitorOptions, s *session, cmd *cobra.Command) error {
	cleaner := vault.Identity(s.cfg.Monitor.Cleaner)
	if opts.As != "" {
		cleaner = vault.Identity(opts.As)
	}
	schedule := s.cfg.Monitor.Cron
	if opts.Schedule != "" {
		schedule = opts.Schedule
	}

	m, err := monitor.New(s.svc, cleaner, schedule, s.logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create monitor", err)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	if opts.Once {
		res, err := m.Sweep(parentCtx)
		if err != nil {
			return WrapExitError(ExitCommandError, "sweep failed", err)
		}
		closed := res.Closed
		if closed == nil {
			closed = []vault.Vault{}
		}
		return s.out.Success(sweepSummary{
			Cleaner: cleaner,
			Closed:  closed,
			Skipped: res.Skipped,
			Failed:  res.Failed,
		})
	}

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			s.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("monitor starting", "db", s.cfg.Database.Path, "schedule", schedule, "cleaner", cleaner)
	s.out.VerboseLog("Monitor running (%s). Press Ctrl-C to stop.", schedule)

	m.Start()
	<-ctx.Done()
	m.Stop()

	return nil
}
