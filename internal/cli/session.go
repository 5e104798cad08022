package cli

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/ephvault/internal/config"
	"github.com/roach88/ephvault/internal/store"
	"github.com/roach88/ephvault/internal/vault"
)

// session bundles what a command needs to talk to the ledger.
type session struct {
	cfg    *config.Config
	store  *store.Store
	svc    *vault.Service
	out    *OutputFormatter
	logger *slog.Logger
}

// openSession loads config, configures logging, opens the database and
// builds the vault service. The caller must close the session.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}

	logLevel := cfg.LogLevel()
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	logger.Debug("opening database", "path", cfg.Database.Path)
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	svcOpts := []vault.Option{
		vault.WithPolicy(cfg.Policy()),
		vault.WithLogger(logger),
	}
	if opts.Clock != nil {
		svcOpts = append(svcOpts, vault.WithClock(opts.Clock))
	}
	if opts.OpIDs != nil {
		svcOpts = append(svcOpts, vault.WithOpIDs(opts.OpIDs))
	}
	svc, err := vault.New(st, svcOpts...)
	if err != nil {
		_ = st.Close()
		return nil, WrapExitError(ExitCommandError, "invalid vault policy", err)
	}

	return &session{
		cfg:   cfg,
		store: st,
		svc:   svc,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
		logger: logger,
	}, nil
}

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// withSession opens a session, runs fn, and closes the session.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(*session) error) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()
	return fn(s)
}

// caller returns the --as identity, which every vault operation needs.
func caller(opts *RootOptions) (vault.Identity, error) {
	if opts.As == "" {
		return "", NewExitError(ExitCommandError, "--as is required")
	}
	return vault.Identity(opts.As), nil
}

// ownerOr returns owner, or the caller when owner is empty.
func ownerOr(owner string, caller vault.Identity) vault.Identity {
	if owner == "" {
		return caller
	}
	return vault.Identity(owner)
}

// parseAmount parses a non-negative integer amount in the smallest unit.
func parseAmount(name, s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid %s %q", name, s), err)
	}
	return n, nil
}
