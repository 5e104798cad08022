package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/ephvault/internal/vault"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string // path to YAML config
	Database string // overrides database.path from config
	As       string // verified caller identity

	// Clock and OpIDs override the service defaults (for testing).
	// If nil, SystemClock and UUIDv7Generator are used.
	Clock vault.Clock
	OpIDs vault.OpIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ephvault CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ephvault",
		Short: "ephvault - ephemeral delegated trading vaults",
		Long: `Manage ephemeral vaults: escrowed funds that an owner lets a single
delegate spend up to a fixed ceiling, until the owner revokes access.

State is kept in a local SQLite ledger. Every command acts as the
identity given with --as.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.As, "as", "", "caller identity")

	// Vault operations
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewApproveCommand(opts))
	cmd.AddCommand(NewDepositCommand(opts))
	cmd.AddCommand(NewTradeCommand(opts))
	cmd.AddCommand(NewRevokeCommand(opts))
	cmd.AddCommand(NewReactivateCommand(opts))
	cmd.AddCommand(NewCleanupCommand(opts))

	// Queries and ledger
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewFundCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))

	cmd.AddCommand(NewMonitorCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
