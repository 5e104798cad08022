package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ephvault/internal/vault"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "show [owner]",
		Short: "Show a vault",
		Long: `Show the vault owned by owner, or by the --as identity when owner is
omitted. With --address, look the vault up by its derived address instead.

Examples:
  ephvault show alice
  ephvault show --address 76677fd7...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session) error {
				var (
					v   vault.Vault
					err error
				)
				if address != "" {
					v, err = s.svc.GetByAddress(cmd.Context(), vault.Address(address))
				} else {
					owner, ownerErr := subject(rootOpts, args)
					if ownerErr != nil {
						return ownerErr
					}
					v, err = s.svc.Get(cmd.Context(), owner)
				}
				if err != nil {
					return s.out.Rejected(err)
				}
				return s.out.Success(newVaultView(v))
			})
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "look up by vault address")
	return cmd
}

// eventList is the output payload of the events command.
type eventList struct {
	Owner  vault.Identity `json:"owner"`
	Events []vault.Event  `json:"events"`
}

func (l eventList) String() string {
	if len(l.Events) == 0 {
		return fmt.Sprintf("No events for %s.", l.Owner)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Events for %s:\n", l.Owner)
	for i, e := range l.Events {
		fmt.Fprintf(&b, "  [%d] %d %-16s actor=%s", e.Seq, e.Timestamp, e.Kind, e.Actor)
		if e.Delegate != "" {
			fmt.Fprintf(&b, " delegate=%s", e.Delegate)
		}
		if e.Amount != 0 {
			fmt.Fprintf(&b, " amount=%d", e.Amount)
		}
		if e.Fee != 0 {
			fmt.Fprintf(&b, " fee=%d", e.Fee)
		}
		if i < len(l.Events)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events [owner]",
		Short: "List the audit trail of a vault",
		Long: `List the events recorded at owner's vault address in order, including
those of vaults already cleaned up there.

Example:
  ephvault events alice --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := subject(rootOpts, args)
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, func(s *session) error {
				events, err := s.svc.Events(cmd.Context(), owner)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to list events", err)
				}
				if events == nil {
					events = []vault.Event{}
				}
				return s.out.Success(eventList{Owner: owner, Events: events})
			})
		},
	}
}

// balanceView is the output payload of the fund and balance commands.
type balanceView struct {
	Holder  vault.Identity `json:"holder"`
	Account vault.Account  `json:"account"`
	Balance uint64         `json:"balance"`
}

func (b balanceView) String() string {
	return fmt.Sprintf("%s: %d", b.Account, b.Balance)
}

// NewFundCommand creates the fund command.
func NewFundCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fund <identity> <amount>",
		Short: "Credit an external wallet on the local ledger",
		Long: `Credit an identity's external wallet so it can deposit into a vault.

The local ledger stands in for a real token ledger; funding is the only
way value enters it.

Example:
  ephvault fund alice 1000000000`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount("amount", args[1])
			if err != nil {
				return err
			}
			id := vault.Identity(args[0])
			return withSession(rootOpts, cmd, func(s *session) error {
				bal, err := s.svc.Fund(cmd.Context(), id, amount)
				if err != nil {
					return s.out.Rejected(err)
				}
				return s.out.Success(balanceView{Holder: id, Account: vault.WalletAccount(id), Balance: bal})
			})
		},
	}
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	var escrow bool

	cmd := &cobra.Command{
		Use:   "balance [identity]",
		Short: "Show a wallet or vault escrow balance",
		Long: `Show the external wallet balance of identity, or with --escrow the
funds held by identity's vault.

Examples:
  ephvault balance alice
  ephvault balance alice --escrow`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := subject(rootOpts, args)
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, func(s *session) error {
				view := balanceView{Holder: id, Account: vault.WalletAccount(id)}
				if escrow {
					view.Account = vault.EscrowAccount(vault.AddressOf(id))
					view.Balance, err = s.svc.EscrowBalance(cmd.Context(), id)
				} else {
					view.Balance, err = s.svc.WalletBalance(cmd.Context(), id)
				}
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read balance", err)
				}
				return s.out.Success(view)
			})
		},
	}

	cmd.Flags().BoolVar(&escrow, "escrow", false, "show the vault escrow instead of the wallet")
	return cmd
}

// subject returns the identity a query is about: the positional argument
// if given, otherwise the --as identity.
func subject(opts *RootOptions, args []string) (vault.Identity, error) {
	if len(args) > 0 {
		return vault.Identity(args[0]), nil
	}
	if opts.As == "" {
		return "", NewExitError(ExitCommandError, "an identity argument or --as is required")
	}
	return vault.Identity(opts.As), nil
}
