package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ephvault/internal/vault"
)

// vaultView is the output payload for a vault record.
type vaultView struct {
	vault.Vault
	Remaining uint64 `json:"remaining"`
}

func newVaultView(v vault.Vault) vaultView {
	return vaultView{Vault: v, Remaining: v.Remaining()}
}

func (v vaultView) String() string {
	var b strings.Builder
	state := "revoked"
	if v.IsActive {
		state = "active"
	}
	delegate := string(v.DelegateWallet)
	if delegate == "" {
		delegate = "(none)"
	}
	fmt.Fprintf(&b, "Vault %s\n", v.Address)
	fmt.Fprintf(&b, "  Owner:         %s\n", v.UserWallet)
	fmt.Fprintf(&b, "  State:         %s\n", state)
	fmt.Fprintf(&b, "  Delegate:      %s\n", delegate)
	fmt.Fprintf(&b, "  Approved:      %d\n", v.ApprovedAmount)
	fmt.Fprintf(&b, "  Used:          %d\n", v.UsedAmount)
	fmt.Fprintf(&b, "  Remaining:     %d\n", v.Remaining)
	fmt.Fprintf(&b, "  Deposited:     %d\n", v.TotalDeposited)
	fmt.Fprintf(&b, "  Last activity: %d", v.LastActivity)
	return b.String()
}

// operation is a vault call made on behalf of the --as identity.
type operation func(s *session, caller vault.Identity) (vault.Vault, error)

// runOperation resolves the caller, performs op and reports the result.
// A rejected operation exits 1 with the vault error code in the envelope.
func runOperation(opts *RootOptions, cmd *cobra.Command, op operation) error {
	who, err := caller(opts)
	if err != nil {
		return err
	}
	return withSession(opts, cmd, func(s *session) error {
		v, err := op(s, who)
		if err != nil {
			return s.out.Rejected(err)
		}
		return s.out.Success(newVaultView(v))
	})
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <approved-amount>",
		Short: "Create a vault owned by the caller",
		Long: `Create the caller's vault with a cumulative spend ceiling.

The vault starts active with no delegate. Each identity owns at most one
vault at a time.

Example:
  ephvault create 500000000 --as alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			approved, err := parseAmount("approved amount", args[0])
			if err != nil {
				return err
			}
			return runOperation(rootOpts, cmd, func(s *session, caller vault.Identity) (vault.Vault, error) {
				return s.svc.Create(cmd.Context(), caller, approved)
			})
		},
	}
}

// NewApproveCommand creates the approve command.
func NewApproveCommand(rootOpts *RootOptions) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "approve <delegate>",
		Short: "Approve a delegate to trade from the vault",
		Long: `Approve a delegate for the caller's vault, replacing any current one.

The used amount carries over: the ceiling is cumulative across delegates.

Example:
  ephvault approve dave --as alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(rootOpts, cmd, func(s *session, caller vault.Identity) (vault.Vault, error) {
				return s.svc.ApproveDelegate(cmd.Context(), caller, ownerOr(owner, caller), vault.Identity(args[0]))
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "vault owner (defaults to --as)")
	return cmd
}

// NewDepositCommand creates the deposit command.
func NewDepositCommand(rootOpts *RootOptions) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "deposit <amount>",
		Short: "Move funds from the caller's wallet into the vault",
		Long: `Deposit funds from the owner's wallet into the vault escrow.

Deposits are not limited by the approved amount.

Example:
  ephvault deposit 500000000 --as alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount("amount", args[0])
			if err != nil {
				return err
			}
			return runOperation(rootOpts, cmd, func(s *session, caller vault.Identity) (vault.Vault, error) {
				return s.svc.AutoDeposit(cmd.Context(), caller, ownerOr(owner, caller), amount)
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "vault owner (defaults to --as)")
	return cmd
}

// NewTradeCommand creates the trade command.
func NewTradeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trade <owner> <fee> <amount>",
		Short: "Execute a trade from a vault as its delegate",
		Long: `Execute a trade from owner's vault. Only the current delegate may trade.

Fee and amount together count against the vault's approved amount. The
amount is paid to the settlement venue and the fee to the fee collector.

Example:
  ephvault trade alice 1000000 100000000 --as dave`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fee, err := parseAmount("fee", args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount("amount", args[2])
			if err != nil {
				return err
			}
			return runOperation(rootOpts, cmd, func(s *session, caller vault.Identity) (vault.Vault, error) {
				return s.svc.ExecuteTrade(cmd.Context(), caller, vault.Identity(args[0]), fee, amount)
			})
		},
	}
}

// NewRevokeCommand creates the revoke command.
func NewRevokeCommand(rootOpts *RootOptions) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke delegate access and deactivate the vault",
		Long: `Revoke the current delegate and deactivate the caller's vault.

Once revoked and idle for the expiry threshold, anyone other than the owner
may clean the vault up.

Example:
  ephvault revoke --as alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(rootOpts, cmd, func(s *session, caller vault.Identity) (vault.Vault, error) {
				return s.svc.RevokeAccess(cmd.Context(), caller, ownerOr(owner, caller))
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "vault owner (defaults to --as)")
	return cmd
}

// NewReactivateCommand creates the reactivate command.
func NewReactivateCommand(rootOpts *RootOptions) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "reactivate",
		Short: "Reactivate a revoked vault",
		Long: `Reactivate the caller's revoked vault. No delegate is restored; approve
one again before trading.

Example:
  ephvault reactivate --as alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(rootOpts, cmd, func(s *session, caller vault.Identity) (vault.Vault, error) {
				return s.svc.ReactivateVault(cmd.Context(), caller, ownerOr(owner, caller))
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "vault owner (defaults to --as)")
	return cmd
}

// NewCleanupCommand creates the cleanup command.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <owner>",
		Short: "Close an expired, revoked vault",
		Long: `Close owner's vault once it has been revoked and idle for at least the
expiry threshold. The owner may not clean up their own vault.

The residual escrow returns to the owner, less the configured cleaner
reward which goes to the caller.

Example:
  ephvault cleanup alice --as carol`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(rootOpts, cmd, func(s *session, caller vault.Identity) (vault.Vault, error) {
				return s.svc.CleanupVault(cmd.Context(), caller, vault.Identity(args[0]))
			})
		},
	}
}
