// Package vaulttest holds a conformance suite that every vault.Backend
// implementation must pass.
package vaulttest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ephvault/internal/vault"
)

// Factory returns a fresh, empty backend.
type Factory func(t *testing.T) vault.Backend

var errAbort = errors.New("abort")

func sample(user vault.Identity, lastActivity int64, active bool) vault.Vault {
	return vault.Vault{
		Address:        vault.AddressOf(user),
		UserWallet:     user,
		IsActive:       active,
		ApprovedAmount: 1_000,
		LastActivity:   lastActivity,
		CreatedAt:      lastActivity,
	}
}

// RunBackendSuite exercises the Backend and Tx contracts.
func RunBackendSuite(t *testing.T, newBackend Factory) {
	t.Run("insert and load", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		v := sample("alice", 100, true)
		v.DelegateWallet = "dave"
		v.DelegatedAt = 90

		require.NoError(t, b.Atomically(ctx, func(tx vault.Tx) error {
			return tx.Insert(ctx, v)
		}))

		got, err := b.Get(ctx, v.Address)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, v, *got)

		missing, err := b.Get(ctx, vault.AddressOf("nobody"))
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("insert never overwrites", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		v := sample("alice", 100, true)
		require.NoError(t, b.Atomically(ctx, func(tx vault.Tx) error {
			return tx.Insert(ctx, v)
		}))

		other := v
		other.ApprovedAmount = 5
		err := b.Atomically(ctx, func(tx vault.Tx) error {
			return tx.Insert(ctx, other)
		})
		assert.ErrorIs(t, err, vault.ErrAlreadyExists)

		got, err := b.Get(ctx, v.Address)
		require.NoError(t, err)
		assert.Equal(t, uint64(1_000), got.ApprovedAmount)
	})

	t.Run("update and delete", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		v := sample("alice", 100, true)

		err := b.Atomically(ctx, func(tx vault.Tx) error {
			return tx.Update(ctx, v)
		})
		assert.ErrorIs(t, err, vault.ErrNotFound)

		require.NoError(t, b.Atomically(ctx, func(tx vault.Tx) error {
			if err := tx.Insert(ctx, v); err != nil {
				return err
			}
			v.UsedAmount = 7
			return tx.Update(ctx, v)
		}))
		got, err := b.Get(ctx, v.Address)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), got.UsedAmount)

		require.NoError(t, b.Atomically(ctx, func(tx vault.Tx) error {
			return tx.Delete(ctx, v.Address)
		}))
		got, err = b.Get(ctx, v.Address)
		require.NoError(t, err)
		assert.Nil(t, got)

		// A deleted address accepts a fresh insert.
		require.NoError(t, b.Atomically(ctx, func(tx vault.Tx) error {
			return tx.Insert(ctx, sample("alice", 200, true))
		}))
	})

	t.Run("staged writes visible inside the unit of work", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		v := sample("alice", 100, true)

		require.NoError(t, b.Atomically(ctx, func(tx vault.Tx) error {
			require.NoError(t, tx.Insert(ctx, v))
			got, err := tx.Load(ctx, v.Address)
			require.NoError(t, err)
			require.NotNil(t, got)

			require.NoError(t, tx.Credit(ctx, "wallet:alice", 10))
			bal, err := tx.Balance(ctx, "wallet:alice")
			require.NoError(t, err)
			assert.Equal(t, uint64(10), bal)

			require.NoError(t, tx.Delete(ctx, v.Address))
			got, err = tx.Load(ctx, v.Address)
			require.NoError(t, err)
			assert.Nil(t, got)
			return nil
		}))
	})

	t.Run("error rolls back everything", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		v := sample("alice", 100, true)
		require.NoError(t, b.Atomically(ctx, func(tx vault.Tx) error {
			if err := tx.Insert(ctx, v); err != nil {
				return err
			}
			return tx.Credit(ctx, "wallet:alice", 100)
		}))

		err := b.Atomically(ctx, func(tx vault.Tx) error {
			changed := v
			changed.IsActive = false
			if err := tx.Update(ctx, changed); err != nil {
				return err
			}
			if err := tx.Transfer(ctx, "wallet:alice", "escrow:x", 60); err != nil {
				return err
			}
			if _, err := tx.AppendEvent(ctx, vault.Event{Kind: vault.EventAccessRevoked, Vault: v.Address}); err != nil {
				return err
			}
			if err := tx.Insert(ctx, sample("bob", 1, true)); err != nil {
				return err
			}
			return errAbort
		})
		require.ErrorIs(t, err, errAbort)

		got, err := b.Get(ctx, v.Address)
		require.NoError(t, err)
		assert.Equal(t, v, *got)
		bob, err := b.Get(ctx, vault.AddressOf("bob"))
		require.NoError(t, err)
		assert.Nil(t, bob)

		bal, err := b.Balance(ctx, "wallet:alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(100), bal)
		bal, err = b.Balance(ctx, "escrow:x")
		require.NoError(t, err)
		assert.Zero(t, bal)

		events, err := b.Events(ctx, v.Address)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("transfer", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		require.NoError(t, b.Atomically(ctx, func(tx vault.Tx) error {
			return tx.Credit(ctx, "a", 50)
		}))

		err := b.Atomically(ctx, func(tx vault.Tx) error {
			return tx.Transfer(ctx, "a", "b", 51)
		})
		assert.ErrorIs(t, err, vault.ErrInsufficientFunds)

		require.NoError(t, b.Atomically(ctx, func(tx vault.Tx) error {
			if err := tx.Transfer(ctx, "a", "b", 0); err != nil {
				return err
			}
			return tx.Transfer(ctx, "a", "b", 20)
		}))
		a, err := b.Balance(ctx, "a")
		require.NoError(t, err)
		bb, err := b.Balance(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, uint64(30), a)
		assert.Equal(t, uint64(20), bb)

		zero, err := b.Balance(ctx, "never-seen")
		require.NoError(t, err)
		assert.Zero(t, zero)
	})

	t.Run("credit overflow", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		require.NoError(t, b.Atomically(ctx, func(tx vault.Tx) error {
			return tx.Credit(ctx, "a", ^uint64(0))
		}))
		err := b.Atomically(ctx, func(tx vault.Tx) error {
			return tx.Credit(ctx, "a", 1)
		})
		assert.ErrorIs(t, err, vault.ErrArithmeticOverflow)
	})

	t.Run("events keep order and sequence", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		addr := vault.AddressOf("alice")
		other := vault.AddressOf("bob")

		var seqs []int64
		require.NoError(t, b.Atomically(ctx, func(tx vault.Tx) error {
			for i, kind := range []vault.EventKind{vault.EventVaultCreated, vault.EventDeposited} {
				e, err := tx.AppendEvent(ctx, vault.Event{
					ID:        "id-" + string(kind),
					OpID:      "op",
					Kind:      kind,
					Vault:     addr,
					Owner:     "alice",
					Actor:     "alice",
					Amount:    uint64(i + 1),
					Timestamp: 10,
				})
				if err != nil {
					return err
				}
				seqs = append(seqs, e.Seq)
			}
			_, err := tx.AppendEvent(ctx, vault.Event{Kind: vault.EventVaultCreated, Vault: other})
			return err
		}))
		require.Len(t, seqs, 2)
		assert.Less(t, seqs[0], seqs[1])

		events, err := b.Events(ctx, addr)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, vault.EventVaultCreated, events[0].Kind)
		assert.Equal(t, vault.EventDeposited, events[1].Kind)
		assert.Equal(t, seqs[0], events[0].Seq)
		assert.Equal(t, uint64(2), events[1].Amount)
		assert.Equal(t, vault.Identity("alice"), events[1].Owner)
	})

	t.Run("list inactive", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		require.NoError(t, b.Atomically(ctx, func(tx vault.Tx) error {
			for _, v := range []vault.Vault{
				sample("alice", 100, false),
				sample("bob", 100, true),
				sample("carol", 300, false),
				sample("dave", 50, false),
			} {
				if err := tx.Insert(ctx, v); err != nil {
					return err
				}
			}
			return nil
		}))

		got, err := b.ListInactive(ctx, 100)
		require.NoError(t, err)
		require.Len(t, got, 2)
		users := []vault.Identity{got[0].UserWallet, got[1].UserWallet}
		assert.ElementsMatch(t, []vault.Identity{"alice", "dave"}, users)
		assert.Less(t, got[0].Address, got[1].Address)
	})

	t.Run("canceled context", func(t *testing.T) {
		b := newBackend(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		called := false
		err := b.Atomically(ctx, func(vault.Tx) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}
