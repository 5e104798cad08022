package vault

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// MemoryBackend is an in-process Backend: a keyed arena from derived
// address to record plus a balance map.
//
// Atomically stages every write in a private overlay and applies it only
// when fn returns nil. Units of work are serialized by a mutex, which
// stands in for the ledger's commit boundary.
type MemoryBackend struct {
	mu       sync.Mutex
	vaults   map[Address]Vault
	balances map[Account]uint64
	events   []Event
	seq      int64
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		vaults:   make(map[Address]Vault),
		balances: make(map[Account]uint64),
	}
}

// Atomically implements Backend.
func (m *MemoryBackend) Atomically(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		parent:   m,
		vaults:   make(map[Address]*Vault),
		balances: make(map[Account]uint64),
		seq:      m.seq,
	}
	if err := fn(tx); err != nil {
		return err
	}

	for addr, v := range tx.vaults {
		if v == nil {
			delete(m.vaults, addr)
			continue
		}
		m.vaults[addr] = *v
	}
	for acct, bal := range tx.balances {
		m.balances[acct] = bal
	}
	m.events = append(m.events, tx.events...)
	m.seq = tx.seq
	return nil
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, addr Address) (*Vault, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vaults[addr]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// ListInactive implements Backend.
func (m *MemoryBackend) ListInactive(_ context.Context, cutoff int64) ([]Vault, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Vault{}
	for _, v := range m.vaults {
		if !v.IsActive && v.LastActivity <= cutoff {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b Vault) int {
		return cmp.Compare(a.Address, b.Address)
	})
	return out, nil
}

// Events implements Backend.
func (m *MemoryBackend) Events(_ context.Context, addr Address) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Event{}
	for _, e := range m.events {
		if e.Vault == addr {
			out = append(out, e)
		}
	}
	return out, nil
}

// Balance implements Backend.
func (m *MemoryBackend) Balance(_ context.Context, acct Account) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[acct], nil
}

type memTx struct {
	parent *MemoryBackend

	// A nil entry marks a staged delete.
	vaults   map[Address]*Vault
	balances map[Account]uint64
	events   []Event
	seq      int64
}

func (tx *memTx) Load(_ context.Context, addr Address) (*Vault, error) {
	if v, staged := tx.vaults[addr]; staged {
		if v == nil {
			return nil, nil
		}
		cp := *v
		return &cp, nil
	}
	v, ok := tx.parent.vaults[addr]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (tx *memTx) Insert(ctx context.Context, v Vault) error {
	existing, err := tx.Load(ctx, v.Address)
	if err != nil {
		return err
	}
	if existing != nil {
		return newError(ErrCodeAlreadyExists, "address %s is occupied", v.Address)
	}
	tx.vaults[v.Address] = &v
	return nil
}

func (tx *memTx) Update(ctx context.Context, v Vault) error {
	existing, err := tx.Load(ctx, v.Address)
	if err != nil {
		return err
	}
	if existing == nil {
		return newError(ErrCodeNotFound, "no vault at %s", v.Address)
	}
	tx.vaults[v.Address] = &v
	return nil
}

func (tx *memTx) Delete(_ context.Context, addr Address) error {
	tx.vaults[addr] = nil
	return nil
}

func (tx *memTx) Balance(_ context.Context, acct Account) (uint64, error) {
	if bal, staged := tx.balances[acct]; staged {
		return bal, nil
	}
	return tx.parent.balances[acct], nil
}

func (tx *memTx) Transfer(ctx context.Context, from, to Account, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}
	src, err := tx.Balance(ctx, from)
	if err != nil {
		return err
	}
	dst, err := tx.Balance(ctx, to)
	if err != nil {
		return err
	}
	if src < amount {
		return newError(ErrCodeInsufficientFunds, "%s holds %d, needs %d", from, src, amount)
	}
	credited, err := checkedAdd(dst, amount, "balance of "+string(to))
	if err != nil {
		return err
	}
	tx.balances[from] = src - amount
	tx.balances[to] = credited
	return nil
}

func (tx *memTx) Credit(ctx context.Context, acct Account, amount uint64) error {
	bal, err := tx.Balance(ctx, acct)
	if err != nil {
		return err
	}
	credited, err := checkedAdd(bal, amount, "balance of "+string(acct))
	if err != nil {
		return err
	}
	tx.balances[acct] = credited
	return nil
}

func (tx *memTx) AppendEvent(_ context.Context, e Event) (Event, error) {
	tx.seq++
	e.Seq = tx.seq
	tx.events = append(tx.events, e)
	return e, nil
}
