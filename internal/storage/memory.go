package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"stakerLedger/internal/model"
)

// MemoryStore keeps state in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	pools     map[uint64]model.Pool
	positions map[uint64]model.Position
	owners    map[uint64]common.Address
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pools:     make(map[uint64]model.Pool),
		positions: make(map[uint64]model.Position),
		owners:    make(map[uint64]common.Address),
	}
}

func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryTx{store: s}, nil
}

func (s *MemoryStore) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Pools:     make([]model.Pool, 0, len(s.pools)),
		Positions: make([]model.Position, 0, len(s.positions)),
		Owners:    make(map[uint64]common.Address, len(s.owners)),
	}
	for _, p := range s.pools {
		snap.Pools = append(snap.Pools, p.Clone())
	}
	for _, p := range s.positions {
		snap.Positions = append(snap.Positions, p.Clone())
	}
	for id, owner := range s.owners {
		snap.Owners[id] = owner
	}
	sort.Slice(snap.Pools, func(i, j int) bool { return snap.Pools[i].ID < snap.Pools[j].ID })
	sort.Slice(snap.Positions, func(i, j int) bool { return snap.Positions[i].ID < snap.Positions[j].ID })
	return snap, nil
}

func (s *MemoryStore) Close() {}

type memoryTx struct {
	store *MemoryStore
	ops   []func(*MemoryStore)
	done  bool
}

func (tx *memoryTx) PutPool(_ context.Context, pool model.Pool) error {
	if tx.done {
		return fmt.Errorf("tx already finished")
	}
	p := pool.Clone()
	tx.ops = append(tx.ops, func(s *MemoryStore) { s.pools[p.ID] = p })
	return nil
}

func (tx *memoryTx) PutPosition(_ context.Context, position model.Position) error {
	if tx.done {
		return fmt.Errorf("tx already finished")
	}
	p := position.Clone()
	tx.ops = append(tx.ops, func(s *MemoryStore) { s.positions[p.ID] = p })
	return nil
}

func (tx *memoryTx) SetOwner(_ context.Context, positionID uint64, owner common.Address) error {
	if tx.done {
		return fmt.Errorf("tx already finished")
	}
	tx.ops = append(tx.ops, func(s *MemoryStore) { s.owners[positionID] = owner })
	return nil
}

func (tx *memoryTx) DeleteOwner(_ context.Context, positionID uint64) error {
	if tx.done {
		return fmt.Errorf("tx already finished")
	}
	tx.ops = append(tx.ops, func(s *MemoryStore) { delete(s.owners, positionID) })
	return nil
}

func (tx *memoryTx) Commit(ctx context.Context) error {
	if tx.done {
		return fmt.Errorf("tx already finished")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.done = true
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for _, op := range tx.ops {
		op(tx.store)
	}
	return nil
}

func (tx *memoryTx) Rollback(context.Context) error {
	tx.done = true
	tx.ops = nil
	return nil
}
