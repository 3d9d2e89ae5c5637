package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"stakerLedger/internal/model"
)

// Snapshot is the persisted ledger state: the Pools and Positions tables
// plus the position → holder map.
type Snapshot struct {
	Pools     []model.Pool
	Positions []model.Position
	Owners    map[uint64]common.Address
}

// Tx buffers the row changes of one ledger call. Nothing is visible to
// Load until Commit succeeds.
type Tx interface {
	PutPool(ctx context.Context, pool model.Pool) error
	PutPosition(ctx context.Context, position model.Position) error
	SetOwner(ctx context.Context, positionID uint64, owner common.Address) error
	DeleteOwner(ctx context.Context, positionID uint64) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store persists ledger state.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Load(ctx context.Context) (Snapshot, error)
	Close()
}
