package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"stakerLedger/internal/custody"
	"stakerLedger/internal/errs"
	"stakerLedger/internal/events"
	"stakerLedger/internal/model"
	"stakerLedger/internal/ownership"
	"stakerLedger/internal/pool"
	"stakerLedger/internal/storage"
)

// Observer receives the outcome of every ledger call.
type Observer interface {
	ObserveCall(op, kind string, elapsed time.Duration)
}

// Config wires the ledger's collaborators. Mover is required; the rest fall
// back to defaults.
type Config struct {
	Mover    custody.Mover
	Clock    Clock
	Store    storage.Store
	Sink     events.Sink
	Observer Observer
	Logger   *zap.Logger
}

// Ledger is the serialized state machine over pools, positions and holders.
// Mutating calls hold the write lock for their whole duration; reads share
// the read lock.
type Ledger struct {
	mu        sync.RWMutex
	pools     *pool.Registry
	owners    *ownership.Registry
	positions []model.Position
	open      *openIndex

	mover    custody.Mover
	clock    Clock
	store    storage.Store
	sink     events.Sink
	observer Observer
	logger   *zap.Logger
}

func New(cfg Config) (*Ledger, error) {
	if cfg.Mover == nil {
		return nil, fmt.Errorf("asset mover is required")
	}
	l := &Ledger{
		pools:    pool.NewRegistry(),
		open:     newOpenIndex(),
		mover:    cfg.Mover,
		clock:    cfg.Clock,
		store:    cfg.Store,
		sink:     cfg.Sink,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}
	if l.clock == nil {
		l.clock = SystemClock{}
	}
	if l.store == nil {
		l.store = storage.NewMemoryStore()
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	l.owners = ownership.NewRegistry(ownership.PolicyFunc(l.transferable))
	return l, nil
}

// transferable reads the owning pool's flag at call time. Callers hold the lock.
func (l *Ledger) transferable(positionID uint64) (bool, error) {
	pos, err := l.livePosition(positionID)
	if err != nil {
		return false, err
	}
	p, err := l.pools.Get(pos.PoolID)
	if err != nil {
		return false, err
	}
	return p.Transferable, nil
}

// Restore replaces in-memory state with the store's content.
func (l *Ledger) Restore(ctx context.Context) error {
	snap, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pools := pool.NewRegistry()
	if err := pools.Load(snap.Pools); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	positions := make([]model.Position, 0, len(snap.Positions))
	var retired []uint64
	open := newOpenIndex()
	for i, p := range snap.Positions {
		if p.ID != uint64(i) {
			return fmt.Errorf("restore: expected position %d, got %d", i, p.ID)
		}
		if p.PoolID >= pools.Len() {
			return fmt.Errorf("restore: position %d references pool %d: %w", p.ID, p.PoolID, errs.ErrPoolNotFound)
		}
		_, held := snap.Owners[p.ID]
		switch {
		case p.Burned && held:
			return fmt.Errorf("restore: burned position %d has a holder", p.ID)
		case !p.Burned && !held:
			return fmt.Errorf("restore: position %d has no holder", p.ID)
		case p.Burned:
			retired = append(retired, p.ID)
		default:
			open.add(p.PoolID, p.ID)
		}
		positions = append(positions, p.Clone())
	}
	owners := ownership.NewRegistry(ownership.PolicyFunc(l.transferable))
	owners.Load(snap.Owners, retired)
	if owners.Live() != open.tree.Len() {
		return fmt.Errorf("restore: %d holders for %d open positions", owners.Live(), open.tree.Len())
	}

	l.pools = pools
	l.positions = positions
	l.open = open
	l.owners = owners

	l.logger.Info("ledger restored",
		zap.Uint64("pools", pools.Len()),
		zap.Int("positions", len(positions)),
		zap.Int("open", open.tree.Len()),
	)
	return nil
}

// Pool returns the pool record including its aggregates.
func (l *Ledger) Pool(poolID uint64) (model.Pool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pools.Get(poolID)
}

// Pools returns every pool in id order.
func (l *Ledger) Pools() []model.Pool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pools.All()
}

// Position returns a live position. Burned and unknown ids are not found.
func (l *Ledger) Position(positionID uint64) (model.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, err := l.livePosition(positionID)
	if err != nil {
		return model.Position{}, err
	}
	return p.Clone(), nil
}

func (l *Ledger) OwnerOf(positionID uint64) (common.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.owners.OwnerOf(positionID)
}

func (l *Ledger) CurrentAmountInPool(poolID uint64) (*big.Int, error) {
	p, err := l.Pool(poolID)
	if err != nil {
		return nil, err
	}
	return p.TotalStaked, nil
}

func (l *Ledger) CurrentPositionsInPool(poolID uint64) (uint64, error) {
	p, err := l.Pool(poolID)
	if err != nil {
		return 0, err
	}
	return p.OpenPositions, nil
}

func (l *Ledger) TotalPools() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pools.Len()
}

// TotalPositions is the number of positions ever minted.
func (l *Ledger) TotalPositions() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.positions))
}

// PoolPosition is an open position together with its holder.
type PoolPosition struct {
	Position model.Position
	Owner    common.Address
	State    model.PositionState
}

// PositionsInPool lists the open positions of a pool in id order.
func (l *Ledger) PositionsInPool(poolID uint64) ([]PoolPosition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, err := l.pools.Get(poolID); err != nil {
		return nil, err
	}
	ids := l.open.inPool(poolID)
	out := make([]PoolPosition, 0, len(ids))
	for _, id := range ids {
		owner, err := l.owners.OwnerOf(id)
		if err != nil {
			return nil, err
		}
		p := l.positions[id]
		out = append(out, PoolPosition{Position: p.Clone(), Owner: owner, State: p.State()})
	}
	return out, nil
}

// PositionMetadata is the read-only accessor for presentation code.
func (l *Ledger) PositionMetadata(positionID uint64) (model.PositionMetadata, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, err := l.livePosition(positionID)
	if err != nil {
		return model.PositionMetadata{}, err
	}
	pl, err := l.pools.Get(p.PoolID)
	if err != nil {
		return model.PositionMetadata{}, err
	}
	return model.PositionMetadata{
		PositionID:     p.ID,
		PoolID:         p.PoolID,
		AmountOrID:     p.AmountOrID.String(),
		StakeTimestamp: p.StakeTimestamp,
		LockupSeconds:  pl.LockupSeconds,
	}, nil
}

func (l *Ledger) livePosition(positionID uint64) (model.Position, error) {
	if positionID >= uint64(len(l.positions)) || l.positions[positionID].Burned {
		return model.Position{}, fmt.Errorf("position %d: %w", positionID, errs.ErrPositionNotFound)
	}
	return l.positions[positionID], nil
}

func (l *Ledger) observe(op string, start time.Time, err error) {
	if err != nil {
		l.logger.Debug("call refused", zap.String("op", op), zap.String("kind", errs.Kind(err)), zap.Error(err))
	}
	if l.observer != nil {
		l.observer.ObserveCall(op, errs.Kind(err), time.Since(start))
	}
}
