package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"stakerLedger/internal/model"
)

type ownerChange struct {
	positionID uint64
	owner      common.Address
	remove     bool
}

// mutation is the persisted effect of one call plus its custody movement.
type mutation struct {
	pools     []model.Pool
	positions []model.Position
	owners    []ownerChange
	// move runs after the rows are written and before commit. undo reverses
	// it when the commit fails.
	move func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// persist writes m in one store transaction. Nothing is persisted and no
// asset stays moved unless it returns nil. Callers hold the write lock and
// update in-memory state only on success.
func (l *Ledger) persist(ctx context.Context, m mutation) error {
	tx, err := l.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	rollback := func(cause error) error {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			l.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return cause
	}

	for _, p := range m.pools {
		if err := tx.PutPool(ctx, p); err != nil {
			return rollback(fmt.Errorf("write pool %d: %w", p.ID, err))
		}
	}
	for _, p := range m.positions {
		if err := tx.PutPosition(ctx, p); err != nil {
			return rollback(fmt.Errorf("write position %d: %w", p.ID, err))
		}
	}
	for _, c := range m.owners {
		if c.remove {
			err = tx.DeleteOwner(ctx, c.positionID)
		} else {
			err = tx.SetOwner(ctx, c.positionID, c.owner)
		}
		if err != nil {
			return rollback(fmt.Errorf("write owner of position %d: %w", c.positionID, err))
		}
	}

	if m.move != nil {
		if err := m.move(ctx); err != nil {
			return rollback(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if m.undo != nil {
			if undoErr := m.undo(ctx); undoErr != nil {
				l.logger.Error("custody compensation failed", zap.Error(undoErr), zap.NamedError("commit_error", err))
			}
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// apply installs a persisted mutation into memory.
func (l *Ledger) apply(m mutation) {
	for _, p := range m.pools {
		if err := l.pools.Commit(p); err != nil {
			// Prepare* always yields a committable record.
			l.logger.Error("pool registry diverged from store", zap.Uint64("pool_id", p.ID), zap.Error(err))
		}
	}
	for _, p := range m.positions {
		switch {
		case p.ID == uint64(len(l.positions)):
			l.positions = append(l.positions, p.Clone())
			l.open.add(p.PoolID, p.ID)
		case p.ID < uint64(len(l.positions)):
			l.positions[p.ID] = p.Clone()
			if p.Burned {
				l.open.remove(p.PoolID, p.ID)
			}
		}
	}
}

// publish hands committed notifications to the sink. Sink failures never
// fail the call.
func (l *Ledger) publish(ctx context.Context, evs ...model.Event) {
	if l.sink == nil {
		return
	}
	for _, ev := range evs {
		if err := l.sink.Publish(ctx, ev); err != nil {
			l.logger.Warn("publish event failed", zap.String("event", ev.Name), zap.Error(err))
		}
	}
}
