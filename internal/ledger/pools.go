package ledger

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"stakerLedger/internal/model"
	"stakerLedger/internal/pool"
)

// CreatePool opens a new pool. Creation is unpermissioned; caller is only
// recorded in logs.
func (l *Ledger) CreatePool(ctx context.Context, caller common.Address, params pool.CreateParams) (id uint64, err error) {
	defer func(start time.Time) { l.observe("create_pool", start, err) }(time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()

	now, err := l.clock.Now(ctx)
	if err != nil {
		return 0, err
	}
	p, err := l.pools.PrepareCreate(params)
	if err != nil {
		return 0, err
	}
	m := mutation{pools: []model.Pool{p}}
	if err := l.persist(ctx, m); err != nil {
		return 0, err
	}
	l.apply(m)

	l.logger.Info("pool created",
		zap.Uint64("pool_id", p.ID),
		zap.Stringer("asset_class", p.AssetClass),
		zap.String("asset_address", p.AssetAddress.Hex()),
		zap.String("administrator", p.Administrator.Hex()),
		zap.String("caller", caller.Hex()),
	)
	l.publish(ctx,
		model.NewEvent(now, model.PoolCreatedData{
			PoolID:       p.ID,
			TokenType:    uint16(p.AssetClass),
			TokenAddress: p.AssetAddress.Hex(),
			TokenID:      p.AssetSubID.String(),
		}),
		configuredEvent(now, p),
	)
	return p.ID, nil
}

// UpdatePoolConfiguration overwrites the selected fields. Only the pool's
// administrator may call it.
func (l *Ledger) UpdatePoolConfiguration(ctx context.Context, caller common.Address, poolID uint64, update pool.ConfigUpdate) (err error) {
	defer func(start time.Time) { l.observe("update_pool_configuration", start, err) }(time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()

	now, err := l.clock.Now(ctx)
	if err != nil {
		return err
	}
	p, err := l.pools.PrepareConfiguration(poolID, caller, update)
	if err != nil {
		return err
	}
	m := mutation{pools: []model.Pool{p}}
	if err := l.persist(ctx, m); err != nil {
		return err
	}
	l.apply(m)

	l.logger.Info("pool configured",
		zap.Uint64("pool_id", p.ID),
		zap.Bool("transferable", p.Transferable),
		zap.Uint64("lockup_seconds", p.LockupSeconds),
		zap.Uint64("cooldown_seconds", p.CooldownSeconds),
	)
	l.publish(ctx, configuredEvent(now, p))
	return nil
}

// TransferPoolAdministration hands the pool to a new administrator without
// an acceptance step.
func (l *Ledger) TransferPoolAdministration(ctx context.Context, caller common.Address, poolID uint64, newAdministrator common.Address) (err error) {
	defer func(start time.Time) { l.observe("transfer_pool_administration", start, err) }(time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()

	now, err := l.clock.Now(ctx)
	if err != nil {
		return err
	}
	p, err := l.pools.PrepareAdministrationTransfer(poolID, caller, newAdministrator)
	if err != nil {
		return err
	}
	m := mutation{pools: []model.Pool{p}}
	if err := l.persist(ctx, m); err != nil {
		return err
	}
	l.apply(m)

	l.logger.Info("pool administration transferred",
		zap.Uint64("pool_id", p.ID),
		zap.String("from", caller.Hex()),
		zap.String("to", newAdministrator.Hex()),
	)
	l.publish(ctx, configuredEvent(now, p))
	return nil
}

func configuredEvent(ts uint64, p model.Pool) model.Event {
	return model.NewEvent(ts, model.PoolConfiguredData{
		PoolID:          p.ID,
		Administrator:   p.Administrator.Hex(),
		Transferable:    p.Transferable,
		LockupSeconds:   p.LockupSeconds,
		CooldownSeconds: p.CooldownSeconds,
	})
}
