package ledger

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"stakerLedger/internal/errs"
	"stakerLedger/internal/model"
)

// StakeRequest deposits AmountOrID from Caller into a pool and mints the
// position to Recipient. Class is the asset class implied by the entry
// point the caller used.
type StakeRequest struct {
	Caller     common.Address
	Recipient  common.Address
	PoolID     uint64
	Class      model.AssetClass
	AmountOrID *big.Int
}

// StakeNative stakes the attached payment value.
func (l *Ledger) StakeNative(ctx context.Context, caller, recipient common.Address, poolID uint64, value *big.Int) (uint64, error) {
	return l.Stake(ctx, StakeRequest{Caller: caller, Recipient: recipient, PoolID: poolID, Class: model.AssetNative, AmountOrID: value})
}

func (l *Ledger) StakeERC20(ctx context.Context, caller, recipient common.Address, poolID uint64, amount *big.Int) (uint64, error) {
	return l.Stake(ctx, StakeRequest{Caller: caller, Recipient: recipient, PoolID: poolID, Class: model.AssetFungible, AmountOrID: amount})
}

func (l *Ledger) StakeERC721(ctx context.Context, caller, recipient common.Address, poolID uint64, tokenID *big.Int) (uint64, error) {
	return l.Stake(ctx, StakeRequest{Caller: caller, Recipient: recipient, PoolID: poolID, Class: model.AssetUnique, AmountOrID: tokenID})
}

func (l *Ledger) StakeERC1155(ctx context.Context, caller, recipient common.Address, poolID uint64, amount *big.Int) (uint64, error) {
	return l.Stake(ctx, StakeRequest{Caller: caller, Recipient: recipient, PoolID: poolID, Class: model.AssetSemiFungible, AmountOrID: amount})
}

// Stake pulls the asset into custody and mints a new position.
func (l *Ledger) Stake(ctx context.Context, req StakeRequest) (id uint64, err error) {
	defer func(start time.Time) { l.observe("stake", start, err) }(time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()

	now, err := l.clock.Now(ctx)
	if err != nil {
		return 0, err
	}
	p, err := l.pools.Get(req.PoolID)
	if err != nil {
		return 0, err
	}
	if p.AssetClass != req.Class {
		return 0, &errs.WrongAssetClassError{PoolID: p.ID, PoolClass: uint16(p.AssetClass), Supplied: uint16(req.Class)}
	}
	amount := new(big.Int)
	if req.AmountOrID != nil {
		amount.Set(req.AmountOrID)
	}
	if amount.Sign() < 0 {
		return 0, fmt.Errorf("negative amount %s: %w", amount, errs.ErrNothingToStake)
	}
	if p.AssetClass != model.AssetUnique && amount.Sign() == 0 {
		return 0, fmt.Errorf("pool %d: %w", p.ID, errs.ErrNothingToStake)
	}

	id = uint64(len(l.positions))
	if err := l.owners.CheckMint(id, req.Recipient); err != nil {
		return 0, err
	}
	opened, err := l.pools.PrepareOpen(p.ID, weight(p.AssetClass, amount))
	if err != nil {
		return 0, err
	}
	pos := model.Position{
		ID:             id,
		PoolID:         p.ID,
		AmountOrID:     amount,
		StakeTimestamp: now,
	}

	asset := p.Asset()
	m := mutation{
		pools:     []model.Pool{opened},
		positions: []model.Position{pos},
		owners:    []ownerChange{{positionID: id, owner: req.Recipient}},
		move: func(ctx context.Context) error {
			if err := l.mover.PullIn(ctx, asset, req.Caller, amount); err != nil {
				return fmt.Errorf("pull %s into custody: %w", asset.Class, err)
			}
			return nil
		},
		undo: func(ctx context.Context) error {
			return l.mover.PushOut(ctx, asset, req.Caller, amount)
		},
	}
	if err := l.persist(ctx, m); err != nil {
		return 0, err
	}
	l.apply(m)
	if err := l.owners.Mint(id, req.Recipient); err != nil {
		l.logger.Error("ownership registry diverged from store", zap.Uint64("position_id", id), zap.Error(err))
	}

	l.logger.Info("staked",
		zap.Uint64("position_id", id),
		zap.Uint64("pool_id", p.ID),
		zap.String("caller", req.Caller.Hex()),
		zap.String("recipient", req.Recipient.Hex()),
		zap.String("amount", amount.String()),
	)
	l.publish(ctx,
		model.NewEvent(now, model.TransferData{From: common.Address{}.Hex(), To: req.Recipient.Hex(), TokenID: id}),
		model.NewEvent(now, model.StakedData{
			PositionTokenID: id,
			Owner:           req.Recipient.Hex(),
			PoolID:          p.ID,
			AmountOrTokenID: amount.String(),
		}),
	)
	return id, nil
}

// InitiateUnstake starts the cooldown of a position whose lockup has
// expired. Repeating it is a no-op.
func (l *Ledger) InitiateUnstake(ctx context.Context, caller common.Address, positionID uint64) (err error) {
	defer func(start time.Time) { l.observe("initiate_unstake", start, err) }(time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()

	now, err := l.clock.Now(ctx)
	if err != nil {
		return err
	}
	pos, p, err := l.authorizedPosition(caller, positionID)
	if err != nil {
		return err
	}
	if expires := addSeconds(pos.StakeTimestamp, p.LockupSeconds); now < expires {
		return &errs.LockupNotExpiredError{ExpiresAt: expires}
	}
	pos, changed, err := advance(pos, eventInitiate, now)
	if err != nil || !changed {
		return err
	}

	m := mutation{positions: []model.Position{pos}}
	if err := l.persist(ctx, m); err != nil {
		return err
	}
	l.apply(m)

	l.logger.Info("unstake initiated",
		zap.Uint64("position_id", pos.ID),
		zap.Uint64("pool_id", pos.PoolID),
		zap.String("caller", caller.Hex()),
		zap.Uint64("cooldown_seconds", p.CooldownSeconds),
	)
	l.publish(ctx, model.NewEvent(now, model.UnstakeInitiatedData{PositionTokenID: pos.ID, Owner: caller.Hex()}))
	return nil
}

// Unstake returns the custodied asset to the holder and burns the position.
func (l *Ledger) Unstake(ctx context.Context, caller common.Address, positionID uint64) (err error) {
	defer func(start time.Time) { l.observe("unstake", start, err) }(time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()

	now, err := l.clock.Now(ctx)
	if err != nil {
		return err
	}
	pos, p, err := l.authorizedPosition(caller, positionID)
	if err != nil {
		return err
	}
	if p.CooldownSeconds == 0 {
		if expires := addSeconds(pos.StakeTimestamp, p.LockupSeconds); now < expires {
			return &errs.LockupNotExpiredError{ExpiresAt: expires}
		}
	} else {
		if pos.UnstakeInitiatedAt == 0 || now < addSeconds(pos.UnstakeInitiatedAt, p.CooldownSeconds) {
			return &errs.InitiateUnstakeFirstError{CooldownSeconds: p.CooldownSeconds}
		}
	}
	burned, _, err := advance(pos, eventRelease, now)
	if err != nil {
		return err
	}

	closed, err := l.pools.PrepareClose(p.ID, weight(p.AssetClass, pos.AmountOrID))
	if err != nil {
		return err
	}

	asset := p.Asset()
	amount := new(big.Int).Set(pos.AmountOrID)
	m := mutation{
		pools:     []model.Pool{closed},
		positions: []model.Position{burned},
		owners:    []ownerChange{{positionID: pos.ID, remove: true}},
		move: func(ctx context.Context) error {
			if err := l.mover.PushOut(ctx, asset, caller, amount); err != nil {
				return fmt.Errorf("release %s from custody: %w", asset.Class, err)
			}
			return nil
		},
		undo: func(ctx context.Context) error {
			return l.mover.PullIn(ctx, asset, caller, amount)
		},
	}
	if err := l.persist(ctx, m); err != nil {
		return err
	}
	l.apply(m)
	if _, err := l.owners.Burn(pos.ID); err != nil {
		l.logger.Error("ownership registry diverged from store", zap.Uint64("position_id", pos.ID), zap.Error(err))
	}

	l.logger.Info("unstaked",
		zap.Uint64("position_id", pos.ID),
		zap.Uint64("pool_id", p.ID),
		zap.String("caller", caller.Hex()),
		zap.String("amount", amount.String()),
	)
	l.publish(ctx,
		model.NewEvent(now, model.TransferData{From: caller.Hex(), To: common.Address{}.Hex(), TokenID: pos.ID}),
		model.NewEvent(now, model.UnstakedData{
			PositionTokenID: pos.ID,
			Owner:           caller.Hex(),
			PoolID:          p.ID,
			AmountOrTokenID: amount.String(),
		}),
	)
	return nil
}

// Transfer moves a position to a new holder. The caller must be the
// current holder and the owning pool must currently allow transfers.
func (l *Ledger) Transfer(ctx context.Context, caller common.Address, positionID uint64, from, to common.Address) (err error) {
	defer func(start time.Time) { l.observe("transfer", start, err) }(time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()

	now, err := l.clock.Now(ctx)
	if err != nil {
		return err
	}
	if err := l.owners.CheckTransfer(positionID, caller, from, to); err != nil {
		return err
	}
	m := mutation{owners: []ownerChange{{positionID: positionID, owner: to}}}
	if err := l.persist(ctx, m); err != nil {
		return err
	}
	if err := l.owners.Transfer(positionID, caller, from, to); err != nil {
		l.logger.Error("ownership registry diverged from store", zap.Uint64("position_id", positionID), zap.Error(err))
	}

	l.logger.Info("position transferred",
		zap.Uint64("position_id", positionID),
		zap.String("from", from.Hex()),
		zap.String("to", to.Hex()),
	)
	l.publish(ctx, model.NewEvent(now, model.TransferData{From: from.Hex(), To: to.Hex(), TokenID: positionID}))
	return nil
}

// authorizedPosition resolves a live position held by caller and the
// current record of its pool. Not-found takes precedence over authorization.
func (l *Ledger) authorizedPosition(caller common.Address, positionID uint64) (model.Position, model.Pool, error) {
	pos, err := l.livePosition(positionID)
	if err != nil {
		return model.Position{}, model.Pool{}, err
	}
	owner, err := l.owners.OwnerOf(positionID)
	if err != nil {
		return model.Position{}, model.Pool{}, err
	}
	if owner != caller {
		return model.Position{}, model.Pool{}, &errs.NotAuthorizedError{Required: owner, Caller: caller}
	}
	p, err := l.pools.Get(pos.PoolID)
	if err != nil {
		return model.Position{}, model.Pool{}, err
	}
	return pos, p, nil
}

// weight is a position's contribution to its pool's staked total.
func weight(class model.AssetClass, amountOrID *big.Int) *big.Int {
	if class == model.AssetUnique {
		return big.NewInt(1)
	}
	return new(big.Int).Set(amountOrID)
}

func addSeconds(ts, seconds uint64) uint64 {
	if ts > math.MaxUint64-seconds {
		return math.MaxUint64
	}
	return ts + seconds
}
