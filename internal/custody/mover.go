// Package custody moves assets into and out of the ledger's custody. The
// ledger trusts a Mover to move exactly the declared amount or token id, or
// to fail without side effects.
package custody

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"stakerLedger/internal/model"
)

// Mover moves one asset class in and out of custody.
type Mover interface {
	PullIn(ctx context.Context, asset model.Asset, from common.Address, amountOrID *big.Int) error
	PushOut(ctx context.Context, asset model.Asset, to common.Address, amountOrID *big.Int) error
}

// Router dispatches to the mover registered for the asset's class.
type Router struct {
	mu     sync.RWMutex
	movers map[model.AssetClass]Mover
}

var _ Mover = (*Router)(nil)

func NewRouter() *Router {
	return &Router{movers: make(map[model.AssetClass]Mover)}
}

// Register installs the mover for a class, replacing any previous one.
func (r *Router) Register(class model.AssetClass, mover Mover) {
	r.mu.Lock()
	r.movers[class] = mover
	r.mu.Unlock()
}

// For returns the mover registered for class.
func (r *Router) For(class model.AssetClass) (Mover, error) {
	r.mu.RLock()
	mover, ok := r.movers[class]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no mover registered for %s", class)
	}
	return mover, nil
}

func (r *Router) PullIn(ctx context.Context, asset model.Asset, from common.Address, amountOrID *big.Int) error {
	mover, err := r.For(asset.Class)
	if err != nil {
		return err
	}
	return mover.PullIn(ctx, asset, from, amountOrID)
}

func (r *Router) PushOut(ctx context.Context, asset model.Asset, to common.Address, amountOrID *big.Int) error {
	mover, err := r.For(asset.Class)
	if err != nil {
		return err
	}
	return mover.PushOut(ctx, asset, to, amountOrID)
}
