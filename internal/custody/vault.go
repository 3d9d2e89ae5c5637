package custody

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"stakerLedger/internal/model"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotHolder           = errors.New("token not held by sender")
)

// VaultConfig controls vault behavior.
type VaultConfig struct {
	// Custodian is the account that holds staked assets.
	Custodian common.Address
	// Strict debits depositors on PullIn. When false, deposits are assumed
	// to be settled by the transport and only custody is tracked.
	Strict bool
}

// Vault is an in-memory custody book that serves every asset class.
// Native, ERC20 and ERC1155 assets are balances; ERC721 assets are token
// id → holder entries.
type Vault struct {
	cfg    VaultConfig
	logger *zap.Logger

	mu       sync.Mutex
	balances map[string]map[common.Address]*big.Int
	holders  map[string]map[string]common.Address
}

var _ Mover = (*Vault)(nil)

func NewVault(cfg VaultConfig, logger *zap.Logger) *Vault {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vault{
		cfg:      cfg,
		logger:   logger,
		balances: make(map[string]map[common.Address]*big.Int),
		holders:  make(map[string]map[string]common.Address),
	}
}

// Custodian returns the custody account.
func (v *Vault) Custodian() common.Address {
	return v.cfg.Custodian
}

// Credit gives holder an amount of a balance asset, or the token id of an
// ERC721 asset.
func (v *Vault) Credit(asset model.Asset, holder common.Address, amountOrID *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if asset.Class == model.AssetUnique {
		v.tokens(asset)[amountOrID.String()] = holder
		return
	}
	bal := v.balance(asset, holder)
	bal.Add(bal, amountOrID)
}

// BalanceOf returns holder's balance of a balance asset.
func (v *Vault) BalanceOf(asset model.Asset, holder common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.balance(asset, holder))
}

// HolderOf returns the holder of an ERC721 token id.
func (v *Vault) HolderOf(asset model.Asset, tokenID *big.Int) (common.Address, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	holder, ok := v.tokens(asset)[tokenID.String()]
	return holder, ok
}

// PullIn moves an asset from a depositor into custody.
func (v *Vault) PullIn(ctx context.Context, asset model.Asset, from common.Address, amountOrID *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amountOrID == nil || amountOrID.Sign() < 0 {
		return fmt.Errorf("pull in %s: invalid amount", asset.Class)
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if asset.Class == model.AssetUnique {
		tokens := v.tokens(asset)
		key := amountOrID.String()
		holder, ok := tokens[key]
		if v.cfg.Strict && (!ok || holder != from) {
			return fmt.Errorf("pull in token %s: %w", key, ErrNotHolder)
		}
		if ok && holder == v.cfg.Custodian {
			return fmt.Errorf("pull in token %s: already in custody", key)
		}
		tokens[key] = v.cfg.Custodian
	} else {
		if v.cfg.Strict {
			if err := v.move(asset, from, v.cfg.Custodian, amountOrID); err != nil {
				return fmt.Errorf("pull in %s: %w", asset.Class, err)
			}
		} else {
			bal := v.balance(asset, v.cfg.Custodian)
			bal.Add(bal, amountOrID)
		}
	}

	v.logger.Debug("custody pull in",
		zap.String("asset", asset.Key()),
		zap.String("from", from.Hex()),
		zap.String("amount_or_id", amountOrID.String()),
	)
	return nil
}

// PushOut returns an asset from custody to a recipient.
func (v *Vault) PushOut(ctx context.Context, asset model.Asset, to common.Address, amountOrID *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amountOrID == nil || amountOrID.Sign() < 0 {
		return fmt.Errorf("push out %s: invalid amount", asset.Class)
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if asset.Class == model.AssetUnique {
		tokens := v.tokens(asset)
		key := amountOrID.String()
		if holder, ok := tokens[key]; !ok || holder != v.cfg.Custodian {
			return fmt.Errorf("push out token %s: %w", key, ErrNotHolder)
		}
		tokens[key] = to
	} else if err := v.move(asset, v.cfg.Custodian, to, amountOrID); err != nil {
		return fmt.Errorf("push out %s: %w", asset.Class, err)
	}

	v.logger.Debug("custody push out",
		zap.String("asset", asset.Key()),
		zap.String("to", to.Hex()),
		zap.String("amount_or_id", amountOrID.String()),
	)
	return nil
}

func (v *Vault) move(asset model.Asset, from, to common.Address, amount *big.Int) error {
	src := v.balance(asset, from)
	if src.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	src.Sub(src, amount)
	dst := v.balance(asset, to)
	dst.Add(dst, amount)
	return nil
}

func (v *Vault) balance(asset model.Asset, holder common.Address) *big.Int {
	key := asset.Key()
	book, ok := v.balances[key]
	if !ok {
		book = make(map[common.Address]*big.Int)
		v.balances[key] = book
	}
	bal, ok := book[holder]
	if !ok {
		bal = new(big.Int)
		book[holder] = bal
	}
	return bal
}

func (v *Vault) tokens(asset model.Asset) map[string]common.Address {
	key := asset.Key()
	book, ok := v.holders[key]
	if !ok {
		book = make(map[string]common.Address)
		v.holders[key] = book
	}
	return book
}
