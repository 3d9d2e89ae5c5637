package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pool is a staking pool record together with its live aggregates.
type Pool struct {
	ID              uint64
	AssetClass      AssetClass
	AssetAddress    common.Address
	AssetSubID      *big.Int
	Transferable    bool
	LockupSeconds   uint64
	CooldownSeconds uint64
	Administrator   common.Address
	TotalStaked     *big.Int
	OpenPositions   uint64
}

// Asset returns the custodied asset of the pool.
func (p Pool) Asset() Asset {
	return Asset{Class: p.AssetClass, Address: p.AssetAddress, SubID: p.AssetSubID}
}

// Clone returns a deep copy so callers never share big.Int values.
func (p Pool) Clone() Pool {
	out := p
	out.AssetSubID = cloneInt(p.AssetSubID)
	out.TotalStaked = cloneInt(p.TotalStaked)
	return out
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
