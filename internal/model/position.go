package model

import "math/big"

// PositionState is the lifecycle state of a position.
type PositionState string

const (
	StateStaked    PositionState = "staked"
	StateUnstaking PositionState = "unstaking"
	StateBurned    PositionState = "burned"
)

// Position is a single deposit into a pool.
type Position struct {
	ID                 uint64
	PoolID             uint64
	AmountOrID         *big.Int
	StakeTimestamp     uint64
	UnstakeInitiatedAt uint64
	Burned             bool
}

// State derives the lifecycle state from the recorded fields.
func (p Position) State() PositionState {
	switch {
	case p.Burned:
		return StateBurned
	case p.UnstakeInitiatedAt != 0:
		return StateUnstaking
	default:
		return StateStaked
	}
}

func (p Position) Clone() Position {
	out := p
	out.AmountOrID = cloneInt(p.AmountOrID)
	return out
}

// PositionMetadata is the read-only view handed to presentation code.
type PositionMetadata struct {
	PositionID     uint64 `json:"position_id"`
	PoolID         uint64 `json:"pool_id"`
	AmountOrID     string `json:"amount_or_token_id"`
	StakeTimestamp uint64 `json:"stake_timestamp"`
	LockupSeconds  uint64 `json:"lockup_seconds"`
}
