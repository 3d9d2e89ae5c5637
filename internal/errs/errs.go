// Package errs holds the ledger's error taxonomy. Sentinels are matched with
// errors.Is, diagnostic-carrying kinds with errors.As.
package errs

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAssetClass    = errors.New("invalid asset class")
	ErrInvalidConfiguration = errors.New("invalid pool configuration")
	ErrNothingToStake       = errors.New("nothing to stake")
	ErrPoolNotFound         = errors.New("pool not found")
	ErrPositionNotFound     = errors.New("position not found")
	ErrInvalidRecipient     = errors.New("invalid recipient")
)

// NotAuthorizedError is returned when the caller is not the administrator of
// a pool or the holder of a position.
type NotAuthorizedError struct {
	Required common.Address
	Caller   common.Address
}

func (e *NotAuthorizedError) Error() string {
	return fmt.Sprintf("not authorized: required %s, caller %s", e.Required.Hex(), e.Caller.Hex())
}

// WrongAssetClassError is returned when a stake call does not match the
// asset class declared by the pool.
type WrongAssetClassError struct {
	PoolID    uint64
	PoolClass uint16
	Supplied  uint16
}

func (e *WrongAssetClassError) Error() string {
	return fmt.Sprintf("wrong asset class for pool %d: pool %d, supplied %d", e.PoolID, e.PoolClass, e.Supplied)
}

// LockupNotExpiredError carries the timestamp at which the lockup ends.
type LockupNotExpiredError struct {
	ExpiresAt uint64
}

func (e *LockupNotExpiredError) Error() string {
	return fmt.Sprintf("lockup not expired: expires at %d", e.ExpiresAt)
}

// InitiateUnstakeFirstError carries the pool's current cooldown length.
type InitiateUnstakeFirstError struct {
	CooldownSeconds uint64
}

func (e *InitiateUnstakeFirstError) Error() string {
	return fmt.Sprintf("initiate unstake first: cooldown %ds", e.CooldownSeconds)
}

// PositionNotTransferableError is returned when the owning pool currently
// forbids transfers.
type PositionNotTransferableError struct {
	PositionID uint64
}

func (e *PositionNotTransferableError) Error() string {
	return fmt.Sprintf("position %d not transferable", e.PositionID)
}

// Kind names the error for transports and logs. Unknown errors map to
// "Internal".
func Kind(err error) string {
	var (
		notAuthorized   *NotAuthorizedError
		wrongClass      *WrongAssetClassError
		lockup          *LockupNotExpiredError
		initiateFirst   *InitiateUnstakeFirstError
		notTransferable *PositionNotTransferableError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidAssetClass):
		return "InvalidAssetClass"
	case errors.Is(err, ErrInvalidConfiguration):
		return "InvalidConfiguration"
	case errors.Is(err, ErrNothingToStake):
		return "NothingToStake"
	case errors.Is(err, ErrPoolNotFound):
		return "PoolNotFound"
	case errors.Is(err, ErrPositionNotFound):
		return "PositionNotFound"
	case errors.Is(err, ErrInvalidRecipient):
		return "InvalidRecipient"
	case errors.As(err, &notAuthorized):
		return "NotAuthorized"
	case errors.As(err, &wrongClass):
		return "WrongAssetClass"
	case errors.As(err, &lockup):
		return "LockupNotExpired"
	case errors.As(err, &initiateFirst):
		return "InitiateUnstakeFirst"
	case errors.As(err, &notTransferable):
		return "PositionNotTransferable"
	default:
		return "Internal"
	}
}
