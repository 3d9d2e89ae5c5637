package ownership

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"stakerLedger/internal/errs"
)

// TransferPolicy reports whether a position may change hands at the moment
// of the call. It is consulted on every transfer and never cached.
type TransferPolicy interface {
	Transferable(positionID uint64) (bool, error)
}

// PolicyFunc adapts a function to TransferPolicy.
type PolicyFunc func(positionID uint64) (bool, error)

func (f PolicyFunc) Transferable(positionID uint64) (bool, error) {
	return f(positionID)
}

// Registry maps live position ids to their current holder. Burned ids are
// retired and can never be minted again. Registry is not safe for concurrent
// use; the ledger serializes access.
type Registry struct {
	owners  map[uint64]common.Address
	retired map[uint64]struct{}
	policy  TransferPolicy
}

func NewRegistry(policy TransferPolicy) *Registry {
	return &Registry{
		owners:  make(map[uint64]common.Address),
		retired: make(map[uint64]struct{}),
		policy:  policy,
	}
}

// OwnerOf returns the current holder of a live position.
func (r *Registry) OwnerOf(positionID uint64) (common.Address, error) {
	owner, ok := r.owners[positionID]
	if !ok {
		return common.Address{}, fmt.Errorf("position %d: %w", positionID, errs.ErrPositionNotFound)
	}
	return owner, nil
}

// Live returns the number of positions currently held.
func (r *Registry) Live() int {
	return len(r.owners)
}

// CheckMint validates a mint without applying it.
func (r *Registry) CheckMint(positionID uint64, owner common.Address) error {
	if owner == (common.Address{}) {
		return fmt.Errorf("mint position %d to null address: %w", positionID, errs.ErrInvalidRecipient)
	}
	if _, ok := r.owners[positionID]; ok {
		return fmt.Errorf("position %d already minted", positionID)
	}
	if _, ok := r.retired[positionID]; ok {
		return fmt.Errorf("position %d is retired", positionID)
	}
	return nil
}

// Mint assigns the initial holder of a new position.
func (r *Registry) Mint(positionID uint64, owner common.Address) error {
	if err := r.CheckMint(positionID, owner); err != nil {
		return err
	}
	r.owners[positionID] = owner
	return nil
}

// Burn removes the holder mapping and retires the id. It returns the last holder.
func (r *Registry) Burn(positionID uint64) (common.Address, error) {
	owner, err := r.OwnerOf(positionID)
	if err != nil {
		return common.Address{}, err
	}
	delete(r.owners, positionID)
	r.retired[positionID] = struct{}{}
	return owner, nil
}

// CheckTransfer validates a transfer initiated by caller without applying it.
// Order: existence, caller is holder, from is holder, recipient, pool policy.
func (r *Registry) CheckTransfer(positionID uint64, caller, from, to common.Address) error {
	owner, err := r.OwnerOf(positionID)
	if err != nil {
		return err
	}
	if caller != owner {
		return &errs.NotAuthorizedError{Required: owner, Caller: caller}
	}
	if from != owner {
		return &errs.NotAuthorizedError{Required: owner, Caller: from}
	}
	if to == (common.Address{}) {
		return fmt.Errorf("transfer position %d to null address: %w", positionID, errs.ErrInvalidRecipient)
	}
	if r.policy != nil {
		ok, err := r.policy.Transferable(positionID)
		if err != nil {
			return err
		}
		if !ok {
			return &errs.PositionNotTransferableError{PositionID: positionID}
		}
	}
	return nil
}

// Transfer moves a position to a new holder.
func (r *Registry) Transfer(positionID uint64, caller, from, to common.Address) error {
	if err := r.CheckTransfer(positionID, caller, from, to); err != nil {
		return err
	}
	r.owners[positionID] = to
	return nil
}

// Load replaces the registry content with persisted holders and retired ids.
func (r *Registry) Load(owners map[uint64]common.Address, retired []uint64) {
	r.owners = make(map[uint64]common.Address, len(owners))
	for id, owner := range owners {
		r.owners[id] = owner
	}
	r.retired = make(map[uint64]struct{}, len(retired))
	for _, id := range retired {
		r.retired[id] = struct{}{}
	}
}
