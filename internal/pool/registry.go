package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakerLedger/internal/errs"
	"stakerLedger/internal/model"
)

// CreateParams are the arguments of createPool.
type CreateParams struct {
	AssetClass      model.AssetClass
	AssetAddress    common.Address
	AssetSubID      *big.Int
	Transferable    bool
	LockupSeconds   uint64
	CooldownSeconds uint64
	Administrator   common.Address
}

// ConfigUpdate selects which configuration fields to overwrite. A zero
// value changes nothing.
type ConfigUpdate struct {
	ChangeTransferable bool
	Transferable       bool
	ChangeLockup       bool
	LockupSeconds      uint64
	ChangeCooldown     bool
	CooldownSeconds    uint64
}

// Registry stores pools indexed by their sequential id.
//
// Prepare* methods never mutate the registry: they return the record as it
// would look after the operation, and Commit installs it. The ledger uses the
// gap between the two to persist and move assets before anything becomes
// visible. Registry is not safe for concurrent use; the ledger serializes
// access.
type Registry struct {
	pools []model.Pool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Len returns the number of pools ever created.
func (r *Registry) Len() uint64 {
	return uint64(len(r.pools))
}

// Get returns a copy of the pool.
func (r *Registry) Get(id uint64) (model.Pool, error) {
	if id >= uint64(len(r.pools)) {
		return model.Pool{}, fmt.Errorf("pool %d: %w", id, errs.ErrPoolNotFound)
	}
	return r.pools[id].Clone(), nil
}

// All returns copies of every pool in id order.
func (r *Registry) All() []model.Pool {
	out := make([]model.Pool, 0, len(r.pools))
	for _, p := range r.pools {
		out = append(out, p.Clone())
	}
	return out
}

// ValidateAsset checks the asset class, address and sub-id combination.
func ValidateAsset(class model.AssetClass, address common.Address, subID *big.Int) error {
	if !class.Valid() {
		return fmt.Errorf("asset class %d: %w", uint16(class), errs.ErrInvalidAssetClass)
	}
	subIsZero := subID == nil || subID.Sign() == 0
	if subID != nil && subID.Sign() < 0 {
		return fmt.Errorf("negative sub id: %w", errs.ErrInvalidConfiguration)
	}
	nullAddress := address == (common.Address{})

	switch class {
	case model.AssetNative:
		if !nullAddress || !subIsZero {
			return fmt.Errorf("native pool requires null address and zero sub id: %w", errs.ErrInvalidConfiguration)
		}
	case model.AssetFungible, model.AssetUnique:
		if nullAddress || !subIsZero {
			return fmt.Errorf("%s pool requires token address and zero sub id: %w", class, errs.ErrInvalidConfiguration)
		}
	case model.AssetSemiFungible:
		if nullAddress {
			return fmt.Errorf("erc1155 pool requires token address: %w", errs.ErrInvalidConfiguration)
		}
	}
	return nil
}

// PrepareCreate validates the parameters and returns the pool that would be
// assigned the next id.
func (r *Registry) PrepareCreate(params CreateParams) (model.Pool, error) {
	if err := ValidateAsset(params.AssetClass, params.AssetAddress, params.AssetSubID); err != nil {
		return model.Pool{}, err
	}
	subID := new(big.Int)
	if params.AssetSubID != nil {
		subID.Set(params.AssetSubID)
	}
	return model.Pool{
		ID:              r.Len(),
		AssetClass:      params.AssetClass,
		AssetAddress:    params.AssetAddress,
		AssetSubID:      subID,
		Transferable:    params.Transferable,
		LockupSeconds:   params.LockupSeconds,
		CooldownSeconds: params.CooldownSeconds,
		Administrator:   params.Administrator,
		TotalStaked:     new(big.Int),
	}, nil
}

// PrepareConfiguration applies the selected changes if caller administers the pool.
func (r *Registry) PrepareConfiguration(id uint64, caller common.Address, update ConfigUpdate) (model.Pool, error) {
	p, err := r.administered(id, caller)
	if err != nil {
		return model.Pool{}, err
	}
	if update.ChangeTransferable {
		p.Transferable = update.Transferable
	}
	if update.ChangeLockup {
		p.LockupSeconds = update.LockupSeconds
	}
	if update.ChangeCooldown {
		p.CooldownSeconds = update.CooldownSeconds
	}
	return p, nil
}

// PrepareAdministrationTransfer hands the pool to a new administrator.
func (r *Registry) PrepareAdministrationTransfer(id uint64, caller, newAdministrator common.Address) (model.Pool, error) {
	p, err := r.administered(id, caller)
	if err != nil {
		return model.Pool{}, err
	}
	p.Administrator = newAdministrator
	return p, nil
}

// PrepareOpen adds a position worth weight to the pool aggregates.
func (r *Registry) PrepareOpen(id uint64, weight *big.Int) (model.Pool, error) {
	p, err := r.Get(id)
	if err != nil {
		return model.Pool{}, err
	}
	p.TotalStaked.Add(p.TotalStaked, weight)
	p.OpenPositions++
	return p, nil
}

// PrepareClose removes a position worth weight from the pool aggregates.
func (r *Registry) PrepareClose(id uint64, weight *big.Int) (model.Pool, error) {
	p, err := r.Get(id)
	if err != nil {
		return model.Pool{}, err
	}
	if p.OpenPositions == 0 || p.TotalStaked.Cmp(weight) < 0 {
		return model.Pool{}, fmt.Errorf("pool %d aggregates underflow", id)
	}
	p.TotalStaked.Sub(p.TotalStaked, weight)
	p.OpenPositions--
	return p, nil
}

// Commit installs a prepared pool. New pools must carry the next id.
func (r *Registry) Commit(p model.Pool) error {
	switch {
	case p.ID == r.Len():
		r.pools = append(r.pools, p.Clone())
	case p.ID < r.Len():
		r.pools[p.ID] = p.Clone()
	default:
		return fmt.Errorf("commit pool %d: next id is %d", p.ID, r.Len())
	}
	return nil
}

// Load replaces the registry content with persisted pools.
func (r *Registry) Load(pools []model.Pool) error {
	loaded := make([]model.Pool, 0, len(pools))
	for i, p := range pools {
		if p.ID != uint64(i) {
			return fmt.Errorf("load pools: expected id %d, got %d", i, p.ID)
		}
		loaded = append(loaded, p.Clone())
	}
	r.pools = loaded
	return nil
}

func (r *Registry) administered(id uint64, caller common.Address) (model.Pool, error) {
	p, err := r.Get(id)
	if err != nil {
		return model.Pool{}, err
	}
	if p.Administrator != caller {
		return model.Pool{}, &errs.NotAuthorizedError{Required: p.Administrator, Caller: caller}
	}
	return p, nil
}
