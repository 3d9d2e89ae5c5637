package ownership

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"stakerLedger/internal/errs"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func TestRegistryMintAndBurn(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Mint(0, alice))

	owner, err := r.OwnerOf(0)
	require.NoError(t, err)
	require.Equal(t, alice, owner)

	require.Error(t, r.Mint(0, bob))
	require.ErrorIs(t, r.Mint(1, common.Address{}), errs.ErrInvalidRecipient)

	last, err := r.Burn(0)
	require.NoError(t, err)
	require.Equal(t, alice, last)

	_, err = r.OwnerOf(0)
	require.ErrorIs(t, err, errs.ErrPositionNotFound)
	_, err = r.Burn(0)
	require.ErrorIs(t, err, errs.ErrPositionNotFound)

	// Burned ids stay retired.
	require.Error(t, r.Mint(0, alice))
	require.Equal(t, 0, r.Live())
}

func TestRegistryTransferFollowsLivePolicy(t *testing.T) {
	transferable := true
	r := NewRegistry(PolicyFunc(func(uint64) (bool, error) { return transferable, nil }))
	require.NoError(t, r.Mint(7, alice))

	require.NoError(t, r.Transfer(7, alice, alice, bob))
	owner, err := r.OwnerOf(7)
	require.NoError(t, err)
	require.Equal(t, bob, owner)

	transferable = false
	err = r.Transfer(7, bob, bob, alice)
	var notTransferable *errs.PositionNotTransferableError
	require.True(t, errors.As(err, &notTransferable))
	require.Equal(t, uint64(7), notTransferable.PositionID)

	transferable = true
	require.NoError(t, r.Transfer(7, bob, bob, alice))
}

func TestRegistryTransferAuthorization(t *testing.T) {
	r := NewRegistry(PolicyFunc(func(uint64) (bool, error) { return true, nil }))
	require.NoError(t, r.Mint(1, alice))

	var notAuthorized *errs.NotAuthorizedError
	err := r.Transfer(1, bob, alice, bob)
	require.True(t, errors.As(err, &notAuthorized))
	require.Equal(t, alice, notAuthorized.Required)
	require.Equal(t, bob, notAuthorized.Caller)

	err = r.Transfer(1, alice, bob, alice)
	require.True(t, errors.As(err, &notAuthorized))

	require.ErrorIs(t, r.Transfer(1, alice, alice, common.Address{}), errs.ErrInvalidRecipient)
	require.ErrorIs(t, r.Transfer(2, alice, alice, bob), errs.ErrPositionNotFound)
}

func TestRegistryLoad(t *testing.T) {
	r := NewRegistry(nil)
	r.Load(map[uint64]common.Address{2: bob}, []uint64{0, 1})

	owner, err := r.OwnerOf(2)
	require.NoError(t, err)
	require.Equal(t, bob, owner)
	require.Error(t, r.Mint(1, alice))
	require.NoError(t, r.Mint(3, alice))
}
