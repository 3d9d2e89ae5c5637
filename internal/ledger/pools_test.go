package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"stakerLedger/internal/errs"
	"stakerLedger/internal/model"
	"stakerLedger/internal/pool"
)

func TestCreatePoolAssignsNextID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	valid := []pool.CreateParams{
		{AssetClass: model.AssetNative},
		{AssetClass: model.AssetFungible, AssetAddress: erc20},
		{AssetClass: model.AssetUnique, AssetAddress: erc721},
		{AssetClass: model.AssetSemiFungible, AssetAddress: erc1155, AssetSubID: big.NewInt(0)},
		{AssetClass: model.AssetSemiFungible, AssetAddress: erc1155, AssetSubID: big.NewInt(7)},
	}
	for _, params := range valid {
		before := h.ledger.TotalPools()
		params.Administrator = admin
		id, err := h.ledger.CreatePool(ctx, bob, params)
		require.NoError(t, err)
		require.Equal(t, before, id)
		require.Equal(t, before+1, h.ledger.TotalPools())
	}

	created := h.events.Named(model.EventPoolCreated)
	require.Len(t, created, len(valid))
	require.Equal(t, model.PoolCreatedData{PoolID: 4, TokenType: 1155, TokenAddress: erc1155.Hex(), TokenID: "7"}, created[4].Data)
	require.Len(t, h.events.Named(model.EventPoolConfigured), len(valid))
}

func TestCreatePoolRejectsMismatchedAsset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		params pool.CreateParams
		want   error
	}{
		{"native with address", pool.CreateParams{AssetClass: model.AssetNative, AssetAddress: erc20}, errs.ErrInvalidConfiguration},
		{"native with sub id", pool.CreateParams{AssetClass: model.AssetNative, AssetSubID: big.NewInt(1)}, errs.ErrInvalidConfiguration},
		{"erc20 null address", pool.CreateParams{AssetClass: model.AssetFungible}, errs.ErrInvalidConfiguration},
		{"erc20 sub id", pool.CreateParams{AssetClass: model.AssetFungible, AssetAddress: erc20, AssetSubID: big.NewInt(1)}, errs.ErrInvalidConfiguration},
		{"erc721 sub id", pool.CreateParams{AssetClass: model.AssetUnique, AssetAddress: erc721, AssetSubID: big.NewInt(1)}, errs.ErrInvalidConfiguration},
		{"erc1155 null address", pool.CreateParams{AssetClass: model.AssetSemiFungible, AssetSubID: big.NewInt(1)}, errs.ErrInvalidConfiguration},
		{"unknown class", pool.CreateParams{AssetClass: model.AssetClass(2)}, errs.ErrInvalidAssetClass},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.ledger.CreatePool(ctx, admin, tc.params)
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, uint64(0), h.ledger.TotalPools())
		})
	}
	require.Empty(t, h.events.Events())
}

func TestUpdatePoolConfiguration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.fungiblePool(t, 3600, 300, true)
	h.events.Reset()

	err := h.ledger.UpdatePoolConfiguration(ctx, bob, id, pool.ConfigUpdate{ChangeLockup: true, LockupSeconds: 1})
	var notAuthorized *errs.NotAuthorizedError
	require.True(t, errors.As(err, &notAuthorized))
	require.Equal(t, admin, notAuthorized.Required)
	require.Equal(t, bob, notAuthorized.Caller)

	// No flags: succeeds and re-emits the current values.
	require.NoError(t, h.ledger.UpdatePoolConfiguration(ctx, admin, id, pool.ConfigUpdate{}))
	configured := h.events.Named(model.EventPoolConfigured)
	require.Len(t, configured, 1)
	require.Equal(t, model.PoolConfiguredData{
		PoolID: id, Administrator: admin.Hex(), Transferable: true, LockupSeconds: 3600, CooldownSeconds: 300,
	}, configured[0].Data)

	require.NoError(t, h.ledger.UpdatePoolConfiguration(ctx, admin, id, pool.ConfigUpdate{
		ChangeTransferable: true, Transferable: false,
		ChangeCooldown: true, CooldownSeconds: 0,
	}))
	p, err := h.ledger.Pool(id)
	require.NoError(t, err)
	require.False(t, p.Transferable)
	require.Equal(t, uint64(3600), p.LockupSeconds)
	require.Equal(t, uint64(0), p.CooldownSeconds)

	require.ErrorIs(t, h.ledger.UpdatePoolConfiguration(ctx, admin, 99, pool.ConfigUpdate{}), errs.ErrPoolNotFound)
}

func TestTransferPoolAdministration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.nativePool(t, 0, 0)
	second := h.nativePool(t, 0, 0)
	h.events.Reset()

	var notAuthorized *errs.NotAuthorizedError
	err := h.ledger.TransferPoolAdministration(ctx, bob, first, bob)
	require.True(t, errors.As(err, &notAuthorized))

	require.NoError(t, h.ledger.TransferPoolAdministration(ctx, admin, first, bob))
	configured := h.events.Named(model.EventPoolConfigured)
	require.Len(t, configured, 1)
	require.Equal(t, bob.Hex(), configured[0].Data.(model.PoolConfiguredData).Administrator)

	// The old administrator lost the pool, the new one did not gain the other.
	err = h.ledger.UpdatePoolConfiguration(ctx, admin, first, pool.ConfigUpdate{})
	require.True(t, errors.As(err, &notAuthorized))
	require.Equal(t, bob, notAuthorized.Required)
	require.NoError(t, h.ledger.UpdatePoolConfiguration(ctx, bob, first, pool.ConfigUpdate{ChangeLockup: true, LockupSeconds: 5}))
	err = h.ledger.UpdatePoolConfiguration(ctx, bob, second, pool.ConfigUpdate{})
	require.True(t, errors.As(err, &notAuthorized))

	// Handing it to the null address is accepted and locks the pool for good.
	require.NoError(t, h.ledger.TransferPoolAdministration(ctx, bob, first, common.Address{}))
	err = h.ledger.UpdatePoolConfiguration(ctx, bob, first, pool.ConfigUpdate{})
	require.True(t, errors.As(err, &notAuthorized))
}
