package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"stakerLedger/internal/custody"
	"stakerLedger/internal/events"
	"stakerLedger/internal/model"
	"stakerLedger/internal/pool"
	"stakerLedger/internal/storage"
)

const t0 = uint64(1_700_000_000)

var (
	custodian = common.HexToAddress("0x5000000000000000000000000000000000000005")
	admin     = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol     = common.HexToAddress("0x00000000000000000000000000000000000ca201")
	erc20     = common.HexToAddress("0x2000000000000000000000000000000000000020")
	erc721    = common.HexToAddress("0x7210000000000000000000000000000000000721")
	erc1155   = common.HexToAddress("0x1155000000000000000000000000000000001155")
)

type harness struct {
	ledger *Ledger
	clock  *ManualClock
	vault  *custody.Vault
	mover  *scriptedMover
	store  *flakyStore
	events *events.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	vault := custody.NewVault(custody.VaultConfig{Custodian: custodian, Strict: true}, nil)
	router := custody.NewRouter()
	for _, class := range []model.AssetClass{model.AssetNative, model.AssetFungible, model.AssetUnique, model.AssetSemiFungible} {
		router.Register(class, vault)
	}
	h := &harness{
		clock:  NewManualClock(t0),
		vault:  vault,
		mover:  &scriptedMover{next: router},
		store:  &flakyStore{MemoryStore: storage.NewMemoryStore()},
		events: events.NewRecorder(),
	}
	l, err := New(Config{Mover: h.mover, Clock: h.clock, Store: h.store, Sink: h.events})
	require.NoError(t, err)
	h.ledger = l
	return h
}

func (h *harness) createPool(t *testing.T, params pool.CreateParams) uint64 {
	t.Helper()
	if params.Administrator == (common.Address{}) {
		params.Administrator = admin
	}
	id, err := h.ledger.CreatePool(context.Background(), admin, params)
	require.NoError(t, err)
	return id
}

func (h *harness) fungiblePool(t *testing.T, lockup, cooldown uint64, transferable bool) uint64 {
	return h.createPool(t, pool.CreateParams{
		AssetClass:      model.AssetFungible,
		AssetAddress:    erc20,
		Transferable:    transferable,
		LockupSeconds:   lockup,
		CooldownSeconds: cooldown,
	})
}

func (h *harness) nativePool(t *testing.T, lockup, cooldown uint64) uint64 {
	return h.createPool(t, pool.CreateParams{
		AssetClass:      model.AssetNative,
		LockupSeconds:   lockup,
		CooldownSeconds: cooldown,
	})
}

func (h *harness) fund(class model.AssetClass, address common.Address, subID *big.Int, holder common.Address, amountOrID int64) {
	h.vault.Credit(model.Asset{Class: class, Address: address, SubID: subID}, holder, big.NewInt(amountOrID))
}

func (h *harness) balance(class model.AssetClass, address common.Address, subID *big.Int, holder common.Address) string {
	return h.vault.BalanceOf(model.Asset{Class: class, Address: address, SubID: subID}, holder).String()
}

func (h *harness) stakeERC20(t *testing.T, holder common.Address, poolID uint64, amount int64) uint64 {
	t.Helper()
	h.fund(model.AssetFungible, erc20, nil, holder, amount)
	id, err := h.ledger.StakeERC20(context.Background(), holder, holder, poolID, big.NewInt(amount))
	require.NoError(t, err)
	return id
}

// scriptedMover forwards to next unless told to fail.
type scriptedMover struct {
	next     custody.Mover
	mu       sync.Mutex
	failPull bool
	failPush bool
	calls    []string
}

var errMoverDown = errors.New("mover down")

func (m *scriptedMover) PullIn(ctx context.Context, asset model.Asset, from common.Address, amountOrID *big.Int) error {
	m.mu.Lock()
	m.calls = append(m.calls, "pull")
	fail := m.failPull
	m.mu.Unlock()
	if fail {
		return errMoverDown
	}
	return m.next.PullIn(ctx, asset, from, amountOrID)
}

func (m *scriptedMover) PushOut(ctx context.Context, asset model.Asset, to common.Address, amountOrID *big.Int) error {
	m.mu.Lock()
	m.calls = append(m.calls, "push")
	fail := m.failPush
	m.mu.Unlock()
	if fail {
		return errMoverDown
	}
	return m.next.PushOut(ctx, asset, to, amountOrID)
}

func (m *scriptedMover) set(failPull, failPush bool) {
	m.mu.Lock()
	m.failPull, m.failPush = failPull, failPush
	m.mu.Unlock()
}

// flakyStore can be told to fail commits.
type flakyStore struct {
	*storage.MemoryStore
	failCommit bool
}

var errCommitFailed = errors.New("commit failed")

func (s *flakyStore) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.MemoryStore.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &flakyTx{Tx: tx, store: s}, nil
}

type flakyTx struct {
	storage.Tx
	store *flakyStore
}

func (tx *flakyTx) Commit(ctx context.Context) error {
	if tx.store.failCommit {
		_ = tx.Tx.Rollback(ctx)
		return errCommitFailed
	}
	return tx.Tx.Commit(ctx)
}

type failingSink struct{}

func (failingSink) Publish(context.Context, model.Event) error { return errors.New("sink down") }
func (failingSink) Close() error                               { return nil }
