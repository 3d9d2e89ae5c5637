package api

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"stakerLedger/internal/custody"
	"stakerLedger/internal/ledger"
)

const t0 = uint64(1_700_000_000)

var (
	custodian = common.HexToAddress("0x5000000000000000000000000000000000000005")
	admin     = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type testServer struct {
	server *Server
	clock  *ledger.ManualClock
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	clock := ledger.NewManualClock(t0)
	vault := custody.NewVault(custody.VaultConfig{Custodian: custodian}, nil)
	l, err := ledger.New(ledger.Config{Mover: vault, Clock: clock})
	require.NoError(t, err)
	return &testServer{server: NewServer(l, cfg, nil), clock: clock}
}

func (ts *testServer) do(t *testing.T, method, path string, caller common.Address, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if caller != (common.Address{}) {
		req.Header.Set(headerCaller, caller.Hex())
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	out := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func TestPoolLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t, Config{})

	code, body := ts.do(t, http.MethodPost, "/pools", admin, map[string]interface{}{
		"asset_class":      1,
		"lockup_seconds":   3600,
		"cooldown_seconds": 0,
		"administrator":    admin.Hex(),
	})
	require.Equal(t, http.StatusCreated, code, body)
	require.Equal(t, float64(0), body["pool_id"])

	code, body = ts.do(t, http.MethodGet, "/pools/0", common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "native", body["asset_class"])
	require.Equal(t, float64(3600), body["lockup_seconds"])

	code, body = ts.do(t, http.MethodPatch, "/pools/0", bob, map[string]interface{}{"lockup_seconds": 1})
	require.Equal(t, http.StatusForbidden, code)
	require.Equal(t, "NotAuthorized", body["error"])
	details := body["details"].(map[string]interface{})
	require.Equal(t, admin.Hex(), details["required"])
	require.Equal(t, bob.Hex(), details["caller"])

	code, body = ts.do(t, http.MethodPatch, "/pools/0", admin, map[string]interface{}{"transferable": true})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["transferable"])
	require.Equal(t, float64(3600), body["lockup_seconds"])

	code, body = ts.do(t, http.MethodPatch, "/pools/0", admin, nil)
	require.Equal(t, http.StatusOK, code, body)
	require.Equal(t, true, body["transferable"])
	require.Equal(t, float64(3600), body["lockup_seconds"])

	code, body = ts.do(t, http.MethodPost, "/pools/0/administrator", admin, map[string]interface{}{"administrator": bob.Hex()})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, bob.Hex(), body["administrator"])

	code, _ = ts.do(t, http.MethodGet, "/pools/9", common.Address{}, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestStakeAndUnstakeOverHTTP(t *testing.T) {
	ts := newTestServer(t, Config{})
	code, _ := ts.do(t, http.MethodPost, "/pools", admin, map[string]interface{}{
		"asset_class":    1,
		"lockup_seconds": 3600,
		"administrator":  admin.Hex(),
	})
	require.Equal(t, http.StatusCreated, code)

	code, body := ts.do(t, http.MethodPost, "/pools/0/stake/erc20", alice, map[string]interface{}{"amount_or_token_id": "100"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "WrongAssetClass", body["error"])

	code, body = ts.do(t, http.MethodPost, "/pools/0/stake/native", alice, map[string]interface{}{"amount_or_token_id": "0"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "NothingToStake", body["error"])

	code, body = ts.do(t, http.MethodPost, "/pools/0/stake/native", alice, map[string]interface{}{"amount_or_token_id": "100"})
	require.Equal(t, http.StatusCreated, code, body)
	require.Equal(t, float64(0), body["position_id"])

	code, body = ts.do(t, http.MethodGet, "/positions/0", common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, alice.Hex(), body["owner"])
	require.Equal(t, "staked", body["state"])

	code, body = ts.do(t, http.MethodGet, "/pools/0/aggregates", common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "100", body["current_amount"])
	require.Equal(t, float64(1), body["current_positions"])

	code, body = ts.do(t, http.MethodGet, "/positions/0/metadata", common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "100", body["amount_or_token_id"])
	require.Equal(t, float64(3600), body["lockup_seconds"])

	code, body = ts.do(t, http.MethodPost, "/positions/0/unstake", bob, nil)
	require.Equal(t, http.StatusForbidden, code)

	code, body = ts.do(t, http.MethodPost, "/positions/0/unstake", alice, nil)
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "LockupNotExpired", body["error"])
	require.Equal(t, float64(t0+3600), body["details"].(map[string]interface{})["expires_at"])

	ts.clock.Advance(3600)
	code, body = ts.do(t, http.MethodPost, "/positions/0/unstake", alice, nil)
	require.Equal(t, http.StatusOK, code, body)

	code, body = ts.do(t, http.MethodGet, "/positions/0/owner", common.Address{}, nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "PositionNotFound", body["error"])

	code, body = ts.do(t, http.MethodGet, "/stats", common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(1), body["total_pools"])
	require.Equal(t, float64(1), body["total_positions"])
}

func TestTransferOverHTTP(t *testing.T) {
	ts := newTestServer(t, Config{})
	code, _ := ts.do(t, http.MethodPost, "/pools", admin, map[string]interface{}{
		"asset_class":   1,
		"administrator": admin.Hex(),
	})
	require.Equal(t, http.StatusCreated, code)
	code, _ = ts.do(t, http.MethodPost, "/pools/0/stake/native", alice, map[string]interface{}{"amount_or_token_id": "5"})
	require.Equal(t, http.StatusCreated, code)

	code, body := ts.do(t, http.MethodPost, "/positions/0/transfer", alice, map[string]interface{}{"to": bob.Hex()})
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "PositionNotTransferable", body["error"])

	code, _ = ts.do(t, http.MethodPatch, "/pools/0", admin, map[string]interface{}{"transferable": true})
	require.Equal(t, http.StatusOK, code)

	code, body = ts.do(t, http.MethodPost, "/positions/0/transfer", alice, map[string]interface{}{"to": "0x0000000000000000000000000000000000000000"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "InvalidRecipient", body["error"])

	code, body = ts.do(t, http.MethodPost, "/positions/0/transfer", alice, map[string]interface{}{"to": bob.Hex()})
	require.Equal(t, http.StatusOK, code, body)

	code, body = ts.do(t, http.MethodGet, "/pools/0/positions", common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	positions := body["positions"].([]interface{})
	require.Len(t, positions, 1)
	require.Equal(t, bob.Hex(), positions[0].(map[string]interface{})["owner"])
}

func TestRequestValidation(t *testing.T) {
	ts := newTestServer(t, Config{})

	code, body := ts.do(t, http.MethodPost, "/pools", common.Address{}, map[string]interface{}{"asset_class": 1})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "Unauthenticated", body["error"])

	code, _ = ts.do(t, http.MethodGet, "/pools/abc", common.Address{}, nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, body = ts.do(t, http.MethodPost, "/pools", admin, map[string]interface{}{"asset_class": 7})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "InvalidAssetClass", body["error"])

	code, _ = ts.do(t, http.MethodPost, "/pools/0/stake/bitcoin", alice, map[string]interface{}{"amount_or_token_id": "1"})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestSignedRequests(t *testing.T) {
	ts := newTestServer(t, Config{RequireSignatures: true, SignatureMaxSkew: time.Minute})
	now := time.Unix(int64(t0), 0)
	ts.server.now = func() time.Time { return now }

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	send := func(method, path string, body []byte, stamp time.Time, bumpV bool) *httptest.ResponseRecorder {
		ts64 := strconv.FormatInt(stamp.Unix(), 10)
		digest := crypto.Keccak256Hash(SigningPayload(method, path, ts64, body))
		sig, err := crypto.Sign(digest.Bytes(), key)
		require.NoError(t, err)
		if bumpV {
			sig[crypto.RecoveryIDOffset] += 27
		}
		req := httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(headerSignature, hexutil.Encode(sig))
		req.Header.Set(headerTimestamp, ts64)
		rec := httptest.NewRecorder()
		ts.server.Handler().ServeHTTP(rec, req)
		return rec
	}

	create := []byte(`{"asset_class":1,"administrator":"` + signer.Hex() + `"}`)
	rec := send(http.MethodPost, "/pools", create, now, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Only the recovered signer administers the pool.
	rec = send(http.MethodPatch, "/pools/0", []byte(`{"lockup_seconds":60}`), now, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view poolView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, uint64(60), view.LockupSeconds)

	rec = send(http.MethodPatch, "/pools/0", []byte(`{"lockup_seconds":1}`), now.Add(-2*time.Minute), false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Header-supplied callers are ignored in signature mode.
	req := httptest.NewRequest(http.MethodPatch, "/pools/0", bytes.NewReader([]byte(`{"lockup_seconds":1}`)))
	req.Header.Set(headerCaller, signer.Hex())
	rec = httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReadLimitIgnoresCallerHeader(t *testing.T) {
	ts := newTestServer(t, Config{RateLimit: 0.001, RateBurst: 1})

	allowed := 0
	for i := 0; i < 50; i++ {
		caller := common.BigToAddress(big.NewInt(int64(i + 1)))
		code, _ := ts.do(t, http.MethodGet, "/stats", caller, nil)
		if code == http.StatusOK {
			allowed++
		} else {
			require.Equal(t, http.StatusTooManyRequests, code)
		}
	}
	require.Equal(t, 1, allowed)
	require.Equal(t, 1, ts.server.limiter.size())
}

func TestWriteLimitPerCaller(t *testing.T) {
	ts := newTestServer(t, Config{RateLimit: 0.001, RateBurst: 2})
	for i := 0; i < 2; i++ {
		code, _ := ts.do(t, http.MethodPost, "/positions/9/unstake", alice, nil)
		require.Equal(t, http.StatusNotFound, code)
	}
	code, body := ts.do(t, http.MethodPost, "/positions/9/unstake", alice, nil)
	require.Equal(t, http.StatusTooManyRequests, code)
	require.Equal(t, "RateLimited", body["error"])

	code, _ = ts.do(t, http.MethodPost, "/positions/9/unstake", bob, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestLimiterSetIsBounded(t *testing.T) {
	set := newLimiterSet(rate.Limit(0.001), 1, 2)
	require.True(t, set.get("a").Allow())
	require.True(t, set.get("b").Allow())

	// Both buckets are drained, so nothing can be evicted and newcomers
	// share the overflow bucket.
	require.True(t, set.get("c").Allow())
	require.False(t, set.get("d").Allow())
	require.Equal(t, 2, set.size())
	require.False(t, set.get("a").Allow())
}

func TestLimiterSetEvictsRefilledBuckets(t *testing.T) {
	set := newLimiterSet(rate.Limit(0.001), 1, 2)
	// Untouched buckets are full and may be dropped.
	set.get("a")
	set.get("b")
	require.True(t, set.get("c").Allow())
	require.Equal(t, 1, set.size())
}
