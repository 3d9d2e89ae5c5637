package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadServeDefaults(t *testing.T) {
	inTempDir(t)
	cfg, err := LoadServe("", nil)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Listen)
	require.Equal(t, "memory", cfg.Store)
	require.Equal(t, "system", cfg.Clock)
	require.Equal(t, 2*time.Minute, cfg.SignatureMaxSkew)
	require.False(t, cfg.RequireSignatures)
}

func TestLoadServeFlagsAndEnv(t *testing.T) {
	inTempDir(t)
	t.Setenv("STAKER_KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("STAKER_RATE_LIMIT", "2.5")

	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("store", "memory", "")
	flags.String("pg-dsn", "", "")
	require.NoError(t, flags.Parse([]string{"--store=postgres", "--pg-dsn=postgres://localhost/staker"}))

	cfg, err := LoadServe("", flags)
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Store)
	require.Equal(t, "postgres://localhost/staker", cfg.PGDSN)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 2.5, cfg.RateLimit)
}

func TestLoadServeValidation(t *testing.T) {
	inTempDir(t)
	t.Setenv("STAKER_STORE", "postgres")
	_, err := LoadServe("", nil)
	require.ErrorContains(t, err, "pg-dsn")

	t.Setenv("STAKER_STORE", "memory")
	t.Setenv("STAKER_CLOCK", "chain")
	_, err = LoadServe("", nil)
	require.ErrorContains(t, err, "rpc")

	t.Setenv("STAKER_CLOCK", "sundial")
	_, err = LoadServe("", nil)
	require.ErrorContains(t, err, "unknown clock")
}

func TestLoadIndexFromFile(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "index.yaml")
	content := "rpc: http://localhost:8545\ncontract:\n  - 0xa6B0461b7E54Fa342Be6320D4938295A81f82Cd3\nfrom: 100\nbatch-size: 50\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadIndex(path, nil)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8545", cfg.RPCURL)
	require.Equal(t, []common.Address{common.HexToAddress("0xa6B0461b7E54Fa342Be6320D4938295A81f82Cd3")}, cfg.Contracts)
	require.Equal(t, uint64(100), cfg.FromBlock)
	require.Equal(t, uint64(50), cfg.BatchSize)
	require.True(t, cfg.CheckpointEnabled)
	require.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)

	_, err = LoadIndex("", nil)
	require.ErrorContains(t, err, "rpc url is required")
}

func TestLoadIndexContracts(t *testing.T) {
	inTempDir(t)
	t.Setenv("STAKER_RPC", "http://localhost:8545")

	t.Setenv("STAKER_CONTRACT", "0xa6B0461b7E54Fa342Be6320D4938295A81f82Cd3, ,0xA6B0461B7E54FA342BE6320D4938295A81F82CD3,0x00000000000000000000000000000000000000aa")
	cfg, err := LoadIndex("", nil)
	require.NoError(t, err)
	require.Equal(t, []common.Address{
		common.HexToAddress("0xa6B0461b7E54Fa342Be6320D4938295A81f82Cd3"),
		common.HexToAddress("0xaa"),
	}, cfg.Contracts)

	t.Setenv("STAKER_CONTRACT", "staker")
	_, err = LoadIndex("", nil)
	require.ErrorContains(t, err, "not a hex address")

	t.Setenv("STAKER_CONTRACT", " , ")
	_, err = LoadIndex("", nil)
	require.ErrorContains(t, err, "contract address is required")
}
