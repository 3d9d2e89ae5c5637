package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ServeConfig holds settings of the ledger service.
type ServeConfig struct {
	Listen            string
	MetricsListen     string
	Store             string
	PGDSN             string
	Clock             string
	RPCURL            string
	Custodian         string
	EventsOut         string
	KafkaBrokers      []string
	KafkaTopic        string
	RequireSignatures bool
	SignatureMaxSkew  time.Duration
	RateLimit         float64
	RateBurst         int
	MaxLimiters       int
	LogLevel          string
}

// IndexConfig holds settings of the chain indexer.
type IndexConfig struct {
	RPCURL            string
	Contracts         []common.Address
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	Out               string
	Errors            string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	RPCRateLimit      float64
	LogLevel          string
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("listen", ":8080")
		v.SetDefault("metrics-listen", ":9090")
		v.SetDefault("store", "memory")
		v.SetDefault("clock", "system")
		v.SetDefault("custodian", "0x0000000000000000000000000000000000005a1e")
		v.SetDefault("kafka-topic", "staker-events")
		v.SetDefault("require-signatures", false)
		v.SetDefault("signature-max-skew", 2*time.Minute)
		v.SetDefault("rate-limit", 0.0)
		v.SetDefault("rate-burst", 20)
		v.SetDefault("max-limiters", 10000)
		v.SetDefault("log-level", "info")
	})
	if err != nil {
		return ServeConfig{}, err
	}

	cfg := ServeConfig{
		Listen:            v.GetString("listen"),
		MetricsListen:     v.GetString("metrics-listen"),
		Store:             strings.ToLower(v.GetString("store")),
		PGDSN:             v.GetString("pg-dsn"),
		Clock:             strings.ToLower(v.GetString("clock")),
		RPCURL:            v.GetString("rpc"),
		Custodian:         v.GetString("custodian"),
		EventsOut:         v.GetString("events-out"),
		KafkaBrokers:      getStringSlice(v, "kafka-brokers"),
		KafkaTopic:        v.GetString("kafka-topic"),
		RequireSignatures: v.GetBool("require-signatures"),
		SignatureMaxSkew:  v.GetDuration("signature-max-skew"),
		RateLimit:         v.GetFloat64("rate-limit"),
		RateBurst:         v.GetInt("rate-burst"),
		MaxLimiters:       v.GetInt("max-limiters"),
		LogLevel:          v.GetString("log-level"),
	}
	return cfg, cfg.validate()
}

func (c ServeConfig) validate() error {
	switch c.Store {
	case "memory":
	case "postgres":
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q (memory, postgres)", c.Store)
	}
	switch c.Clock {
	case "system":
	case "chain":
		if c.RPCURL == "" {
			return fmt.Errorf("rpc is required for the chain clock")
		}
	default:
		return fmt.Errorf("unknown clock %q (system, chain)", c.Clock)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("kafka-topic is required when kafka-brokers is set")
	}
	return nil
}

// LoadIndex merges config file, environment variables, and flags into IndexConfig.
func LoadIndex(cfgFile string, flags *pflag.FlagSet) (IndexConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("batch-size", uint64(2000))
		v.SetDefault("out", "./data/staker_events.jsonl")
		v.SetDefault("errors", "./data/decode_errors.jsonl")
		v.SetDefault("checkpoint", "./data/checkpoint.json")
		v.SetDefault("checkpoint-enabled", true)
		v.SetDefault("max-retries", 5)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
		v.SetDefault("rpc-rate-limit", 0.0)
		v.SetDefault("log-level", "info")
	})
	if err != nil {
		return IndexConfig{}, err
	}

	cfg := IndexConfig{
		RPCURL:            v.GetString("rpc"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Out:               v.GetString("out"),
		Errors:            v.GetString("errors"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		RPCRateLimit:      v.GetFloat64("rpc-rate-limit"),
		LogLevel:          v.GetString("log-level"),
	}
	if cfg.RPCURL == "" {
		return cfg, fmt.Errorf("rpc url is required")
	}
	if cfg.Contracts, err = contractAddresses(getStringSlice(v, "contract")); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// contractAddresses parses the watched contracts, dropping repeats so the
// log filter never names the same address twice.
func contractAddresses(raw []string) ([]common.Address, error) {
	seen := make(map[common.Address]struct{}, len(raw))
	out := make([]common.Address, 0, len(raw))
	for _, s := range raw {
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("contract %q is not a hex address", s)
		}
		addr := common.HexToAddress(s)
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("contract address is required")
	}
	return out, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("STAKER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	defaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	switch typed := v.Get(key).(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return cleanStrings(strings.Split(typed, ","))
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
