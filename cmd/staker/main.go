package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "staker",
		Short:        "Multi-asset staking ledger",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the staking ledger service",
		RunE:  runServe,
	}

	serveCmd.Flags().String("listen", ":8080", "HTTP API listen address")
	serveCmd.Flags().String("metrics-listen", ":9090", "Prometheus metrics listen address (empty disables)")
	serveCmd.Flags().String("store", "memory", "state store (memory, postgres)")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	serveCmd.Flags().String("clock", "system", "time source (system, chain)")
	serveCmd.Flags().String("rpc", "", "RPC URL for the chain clock")
	serveCmd.Flags().String("custodian", "0x0000000000000000000000000000000000005a1e", "account holding staked assets")
	serveCmd.Flags().String("events-out", "", "append notifications to this JSONL file")
	serveCmd.Flags().StringSlice("kafka-brokers", nil, "Kafka brokers for notifications (comma-separated)")
	serveCmd.Flags().String("kafka-topic", "staker-events", "Kafka topic for notifications")
	serveCmd.Flags().Bool("require-signatures", false, "authenticate callers by request signature")
	serveCmd.Flags().Duration("signature-max-skew", 2*time.Minute, "accepted clock skew of signed requests")
	serveCmd.Flags().Float64("rate-limit", 0, "requests per second per caller or client IP, 0 disables")
	serveCmd.Flags().Int("rate-burst", 20, "rate limiter burst")
	serveCmd.Flags().Int("max-limiters", 10000, "distinct rate limit buckets kept before sharing one")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Index staker contract events from a chain",
		RunE:  runIndex,
	}

	indexCmd.Flags().String("rpc", "", "RPC URL")
	indexCmd.Flags().StringSlice("contract", nil, "staker contract addresses (comma-separated)")
	indexCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	indexCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	indexCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	indexCmd.Flags().String("out", "./data/staker_events.jsonl", "typed events JSONL path")
	indexCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL path")
	indexCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	indexCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	indexCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	indexCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	indexCmd.Flags().Float64("rpc-rate-limit", 0, "RPC calls per second, 0 means unlimited")
	indexCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(indexCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
