package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stakerLedger/internal/api"
	"stakerLedger/internal/chain"
	"stakerLedger/internal/config"
	"stakerLedger/internal/custody"
	"stakerLedger/internal/events"
	"stakerLedger/internal/ledger"
	"stakerLedger/internal/metrics"
	"stakerLedger/internal/model"
	"stakerLedger/internal/storage"
	"stakerLedger/internal/storage/postgres"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if !common.IsHexAddress(cfg.Custodian) {
		return fmt.Errorf("invalid custodian address: %s", cfg.Custodian)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	clock, closeClock, err := openClock(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeClock()

	sink, err := openSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("close event sinks", zap.Error(err))
		}
	}()

	vault := custody.NewVault(custody.VaultConfig{Custodian: common.HexToAddress(cfg.Custodian)}, logger.Named("custody"))
	router := custody.NewRouter()
	for _, class := range []model.AssetClass{model.AssetNative, model.AssetFungible, model.AssetUnique, model.AssetSemiFungible} {
		router.Register(class, vault)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	indicators := metrics.NewCallIndicators(reg)

	l, err := ledger.New(ledger.Config{
		Mover:    router,
		Clock:    clock,
		Store:    store,
		Sink:     sink,
		Observer: indicators,
		Logger:   logger.Named("ledger"),
	})
	if err != nil {
		return err
	}
	if err := l.Restore(ctx); err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}
	if err := seedCustody(l, vault); err != nil {
		return err
	}
	reg.MustRegister(metrics.NewPoolCollector(l))

	var metricsErr <-chan error
	if cfg.MetricsListen != "" {
		metricsErr = metrics.Start(ctx, cfg.MetricsListen, reg, logger.Named("metrics"))
	}

	server := api.NewServer(l, api.Config{
		RequireSignatures: cfg.RequireSignatures,
		SignatureMaxSkew:  cfg.SignatureMaxSkew,
		RateLimit:         cfg.RateLimit,
		RateBurst:         cfg.RateBurst,
		MaxLimiters:       cfg.MaxLimiters,
	}, logger.Named("api"))

	logger.Info("serve start",
		zap.String("listen", cfg.Listen),
		zap.String("metrics_listen", cfg.MetricsListen),
		zap.String("store", cfg.Store),
		zap.String("clock", cfg.Clock),
		zap.String("custodian", cfg.Custodian),
		zap.Uint64("pools", l.TotalPools()),
		zap.Uint64("positions", l.TotalPositions()),
		zap.Bool("require_signatures", cfg.RequireSignatures),
	)

	apiErr := make(chan error, 1)
	go func() {
		apiErr <- server.Run(ctx, cfg.Listen)
	}()

	select {
	case err := <-apiErr:
		stop()
		return err
	case err, ok := <-metricsErr:
		stop()
		<-apiErr
		if ok && err != nil {
			return err
		}
		return nil
	}
}

func openStore(ctx context.Context, cfg config.ServeConfig) (storage.Store, error) {
	if cfg.Store != "postgres" {
		return storage.NewMemoryStore(), nil
	}
	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func openClock(ctx context.Context, cfg config.ServeConfig) (ledger.Clock, func(), error) {
	if cfg.Clock != "chain" {
		return ledger.SystemClock{}, func() {}, nil
	}
	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc: %w", err)
	}
	return chain.NewBlockClock(client), client.Close, nil
}

func openSinks(cfg config.ServeConfig, logger *zap.Logger) (events.Sink, error) {
	sinks := events.Multi{events.NewLogSink(logger.Named("events"))}
	if cfg.EventsOut != "" {
		sinks = append(sinks, events.NewJSONLSink(cfg.EventsOut))
	}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := events.NewKafkaSink(events.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, kafkaSink)
	}
	return sinks, nil
}

// seedCustody credits the custodian with every restored open position so
// that unstakes after a restart can be paid out.
func seedCustody(l *ledger.Ledger, vault *custody.Vault) error {
	for _, p := range l.Pools() {
		open, err := l.PositionsInPool(p.ID)
		if err != nil {
			return fmt.Errorf("seed custody for pool %d: %w", p.ID, err)
		}
		for _, pos := range open {
			vault.Credit(p.Asset(), vault.Custodian(), pos.Position.AmountOrID)
		}
	}
	return nil
}
