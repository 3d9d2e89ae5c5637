package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"stakerLedger/internal/events"
)

// LogSource is the slice of chain access the runner needs.
type LogSource interface {
	ChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// Output receives decoded events and decode failures.
type Output interface {
	Append(values ...interface{}) error
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	Contracts         []common.Address
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	// RPCRateLimit caps RPC calls per second. Zero means unlimited.
	RPCRateLimit float64
}

// Stats summarizes one run.
type Stats struct {
	Logs    int
	Decoded int
	Failed  int
	Skipped int
}

// Runner pulls staker contract logs, decodes them and writes typed events.
type Runner struct {
	cfg        RunConfig
	source     LogSource
	decoder    *events.Decoder
	out        Output
	errOut     Output
	limiter    *rate.Limiter
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

func NewRunner(cfg RunConfig, source LogSource, decoder *events.Decoder, out, errOut Output, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RPCRateLimit > 0 {
		limit = rate.Limit(cfg.RPCRateLimit)
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		decoder:    decoder,
		out:        out,
		errOut:     errOut,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run indexes the configured range and returns what it processed.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if r.source == nil {
		return stats, fmt.Errorf("log source is nil")
	}
	if r.decoder == nil {
		return stats, fmt.Errorf("decoder is nil")
	}
	if r.out == nil || r.errOut == nil {
		return stats, fmt.Errorf("output is nil")
	}
	if r.cfg.BatchSize == 0 {
		return stats, fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Contracts) == 0 {
		return stats, fmt.Errorf("at least one contract address is required")
	}

	var chainID *big.Int
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		chainID, err = r.source.ChainID(ctx)
		return err
	})
	if err != nil {
		return stats, fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return stats, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		err := r.call(ctx, func(ctx context.Context) error {
			var err error
			to, err = r.source.LatestBlockNumber(ctx)
			return err
		})
		if err != nil {
			return stats, fmt.Errorf("get latest block: %w", err)
		}
	}

	cp, ok, err := r.checkpoint.Load(chainIDValue)
	if err != nil {
		return stats, err
	}
	if ok && cp.LastProcessedBlock >= from {
		from = cp.LastProcessedBlock + 1
		r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return stats, nil
	}

	ranges, err := BlockRange{From: from, To: to}.Batches(r.cfg.BatchSize)
	if err != nil {
		return stats, err
	}

	topics := r.decoder.Topics()
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		var logs []types.Log
		err := r.call(ctx, func(ctx context.Context) error {
			var err error
			logs, err = r.source.FilterLogs(ctx, blockRange.From, blockRange.To, r.cfg.Contracts, topics)
			if err != nil {
				r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
			}
			return err
		})
		if err != nil {
			return stats, fmt.Errorf("filter logs: %w", err)
		}

		batch, err := r.decodeBatch(ctx, chainIDValue, logs)
		if err != nil {
			return stats, err
		}
		if err := r.out.Append(batch.events...); err != nil {
			return stats, fmt.Errorf("write events: %w", err)
		}
		if err := r.errOut.Append(batch.failures...); err != nil {
			return stats, fmt.Errorf("write decode errors: %w", err)
		}

		if err := r.checkpoint.Save(chainIDValue, blockRange.To); err != nil {
			return stats, err
		}

		stats.Logs += batch.logs
		stats.Decoded += len(batch.events)
		stats.Failed += len(batch.failures)
		stats.Skipped += batch.skipped
		r.logger.Info("batch complete",
			zap.Int("logs", batch.logs),
			zap.Int("decoded", len(batch.events)),
			zap.Int("failed", len(batch.failures)),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
	}

	return stats, nil
}

type decodedBatch struct {
	logs     int
	skipped  int
	events   []interface{}
	failures []interface{}
}

func (r *Runner) decodeBatch(ctx context.Context, chainID uint64, logs []types.Log) (decodedBatch, error) {
	var batch decodedBatch
	ingestedAt := time.Now().UTC()
	for _, log := range logs {
		if r.isDuplicate(log) {
			continue
		}
		batch.logs++

		var ts uint64
		err := r.call(ctx, func(ctx context.Context) error {
			var err error
			ts, err = r.source.BlockTimestamp(ctx, log.BlockNumber)
			if err != nil {
				r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", log.BlockNumber))
			}
			return err
		})
		if err != nil {
			return batch, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
		}

		record := toLogRecord(chainID, log, ts, ingestedAt)
		if !r.decoder.CanDecode(record.Topic0()) {
			batch.skipped++
			continue
		}
		ev, err := r.decoder.Decode(record)
		if err != nil {
			r.logger.Debug("decode failed", zap.Error(err), zap.String("tx_hash", record.TxHash), zap.Uint64("log_index", record.LogIndex))
			batch.failures = append(batch.failures, decodeFailure(record, err))
			continue
		}
		batch.events = append(batch.events, ev)
	}
	return batch, nil
}

// call throttles and retries one RPC call.
func (r *Runner) call(ctx context.Context, fn func(context.Context) error) error {
	return withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		return fn(ctx)
	})
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
