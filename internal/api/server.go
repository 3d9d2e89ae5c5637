package api

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"stakerLedger/internal/ledger"
	"stakerLedger/internal/model"
	"stakerLedger/internal/pool"
)

// Service is the ledger surface exposed over HTTP.
type Service interface {
	CreatePool(ctx context.Context, caller common.Address, params pool.CreateParams) (uint64, error)
	UpdatePoolConfiguration(ctx context.Context, caller common.Address, poolID uint64, update pool.ConfigUpdate) error
	TransferPoolAdministration(ctx context.Context, caller common.Address, poolID uint64, newAdministrator common.Address) error
	Stake(ctx context.Context, req ledger.StakeRequest) (uint64, error)
	InitiateUnstake(ctx context.Context, caller common.Address, positionID uint64) error
	Unstake(ctx context.Context, caller common.Address, positionID uint64) error
	Transfer(ctx context.Context, caller common.Address, positionID uint64, from, to common.Address) error

	Pool(poolID uint64) (model.Pool, error)
	Pools() []model.Pool
	Position(positionID uint64) (model.Position, error)
	OwnerOf(positionID uint64) (common.Address, error)
	CurrentAmountInPool(poolID uint64) (*big.Int, error)
	CurrentPositionsInPool(poolID uint64) (uint64, error)
	TotalPools() uint64
	TotalPositions() uint64
	PositionsInPool(poolID uint64) ([]ledger.PoolPosition, error)
	PositionMetadata(positionID uint64) (model.PositionMetadata, error)
}

var _ Service = (*ledger.Ledger)(nil)

// Config controls caller authentication and rate limiting.
type Config struct {
	RequireSignatures bool
	SignatureMaxSkew  time.Duration
	// RateLimit is requests per second per caller. Zero disables limiting.
	RateLimit float64
	RateBurst int
	// MaxLimiters bounds the number of tracked callers. Defaults to 10000.
	MaxLimiters int
}

// Server is the HTTP transport of the ledger.
type Server struct {
	svc     Service
	cfg     Config
	logger  *zap.Logger
	limiter *limiterSet
	now     func() time.Time
	engine  *gin.Engine
}

func NewServer(svc Service, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SignatureMaxSkew <= 0 {
		cfg.SignatureMaxSkew = 2 * time.Minute
	}
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = newLimiterSet(rate.Limit(cfg.RateLimit), burst, cfg.MaxLimiters)
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	// Reads are limited per client address, writes per authenticated caller.
	reads := r.Group("", s.rateLimit())
	writes := r.Group("", s.authenticate(), s.rateLimit())

	reads.GET("/stats", s.stats)
	reads.GET("/pools", s.listPools)
	reads.GET("/pools/:id", s.getPool)
	reads.GET("/pools/:id/positions", s.poolPositions)
	reads.GET("/pools/:id/aggregates", s.poolAggregates)
	reads.GET("/positions/:id", s.getPosition)
	reads.GET("/positions/:id/owner", s.positionOwner)
	reads.GET("/positions/:id/metadata", s.positionMetadata)

	writes.POST("/pools", s.createPool)
	writes.PATCH("/pools/:id", s.updatePool)
	writes.POST("/pools/:id/administrator", s.transferAdministration)
	writes.POST("/pools/:id/stake/:class", s.stake)
	writes.POST("/positions/:id/initiate-unstake", s.initiateUnstake)
	writes.POST("/positions/:id/unstake", s.unstake)
	writes.POST("/positions/:id/transfer", s.transfer)

	return r
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api: %w", err)
	}
	s.logger.Info("api stopped")
	return nil
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
