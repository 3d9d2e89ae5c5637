package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Start serves "/metrics" until ctx is done. The returned channel reports
// server failures and is closed after shutdown.
func Start(ctx context.Context, addr string, reg prometheus.Gatherer, logger *zap.Logger) <-chan error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("starting metrics server", zap.String("addr", addr))

	errChan := make(chan error, 1)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpServer := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		defer close(errChan)
		if err := httpServer.Shutdown(context.Background()); err != nil {
			errChan <- err
		}
		logger.Info("metrics server stopped")
	}()

	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	return errChan
}
