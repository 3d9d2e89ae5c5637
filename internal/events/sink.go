package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"stakerLedger/internal/model"
)

// Sink receives committed ledger notifications in commit order.
type Sink interface {
	Publish(ctx context.Context, ev model.Event) error
	Close() error
}

// Multi fans a notification out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, ev model.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes notifications to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, ev model.Event) error {
	s.logger.Info("ledger event",
		zap.String("event", ev.Name),
		zap.String("key", ev.Key()),
		zap.Uint64("timestamp", ev.Timestamp),
		zap.Any("decoded", ev.Data),
	)
	return nil
}

func (s *LogSink) Close() error { return nil }

// Recorder keeps notifications in memory.
type Recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, ev model.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

// Named returns the recorded notifications with the given name.
func (r *Recorder) Named(name string) []model.Event {
	var out []model.Event
	for _, ev := range r.Events() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
