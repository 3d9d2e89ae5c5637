package indexer

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestBlockRangeBatches(t *testing.T) {
	cases := []struct {
		name      string
		from, to  uint64
		batchSize uint64
		want      []BlockRange
	}{
		{"even", 100, 105, 2, []BlockRange{{100, 101}, {102, 103}, {104, 105}}},
		{"remainder", 0, 30, 10, []BlockRange{{0, 9}, {10, 19}, {20, 29}, {30, 30}}},
		{"single", 5, 5, 10, []BlockRange{{5, 5}}},
		{"batch covers range", 1, 4, 100, []BlockRange{{1, 4}}},
		{"max block", ^uint64(0) - 1, ^uint64(0), 1, []BlockRange{{^uint64(0) - 1, ^uint64(0) - 1}, {^uint64(0), ^uint64(0)}}},
	}
	for _, tc := range cases {
		got, err := BlockRange{From: tc.from, To: tc.to}.Batches(tc.batchSize)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: ranges mismatch: %+v != %+v", tc.name, got, tc.want)
		}
	}
}

func TestBlockRangeBatchesInvalid(t *testing.T) {
	if _, err := (BlockRange{From: 10, To: 9}).Batches(1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := (BlockRange{From: 1, To: 10}).Batches(0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
	if _, err := (BlockRange{From: 0, To: ^uint64(0)}).Batches(1); err == nil {
		t.Fatalf("expected error for a range with more batches than uint64 can count")
	}
}

func TestWithRetryStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, 5, time.Millisecond, func(context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}
