package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
)

// HeaderSource yields the current chain head.
type HeaderSource interface {
	LatestHeader(ctx context.Context) (*types.Header, error)
}

// BlockClock reports the timestamp of the latest block, so lockups and
// cooldowns follow chain time rather than wall time.
type BlockClock struct {
	src HeaderSource
}

func NewBlockClock(src HeaderSource) *BlockClock {
	return &BlockClock{src: src}
}

func (c *BlockClock) Now(ctx context.Context) (uint64, error) {
	header, err := c.src.LatestHeader(ctx)
	if err != nil {
		return 0, fmt.Errorf("latest header: %w", err)
	}
	return header.Time, nil
}
