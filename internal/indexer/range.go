package indexer

import "fmt"

// BlockRange is an inclusive span of block numbers.
type BlockRange struct {
	From uint64
	To   uint64
}

// Batches cuts r into consecutive spans of at most size blocks. The last
// span may be shorter.
func (r BlockRange) Batches(size uint64) ([]BlockRange, error) {
	switch {
	case size == 0:
		return nil, fmt.Errorf("batch size must be greater than zero")
	case r.To < r.From:
		return nil, fmt.Errorf("to block %d is before from block %d", r.To, r.From)
	}

	// Counting batches up front keeps the loop free of overflow near the
	// top of the uint64 range.
	count := (r.To-r.From)/size + 1
	if count == 0 {
		return nil, fmt.Errorf("range %d-%d does not fit in batches of %d", r.From, r.To, size)
	}
	out := make([]BlockRange, count)
	for i := range out {
		start := r.From + uint64(i)*size
		end := r.To
		if r.To-start >= size {
			end = start + size - 1
		}
		out[i] = BlockRange{From: start, To: end}
	}
	return out, nil
}
