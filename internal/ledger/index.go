package ledger

import "github.com/google/btree"

// poolPositionKey orders open positions by pool, then by position id.
type poolPositionKey struct {
	poolID     uint64
	positionID uint64
}

func (k poolPositionKey) Less(than btree.Item) bool {
	o := than.(poolPositionKey)
	if k.poolID != o.poolID {
		return k.poolID < o.poolID
	}
	return k.positionID < o.positionID
}

// openIndex tracks the live positions of every pool.
type openIndex struct {
	tree *btree.BTree
}

func newOpenIndex() *openIndex {
	return &openIndex{tree: btree.New(32)}
}

func (x *openIndex) add(poolID, positionID uint64) {
	x.tree.ReplaceOrInsert(poolPositionKey{poolID: poolID, positionID: positionID})
}

func (x *openIndex) remove(poolID, positionID uint64) {
	x.tree.Delete(poolPositionKey{poolID: poolID, positionID: positionID})
}

// inPool returns the open position ids of a pool in ascending order.
func (x *openIndex) inPool(poolID uint64) []uint64 {
	var ids []uint64
	x.tree.AscendGreaterOrEqual(poolPositionKey{poolID: poolID}, func(i btree.Item) bool {
		k := i.(poolPositionKey)
		if k.poolID != poolID {
			return false
		}
		ids = append(ids, k.positionID)
		return true
	})
	return ids
}
