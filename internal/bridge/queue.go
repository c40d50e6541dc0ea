// internal/bridge/queue.go
package bridge

import "github.com/makemob/ukibridge/internal/wire"

// writeQueue holds pending single-register writes per board, in arrival
// order. The flush step drains it most-recent-first with last-write-wins
// coalescing; entries carry no sequence number, so discovery order
// approximates recency.
type writeQueue struct {
	pending map[uint8][]wire.Pair
}

func newWriteQueue() *writeQueue {
	return &writeQueue{pending: make(map[uint8][]wire.Pair)}
}

// Add appends one pending write to the tail of a board's list.
func (q *writeQueue) Add(addr uint8, offset, value uint16) {
	q.pending[addr] = append(q.pending[addr], wire.Pair{Offset: offset, Value: value})
}

// Take returns a board's pending list and clears it unconditionally.
// Entries enqueued after Take land in the next cycle's list.
func (q *writeQueue) Take(addr uint8) []wire.Pair {
	entries := q.pending[addr]
	if len(entries) == 0 {
		return nil
	}
	delete(q.pending, addr)
	return entries
}

// Drop discards pending state for a board removed from the active set.
func (q *writeQueue) Drop(addr uint8) {
	delete(q.pending, addr)
}
