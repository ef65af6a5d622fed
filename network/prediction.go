package network

import (
	"iter"

	"github.com/automoto/krazykarts-mp/shared/kart"
)

// PredictionQueue holds the moves the local kart has simulated and sent but
// the server has not acknowledged yet. Moves are kept in send order and
// trimming only ever removes a prefix.
type PredictionQueue struct {
	moves    []kart.Move
	capacity int
	dropped  int
}

// NewPredictionQueue creates a queue. capacity <= 0 means unbounded; otherwise
// the oldest move is discarded once the queue is full.
func NewPredictionQueue(capacity int) *PredictionQueue {
	q := &PredictionQueue{capacity: capacity}
	if capacity > 0 {
		q.moves = make([]kart.Move, 0, capacity)
	}
	return q
}

// Push appends a move.
func (q *PredictionQueue) Push(m kart.Move) {
	if q.capacity > 0 && len(q.moves) == q.capacity {
		q.moves = q.moves[1:]
		q.dropped++
	}
	q.moves = append(q.moves, m)
}

// TrimAcknowledged removes every move with Timestamp <= lastAcked. It must
// run before a replay so only moves the server has not applied remain.
func (q *PredictionQueue) TrimAcknowledged(lastAcked float32) int {
	n := 0
	for n < len(q.moves) && q.moves[n].Timestamp <= lastAcked {
		n++
	}
	if n == 0 {
		return 0
	}
	// Shift down instead of reslicing so the backing array does not creep.
	remaining := copy(q.moves, q.moves[n:])
	clear(q.moves[remaining:])
	q.moves = q.moves[:remaining]
	return n
}

// All returns the remaining moves in send order. The sequence is lazy and
// can be ranged over again; the queue must not be mutated while iterating.
func (q *PredictionQueue) All() iter.Seq[kart.Move] {
	return func(yield func(kart.Move) bool) {
		for _, m := range q.moves {
			if !yield(m) {
				return
			}
		}
	}
}

// Len returns the number of unacknowledged moves.
func (q *PredictionQueue) Len() int {
	return len(q.moves)
}

// Oldest returns the first unacknowledged move.
func (q *PredictionQueue) Oldest() (kart.Move, bool) {
	if len(q.moves) == 0 {
		return kart.Move{}, false
	}
	return q.moves[0], true
}

// Newest returns the most recently pushed move.
func (q *PredictionQueue) Newest() (kart.Move, bool) {
	if len(q.moves) == 0 {
		return kart.Move{}, false
	}
	return q.moves[len(q.moves)-1], true
}

// Dropped returns how many moves were discarded because the queue was full.
func (q *PredictionQueue) Dropped() int {
	return q.dropped
}
