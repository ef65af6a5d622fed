package network

import (
	"slices"
	"testing"

	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushMoves(q *PredictionQueue, timestamps ...float32) {
	for _, ts := range timestamps {
		q.Push(kart.Move{Throttle: 1, DeltaTime: 0.1, Timestamp: ts})
	}
}

func timestamps(q *PredictionQueue) []float32 {
	var out []float32
	for m := range q.All() {
		out = append(out, m.Timestamp)
	}
	return out
}

func TestPredictionQueue_TrimAcknowledged(t *testing.T) {
	tests := []struct {
		name      string
		lastAcked float32
		removed   int
		remaining []float32
	}{
		{"nothing acknowledged", 0.05, 0, []float32{0.1, 0.2, 0.3, 0.4}},
		{"exact match is trimmed", 0.2, 2, []float32{0.3, 0.4}},
		{"between timestamps", 0.25, 2, []float32{0.3, 0.4}},
		{"everything acknowledged", 1, 4, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewPredictionQueue(0)
			pushMoves(q, 0.1, 0.2, 0.3, 0.4)

			removed := q.TrimAcknowledged(tt.lastAcked)

			assert.Equal(t, tt.removed, removed)
			assert.Equal(t, tt.remaining, timestamps(q))
			for m := range q.All() {
				assert.Greater(t, m.Timestamp, tt.lastAcked)
			}
		})
	}
}

func TestPredictionQueue_TrimIsIdempotent(t *testing.T) {
	q := NewPredictionQueue(0)
	pushMoves(q, 0.1, 0.2, 0.3)

	q.TrimAcknowledged(0.2)
	q.TrimAcknowledged(0.2)
	q.TrimAcknowledged(0.1) // an older ack never resurrects moves

	assert.Equal(t, []float32{0.3}, timestamps(q))
}

func TestPredictionQueue_AllIsRestartable(t *testing.T) {
	q := NewPredictionQueue(0)
	pushMoves(q, 1, 2, 3)

	first := slices.Collect(q.All())
	second := slices.Collect(q.All())
	assert.Equal(t, first, second)

	// Early termination stops the sequence.
	var seen int
	for range q.All() {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestPredictionQueue_CapacityDropsOldest(t *testing.T) {
	q := NewPredictionQueue(3)
	pushMoves(q, 1, 2, 3, 4, 5)

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 2, q.Dropped())
	assert.Equal(t, []float32{3, 4, 5}, timestamps(q))

	oldest, ok := q.Oldest()
	require.True(t, ok)
	assert.Equal(t, float32(3), oldest.Timestamp)
	newest, ok := q.Newest()
	require.True(t, ok)
	assert.Equal(t, float32(5), newest.Timestamp)
}

func TestPredictionQueue_Empty(t *testing.T) {
	q := NewPredictionQueue(0)

	_, ok := q.Oldest()
	assert.False(t, ok)
	_, ok = q.Newest()
	assert.False(t, ok)
	assert.Equal(t, 0, q.TrimAcknowledged(10))
}
