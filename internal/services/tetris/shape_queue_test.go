package tetris

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progate-hackathon-strawberry-flavor/tetris-core/internal/models/tetris"
)

func TestShapeQueue_NextKeepsLength(t *testing.T) {
	q := NewShapeQueue(DefaultQueueLength, rand.New(rand.NewSource(7)))
	require.Equal(t, DefaultQueueLength, q.Len())
	before := q.Peek()

	got := q.Next()

	assert.Equal(t, before[0], got)
	after := q.Peek()
	require.Len(t, after, DefaultQueueLength)
	assert.Equal(t, before[1:], after[:DefaultQueueLength-1])
	assert.True(t, after[DefaultQueueLength-1].Valid())
}

func TestShapeQueue_PeekReturnsCopy(t *testing.T) {
	q := NewShapeQueue(DefaultQueueLength, rand.New(rand.NewSource(7)))
	peeked := q.Peek()
	peeked[0] = tetris.Shape(99)

	assert.True(t, q.Peek()[0].Valid())
}

func TestShapeQueue_ProducesEveryShape(t *testing.T) {
	q := NewShapeQueue(DefaultQueueLength, rand.New(rand.NewSource(3)))
	seen := make(map[tetris.Shape]int)
	for i := 0; i < 700; i++ {
		seen[q.Next()]++
	}
	for _, s := range tetris.AllShapes() {
		assert.Greater(t, seen[s], 0, "shape %s never produced", s)
	}
	assert.Len(t, seen, 7)
}

func TestParseInput(t *testing.T) {
	for _, ev := range []InputEvent{MoveLeft, MoveRight, RotateCW, SoftDropPressed, SoftDropReleased, PauseToggle} {
		parsed, ok := ParseInput(ev.String())
		require.True(t, ok, ev.String())
		assert.Equal(t, ev, parsed)
	}
	parsed, ok := ParseInput("rotate_right")
	assert.True(t, ok)
	assert.Equal(t, RotateCW, parsed)

	_, ok = ParseInput("hard_drop")
	assert.False(t, ok)
}
