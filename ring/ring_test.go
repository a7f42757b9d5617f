package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func Test_PushPopFIFOOrder(t *testing.T) {
	b := New[int](4)
	b.Push(1, 2, 3)
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []int{1, 2, 3}, b.Pop(3))
	assert.Equal(t, 0, b.Len())
}

func Test_OverwritesOldestOnFull(t *testing.T) {
	b := New[int](3)
	b.Push(1, 2, 3, 4, 5) // overflows by 2; 1 and 2 should be dropped
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []int{3, 4, 5}, b.Pop(3))
}

func Test_PopMoreThanAvailableReturnsMin(t *testing.T) {
	b := New[byte](8)
	b.Push(1, 2)
	got := b.Pop(10)
	assert.Len(t, got, 2)
}

func Test_PeekDoesNotConsume(t *testing.T) {
	b := New[int](4)
	b.Push(1, 2, 3)
	assert.Equal(t, []int{1, 2}, b.Peek(2))
	assert.Equal(t, 3, b.Len())
}

func Test_DropAdvancesWithoutCopy(t *testing.T) {
	b := New[int](4)
	b.Push(1, 2, 3)
	assert.Equal(t, 2, b.Drop(2))
	assert.Equal(t, []int{3}, b.Pop(1))
}

// Property: len never exceeds capacity, and after any sequence of
// pushes/pops the number of elements retrievable equals the tracked size.
func Test_SizeNeverExceedsCapacity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 32).Draw(t, "capacity")
		b := New[int](capacity)

		ops := rapid.SliceOfN(rapid.IntRange(-16, 16), 0, 64).Draw(t, "ops")
		for _, op := range ops {
			if op >= 0 {
				b.Push(op)
			} else {
				b.Pop(-op)
			}
			require.LessOrEqual(t, b.Len(), capacity)
		}
	})
}
