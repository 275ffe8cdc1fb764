package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessageQueue_PutThenPopWithFIFO(t *testing.T) {
	q := NewMessageQueue[int]()
	q.Put(func(items []int) []int { return append(items, 1, 2, 3) })

	popFront := func(items []int) (int, []int, bool) {
		if len(items) == 0 {
			return 0, items, false
		}
		return items[0], items[1:], true
	}

	ctx := context.Background()
	v, ok := q.PopWith(ctx, popFront)
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.Equal(t, 2, q.Len())
}

func TestMessageQueue_PopWithTimesOutOnEmptyQueue(t *testing.T) {
	q := NewMessageQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, ok := q.PopWith(ctx, func(items []int) (int, []int, bool) {
		if len(items) == 0 {
			return 0, items, false
		}
		return items[0], items[1:], true
	})
	require.False(t, ok)
}
