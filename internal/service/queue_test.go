package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[int]()
	q.Push(1)
	q.Push(2)
	q.Push(3)
	assert.Equal(t, 3, q.Len())

	for want := 1; want <= 3; want++ {
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewQueue[string]()

	done := make(chan string, 1)
	go func() {
		item, ok := q.Pop()
		if !ok {
			done <- "<closed>"
			return
		}
		done <- item
	}()

	select {
	case item := <-done:
		t.Fatalf("Pop returned %q before a push", item)
	case <-time.After(20 * time.Millisecond):
	}

	q.Push("hello")
	select {
	case item := <-done:
		assert.Equal(t, "hello", item)
	case <-time.After(time.Second):
		t.Fatal("Pop never woke up")
	}
}

func TestQueue_CloseWakesConsumer(t *testing.T) {
	q := NewQueue[int]()

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	q.Close()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Pop never woke up after Close")
	}
}

func TestQueue_CloseDrainsRemaining(t *testing.T) {
	q := NewQueue[int]()
	q.Push(1)
	q.Push(2)
	q.Close()

	got, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, got)

	got, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, got)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueue_PushAfterCloseDropped(t *testing.T) {
	q := NewQueue[int]()
	q.Close()
	q.Push(1)
	assert.Equal(t, 0, q.Len())
}
