package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnbounded_FIFO(t *testing.T) {
	q := New[int](0)
	for i := 0; i < 100; i++ {
		_, err := q.Push(i)
		require.NoError(t, err)
	}
	assert.Equal(t, 100, q.Len())

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		v, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 0, q.Len())
}

func TestUnbounded_PopBlocksUntilPush(t *testing.T) {
	q := New[string](0)
	got := make(chan string, 1)

	go func() {
		v, err := q.Pop(context.Background())
		if err == nil {
			got <- v
		}
	}()

	select {
	case <-got:
		t.Fatal("pop返回过早")
	case <-time.After(50 * time.Millisecond):
	}

	_, err := q.Push("hello")
	require.NoError(t, err)

	select {
	case v := <-got:
		assert.Equal(t, "hello", v)
	case <-time.After(time.Second):
		t.Fatal("pop未被唤醒")
	}
}

func TestUnbounded_PopContextCancel(t *testing.T) {
	q := New[int](0)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnbounded_LimitDropsOldest(t *testing.T) {
	q := New[int](2)

	dropped, err := q.Push(1)
	require.NoError(t, err)
	assert.False(t, dropped)
	_, _ = q.Push(2)
	dropped, err = q.Push(3)
	require.NoError(t, err)
	assert.True(t, dropped)

	v, ok := q.TryPop()
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	v, ok = q.TryPop()
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	_, ok = q.TryPop()
	assert.False(t, ok)
}

func TestUnbounded_Close(t *testing.T) {
	q := New[int](0)
	_, _ = q.Push(7)
	q.Close()
	q.Close()
	assert.True(t, q.Closed())

	_, err := q.Push(8)
	assert.ErrorIs(t, err, ErrClosed)

	// 关闭后剩余元素仍可取出
	v, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = q.Pop(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestUnbounded_CloseWakesWaiters(t *testing.T) {
	q := New[int](0)
	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Pop(context.Background())
			errs <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.Close()
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, ErrClosed)
	}
}

func TestUnbounded_ConcurrentConsumers(t *testing.T) {
	q := New[int](0)
	const total = 1000
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	seen := make(map[int]bool)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, err := q.Pop(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[v] = true
				done := len(seen) == total
				mu.Unlock()
				if done {
					cancel()
				}
			}
		}()
	}

	for i := 0; i < total; i++ {
		_, _ = q.Push(i)
	}
	wg.Wait()

	assert.Len(t, seen, total)
}
