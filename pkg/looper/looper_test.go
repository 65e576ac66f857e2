package looper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooper_PostRunsInOrder(t *testing.T) {
	l := New(nil)
	l.Start()
	defer l.Stop(context.Background())

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 10; i++ {
		i := i
		l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.Sync(ctx, func() {}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestLooper_PostDelayedCancel(t *testing.T) {
	l := New(nil)
	l.Start()
	defer l.Stop(context.Background())

	fired := make(chan struct{}, 2)
	cancelled := l.PostDelayed(20*time.Millisecond, func() { fired <- struct{}{} })
	l.PostDelayed(30*time.Millisecond, func() { fired <- struct{}{} })

	assert.True(t, cancelled.Cancel())
	assert.False(t, cancelled.Cancel(), "повторная отмена")

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("отложенная задача не выполнилась")
	}

	select {
	case <-fired:
		t.Fatal("отмененная задача выполнилась")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLooper_PanicDoesNotStopLoop(t *testing.T) {
	l := New(nil)
	l.Start()
	defer l.Stop(context.Background())

	l.Post(func() { panic("boom") })

	ran := false
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.Sync(ctx, func() { ran = true }))
	assert.True(t, ran)
}

func TestLooper_StopDropsTasks(t *testing.T) {
	l := New(nil)
	l.Start()
	require.NoError(t, l.Stop(context.Background()))

	assert.ErrorIs(t, l.Sync(context.Background(), func() {}), ErrStopped)
	l.Post(func() { t.Fatal("задача после Stop") })
}

func TestManual_AdvanceOrdersByDueTime(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var got []string

	m.PostDelayed(2*time.Second, func() { got = append(got, "2s") })
	m.PostDelayed(200*time.Millisecond, func() { got = append(got, "200ms") })
	m.PostDelayed(0, func() { got = append(got, "0") })
	m.PostDelayed(200*time.Millisecond, func() { got = append(got, "200ms-b") })

	assert.Empty(t, got, "отложенные задачи не выполняются без Advance")
	assert.Equal(t, 4, m.Pending())

	m.Advance(0)
	assert.Equal(t, []string{"0"}, got)

	m.Advance(time.Second)
	assert.Equal(t, []string{"0", "200ms", "200ms-b"}, got)
	assert.Equal(t, time.Unix(1, 0), m.Now())

	m.Advance(time.Second)
	assert.Equal(t, []string{"0", "200ms", "200ms-b", "2s"}, got)
	assert.Zero(t, m.Pending())
}

func TestManual_CancelAndNestedPost(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var got []string

	task := m.PostDelayed(time.Second, func() { got = append(got, "cancelled") })
	assert.True(t, task.Cancel())
	assert.Zero(t, m.Pending())

	m.Post(func() {
		m.Post(func() { got = append(got, "inner") })
		got = append(got, "outer")
	})
	assert.Equal(t, []string{"outer", "inner"}, got)

	m.Advance(2 * time.Second)
	assert.Equal(t, []string{"outer", "inner"}, got)
	assert.False(t, task.Cancel())
}

func TestManual_TaskScheduledDuringAdvance(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var at []time.Time

	m.PostDelayed(time.Second, func() {
		at = append(at, m.Now())
		m.PostDelayed(time.Second, func() { at = append(at, m.Now()) })
	})

	m.Advance(5 * time.Second)
	require.Len(t, at, 2)
	assert.Equal(t, time.Unix(1, 0), at[0])
	assert.Equal(t, time.Unix(2, 0), at[1])
}
