package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_Trigger(t *testing.T) {
	t.Run("coalesces a burst into one run", func(t *testing.T) {
		d := NewDebouncer(20 * time.Millisecond)
		var runs int64

		for i := 0; i < 5; i++ {
			d.Trigger(func() { atomic.AddInt64(&runs, 1) })
		}

		assert.Eventually(t, func() bool {
			return atomic.LoadInt64(&runs) == 1
		}, time.Second, 5*time.Millisecond)

		// No further runs after the burst fired.
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int64(1), atomic.LoadInt64(&runs))
	})

	t.Run("the last triggered function wins", func(t *testing.T) {
		d := NewDebouncer(20 * time.Millisecond)
		var got atomic.Value

		d.Trigger(func() { got.Store("first") })
		d.Trigger(func() { got.Store("second") })

		assert.Eventually(t, func() bool {
			v, ok := got.Load().(string)
			return ok && v == "second"
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("a new trigger after firing schedules again", func(t *testing.T) {
		d := NewDebouncer(10 * time.Millisecond)
		var runs int64

		d.Trigger(func() { atomic.AddInt64(&runs, 1) })
		assert.Eventually(t, func() bool { return atomic.LoadInt64(&runs) == 1 }, time.Second, 2*time.Millisecond)

		d.Trigger(func() { atomic.AddInt64(&runs, 1) })
		assert.Eventually(t, func() bool { return atomic.LoadInt64(&runs) == 2 }, time.Second, 2*time.Millisecond)
	})
}

func TestDebouncer_Flush(t *testing.T) {
	t.Run("runs pending work immediately", func(t *testing.T) {
		d := NewDebouncer(time.Hour)
		var runs int64

		d.Trigger(func() { atomic.AddInt64(&runs, 1) })
		d.Flush()

		assert.Equal(t, int64(1), atomic.LoadInt64(&runs))
	})

	t.Run("flush with nothing pending is a no-op", func(t *testing.T) {
		d := NewDebouncer(time.Hour)
		d.Flush()
	})

	t.Run("flush clears the pending slot", func(t *testing.T) {
		d := NewDebouncer(10 * time.Millisecond)
		var runs int64

		d.Trigger(func() { atomic.AddInt64(&runs, 1) })
		d.Flush()
		time.Sleep(30 * time.Millisecond)

		assert.Equal(t, int64(1), atomic.LoadInt64(&runs))
	})
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	var runs int64

	d.Trigger(func() { atomic.AddInt64(&runs, 1) })
	d.Stop()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, int64(0), atomic.LoadInt64(&runs))
}
