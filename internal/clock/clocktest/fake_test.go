package clocktest

import (
	"testing"
	"time"

	"github.com/birbparty/birb-ads/internal/clock"
	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_AfterFuncRunsInDeadlineOrder(t *testing.T) {
	fc := NewFake(epoch)
	var order []string

	fc.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	fc.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	fc.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	fc.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 1, fc.Pending())

	fc.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, epoch.Add(3*time.Second), fc.Now())
}

func TestFake_StopPreventsCallback(t *testing.T) {
	fc := NewFake(epoch)
	fired := false
	timer := fc.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	fc.Advance(time.Minute)
	assert.False(t, fired)
	assert.Equal(t, 0, fc.Pending())
}

func TestFake_CallbackSeesItsDeadline(t *testing.T) {
	fc := NewFake(epoch)
	var seen time.Time
	fc.AfterFunc(5*time.Second, func() { seen = fc.Now() })

	fc.Advance(time.Minute)
	assert.Equal(t, epoch.Add(5*time.Second), seen)
}

func TestEvery_WithFakeClock(t *testing.T) {
	fc := NewFake(epoch)
	runs := 0
	ticker := clock.Every(fc, 10*time.Second, func() { runs++ })

	fc.Advance(9 * time.Second)
	assert.Equal(t, 0, runs)

	fc.Advance(31 * time.Second)
	assert.Equal(t, 4, runs)

	assert.True(t, ticker.Stop())
	fc.Advance(time.Minute)
	assert.Equal(t, 4, runs)
}

func TestEvery_StopFromInsideCallback(t *testing.T) {
	fc := NewFake(epoch)
	runs := 0
	var ticker clock.Timer
	ticker = clock.Every(fc, time.Second, func() {
		runs++
		ticker.Stop()
	})

	fc.Advance(10 * time.Second)
	assert.Equal(t, 1, runs)
	assert.Equal(t, 0, fc.Pending())
}
