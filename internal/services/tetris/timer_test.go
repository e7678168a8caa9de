package tetris

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimer_InactiveDoesNothing(t *testing.T) {
	calls := 0
	timer := NewTimer(100*time.Millisecond, false, func() { calls++ })

	assert.False(t, timer.Update(time.Second))
	assert.Equal(t, 0, calls)
	assert.False(t, timer.Active())
}

func TestTimer_OneShotDeactivatesAfterExpiry(t *testing.T) {
	calls := 0
	timer := NewTimer(100*time.Millisecond, false, func() { calls++ })
	timer.Activate()

	assert.False(t, timer.Update(60*time.Millisecond))
	assert.True(t, timer.Active())
	assert.True(t, timer.Update(40*time.Millisecond))
	assert.Equal(t, 1, calls)
	assert.False(t, timer.Active())

	assert.False(t, timer.Update(time.Second))
	assert.Equal(t, 1, calls)
}

func TestTimer_RepeatingReactivates(t *testing.T) {
	calls := 0
	timer := NewTimer(100*time.Millisecond, true, func() { calls++ })
	timer.Activate()

	for i := 0; i < 5; i++ {
		timer.Update(100 * time.Millisecond)
	}
	assert.Equal(t, 5, calls)
	assert.True(t, timer.Active())

	// 1回のUpdateで発火するのは1回まで
	timer.Update(time.Second)
	assert.Equal(t, 6, calls)
}

func TestTimer_ActivateResetsElapsed(t *testing.T) {
	timer := NewTimer(100*time.Millisecond, false, nil)
	timer.Activate()
	timer.Update(90 * time.Millisecond)

	timer.Activate()
	assert.False(t, timer.Update(90*time.Millisecond))
	assert.True(t, timer.Update(10*time.Millisecond))
}

func TestTimer_DeactivateSkipsCallback(t *testing.T) {
	calls := 0
	timer := NewTimer(100*time.Millisecond, true, func() { calls++ })
	timer.Activate()
	timer.Update(50 * time.Millisecond)

	timer.Deactivate()
	assert.False(t, timer.Update(time.Second))
	assert.Equal(t, 0, calls)
}

func TestTimer_SetDurationKeepsElapsed(t *testing.T) {
	timer := NewTimer(300*time.Millisecond, true, nil)
	timer.Activate()
	timer.Update(100 * time.Millisecond)

	timer.SetDuration(90 * time.Millisecond)
	assert.Equal(t, 90*time.Millisecond, timer.Duration())
	assert.True(t, timer.Update(time.Millisecond))
}
