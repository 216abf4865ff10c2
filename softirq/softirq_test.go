package softirq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	f := New(2)

	require.NoError(t, f.Open(Timer, func(int) {}))
	assert.ErrorIs(t, f.Open(Timer, func(int) {}), ErrSlotInUse)
	assert.ErrorIs(t, f.Open(NR, func(int) {}), ErrInvalidID)
	assert.ErrorIs(t, f.Open(HI, nil), ErrNilHandler)
}

func TestRaiseAndRunInOrder(t *testing.T) {
	f := New(2)

	var calls []string
	require.NoError(t, f.Open(Tasklet, func(cpu int) { calls = append(calls, "tasklet") }))
	require.NoError(t, f.Open(Timer, func(cpu int) {
		assert.Equal(t, 1, cpu)
		calls = append(calls, "timer")
	}))

	require.NoError(t, f.Raise(1, Tasklet))
	require.NoError(t, f.Raise(1, Timer))
	require.NoError(t, f.Raise(1, Timer)) // coalesces
	assert.Equal(t, uint32(1<<Timer|1<<Tasklet), f.Pending(1))
	assert.Zero(t, f.Pending(0))

	// Running another cpu leaves cpu1's work alone.
	require.NoError(t, f.Run(0))
	assert.Empty(t, calls)

	require.NoError(t, f.Run(1))
	assert.Equal(t, []string{"timer", "tasklet"}, calls)
	assert.Zero(t, f.Pending(1))
	assert.Equal(t, uint64(2), f.Runs(1))
}

func TestRunInvalidCPU(t *testing.T) {
	f := New(1)
	assert.ErrorIs(t, f.Run(1), ErrInvalidCPU)
	assert.ErrorIs(t, f.Raise(-1, Timer), ErrInvalidCPU)
	assert.ErrorIs(t, f.Raise(0, NR), ErrInvalidID)
	assert.Zero(t, f.Pending(3))
}

func TestRunIsNotNested(t *testing.T) {
	f := New(1)

	depth, maxDepth := 0, 0
	require.NoError(t, f.Open(Timer, func(cpu int) {
		depth++
		if depth > maxDepth {
			maxDepth = depth
		}
		require.NoError(t, f.Raise(cpu, Timer))
		require.NoError(t, f.Run(cpu))
		depth--
	}))

	require.NoError(t, f.Raise(0, Timer))
	require.NoError(t, f.Run(0))

	assert.Equal(t, 1, maxDepth)
	// Each run re-raised itself, so the restart bound stopped the loop.
	assert.Equal(t, uint64(MaxRestart), f.Runs(0))
	assert.Equal(t, uint32(1<<Timer), f.Pending(0))
}

func TestRaisedWithoutHandlerIsDropped(t *testing.T) {
	f := New(1)
	require.NoError(t, f.Raise(0, NetRX))
	require.NoError(t, f.Run(0))
	assert.Zero(t, f.Pending(0))
	assert.Zero(t, f.Runs(0))
}

func TestIDString(t *testing.T) {
	assert.Equal(t, "TIMER", Timer.String())
	assert.Equal(t, "SOFTIRQ(42)", ID(42).String())
}
