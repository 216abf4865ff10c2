package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModifySlackFloor(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(1))
	env.clock.Set(1000)
	q := env.queue(t, 0)

	for _, tc := range []struct {
		delay Ticks
		want  Ticks
	}{
		{0, 1128},
		{1, 1128},
		{50, 1128},
		{127, 1128},
		{128, 1128},
		{129, 1129},
		{500, 1500},
	} {
		e := NewEntry(nil)
		_, err := q.Modify(e, tc.delay)
		require.NoError(t, err)
		assert.Equal(t, tc.want, e.Expires(), "delay %d", tc.delay)
	}
}

func TestModifyAlreadyScheduled(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(1))
	env.clock.Set(1000)
	q := env.queue(t, 0)

	e := NewEntry(nil)
	status, err := q.Modify(e, 200)
	require.NoError(t, err)
	require.Equal(t, StatusArmed, status)
	require.Equal(t, Ticks(1200), e.Expires())
	programs := env.hw.count()

	status, err = q.Modify(e, 200)
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyScheduled, status)
	assert.Equal(t, Ticks(1200), e.Expires())
	assert.Equal(t, programs, env.hw.count())
	assert.Equal(t, 1, q.Len())

	// A different now gives a different deadline, so the fast path misses.
	env.clock.Set(1001)
	status, err = q.Modify(e, 200)
	require.NoError(t, err)
	assert.Equal(t, StatusArmed, status)
	assert.Equal(t, Ticks(1201), e.Expires())
	assert.Equal(t, 1, q.Len())
}

func TestModifyDetachedNeverAlreadyScheduled(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(1))
	env.clock.Set(1000)
	q := env.queue(t, 0)

	e := NewEntry(nil)
	_, err := q.Modify(e, 200)
	require.NoError(t, err)
	require.NoError(t, e.Delete())

	status, err := q.Modify(e, 200)
	require.NoError(t, err)
	assert.Equal(t, StatusArmed, status)
	assert.True(t, e.Pending())
}

func TestModifyReprogramsOnlyWhenSooner(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(1))
	env.clock.Set(1000)
	q := env.queue(t, 0)

	_, err := q.Modify(NewEntry(nil), 500)
	require.NoError(t, err)
	_, err = q.Modify(NewEntry(nil), 200)
	require.NoError(t, err)
	_, err = q.Modify(NewEntry(nil), 800)
	require.NoError(t, err)

	assert.Equal(t, []Ticks{1500, 1200}, env.hw.deadlines(0))
	armed, ok := q.Armed()
	assert.True(t, ok)
	assert.Equal(t, Ticks(1200), armed)
	assert.Equal(t, []Ticks{1500, 1200, 1800}, q.Snapshot())
}

func TestModifyMovesPendingEntry(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(1))
	env.clock.Set(1000)
	q := env.queue(t, 0)

	a, b := NewEntry(nil), NewEntry(nil)
	_, err := q.Modify(a, 300)
	require.NoError(t, err)
	_, err = q.Modify(b, 400)
	require.NoError(t, err)

	// Re-arming moves a to the tail without duplicating it.
	_, err = q.Modify(a, 600)
	require.NoError(t, err)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, []Ticks{1400, 1600}, q.Snapshot())
}

func TestModifyWrongQueue(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(2))
	q0, q1 := env.queue(t, 0), env.queue(t, 1)

	e := NewEntry(nil)
	_, err := q0.Modify(e, 200)
	require.NoError(t, err)

	_, err = q1.Modify(e, 200)
	assert.ErrorIs(t, err, ErrWrongQueue)
	assert.Equal(t, 0, q1.Len())

	// Detached entries stay with their queue until Init.
	require.NoError(t, e.Delete())
	_, err = q1.Modify(e, 200)
	assert.ErrorIs(t, err, ErrWrongQueue)

	require.NoError(t, e.Init(nil))
	_, err = q1.Modify(e, 200)
	require.NoError(t, err)
	assert.Same(t, q1, e.Queue())
}

func TestModifyNilEntry(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(1))
	_, err := env.queue(t, 0).Modify(nil, 10)
	assert.ErrorIs(t, err, ErrNilEntry)
}

func TestAdd(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(1))
	env.clock.Set(1000)
	q := env.queue(t, 0)

	e := NewEntry(nil)
	e.SetExpires(50)
	require.NoError(t, q.Add(e))
	assert.True(t, e.Pending())
	assert.Equal(t, Ticks(1128), e.Expires())

	assert.ErrorIs(t, q.Add(e), ErrAlreadyPending)
	assert.Equal(t, Ticks(1128), e.Expires())
	assert.Equal(t, 1, q.Len())

	assert.ErrorIs(t, q.Add(nil), ErrNilEntry)
}
