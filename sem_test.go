package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphoreTakeGiveNonBlocking(t *testing.T) {
	k := newUnbootedKernel(t)
	id, err := k.NewSemaphore(1, 3)
	require.NoError(t, err)
	s, ok := k.semaphores.at(id)
	require.True(t, ok)

	assert.Equal(t, 1, s.Remain())

	require.True(t, s.Take(0).IsSuccess())
	assert.Equal(t, 0, s.Remain())

	status := s.Take(0)
	assert.False(t, status.IsSuccess())
	assert.Equal(t, ReasonEmpty, status.Reason())

	require.True(t, s.Give().IsSuccess())
	assert.Equal(t, 1, s.Remain())
}

func TestSemaphoreGiveSaturatesAtMax(t *testing.T) {
	k := newUnbootedKernel(t)
	id, err := k.NewSemaphore(2, 2)
	require.NoError(t, err)
	s, ok := k.semaphores.at(id)
	require.True(t, ok)

	require.True(t, s.Give().IsSuccess())
	assert.Equal(t, 2, s.Remain(), "Give must not exceed max_count")
}

func TestSemaphoreTakeWithTimeoutRejectedWithoutCurrentThread(t *testing.T) {
	k := newUnbootedKernel(t)
	id, err := k.NewSemaphore(0, 1)
	require.NoError(t, err)
	s, ok := k.semaphores.at(id)
	require.True(t, ok)

	// A nonzero timeout from a context that cannot block (no current
	// thread, not yet booted) is rejected outright (spec 7(b)).
	status := s.Take(1000)
	assert.False(t, status.IsSuccess())
	assert.Equal(t, ReasonWouldBlock, status.Reason())
}
