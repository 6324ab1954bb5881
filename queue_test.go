package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueSendReceiveFIFO(t *testing.T) {
	k := newUnbootedKernel(t)
	id, err := k.NewQueue(4, 2)
	require.NoError(t, err)
	q, ok := k.queues.at(id)
	require.True(t, ok)

	require.True(t, q.Send([]byte("aaaa"), 0, false).IsSuccess())
	require.True(t, q.Send([]byte("bbbb"), 0, false).IsSuccess())
	assert.Equal(t, 2, q.Len())

	status := q.Send([]byte("cccc"), 0, false)
	assert.False(t, status.IsSuccess())
	assert.Equal(t, ReasonFull, status.Reason())

	out := make([]byte, 4)
	require.True(t, q.Receive(out, 0).IsSuccess())
	assert.Equal(t, "aaaa", string(out))

	require.True(t, q.Receive(out, 0).IsSuccess())
	assert.Equal(t, "bbbb", string(out))

	status = q.Receive(out, 0)
	assert.False(t, status.IsSuccess())
	assert.Equal(t, ReasonEmpty, status.Reason())
}

func TestQueueSendToFront(t *testing.T) {
	k := newUnbootedKernel(t)
	id, err := k.NewQueue(4, 3)
	require.NoError(t, err)
	q, ok := k.queues.at(id)
	require.True(t, ok)

	require.True(t, q.Send([]byte("1111"), 0, false).IsSuccess())
	require.True(t, q.Send([]byte("2222"), 0, true).IsSuccess())

	out := make([]byte, 4)
	require.True(t, q.Receive(out, 0).IsSuccess())
	assert.Equal(t, "2222", string(out))
}

func TestQueueWrongSlotSize(t *testing.T) {
	k := newUnbootedKernel(t)
	id, err := k.NewQueue(4, 1)
	require.NoError(t, err)
	q, ok := k.queues.at(id)
	require.True(t, ok)

	status := q.Send([]byte("too-long"), 0, false)
	assert.False(t, status.IsSuccess())
	assert.Equal(t, ReasonOutOfRange, status.Reason())
}

func TestQueueCapAndLen(t *testing.T) {
	k := newUnbootedKernel(t)
	id, err := k.NewQueue(2, 5)
	require.NoError(t, err)
	q, ok := k.queues.at(id)
	require.True(t, ok)

	assert.Equal(t, 5, q.Cap())
	assert.Equal(t, 0, q.Len())
}
