package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutexLockUnlockUncontended(t *testing.T) {
	k := newUnbootedKernel(t)
	id, err := k.NewMutex()
	require.NoError(t, err)
	m, ok := k.mutexes.at(id)
	require.True(t, ok)

	owner := newBareThread(k, "owner", 4)
	k.sched.current = owner

	require.True(t, m.Lock(0).IsSuccess())
	assert.Same(t, owner, m.owner)
	assert.Equal(t, owner.basePriority, m.ownerBasePriority)

	require.True(t, m.Unlock().IsSuccess())
	assert.Nil(t, m.owner)
}

func TestMutexRecursiveLockRejected(t *testing.T) {
	k := newUnbootedKernel(t)
	id, err := k.NewMutex()
	require.NoError(t, err)
	m, ok := k.mutexes.at(id)
	require.True(t, ok)

	owner := newBareThread(k, "owner", 4)
	k.sched.current = owner
	require.True(t, m.Lock(0).IsSuccess())

	status := m.Lock(0)
	assert.False(t, status.IsSuccess())
	assert.Equal(t, ReasonRecursiveNotSupported, status.Reason())
}

func TestMutexUnlockByNonOwnerRejected(t *testing.T) {
	k := newUnbootedKernel(t)
	id, err := k.NewMutex()
	require.NoError(t, err)
	m, ok := k.mutexes.at(id)
	require.True(t, ok)

	owner := newBareThread(k, "owner", 4)
	other := newBareThread(k, "other", 4)
	k.sched.current = owner
	require.True(t, m.Lock(0).IsSuccess())

	k.sched.current = other
	status := m.Unlock()
	assert.False(t, status.IsSuccess())
	assert.Equal(t, ReasonWrongOwner, status.Reason())
	assert.Same(t, owner, m.owner, "a failed unlock must not disturb ownership")
}

func TestMutexLockBusyWhenNonBlockingAndHeld(t *testing.T) {
	k := newUnbootedKernel(t)
	id, err := k.NewMutex()
	require.NoError(t, err)
	m, ok := k.mutexes.at(id)
	require.True(t, ok)

	owner := newBareThread(k, "owner", 5)
	hi := newBareThread(k, "hi", 2)
	k.sched.current = owner
	require.True(t, m.Lock(0).IsSuccess())

	k.sched.current = hi
	status := m.Lock(0)
	assert.False(t, status.IsSuccess())
	assert.Equal(t, ReasonBusy, status.Reason())
	// A non-blocking attempt never actually joins the blocked list, so it
	// must not perturb the owner's priority (inheritance only applies to a
	// caller that actually blocks).
	assert.Equal(t, 5, owner.priority)
}

func TestMutexUnlockHandsOffToHighestPriorityWaiter(t *testing.T) {
	k := newUnbootedKernel(t)
	id, err := k.NewMutex()
	require.NoError(t, err)
	m, ok := k.mutexes.at(id)
	require.True(t, ok)

	owner := newBareThread(k, "owner", 5)
	midWaiter := newBareThread(k, "mid", 3)
	hiWaiter := newBareThread(k, "hi", 1)

	k.sched.current = owner
	require.True(t, m.Lock(0).IsSuccess())

	// Place both waiters directly on the mutex's blocked list in priority
	// order, as exitTrigger would, without routing through the trampoline
	// (which would attempt a real hardware context switch neither of these
	// bare threads has a stack for).
	midWaiter.state.Store(StateBlocked)
	hiWaiter.state.Store(StateBlocked)
	m.blocked.insertSorted(midWaiter.runNode, byPriorityFIFO)
	m.blocked.insertSorted(hiWaiter.runNode, byPriorityFIFO)

	unlock := k.lock()
	status := func() Status {
		if m.owner != owner {
			return fail(ComponentMutex, ReasonWrongOwner)
		}
		k.reprioritize(m.owner, m.ownerBasePriority)
		if w, ok := m.blocked.popFront(); ok {
			m.owner = w
			m.ownerBasePriority = w.basePriority
			if front, ok := m.blocked.front(); ok && front.priority < w.priority {
				k.reprioritize(w, front.priority)
			}
			k.entryTrigger(w, Success)
		} else {
			m.owner = nil
		}
		return Success
	}()
	unlock()

	require.True(t, status.IsSuccess())
	assert.Same(t, hiWaiter, m.owner, "ownership must transfer to the highest-priority waiter")
	assert.Equal(t, 1, hiWaiter.basePriority)
	// hiWaiter was already the highest-priority (lowest-numbered) thread in
	// the blocked set, so no remaining waiter can raise it further: the
	// mutex invariant (owner's effective priority >= every blocked waiter's)
	// holds without any additional inheritance step.
	assert.Equal(t, 1, hiWaiter.priority)
	assert.Equal(t, midWaiter.basePriority, midWaiter.priority, "remaining waiter's own priority is untouched")
	assert.Equal(t, StateReady, hiWaiter.State())
}
