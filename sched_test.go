package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBareThread constructs a Thread control block directly, bypassing
// Kernel.Boot (and so never acquiring a real hardware stack pointer):
// usable only for exercising list-membership and priority bookkeeping that
// never reaches a hostsim-backed context switch.
func newBareThread(k *Kernel, name string, priority int) *Thread {
	id, obj, ok := k.threads.allocate()
	if !ok {
		panic("thread table exhausted")
	}
	obj.id = id
	obj.k = k
	obj.name = name
	obj.priority = priority
	obj.basePriority = priority
	obj.state = newFastThreadState()
	obj.runNode = newNode(obj)
	obj.timeout = newTimeoutNode()
	return obj
}

func TestByPriorityFIFOOrdering(t *testing.T) {
	var l dlist[*Thread]
	k := newUnbootedKernel(t)
	a := newBareThread(k, "a", 5)
	b := newBareThread(k, "b", 2)
	c := newBareThread(k, "c", 5)
	d := newBareThread(k, "d", 2)

	l.insertSorted(a.runNode, byPriorityFIFO)
	l.insertSorted(b.runNode, byPriorityFIFO)
	l.insertSorted(c.runNode, byPriorityFIFO)
	l.insertSorted(d.runNode, byPriorityFIFO)

	var order []string
	l.iterate(func(n *node[*Thread]) bool {
		order = append(order, n.value.name)
		return true
	})
	// Priority 2 threads (b, d) sort before priority 5 threads (a, c); FIFO
	// arrival order is preserved within each priority.
	assert.Equal(t, []string{"b", "d", "a", "c"}, order)
}

func TestReprioritizeMovesReadyThreadBetweenLists(t *testing.T) {
	k := newUnbootedKernel(t)
	th := newBareThread(k, "t", 5)
	k.sched.ready[5].push(th.runNode, Tail)
	th.state.Store(StateReady)

	k.reprioritize(th, 2)

	assert.Equal(t, 2, th.priority)
	assert.Equal(t, 0, k.sched.ready[5].Len())
	assert.Equal(t, 1, k.sched.ready[2].Len())
	front, ok := k.sched.ready[2].front()
	require.True(t, ok)
	assert.Same(t, th, front)
}

func TestReprioritizePreservesBlockedListOrdering(t *testing.T) {
	k := newUnbootedKernel(t)
	var blocked dlist[*Thread]
	lo := newBareThread(k, "lo", 8)
	mid := newBareThread(k, "mid", 6)
	hi := newBareThread(k, "hi", 1)

	blocked.insertSorted(mid.runNode, byPriorityFIFO)
	blocked.insertSorted(lo.runNode, byPriorityFIFO)
	mid.state.Store(StateBlocked)

	// Raising mid's priority above hi's should move it to the front of the
	// blocked list once hi is also inserted, preserving the "lowest number
	// first" invariant (spec 8: strict priority, FIFO tie-break).
	k.reprioritize(mid, 0)
	blocked.insertSorted(hi.runNode, byPriorityFIFO)

	front, ok := blocked.front()
	require.True(t, ok)
	assert.Same(t, mid, front, "mid's inherited priority 0 must sort ahead of hi's priority 1")
}

func TestReprioritizeNoopWhenUnchangedAndNoListFixupWhenUnlinked(t *testing.T) {
	k := newUnbootedKernel(t)
	th := newBareThread(k, "t", 5)

	// Same priority: no-op, regardless of list membership.
	k.reprioritize(th, 5)
	assert.Equal(t, 5, th.priority)
	assert.Nil(t, th.runNode.list)

	// Not linked onto any list (e.g. currently RUNNING): priority still
	// updates, but there is no list to fix up.
	k.reprioritize(th, 1)
	assert.Equal(t, 1, th.priority)
	assert.Nil(t, th.runNode.list)
}

func TestMarkReadyIgnoresAlreadyLinkedThread(t *testing.T) {
	k := newUnbootedKernel(t)
	th := newBareThread(k, "t", 3)
	var other dlist[*Thread]
	other.push(th.runNode, Tail)

	k.sched.needReschedule = false
	k.markReady(th)

	// th is already linked onto `other`; markReady must not steal it onto
	// the ready list or flag a reschedule (markReady's doc: "no-op ...
	// defensive against a double-wake race").
	assert.Same(t, &other, th.runNode.list)
	assert.False(t, k.sched.needReschedule)
	assert.Equal(t, 0, k.sched.ready[3].Len())
}
