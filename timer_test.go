package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitingDurations reads off the waiting list's delta-encoded durations in order,
// for asserting the invariant spec 4.3 describes: the cumulative sum up to
// any node equals that node's absolute expiry.
func waitingDurations(k *Kernel) []time.Duration {
	var out []time.Duration
	k.wheel.waiting.iterate(func(n *node[*timeoutNode]) bool {
		out = append(out, n.value.duration)
		return true
	})
	return out
}

func TestTimerArmDeltaEncoding(t *testing.T) {
	k := newUnbootedKernel(t)

	a := newTimeoutNode()
	b := newTimeoutNode()
	c := newTimeoutNode()

	// Arm at absolute offsets 30, 10, 20 (in arming order), which must
	// settle into ascending delta-encoded order: 10, 10, 10 (deltas summing
	// to absolute expiries 10, 20, 30).
	k.timerArm(a, 30*time.Millisecond, false, nil)
	k.timerArm(b, 10*time.Millisecond, false, nil)
	k.timerArm(c, 20*time.Millisecond, false, nil)

	assert.Equal(t, []time.Duration{10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond}, waitingDurations(k))

	var order []*timeoutNode
	k.wheel.waiting.iterate(func(n *node[*timeoutNode]) bool {
		order = append(order, n.value)
		return true
	})
	assert.Equal(t, []*timeoutNode{b, c, a}, order, "nodes must be ordered by absolute expiry, not arming order")
}

func TestTimerDisarmFoldsRemainderIntoSuccessor(t *testing.T) {
	k := newUnbootedKernel(t)

	a := newTimeoutNode()
	b := newTimeoutNode()
	c := newTimeoutNode()

	k.timerArm(a, 10*time.Millisecond, false, nil)
	k.timerArm(b, 20*time.Millisecond, false, nil)
	k.timerArm(c, 30*time.Millisecond, false, nil)
	require.Equal(t, []time.Duration{10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond}, waitingDurations(k))

	ok := k.timerDisarm(b)
	require.True(t, ok)

	// b's 10ms delta folds into c (its successor), so c's absolute expiry
	// (30ms) is preserved even though a node in front of it vanished.
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, waitingDurations(k))
	assert.False(t, b.armed)
}

func TestTimerDisarmOnUnarmedNodeIsNoop(t *testing.T) {
	k := newUnbootedKernel(t)
	tn := newTimeoutNode()
	assert.False(t, k.timerDisarm(tn))
}

func TestTimerTickFiresExpiredInlineCallbacksAndReschedulesRemainder(t *testing.T) {
	k := newUnbootedKernel(t)

	var fired []string
	mk := func(name string) *timeoutNode {
		tn := newTimeoutNode()
		tn.fire = func(*Kernel, *timeoutNode) { fired = append(fired, name) }
		return tn
	}
	a := mk("a")
	b := mk("b")
	c := mk("c")

	k.timerArm(a, 10*time.Millisecond, false, a.fire)
	k.timerArm(b, 20*time.Millisecond, false, b.fire)
	k.timerArm(c, 30*time.Millisecond, false, c.fire)

	// Advance 25ms: a (10ms) and b (20ms absolute) fire; c (30ms absolute,
	// 5ms remaining) stays armed with its delta reduced accordingly.
	k.tick(25 * time.Millisecond)

	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, []time.Duration{5 * time.Millisecond}, waitingDurations(k))
	assert.True(t, c.armed)
}

func TestTimerCycleFiresRepeatedlyAcrossElapsedWindow(t *testing.T) {
	// Spec scenario 5: a period=10ms CYCLE timer armed at t=0; after 35ms
	// elapsed, exactly three callback invocations have run, with the next
	// expiry ~5ms away.
	k := newUnbootedKernel(t)

	var fireCount int
	id, err := k.NewTimer(TimerCycle, 10*time.Millisecond, func() { fireCount++ })
	require.NoError(t, err)
	timer, ok := k.timers.at(id)
	require.True(t, ok)

	require.True(t, timer.Start().IsSuccess())
	assert.True(t, timer.Busy())

	// A single tick spanning 35ms — 3.5 periods — must re-arm the timer
	// three times inline (landing the next expiry ~5ms out) even before the
	// deferred callback body has run once.
	k.tick(35 * time.Millisecond)
	require.True(t, timer.Busy())
	front, ok := k.wheel.waiting.front()
	require.True(t, ok)
	assert.Equal(t, 5*time.Millisecond, front.duration)
	assert.Equal(t, 0, fireCount, "callback body is deferred until drained")

	k.drainPendingTimerFires()
	assert.Equal(t, 3, fireCount)
	assert.True(t, timer.Busy(), "a CYCLE timer re-arms itself after every fire")
}

func TestTimerOnceFiresExactlyOnceAndGoesIdle(t *testing.T) {
	k := newUnbootedKernel(t)

	var fireCount int
	id, err := k.NewTimer(TimerOnce, 10*time.Millisecond, func() { fireCount++ })
	require.NoError(t, err)
	timer, ok := k.timers.at(id)
	require.True(t, ok)

	require.True(t, timer.Start().IsSuccess())
	k.tick(10 * time.Millisecond)
	k.drainPendingTimerFires()
	assert.Equal(t, 1, fireCount)
	assert.False(t, timer.Busy())

	// Advancing further must not fire it again: it is not on the waiting
	// list at all once retired.
	k.tick(100 * time.Millisecond)
	k.drainPendingTimerFires()
	assert.Equal(t, 1, fireCount)
}

func TestTimerStopCancelsWithoutLeakingDurationIntoSuccessor(t *testing.T) {
	// Spec scenario 6: cancelling a timer must not perturb a sibling
	// timer's absolute expiry (the cancelled node's remaining delta folds
	// forward, it does not vanish or double-count).
	k := newUnbootedKernel(t)

	var aFired, bFired int
	aID, err := k.NewTimer(TimerOnce, 10*time.Millisecond, func() { aFired++ })
	require.NoError(t, err)
	bID, err := k.NewTimer(TimerOnce, 20*time.Millisecond, func() { bFired++ })
	require.NoError(t, err)
	a, _ := k.timers.at(aID)
	b, _ := k.timers.at(bID)

	require.True(t, a.Start().IsSuccess())
	require.True(t, b.Start().IsSuccess())
	require.Equal(t, []time.Duration{10 * time.Millisecond, 10 * time.Millisecond}, waitingDurations(k))

	require.True(t, a.Stop().IsSuccess())
	assert.False(t, a.Busy())
	// b's absolute expiry (20ms) is preserved as a single folded delta.
	assert.Equal(t, []time.Duration{20 * time.Millisecond}, waitingDurations(k))

	k.tick(20 * time.Millisecond)
	k.drainPendingTimerFires()
	assert.Equal(t, 0, aFired)
	assert.Equal(t, 1, bFired)
}

func TestAfterFuncDrawsFromTemporaryFreeListAndReturnsSlotOnFire(t *testing.T) {
	k := newUnbootedKernel(t, WithTemporaryTimerCapacity(1))

	var fired bool
	id, status := k.AfterFunc(5*time.Millisecond, func() { fired = true })
	require.True(t, status.IsSuccess())
	assert.Equal(t, KindTempTimer, id.Kind())

	// Pool is exhausted with the single slot in use.
	_, status = k.AfterFunc(5*time.Millisecond, func() {})
	assert.False(t, status.IsSuccess())
	assert.Equal(t, ReasonExhausted, status.Reason())

	k.tick(5 * time.Millisecond)
	k.drainPendingTimerFires()
	assert.True(t, fired)

	// The slot is back on the free list once the timer has fired.
	_, status = k.AfterFunc(5*time.Millisecond, func() {})
	assert.True(t, status.IsSuccess())
}
