package kernel

import (
	"time"

	"github.com/joeycumines/go-rtkernel/port"
)

// Forever is the timeout sentinel meaning "block with no timeout".
const Forever time.Duration = -1

// WaitReason records why a thread is currently BLOCKED, so a primitive's
// wake callback can validate that the wake it is handling actually
// belongs to it.
type WaitReason int

const (
	WaitNone WaitReason = iota
	WaitSleep
	WaitSemaphore
	WaitMutex
	WaitEvent
	WaitQueueSend
	WaitQueueReceive
	WaitTopic
	WaitPool
)

func (w WaitReason) String() string {
	switch w {
	case WaitSleep:
		return "sleep"
	case WaitSemaphore:
		return "semaphore"
	case WaitMutex:
		return "mutex"
	case WaitEvent:
		return "event"
	case WaitQueueSend:
		return "queue-send"
	case WaitQueueReceive:
		return "queue-receive"
	case WaitTopic:
		return "topic"
	case WaitPool:
		return "pool"
	default:
		return "none"
	}
}

// Thread is a statically-reserved unit of execution: its control block,
// stack, and priority are fixed at boot (WithThread) and never destroyed.
type Thread struct {
	id   ID
	k    *Kernel
	name string

	priority     int
	basePriority int
	entry        func(*Thread)
	stackBytes   int
	sp           port.StackPointer

	state *fastThreadState

	// runNode is the single node a thread occupies on either a ready list
	// or a primitive's blocked list — never both at once.
	runNode *node[*Thread]
	timeout *timeoutNode

	waitReason  WaitReason
	waitResult  Status
	waitPayload any

	metrics  *ThreadMetrics
	runStart time.Duration
}

// ID returns the thread's registry handle.
func (t *Thread) ID() ID { return t.id }

// Name returns the thread's diagnostic name.
func (t *Thread) Name() string { return t.name }

// Priority returns the thread's current effective priority (0 = highest).
func (t *Thread) Priority() int { return t.priority }

// BasePriority returns the thread's declared (non-inherited) priority.
func (t *Thread) BasePriority() int { return t.basePriority }

// State returns the thread's current scheduling state.
func (t *Thread) State() ThreadState { return t.state.Load() }

// PercentUsed returns the thread's recent busy percentage (0..100), or 0
// if metrics were not enabled via WithMetrics.
func (t *Thread) PercentUsed() float64 {
	if t.metrics == nil {
		return 0
	}
	return t.metrics.PercentUsed()
}

// scheduler holds the per-priority ready lists and the currently running
// thread. Index 0 is the highest priority.
type scheduler struct {
	ready          []dlist[*Thread]
	current        *Thread
	idle           *Thread
	needReschedule bool

	// idleWake is the blocked list backing Thread.Sleep: a sleeping thread
	// has no resource to wait for, only a timeout, so it parks here until
	// either its timeout fires or something explicitly wakes it (Resume
	// does not use this path; Sleep has no non-timeout wake source today,
	// but sharing the blocked-list shape keeps exitTrigger/entryTrigger
	// uniform across every primitive).
	idleWake dlist[*Thread]
}

func newScheduler(priorities int) *scheduler {
	return &scheduler{ready: make([]dlist[*Thread], priorities)}
}

// pickNext returns the head of the lowest-numbered non-empty ready list,
// falling back to the idle thread (always ready, lowest priority).
func (s *scheduler) pickNext() *Thread {
	for p := range s.ready {
		if t, ok := s.ready[p].front(); ok {
			return t
		}
	}
	return s.idle
}

// markReady moves t onto its priority's ready list and flags that a
// reschedule decision is owed at the next trampoline exit. A no-op if t is
// already linked onto some list (ready or blocked) — defensive against a
// double-wake race.
func (k *Kernel) markReady(t *Thread) {
	if t.runNode.list != nil {
		return
	}
	t.state.Store(StateReady)
	k.sched.ready[t.priority].push(t.runNode, Tail)
	k.sched.needReschedule = true
}

// scheduleDecision inspects whether the trampoline owes a context switch:
// called once, right before the critical section is released. A current
// thread that is still RUNNING is switched out only for a strictly
// higher-priority thread, and is then put back at the head of its own
// priority's ready list (RUNNING -> READY); the idle thread is never linked
// onto a ready list.
func (k *Kernel) scheduleDecision() (next *Thread, switchNeeded bool) {
	if !k.sched.needReschedule {
		return nil, false
	}
	k.sched.needReschedule = false
	next = k.sched.pickNext()
	cur := k.sched.current
	if next == cur {
		if cur != nil {
			cur.runNode.list.remove(cur.runNode)
			cur.state.Store(StateRunning)
		}
		return nil, false
	}
	if cur != nil && cur != k.sched.idle && cur.state.Load() == StateRunning {
		if next.priority >= cur.priority {
			return nil, false
		}
		cur.state.Store(StateReady)
		k.sched.ready[cur.priority].push(cur.runNode, Head)
	}
	return next, true
}

// commitDispatch performs every control-block mutation a context switch to
// next requires (ready-list removal, RUNNING state, scheduler.current,
// per-thread metrics) — spec 5 requires these happen under the critical
// section, same as any other list/control-block mutation. Must be called
// with the critical section still held. Returns the stack-pointer slot/value
// the caller's subsequent port.ContextSwitch needs; that call is safe to make
// only after releasing the critical section, since on a real port it may
// itself yield the CPU, and in hostsim it blocks the calling goroutine.
func (k *Kernel) commitDispatch(next, prev *Thread) (curSlot *port.StackPointer, nextSP port.StackPointer) {
	if next.runNode.list != nil {
		next.runNode.list.remove(next.runNode)
	}
	next.state.Store(StateRunning)
	k.sched.current = next

	now := time.Duration(k.port.NowUS()) * time.Microsecond
	if prev != nil && k.metricsEnabled && prev.metrics != nil {
		prev.metrics.recordRun(now, now-prev.runStart)
	}
	next.runStart = now

	if prev != nil {
		curSlot = &prev.sp
	}
	return curSlot, next.sp
}

// dispatch performs a full context switch to next: commitDispatch's
// bookkeeping runs inside its own critical section, and only the hardware
// handoff (port.ContextSwitch) happens after releasing it. prev is the
// thread whose own goroutine is making this call (nil only at boot, when
// there is no previously-running thread to park) — used directly by
// Boot, which has no critical section already open. invokeThread
// (trampoline.go) instead calls commitDispatch directly from inside the
// critical section it already holds, to avoid a redundant lock/unlock
// round trip between scheduleDecision and the commit.
func (k *Kernel) dispatch(next, prev *Thread) {
	unlock := k.lock()
	curSlot, nextSP := k.commitDispatch(next, prev)
	unlock()
	k.port.ContextSwitch(curSlot, nextSP)
}

// byPriorityFIFO orders a blocked/ready list so its head is always the
// highest-priority, earliest-arrived thread (spec 5: "wake order is strict
// priority, FIFO within priority"): a new arrival continues past every
// existing entry of equal-or-higher priority (smaller or equal number) and
// stops at the first entry of strictly lower priority (larger number).
func byPriorityFIFO(cur, n *node[*Thread]) bool {
	if cur == nil {
		return false
	}
	return cur.value.priority <= n.value.priority
}

// exitTrigger blocks the currently running thread onto blockedList, per
// spec 4.5: RUNNING -> BLOCKED. blockedList is kept priority-sorted with
// FIFO tie-break (byPriorityFIFO) so primitives can always wake the head.
// If timeoutDur is Forever, no timeout node is armed. Must be called from
// within the critical section, on behalf of the current thread only.
func (k *Kernel) exitTrigger(reason WaitReason, blockedList *dlist[*Thread], timeoutDur time.Duration, onTimeout timeoutCallback) {
	t := k.sched.current
	t.waitReason = reason
	t.waitResult = Success
	t.state.Store(StateBlocked)
	blockedList.insertSorted(t.runNode, byPriorityFIFO)
	if timeoutDur != Forever {
		k.timerArm(t.timeout, timeoutDur, true, onTimeout)
	}
	k.sched.needReschedule = true
}

// reprioritize changes t's effective priority and, if t is currently
// linked onto a list (ready or blocked), moves it to preserve that list's
// ordering invariant: the ready array by re-pushing onto the new
// priority's FIFO tail, a blocked list by re-inserting at its
// priority-sorted position. Used by mutex priority inheritance (spec
// 4.6). A no-op if the priority is unchanged; if t is not linked onto any
// list (e.g. it is RUNNING), only its priority field changes.
func (k *Kernel) reprioritize(t *Thread, priority int) {
	if t.priority == priority {
		return
	}
	list := t.runNode.list
	t.priority = priority
	if list == nil {
		return
	}
	switch t.state.Load() {
	case StateReady:
		list.remove(t.runNode)
		k.sched.ready[priority].push(t.runNode, Tail)
	case StateBlocked:
		list.remove(t.runNode)
		list.insertSorted(t.runNode, byPriorityFIFO)
	}
}

// entryTrigger wakes a BLOCKED thread: removes it from its blocked list,
// cancels any armed timeout, stores the wait result, and places it back
// on its ready list. Returns false if t was not actually blocked (already
// woken by a racing timeout/give, per the original source's
// de-duplication guard).
func (k *Kernel) entryTrigger(t *Thread, result Status) bool {
	if t.state.Load() != StateBlocked {
		return false
	}
	if t.runNode.list != nil {
		t.runNode.list.remove(t.runNode)
	}
	k.timerDisarm(t.timeout)
	t.waitResult = result
	k.markReady(t)
	return true
}
