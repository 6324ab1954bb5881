package kernel

import "time"

// Kernel returns the owning Kernel, for use inside a thread's own entry
// function (e.g. t.Kernel().NowMS()).
func (t *Thread) Kernel() *Kernel { return t.k }

// Sleep blocks the calling thread for d. Forever arms no timeout, and
// nothing else wakes a sleeping thread: Resume acts only on a SUSPENDED one.
// Must be called from t's own goroutine (its entry function, or something
// it calls synchronously).
func (t *Thread) Sleep(d time.Duration) {
	k := t.k
	invokeThreadVoid(k, t, func() {
		k.exitTrigger(WaitSleep, &k.sched.idleWake, d, wakeSleepTimeout)
	})
}

func wakeSleepTimeout(k *Kernel, tn *timeoutNode) {
	t := threadOfTimeout(k, tn)
	if t == nil {
		return
	}
	k.entryTrigger(t, timeoutStatus(ComponentScheduler))
}

// threadOfTimeout recovers the Thread that owns tn, by linear scan of the
// thread table. Cheap at the table sizes this kernel targets, and avoids
// threading a back-pointer through timeoutNode for the handful of owners
// (Thread, Timer) that need one.
func threadOfTimeout(k *Kernel, tn *timeoutNode) *Thread {
	var found *Thread
	k.threads.forEach(func(id ID, obj *Thread) bool {
		if obj.timeout == tn {
			found = obj
			return false
		}
		return true
	})
	return found
}

// Yield voluntarily gives up the remainder of the current timeslice to any
// other ready thread of equal or higher priority, without blocking.
func (t *Thread) Yield() {
	k := t.k
	invokeThreadVoid(k, t, func() {
		k.sched.ready[t.priority].remove(t.runNode)
		k.markReady(t)
	})
}

// Suspend moves t to SUSPENDED: removed from its ready/blocked list and not
// eligible to run again until Resume. Suspending the calling thread itself
// is permitted and triggers an immediate reschedule.
func (t *Thread) Suspend() {
	k := t.k
	caller := k.currentOrNil()
	call := func() {
		if t.runNode.list != nil {
			t.runNode.list.remove(t.runNode)
		}
		k.timerDisarm(t.timeout)
		t.state.Store(StateSuspended)
		if t == k.sched.current {
			k.sched.needReschedule = true
		}
	}
	if caller == t {
		invokeThreadVoid(k, caller, call)
		return
	}
	invokeVoid(k, call)
}

// Resume moves a SUSPENDED thread back to READY. A no-op for any other
// state.
func (t *Thread) Resume() {
	k := t.k
	call := func() {
		if t.state.Load() != StateSuspended {
			return
		}
		k.markReady(t)
	}
	if caller := k.currentOrNil(); caller == t {
		invokeThreadVoid(k, caller, call)
		return
	}
	invokeVoid(k, call)
}

// threadExit transitions t to StateExit and performs the same trampoline
// dispatch as Sleep/Suspend: called from t's own goroutine, once its entry
// function returns, so the cooperative scheduler (hostsim or otherwise)
// hands control to the next ready thread before t's goroutine itself ends.
// A thread function returning is not expected in normal operation (spec's
// threads run forever), but is handled rather than left to deadlock the
// scheduler.
func (t *Thread) threadExit() {
	k := t.k
	invokeThreadVoid(k, t, func() {
		if t.runNode.list != nil {
			t.runNode.list.remove(t.runNode)
		}
		k.timerDisarm(t.timeout)
		t.state.Store(StateExit)
		k.sched.needReschedule = true
	})
}

// currentOrNil returns the scheduler's current thread without entering the
// critical section — safe because it is only ever used to decide which
// trampoline a public API should use, and a stale read only ever causes the
// ISR-safe (more conservative) trampoline to be chosen.
func (k *Kernel) currentOrNil() *Thread { return k.sched.current }
