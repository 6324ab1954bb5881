package kernel

import "github.com/joeycumines/go-rtkernel/port"

// lock enters the kernel's critical section — the sole concurrency
// barrier spec 5 describes — and returns a function that exits it.
// Nestable: the hardware port's EnterCritical/ExitCritical pair is
// required to nest correctly on its own, so calling lock while already
// inside one is safe.
func (k *Kernel) lock() func() {
	saved := k.port.EnterCritical()
	return func() { k.port.ExitCritical(saved) }
}

// invoke is the privilege trampoline spec 4.4 names privilege_invoke, used
// by the interrupt-safe subset of the API (give/set/publish/free and the
// tick handler) that spec 4.5/5 says "defer scheduling to the next safe
// point" rather than switching immediately: it enters the critical
// section, runs fn, and if fn left a different thread runnable, asks the
// hardware port to trigger a reschedule asynchronously instead of
// performing the switch itself. The actual switch happens the next time a
// thread-context call (invokeThread) exits its own critical section —
// mirroring a PendSV-style deferred tail handler, and sidestepping the fact
// that a host simulation has no way to forcibly preempt a goroutine that is
// genuinely running thread-body code outside any kernel call.
func invoke[T any](k *Kernel, fn func() T) T {
	unlock := k.lock()
	result := fn()
	kick := k.sched.needReschedule
	unlock()
	if kick {
		k.port.TriggerReschedule()
	}
	return result
}

// invokeVoid is invoke for routines with no return value.
func invokeVoid(k *Kernel, fn func()) {
	invoke(k, func() struct{} {
		fn()
		return struct{}{}
	})
}

// invokeThread is the privilege trampoline used by every API called from a
// thread's own body (self): blocking primitives (take/lock/wait/send/
// receive/alloc/sleep) and the thread-context form of give/set/publish that
// spec scenario 1 relies on to preempt the caller immediately. Because self
// is, by construction, the thread whose own goroutine is making this call,
// a context switch decided here can — and does — genuinely park self and
// resume it later, giving deterministic "the higher-priority thread runs
// before this call returns" semantics.
//
// commitDispatch's bookkeeping (ready-list removal, RUNNING state,
// scheduler.current) runs here, inside the same critical section fn ran
// under — spec 5 requires every list/control-block mutation happen under
// the critical section, and a concurrently firing interrupt (e.g. hostsim's
// tick handler, which re-acquires the critical section the instant this one
// is released) must never observe those lists mid-update. Only the
// hardware handoff itself (port.ContextSwitch, which may block this
// goroutine until it's resumed) happens after unlock.
func invokeThread[T any](k *Kernel, self *Thread, fn func() T) T {
	unlock := k.lock()
	result := fn()
	next, switchNeeded := k.scheduleDecision()
	var curSlot *port.StackPointer
	var nextSP port.StackPointer
	if switchNeeded {
		curSlot, nextSP = k.commitDispatch(next, self)
	}
	unlock()
	if switchNeeded {
		k.port.ContextSwitch(curSlot, nextSP)
	}
	return result
}

// invokeThreadVoid is invokeThread for routines with no return value.
func invokeThreadVoid(k *Kernel, self *Thread, fn func()) {
	invokeThread(k, self, func() struct{} {
		fn()
		return struct{}{}
	})
}

// callerInvoke picks the trampoline appropriate to the caller's own
// context, for APIs spec 4.6/5 allows from either a thread or an ISR
// (give/set/free/publish and the read-only accessors): when called from a
// thread's own body it uses invokeThread, so a wake it produces can
// preempt the caller immediately (spec scenario 1); otherwise (interrupt
// context, or no thread scheduled yet) it uses the deferred invoke.
func callerInvoke[T any](k *Kernel, fn func() T) T {
	if !k.port.InInterrupt() {
		if self := k.currentOrNil(); self != nil {
			return invokeThread(k, self, fn)
		}
	}
	return invoke(k, fn)
}

// callerInvokeVoid is callerInvoke for routines with no return value.
func callerInvokeVoid(k *Kernel, fn func()) {
	callerInvoke(k, func() struct{} {
		fn()
		return struct{}{}
	})
}
