package kernel

import "time"

// TimerMode selects a user timer's re-arm behavior (spec 4.3/E.4).
type TimerMode int

const (
	// TimerOnce fires its callback exactly once, then goes idle.
	TimerOnce TimerMode = iota
	// TimerCycle re-arms itself for another period immediately after firing.
	TimerCycle
	// TimerTemporary is a one-shot timer drawn from the dedicated free-list
	// pool (Kernel.AfterFunc) and automatically returned to that pool once
	// it fires. Never created via NewTimer.
	TimerTemporary
)

// Timer is a user-visible software timer (spec 4.3): its own re-arm/retire
// bookkeeping runs inline from Kernel.tick, still under the critical
// section, while its callback body runs later and outside it, via
// drainPendingTimerFires.
type Timer struct {
	id       ID
	k        *Kernel
	mode     TimerMode
	period   time.Duration
	callback func()
	node     *timeoutNode
	running  bool
	tempIdx  int // valid only for TimerTemporary, indexes k.tempTimers/k.tempTimerFree

	// pendingFires counts firings since the last drainPendingTimerFires
	// pass (more than one only for a CYCLE timer that caught up several
	// periods within a single tick), and pendingNode is the single node
	// this timer occupies on wheel.pendingTimerFires while that count is
	// outstanding — pushed once per 0->1 transition, never duplicated.
	pendingFires int
	pendingNode  *node[*Timer]
}

// ID returns the timer's registry handle.
func (t *Timer) ID() ID { return t.id }

// Busy reports whether the timer is currently armed.
func (t *Timer) Busy() bool {
	return callerInvoke(t.k, func() bool { return t.running })
}

// Start arms the timer for its configured period. Calling Start on an
// already-running ONCE or CYCLE timer re-arms it from now. Not valid on a
// TEMPORARY timer, which is armed automatically by AfterFunc.
func (t *Timer) Start() Status {
	return callerInvoke(t.k, func() Status {
		if t.mode == TimerTemporary {
			return fail(ComponentTimer, ReasonWrongContext)
		}
		t.running = true
		t.k.timerArm(t.node, t.period, false, t.node.fire)
		return Success
	})
}

// Stop disarms the timer. A no-op, returning SUCCESS, if it is not running.
func (t *Timer) Stop() Status {
	return callerInvoke(t.k, func() Status {
		t.running = false
		t.k.timerDisarm(t.node)
		return Success
	})
}

// armTimerFire is every Timer's timeoutNode.fire callback: invoked inline
// from Kernel.tick, while the critical section tick runs under is still
// held. It performs the timer's own re-arm/retire bookkeeping synchronously
// — a CYCLE timer re-arms itself immediately, against the delay's own
// leftover delta, so a single tick spanning several of its periods sweeps
// up every one of them as tick's loop revisits the waiting list — and
// defers only the arbitrary user callback body, via pendingTimerFires, to
// run later outside the critical section.
//
// A TEMPORARY timer's slot is not returned to the free-list pool here: that
// happens in drainPendingTimerFires, after the deferred callback has
// actually run, so a racing AfterFunc can never reuse — and so overwrite —
// a control block whose callback invocation is still queued.
func armTimerFire(k *Kernel, t *Timer) {
	switch t.mode {
	case TimerCycle:
		t.running = true
		k.timerArm(t.node, t.period, false, t.node.fire)
	case TimerTemporary:
		t.running = false
	default: // TimerOnce
		t.running = false
	}
	t.pendingFires++
	if t.pendingNode.list == nil {
		k.wheel.pendingTimerFires.push(t.pendingNode, Tail)
	}
}

// drainPendingTimerFires runs every user timer callback queued by
// armTimerFire, outside the critical section, invoking it once per firing
// accumulated since the last drain (more than once only for a CYCLE timer
// that caught up several periods within a single tick). Called by the
// kernel's idle loop, alongside drainPendingCallbacks.
func (k *Kernel) drainPendingTimerFires() {
	for {
		unlock := k.lock()
		t, ok := k.wheel.pendingTimerFires.popFront()
		var n int
		var cb func()
		var temporary bool
		if ok {
			n = t.pendingFires
			t.pendingFires = 0
			cb = t.callback
			temporary = t.mode == TimerTemporary
		}
		unlock()
		if !ok {
			return
		}
		for i := 0; i < n; i++ {
			if cb != nil {
				cb()
			}
		}
		if temporary {
			invokeVoid(k, func() { k.freeTempTimer(t) })
		}
	}
}

// freeTempTimer returns a TEMPORARY timer's slot to the free-list pool.
// Must be called with the critical section held.
func (k *Kernel) freeTempTimer(t *Timer) {
	k.timerDisarm(t.node)
	k.tempTimerFree = append(k.tempTimerFree, t.tempIdx)
}

// NewTimer reserves a static ONCE or CYCLE user timer with the given period
// and callback. Valid only before Boot; use AfterFunc for a dynamically
// scheduled one-shot timer instead.
func (k *Kernel) NewTimer(mode TimerMode, period time.Duration, callback func()) (ID, error) {
	if k.booted {
		return InvalidID, &ConfigError{Option: "NewTimer", Message: "kernel already booted"}
	}
	if mode == TimerTemporary {
		return InvalidID, &ConfigError{Option: "NewTimer", Message: "temporary timers are created via AfterFunc, not NewTimer"}
	}
	if period <= 0 {
		return InvalidID, &ConfigError{Option: "NewTimer", Message: "period must be positive"}
	}
	if callback == nil {
		return InvalidID, &ConfigError{Option: "NewTimer", Message: "callback must not be nil"}
	}
	id, obj, ok := k.timers.allocate()
	if !ok {
		return InvalidID, &ConfigError{Option: "NewTimer", Message: "timer table exhausted"}
	}
	obj.id = id
	obj.k = k
	obj.mode = mode
	obj.period = period
	obj.callback = callback
	obj.node = newTimeoutNode()
	obj.pendingNode = newNode(obj)
	obj.node.fire = func(kk *Kernel, tn *timeoutNode) { armTimerFire(kk, obj) }
	return id, nil
}

// AfterFunc schedules callback to run once, after delay, drawing a slot
// from the TEMPORARY timer free-list pool (spec E.4's dedicated free-list,
// kept separate from the static ONCE/CYCLE table so a burst of deferred
// work never contends with declared timers). Safe to call at runtime, from
// a thread or interrupt context. Returns EXHAUSTED if the pool is empty.
//
// The returned ID's slot is reused once the timer fires; holding onto it
// past that point (to call Stop, say) is only meaningful if the timer is
// known not to have fired yet.
func (k *Kernel) AfterFunc(delay time.Duration, callback func()) (ID, Status) {
	if callback == nil {
		return InvalidID, fail(ComponentTimer, ReasonNullPointer)
	}
	if delay < 0 {
		return InvalidID, fail(ComponentTimer, ReasonOutOfRange)
	}
	var id ID
	status := callerInvoke(k, func() Status {
		if len(k.tempTimerFree) == 0 {
			return fail(ComponentTimer, ReasonExhausted)
		}
		idx := k.tempTimerFree[len(k.tempTimerFree)-1]
		k.tempTimerFree = k.tempTimerFree[:len(k.tempTimerFree)-1]
		obj := &k.tempTimers[idx]
		obj.id = makeID(KindTempTimer, idx)
		obj.k = k
		obj.mode = TimerTemporary
		obj.period = delay
		obj.callback = callback
		obj.tempIdx = idx
		obj.running = true
		if obj.node == nil {
			obj.node = newTimeoutNode()
		}
		if obj.pendingNode == nil {
			obj.pendingNode = newNode(obj)
		}
		obj.node.fire = func(kk *Kernel, tn *timeoutNode) { armTimerFire(kk, obj) }
		k.timerArm(obj.node, delay, false, obj.node.fire)
		id = obj.id
		return Success
	})
	return id, status
}

// TimerByID resolves id to its *Timer, checking both the static table and
// the temporary pool. Returns nil if id does not name a timer slot that has
// ever been used. A temporary timer's ID carries no generation: once its
// slot is reused by a later AfterFunc, the old ID resolves to the new timer.
func (k *Kernel) TimerByID(id ID) *Timer {
	switch id.Kind() {
	case KindTimer:
		if obj, ok := k.timers.at(id); ok {
			return obj
		}
	case KindTempTimer:
		idx := id.index()
		if idx >= 0 && idx < len(k.tempTimers) && k.tempTimers[idx].id == id {
			return &k.tempTimers[idx]
		}
	}
	return nil
}
