package kernel

import "time"

// eventWaiter is the per-waiter payload spec 4.6 describes: the bits the
// waiter cares about (listen), the pattern it wants to see in those bits
// (desired), an optional all-of subset that must additionally be present
// (group), and where observed bits accumulate until wake (recv).
type eventWaiter struct {
	listen, desired, group uint32
	recv                   *uint32
}

// Event is an event-flag group (spec 4.6): a 32-bit value with per-bit
// edge/level semantics (edgeMask) and an optional clear-on-report mask.
// Waiters block on a combination of listen/desired/group until their
// condition is satisfied.
type Event struct {
	id                ID
	k                 *Kernel
	edgeMask          uint32
	clearOnReportMask uint32
	value             uint32
	deferred          uint32
	blocked           dlist[*Thread]
}

// ID returns the event's registry handle.
func (e *Event) ID() ID { return e.id }

// report computes spec 4.6's "report" value from the current value and
// deferred (edge-accumulated) bits: edge-masked bits report a change
// since the last report, level-masked bits report their current state.
func (e *Event) report() uint32 {
	return (e.deferred & e.edgeMask) | (e.value &^ e.edgeMask)
}

// evaluateEvent applies the wait/wake rule from spec 4.6 once: unreported
// bits (within listen) that match desired are OR'd into *out, and the
// waiter is satisfied iff group==0 and *out != 0, or group != 0 and *out
// fully covers group. The returned unreported value is exactly the bits
// just OR'd into *out by this call — the caller needs it separately from
// *out's accumulated total, since spec 4.6's "clear reported bits from
// value/deferred" applies only to bits actually reported to some waiter
// this round, not to the waiter's whole accumulated receive buffer (which
// may carry bits matched in an earlier, still-unsatisfied round).
func evaluateEvent(report, listen, desired, group uint32, out *uint32) (unreported uint32, satisfied bool) {
	unreported = ^(report ^ desired) & listen
	if unreported != 0 {
		*out |= unreported
	}
	if group == 0 {
		return unreported, *out != 0
	}
	return unreported, (*out & group) == group
}

// Wait blocks until the (listen, desired, group) condition is satisfied
// by the event's current value/deferred bits (or, for a new change, by a
// future Set), storing observed bits into *out. timeout 0 is a
// non-blocking try.
func (e *Event) Wait(listen, desired, group uint32, timeout time.Duration, out *uint32) Status {
	k := e.k
	self := k.currentOrNil()
	blockable := self != nil && !k.port.InInterrupt()
	if timeout != 0 && !blockable {
		return fail(ComponentEvent, ReasonWouldBlock)
	}

	*out = 0
	w := &eventWaiter{listen: listen, desired: desired, group: group, recv: out}
	var blocked bool
	fn := func() Status {
		r := e.report()
		if unreported, ok := evaluateEvent(r, listen, desired, group, out); ok {
			e.value &^= unreported & e.clearOnReportMask
			e.deferred &^= unreported & e.edgeMask
			return Success
		}
		if timeout == 0 {
			return pending(ComponentEvent, ReasonEmpty)
		}
		self.waitPayload = w
		k.exitTrigger(WaitEvent, &e.blocked, timeout, wakeEventTimeout)
		blocked = true
		return Status(0)
	}

	var result Status
	if blockable {
		result = invokeThread(k, self, fn)
	} else {
		result = invoke(k, fn)
	}
	if blocked {
		return self.waitResult
	}
	return result
}

func wakeEventTimeout(k *Kernel, tn *timeoutNode) {
	if t := threadOfTimeout(k, tn); t != nil {
		k.entryTrigger(t, timeoutStatus(ComponentEvent))
	}
}

// Set applies setMask/clearMask/toggleMask to the event's value (spec
// 4.6: new = (value &^ clear | set) ^ toggle), then evaluates every
// blocked waiter against the resulting report exactly once before waking
// any of them — matching the original source's collect-then-mutate loop
// structure rather than interleaving wake and bookkeeping. Only the union
// of bits actually reported to some waiter this round is cleared from
// value/deferred afterward (per original_source/kernal/event.c's
// _event_set_privilege_routine): a clearOnReportMask bit with no waiter
// listening for it is left alone rather than being wiped unobserved,
// matching spec 3's "value_bits never carries a bit that has been reported
// and cleared in the same privileged step" (a bit nobody was waiting on was
// never reported, so it must not be cleared either). Safe to call from
// interrupt context.
func (e *Event) Set(setMask, clearMask, toggleMask uint32) Status {
	return callerInvoke(e.k, func() Status {
		newValue := (e.value &^ clearMask) | setMask
		newValue ^= toggleMask
		diff := e.value ^ newValue
		e.deferred |= diff
		e.value = newValue
		r := e.report()

		var toWake []*Thread
		var reported uint32
		e.blocked.iterate(func(n *node[*Thread]) bool {
			t := n.value
			w := t.waitPayload.(*eventWaiter)
			unreported, satisfied := evaluateEvent(r, w.listen, w.desired, w.group, w.recv)
			reported |= unreported
			if satisfied {
				toWake = append(toWake, t)
			}
			return true
		})
		for _, t := range toWake {
			e.k.entryTrigger(t, Success)
		}

		e.value &^= reported & e.clearOnReportMask
		e.deferred &^= reported & e.edgeMask
		return Success
	})
}

// Value returns the event's current raw value bits, for diagnostics.
func (e *Event) Value() uint32 {
	return callerInvoke(e.k, func() uint32 { return e.value })
}
