package kernel

import (
	"time"

	"github.com/joeycumines/go-rtkernel/port"
)

// timeoutCallback fires when a timeoutNode expires. Runs either inline
// (during Kernel.tick, still inside the critical section, for lightweight
// non-thread callbacks) or deferred onto pendingCallbacks for execution by
// the kernel thread outside the critical section (for thread wake-ups and
// user timer callbacks), selected by timeoutNode.deferred.
type timeoutCallback func(k *Kernel, tn *timeoutNode)

// timeoutNode is the embedded structure used to enroll an object on the
// tickless timeout wheel: a Timer embeds one for its own expiry, and a
// Thread embeds one for blocking-call timeouts (sem.take, mutex.lock,
// event.wait, queue send/receive, pool.alloc, sleep).
type timeoutNode struct {
	link     *node[*timeoutNode]
	duration time.Duration // delta relative to the predecessor's fire time
	armed    bool
	deferred bool
	fire     timeoutCallback
}

func newTimeoutNode() *timeoutNode {
	tn := &timeoutNode{}
	tn.link = newNode(tn)
	return tn
}

// timerWheel holds the three lists spec section 4.3 describes: waiting
// (sorted by relative duration), idle (registered but not armed), and
// pendingCallbacks (expired, awaiting kernel-thread invocation outside the
// critical section). pendingTimerFires is a second, narrower deferral queue
// used only by user timers (usertimer.go): unlike pendingCallbacks, a Timer's
// own re-arm/retire bookkeeping already ran inline by the time it lands
// here — this list exists solely to hand the arbitrary user callback body
// to the kernel thread, outside the critical section.
type timerWheel struct {
	waiting           dlist[*timeoutNode]
	idle              dlist[*timeoutNode]
	pendingCallbacks  dlist[*timeoutNode]
	pendingTimerFires dlist[*Timer]
	systemTime        time.Duration

	// armedAt is the hardware clock reading captured the last time
	// rearmHardwareTimer ran, so the tick handler (which only gets a
	// no-argument callback from the port, per port.HardwarePort) can
	// compute elapsed = now - armedAt itself.
	armedAt time.Duration
}

// timerArm enrolls tn on the waiting list with the given relative delay,
// walking the delta-encoded list exactly as spec 4.3 describes: each
// predecessor's duration is subtracted from the remaining delay until a
// node is found whose duration exceeds what's left, at which point tn is
// inserted there carrying the leftover, and that node's duration shrinks
// by the same amount. Must be called with the critical section held.
func (k *Kernel) timerArm(tn *timeoutNode, delay time.Duration, deferred bool, fire timeoutCallback) {
	if delay < 0 {
		delay = 0
	}
	k.wheel.idle.remove(tn.link)
	k.wheel.waiting.remove(tn.link)
	tn.armed = true
	tn.deferred = deferred
	tn.fire = fire

	remaining := delay
	k.wheel.waiting.insertSorted(tn.link, func(cur, n *node[*timeoutNode]) bool {
		if cur == nil {
			n.value.duration = remaining
			return false
		}
		c := cur.value
		if c.duration <= remaining {
			remaining -= c.duration
			return true
		}
		c.duration -= remaining
		n.value.duration = remaining
		return false
	})
	k.rearmHardwareTimer()
}

// timerDisarm removes tn from the waiting list (if armed), folding its
// remaining duration into its successor so later absolute expiries are
// preserved, per spec 4.3's removal rule. Returns false if tn was not
// armed on the waiting list.
func (k *Kernel) timerDisarm(tn *timeoutNode) bool {
	if !tn.armed || tn.link.list != &k.wheel.waiting {
		tn.armed = false
		k.wheel.idle.remove(tn.link)
		return false
	}
	next := tn.link.next
	ok := k.wheel.waiting.remove(tn.link)
	if ok && next != nil {
		next.value.duration += tn.duration
	}
	tn.armed = false
	tn.duration = 0
	k.rearmHardwareTimer()
	return ok
}

// timerPark moves tn to the idle list: registered (its control block still
// exists and may be re-armed later) but not counted in the waiting queue.
func (k *Kernel) timerPark(tn *timeoutNode) {
	k.timerDisarm(tn)
	k.wheel.idle.push(tn.link, Tail)
}

// rearmHardwareTimer reprograms the hardware one-shot interval to the
// waiting list's new head duration, or disables it (port.Forever) if the
// waiting list is empty.
func (k *Kernel) rearmHardwareTimer() {
	k.wheel.armedAt = time.Duration(k.port.NowUS()) * time.Microsecond
	if front, ok := k.wheel.waiting.front(); ok {
		k.port.ArmNextInterval(front.duration)
		return
	}
	k.port.ArmNextInterval(port.Forever)
}

// tick is the kernel's timer-interrupt entry point, invoked by the
// hardware port's registered tick handler. elapsed is the hardware time
// that has passed since the interval was armed. Expired nodes are either
// fired inline (non-deferred) or moved onto pendingCallbacks for the
// kernel thread to drain outside the critical section. A user timer's
// inline fire (usertimer.go's armTimerFire) re-arms itself synchronously
// against this same call's remaining elapsed time, so a CYCLE timer whose
// period is much shorter than one hardware tick is swept up correctly by
// this loop rather than losing the remainder to idle-thread scheduling
// latency. Must be called with the critical section held (the port's tick
// handler enters one).
func (k *Kernel) tick(elapsed time.Duration) {
	k.wheel.systemTime += elapsed
	remaining := elapsed
	for {
		head, ok := k.wheel.waiting.front()
		if !ok || head.duration > remaining {
			break
		}
		remaining -= head.duration
		k.wheel.waiting.remove(head.link)
		head.duration = 0
		head.armed = false
		if head.deferred {
			k.wheel.pendingCallbacks.push(head.link, Tail)
		} else if head.fire != nil {
			head.fire(k, head)
		}
	}
	if head, ok := k.wheel.waiting.front(); ok {
		head.duration -= remaining
		if head.duration < 0 {
			head.duration = 0
		}
	}
	k.rearmHardwareTimer()
}

// drainPendingCallbacks runs every deferred timer callback queued by tick,
// outside the critical section, one at a time — precisely the handoff
// spec 4.3 describes from ISR-time expiry to kernel-thread-time
// execution. Called by the kernel's idle/dispatch loop.
func (k *Kernel) drainPendingCallbacks() {
	for {
		unlock := k.lock()
		tn, ok := k.wheel.pendingCallbacks.popFront()
		unlock()
		if !ok {
			return
		}
		if tn.fire != nil {
			tn.fire(k, tn)
		}
	}
}

// nowUS returns the hardware port's clock reading in microseconds. Its
// epoch is the port's own (fixed when the port was constructed), not Boot.
func (k *Kernel) nowUS() uint64 {
	return k.port.NowUS()
}

// NowUS returns the hardware port's clock in microseconds since the port's
// epoch.
func (k *Kernel) NowUS() uint64 { return k.nowUS() }

// NowMS returns the hardware port's clock in milliseconds since the port's
// epoch.
func (k *Kernel) NowMS() uint64 { return k.nowUS() / 1000 }
