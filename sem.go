package kernel

import "time"

// Semaphore is a counting semaphore, per spec 4.6: Take blocks while
// remain would go negative; Give either wakes the highest-priority
// waiter or increments remain, saturating at max.
type Semaphore struct {
	id      ID
	k       *Kernel
	remain  int
	max     int
	blocked dlist[*Thread]
}

// ID returns the semaphore's registry handle.
func (s *Semaphore) ID() ID { return s.id }

// Remain returns the current count, for diagnostics.
func (s *Semaphore) Remain() int {
	return callerInvoke(s.k, func() int { return s.remain })
}

// Take decrements the semaphore, blocking for up to timeout if it is
// already at zero. timeout of 0 is a non-blocking try; port.Forever blocks
// indefinitely. Returns TIMEOUT if timeout elapses before a Give, or a
// precondition failure if called from interrupt context with a nonzero
// timeout (spec 7(b): would-block is not permitted off-thread).
func (s *Semaphore) Take(timeout time.Duration) Status {
	k := s.k
	self := k.currentOrNil()
	blockable := self != nil && !k.port.InInterrupt()
	if timeout != 0 && !blockable {
		return fail(ComponentSemaphore, ReasonWouldBlock)
	}

	var blocked bool
	fn := func() Status {
		if s.remain > 0 {
			s.remain--
			return Success
		}
		if timeout == 0 {
			return pending(ComponentSemaphore, ReasonEmpty)
		}
		k.exitTrigger(WaitSemaphore, &s.blocked, timeout, wakeSemaphoreTimeout)
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

func wakeSemaphoreTimeout(k *Kernel, tn *timeoutNode) {
	if t := threadOfTimeout(k, tn); t != nil {
		k.entryTrigger(t, timeoutStatus(ComponentSemaphore))
	}
}

// Give wakes the highest-priority waiter (result SUCCESS), or increments
// remain (saturating at max) if nobody is waiting. Safe to call from
// interrupt context (spec 4.6); called from a thread's own body, waking a
// higher-priority thread preempts the caller before Give returns (spec
// scenario 1).
func (s *Semaphore) Give() Status {
	return callerInvoke(s.k, func() Status { return s.giveLocked() })
}

// giveLocked is Give's body, callable by other primitives (Topic.Publish's
// edge-mode delivery) that are already inside the critical section.
func (s *Semaphore) giveLocked() Status {
	k := s.k
	if w, ok := s.blocked.popFront(); ok {
		k.entryTrigger(w, Success)
		return Success
	}
	if s.remain < s.max {
		s.remain++
	}
	return Success
}
