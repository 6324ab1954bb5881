package kernel

import "time"

// Mutex is a binary lock with priority inheritance (spec 4.6): while a
// higher-priority thread blocks on a locked mutex, the owner's effective
// priority is raised to match, and restored on Unlock.
type Mutex struct {
	id                ID
	k                 *Kernel
	owner             *Thread
	ownerBasePriority int
	blocked           dlist[*Thread]
}

// ID returns the mutex's registry handle.
func (m *Mutex) ID() ID { return m.id }

// Owner returns the current owner, or nil if unowned.
func (m *Mutex) Owner() *Thread {
	return callerInvoke(m.k, func() *Thread { return m.owner })
}

// Lock acquires the mutex, blocking for up to timeout if it is already
// held. Recursive locking by the current owner fails immediately with
// RECURSIVE_NOT_SUPPORTED (spec 4.6). Only callable from a thread's own
// body: mutexes have no interrupt-context API.
func (m *Mutex) Lock(timeout time.Duration) Status {
	k := m.k
	self := k.currentOrNil()
	if self == nil || k.port.InInterrupt() {
		return fail(ComponentMutex, ReasonWrongContext)
	}

	var blocked bool
	result := invokeThread(k, self, func() Status {
		if m.owner == nil {
			m.owner = self
			m.ownerBasePriority = self.basePriority
			return Success
		}
		if m.owner == self {
			return fail(ComponentMutex, ReasonRecursiveNotSupported)
		}
		if timeout == 0 {
			return pending(ComponentMutex, ReasonBusy)
		}
		if m.owner.priority > self.priority {
			k.reprioritize(m.owner, self.priority)
		}
		k.exitTrigger(WaitMutex, &m.blocked, timeout, wakeMutexTimeout)
		blocked = true
		return Status(0)
	})
	if blocked {
		return self.waitResult
	}
	return result
}

func wakeMutexTimeout(k *Kernel, tn *timeoutNode) {
	if t := threadOfTimeout(k, tn); t != nil {
		k.entryTrigger(t, timeoutStatus(ComponentMutex))
	}
}

// Unlock releases the mutex. Only the current owner may unlock it (spec
// 4.6: a non-owner call returns OWNERSHIP). The outgoing owner reverts to
// its recorded base priority. If threads are waiting, ownership transfers
// to the highest-priority waiter, which inherits priority from any waiters
// still behind it; otherwise the mutex becomes unowned.
func (m *Mutex) Unlock() Status {
	k := m.k
	self := k.currentOrNil()
	if self == nil {
		return fail(ComponentMutex, ReasonWrongContext)
	}
	return invokeThread(k, self, func() Status {
		if m.owner != self {
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
	})
}
