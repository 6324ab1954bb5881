package kernel

import "time"

// Pool is a fixed-size block allocator (spec 4.6): every block is the same
// size; Alloc blocks while no block is free, and Free rejects a pointer not
// currently checked out from this pool.
type Pool struct {
	id        ID
	k         *Kernel
	blockSize int
	slots     [][]byte
	free      []bool
	blocked   dlist[*Thread] // blocked allocators, pool exhausted
}

// ID returns the pool's registry handle.
func (p *Pool) ID() ID { return p.id }

// BlockSize returns the fixed block size in bytes.
func (p *Pool) BlockSize() int { return p.blockSize }

// FreeCount returns the count of blocks currently available for allocation.
func (p *Pool) FreeCount() int {
	return callerInvoke(p.k, func() int {
		n := 0
		for _, free := range p.free {
			if free {
				n++
			}
		}
		return n
	})
}

// allocLocked returns the index of a free slot, or -1 if the pool is
// exhausted. Must be called with the critical section held.
func (p *Pool) allocLocked() int {
	for idx, free := range p.free {
		if free {
			p.free[idx] = false
			return idx
		}
	}
	return -1
}

// Alloc returns the next free block, blocking for up to timeout if none
// remain (spec 4.6/3: pool has a "blocked-allocators list"). timeout 0 is a
// non-blocking try; port.Forever blocks indefinitely. A block handed over by
// a concurrent FreeBlock while this call was blocked is reserved directly
// for the waiter, the same direct hand-off discipline the queue uses for
// sender/receiver rendezvous, so it can never be stolen by a racing
// non-blocking Alloc before the waiter resumes.
func (p *Pool) Alloc(timeout time.Duration) ([]byte, Status) {
	k := p.k
	self := k.currentOrNil()
	blockable := self != nil && !k.port.InInterrupt()
	if timeout != 0 && !blockable {
		return nil, fail(ComponentPool, ReasonWouldBlock)
	}

	var block []byte
	var blocked bool
	fn := func() Status {
		if idx := p.allocLocked(); idx >= 0 {
			block = p.slots[idx]
			return Success
		}
		if timeout == 0 {
			return pending(ComponentPool, ReasonExhausted)
		}
		self.waitPayload = new([]byte)
		k.exitTrigger(WaitPool, &p.blocked, timeout, wakePoolTimeout)
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
		if self.waitResult.IsSuccess() {
			block = *(self.waitPayload.(*[]byte))
		}
		return block, self.waitResult
	}
	return block, result
}

func wakePoolTimeout(k *Kernel, tn *timeoutNode) {
	if t := threadOfTimeout(k, tn); t != nil {
		k.entryTrigger(t, timeoutStatus(ComponentPool))
	}
}

// sameBacking reports whether a and b share the same underlying array,
// since Go slice headers are not otherwise comparable.
func sameBacking(a, b []byte) bool {
	return len(a) > 0 && len(b) > 0 && &a[0] == &b[0]
}

// FreeBlock returns block to the pool. If an allocator is blocked waiting
// (spec 4.6: "wakes the highest-priority waiter if any"), the block is
// handed directly to it rather than merely marked free, so it cannot be
// stolen by a racing non-blocking Alloc before the waiter resumes. Returns
// a precondition failure if block was not allocated from this pool, or is
// already free (double-free guard).
func (p *Pool) FreeBlock(block []byte) Status {
	return callerInvoke(p.k, func() Status {
		for idx, slot := range p.slots {
			if !sameBacking(slot, block) {
				continue
			}
			if p.free[idx] {
				return fail(ComponentPool, ReasonCorrupted)
			}
			if w, ok := p.blocked.popFront(); ok {
				*(w.waitPayload.(*[]byte)) = block
				p.k.entryTrigger(w, Success)
				return Success
			}
			p.free[idx] = true
			return Success
		}
		return fail(ComponentPool, ReasonNullPointer)
	})
}
