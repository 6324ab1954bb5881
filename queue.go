package kernel

import "time"

// Queue is a fixed-slot-size ring buffer (spec 4.6): Send blocks while
// full, Receive blocks while empty. Send hands its data directly to a
// blocked receiver (bypassing the ring) whenever one is waiting; Receive
// takes the ring's head and then moves a blocked sender's data onto the
// ring's tail, so FIFO order is kept.
type Queue struct {
	id         ID
	k          *Kernel
	slotBytes  int
	ring       [][]byte
	head, tail int
	count      int
	sendWait   dlist[*Thread] // blocked senders, queue full
	recvWait   dlist[*Thread] // blocked receivers, queue empty
}

// ID returns the queue's registry handle.
func (q *Queue) ID() ID { return q.id }

// Len returns the current occupancy.
func (q *Queue) Len() int {
	return callerInvoke(q.k, func() int { return q.count })
}

// Cap returns the fixed slot capacity.
func (q *Queue) Cap() int { return len(q.ring) }

// Send copies data (which must be exactly the queue's slot size) into the
// queue, at the tail (FIFO) or head (LIFO) per toFront. Blocks for up to
// timeout if the queue is full and no receiver is already waiting.
func (q *Queue) Send(data []byte, timeout time.Duration, toFront bool) Status {
	k := q.k
	if len(data) != q.slotBytes {
		return fail(ComponentQueue, ReasonOutOfRange)
	}
	self := k.currentOrNil()
	blockable := self != nil && !k.port.InInterrupt()
	if timeout != 0 && !blockable {
		return fail(ComponentQueue, ReasonWouldBlock)
	}

	var blocked bool
	fn := func() Status {
		if w, ok := q.recvWait.popFront(); ok {
			dst := w.waitPayload.([]byte)
			copy(dst, data)
			k.entryTrigger(w, Success)
			return Success
		}
		if q.count < len(q.ring) {
			q.pushRing(data, toFront)
			return Success
		}
		if timeout == 0 {
			return pending(ComponentQueue, ReasonFull)
		}
		self.waitPayload = data
		k.exitTrigger(WaitQueueSend, &q.sendWait, timeout, wakeQueueSendTimeout)
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

func (q *Queue) pushRing(data []byte, toFront bool) {
	var idx int
	if toFront {
		idx = (q.head - 1 + len(q.ring)) % len(q.ring)
		q.head = idx
	} else {
		idx = q.tail
		q.tail = (q.tail + 1) % len(q.ring)
	}
	copy(q.ring[idx], data)
	q.count++
}

func wakeQueueSendTimeout(k *Kernel, tn *timeoutNode) {
	if t := threadOfTimeout(k, tn); t != nil {
		k.entryTrigger(t, timeoutStatus(ComponentQueue))
	}
}

// Receive copies the next slot (FIFO from the head) into out, blocking
// for up to timeout if the queue is empty and no sender is already
// waiting. If a sender is blocked waiting for space, the slot this call
// frees is filled with that sender's data (at the ring's tail) and the
// sender is woken; only when the ring is empty is a blocked sender's data
// copied directly into out.
func (q *Queue) Receive(out []byte, timeout time.Duration) Status {
	k := q.k
	if len(out) != q.slotBytes {
		return fail(ComponentQueue, ReasonOutOfRange)
	}
	self := k.currentOrNil()
	blockable := self != nil && !k.port.InInterrupt()
	if timeout != 0 && !blockable {
		return fail(ComponentQueue, ReasonWouldBlock)
	}

	var blocked bool
	fn := func() Status {
		if q.count > 0 {
			copy(out, q.ring[q.head])
			q.head = (q.head + 1) % len(q.ring)
			q.count--
			if w, ok := q.sendWait.popFront(); ok {
				src := w.waitPayload.([]byte)
				q.pushRing(src, false)
				k.entryTrigger(w, Success)
			}
			return Success
		}
		if w, ok := q.sendWait.popFront(); ok {
			src := w.waitPayload.([]byte)
			copy(out, src)
			k.entryTrigger(w, Success)
			return Success
		}
		if timeout == 0 {
			return pending(ComponentQueue, ReasonEmpty)
		}
		self.waitPayload = out
		k.exitTrigger(WaitQueueReceive, &q.recvWait, timeout, wakeQueueReceiveTimeout)
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

func wakeQueueReceiveTimeout(k *Kernel, tn *timeoutNode) {
	if t := threadOfTimeout(k, tn); t != nil {
		k.entryTrigger(t, timeoutStatus(ComponentQueue))
	}
}
