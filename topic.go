package kernel

import "time"

// TopicMode selects how a subscriber receives published values (spec 4.6).
type TopicMode int

const (
	// TopicEdge delivers each publish at most once: a Receive only ever
	// returns a value that arrived after the subscriber's last Receive (or
	// the subscription itself), blocking if nothing new has arrived yet.
	// Only the latest unconsumed publish is held; a newer one overwrites it.
	TopicEdge TopicMode = iota
	// TopicLevel delivers only the latest value: Receive never blocks once
	// at least one Publish has occurred, always returning the most recent.
	TopicLevel
)

// topicSubscriber is one subscription slot, reserved at Subscribe time and
// never reclaimed (matching the no-allocation-after-init object model).
type topicSubscriber struct {
	mode     TopicMode
	buf      []byte
	hasValue bool // level mode: at least one publish has landed
	pending  bool // edge mode: an unconsumed publish is waiting
	blocked  dlist[*Thread]
}

// Topic is a publish/subscribe channel (spec 4.6): Publish fans a value out
// to every subscriber per its own mode, optionally throttled by a
// kernel-wide rate limit (WithPublishRateLimit).
type Topic struct {
	id         ID
	k          *Kernel
	valueBytes int
	last       []byte
	subs       []topicSubscriber
}

// ID returns the topic's registry handle.
func (t *Topic) ID() ID { return t.id }

// Subscribe reserves a subscription slot in the given mode. Valid only
// before Boot; the returned handle indexes this topic's subscriber table
// and is stable for the topic's lifetime.
func (t *Topic) Subscribe(mode TopicMode) (int, error) {
	if t.k.booted {
		return -1, &ConfigError{Option: "Subscribe", Message: "kernel already booted"}
	}
	if len(t.subs) == cap(t.subs) {
		return -1, &ConfigError{Option: "Subscribe", Message: "topic subscriber table exhausted"}
	}
	idx := len(t.subs)
	t.subs = append(t.subs, topicSubscriber{mode: mode, buf: make([]byte, t.valueBytes)})
	return idx, nil
}

// SubscribeEdge is Subscribe(TopicEdge).
func (t *Topic) SubscribeEdge() (int, error) { return t.Subscribe(TopicEdge) }

// SubscribeLevel is Subscribe(TopicLevel).
func (t *Topic) SubscribeLevel() (int, error) { return t.Subscribe(TopicLevel) }

// Publish fans data out to every subscriber. If a publish rate limit was
// configured (WithPublishRateLimit), it is checked before the critical
// section is entered; a throttled publish returns WOULD_BLOCK and delivers
// to nobody. Safe to call from interrupt context.
func (t *Topic) Publish(data []byte) Status {
	if len(data) != t.valueBytes {
		return fail(ComponentTopic, ReasonOutOfRange)
	}
	if lim := t.k.publishLimiter; lim != nil {
		if _, ok := lim.Allow(t.id); !ok {
			return fail(ComponentTopic, ReasonWouldBlock)
		}
	}
	return callerInvoke(t.k, func() Status {
		copy(t.last, data)
		for i := range t.subs {
			s := &t.subs[i]
			switch s.mode {
			case TopicLevel:
				copy(s.buf, data)
				s.hasValue = true
				if w, ok := s.blocked.popFront(); ok {
					t.k.entryTrigger(w, Success)
				}
			case TopicEdge:
				if w, ok := s.blocked.popFront(); ok {
					dst := w.waitPayload.([]byte)
					copy(dst, data)
					t.k.entryTrigger(w, Success)
				} else {
					copy(s.buf, data)
					s.pending = true
				}
			}
		}
		return Success
	})
}

// Receive copies the subscriber's next value into out, blocking for up to
// timeout per the subscription's mode: edge mode waits for an unconsumed
// publish, level mode waits only until the first publish ever arrives.
func (t *Topic) Receive(sub int, out []byte, timeout time.Duration) Status {
	if sub < 0 || sub >= len(t.subs) {
		return fail(ComponentTopic, ReasonInvalidID)
	}
	if len(out) != t.valueBytes {
		return fail(ComponentTopic, ReasonOutOfRange)
	}
	k := t.k
	self := k.currentOrNil()
	blockable := self != nil && !k.port.InInterrupt()
	if timeout != 0 && !blockable {
		return fail(ComponentTopic, ReasonWouldBlock)
	}

	var blocked bool
	fn := func() Status {
		s := &t.subs[sub]
		switch s.mode {
		case TopicLevel:
			if s.hasValue {
				copy(out, s.buf)
				return Success
			}
		case TopicEdge:
			if s.pending {
				copy(out, s.buf)
				s.pending = false
				return Success
			}
		}
		if timeout == 0 {
			return pending(ComponentTopic, ReasonEmpty)
		}
		self.waitPayload = out
		k.exitTrigger(WaitTopic, &s.blocked, timeout, wakeTopicTimeout)
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

func wakeTopicTimeout(k *Kernel, tn *timeoutNode) {
	if t := threadOfTimeout(k, tn); t != nil {
		k.entryTrigger(t, timeoutStatus(ComponentTopic))
	}
}
