package kernel

import (
	"sync/atomic"
)

// ThreadState represents the current state of a thread's control block.
//
// State Machine:
//
//	READY (0) → RUNNING (1)       [scheduler picks the thread]
//	RUNNING (1) → READY (0)       [preempted, still runnable]
//	RUNNING (1) → BLOCKED (2)     [take/lock/receive with no resource]
//	BLOCKED (2) → READY (0)       [resource available or timeout elapses]
//	RUNNING (1) → SUSPENDED (3)   [explicit suspend]
//	SUSPENDED (3) → READY (0)     [explicit resume]
//	RUNNING (1) → EXIT (4)        [thread function returns, or fault]
//	EXIT (4) → (terminal)
//
// Use TryTransition (CAS) for transitions a concurrent interrupt-context
// caller may race against (e.g. a timeout firing while the owning thread is
// simultaneously being woken by a give/send); use Store only when the
// caller already holds the kernel's single critical section and no race is
// possible.
type ThreadState uint64

const (
	// StateReady: on a per-priority ready list, eligible to run.
	StateReady ThreadState = 0
	// StateRunning: currently the one thread executing.
	StateRunning ThreadState = 1
	// StateBlocked: waiting on a semaphore/mutex/event/queue/pool/timeout.
	StateBlocked ThreadState = 2
	// StateSuspended: explicitly suspended, not eligible for scheduling.
	StateSuspended ThreadState = 3
	// StateExit: thread function has returned or faulted; terminal.
	StateExit ThreadState = 4
)

// String returns a human-readable representation of the state.
func (s ThreadState) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateBlocked:
		return "BLOCKED"
	case StateSuspended:
		return "SUSPENDED"
	case StateExit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// fastThreadState is a lock-free state machine with cache-line padding, so
// polling a thread's state from a trace snapshot never contends with the
// scheduler's own transitions.
type fastThreadState struct { // betteralign:ignore
	_ [64]byte      // cache line padding (before value)
	v atomic.Uint64 // state value
	_ [56]byte      // pad to complete cache line (64 - 8 = 56)
}

// newFastThreadState creates a new state machine in the READY state.
func newFastThreadState() *fastThreadState {
	s := &fastThreadState{}
	s.v.Store(uint64(StateReady))
	return s
}

// Load returns the current state atomically.
func (s *fastThreadState) Load() ThreadState {
	return ThreadState(s.v.Load())
}

// Store atomically stores a new state. Callers must already hold the
// kernel's critical section; this performs no transition validation.
func (s *fastThreadState) Store(state ThreadState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically transition from one state to
// another. Returns true if the transition succeeded.
func (s *fastThreadState) TryTransition(from, to ThreadState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsTerminal returns true if the thread has exited.
func (s *fastThreadState) IsTerminal() bool {
	return s.Load() == StateExit
}

// IsSchedulable returns true if the state is one the scheduler may consider
// (READY or RUNNING).
func (s *fastThreadState) IsSchedulable() bool {
	state := s.Load()
	return state == StateReady || state == StateRunning
}
