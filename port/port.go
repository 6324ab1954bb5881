// Package port defines the hardware abstraction the kernel core consumes.
// Everything in this interface is explicitly out of scope for the core
// itself: context-switch assembly, interrupt masking, and the monotonic
// time source are collaborators the core calls through this contract, not
// things it implements.
package port

import "time"

// Forever disables a hardware countdown timer: pass it to ArmNextInterval
// to mean "do not fire".
const Forever time.Duration = -1

// StackPointer is an opaque handle to a thread's execution context, as
// produced by StackFrameInit and consumed by ContextSwitch. The core never
// inspects its contents; only a HardwarePort implementation may.
type StackPointer any

// HardwarePort is the set of hooks a concrete platform (real silicon, or a
// host simulation) must supply. Every method here may be called only from
// inside the kernel's critical section, except where noted.
type HardwarePort interface {
	// EnterCritical masks schedulable interrupts and returns an opaque
	// saved-state token. Must be safely re-entrant: nested Enter/Exit pairs
	// only restore interrupts on the outermost Exit.
	EnterCritical() (saved uint32)

	// ExitCritical restores the interrupt mask captured by EnterCritical.
	ExitCritical(saved uint32)

	// StackFrameInit prepares a new thread's initial execution context:
	// entry is the thread's body, stackBytes is the requested stack size.
	// Returns the stack pointer handle ContextSwitch will later load.
	StackFrameInit(entry func(), stackBytes int) StackPointer

	// ContextSwitch saves the currently running context into *cur (if cur
	// is non-nil — nil means there is no current thread, e.g. at boot) and
	// transfers control to next. Returns once next has, in turn, switched
	// back to the context named by *cur.
	ContextSwitch(cur *StackPointer, next StackPointer)

	// TriggerReschedule asynchronously requests that the scheduler run at
	// the next safe point. Safe to call from interrupt context.
	TriggerReschedule()

	// NowUS returns the monotonic hardware time, in microseconds since an
	// arbitrary epoch fixed at port construction.
	NowUS() uint64

	// ArmNextInterval programs the next one-shot wake-up, d in the future.
	// Forever disables the countdown. Calling with a new value replaces any
	// previously armed interval.
	ArmNextInterval(d time.Duration)

	// SetTickHandler registers the function the port must invoke from
	// interrupt context every time an armed interval elapses. Called
	// exactly once, during kernel boot.
	SetTickHandler(fn func())

	// InInterrupt reports whether the caller is executing in interrupt
	// context (where blocking operations are disallowed).
	InInterrupt() bool

	// InThreadMode reports whether the caller is executing as a scheduled
	// thread (as opposed to interrupt context or pre-boot).
	InThreadMode() bool
}
