package kernel

import (
	"fmt"
	"time"
)

// idleStackBytes reserves the kernel's own idle thread a stack. Declared in
// kernel.go alongside NumPriorities.

// Boot finalizes every declared object into a runnable kernel: it runs the
// static init levels in ascending order (spec's "static constructor"
// chain), materializes one Thread control block per WithThread declaration
// plus the kernel's own idle thread, wires the hardware port's tick
// handler to the timer wheel, and performs the one-time switch from "no
// thread running" into the highest-priority ready thread. Boot may be
// called exactly once.
func (k *Kernel) Boot() error {
	if k.booted {
		return &ConfigError{Option: "Boot", Message: "kernel already booted"}
	}

	for _, lv := range k.initLevels {
		if err := lv.fn(k); err != nil {
			return WrapError(fmt.Sprintf("init level %d failed", lv.level), err)
		}
	}

	for _, decl := range k.threadDecls {
		if _, err := k.newThread(decl); err != nil {
			return err
		}
	}

	idle, err := k.newThread(threadDecl{
		name:      "idle",
		priority:  NumPriorities - 1,
		stackSize: idleStackBytes,
		entry:     k.idleLoop,
	})
	if err != nil {
		return err
	}
	// The idle thread is the scheduler's fallback (scheduler.pickNext),
	// never itself linked onto a ready list.
	k.sched.ready[idle.priority].remove(idle.runNode)
	k.sched.idle = idle
	k.idle = idle

	k.port.SetTickHandler(func() {
		unlock := k.lock()
		now := time.Duration(k.port.NowUS()) * time.Microsecond
		elapsed := now - k.wheel.armedAt
		if elapsed < 0 {
			elapsed = 0
		}
		k.tick(elapsed)
		unlock()
	})

	k.booted = true
	k.rearmHardwareTimer()

	next := k.sched.pickNext()
	k.dispatch(next, nil)
	return nil
}

// newThread materializes one thread control block from decl: allocates its
// table slot, wires its state machine, list node, timeout node, and
// optional metrics, asks the hardware port to build its initial stack
// frame, and places it on its priority's ready list.
func (k *Kernel) newThread(decl threadDecl) (*Thread, error) {
	id, obj, ok := k.threads.allocate()
	if !ok {
		return nil, &ConfigError{Option: "Boot", Message: "thread table exhausted"}
	}
	obj.id = id
	obj.k = k
	obj.name = decl.name
	obj.priority = decl.priority
	obj.basePriority = decl.priority
	obj.stackBytes = decl.stackSize
	obj.state = newFastThreadState()
	obj.runNode = newNode(obj)
	obj.timeout = newTimeoutNode()
	if k.metricsEnabled {
		obj.metrics = newThreadMetrics()
	}
	entry := decl.entry
	obj.sp = k.port.StackFrameInit(func() {
		entry(obj)
		obj.threadExit()
	}, decl.stackSize)
	k.sched.ready[obj.priority].push(obj.runNode, Tail)
	return obj, nil
}

// idleLoop is the kernel's own idle thread body: drains timer callbacks
// deferred from interrupt context, runs the optional idle hook (host power
// management, or simply yielding the underlying OS scheduler in hostsim),
// then re-enters the trampoline so any reschedule those produced takes
// effect immediately, matching spec's "idle always runs if nothing else is
// ready" invariant.
func (k *Kernel) idleLoop(self *Thread) {
	for {
		k.drainPendingCallbacks()
		k.drainPendingTimerFires()
		if k.idleHook != nil {
			k.idleHook()
		}
		invokeThreadVoid(k, self, func() {})
	}
}
