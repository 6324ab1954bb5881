// Package kernel implements the core of a small preemptive real-time
// operating system for single-core microcontroller-class targets: an
// intrusive doubly-linked list substrate, a static object registry, a
// tickless software timer wheel, a privilege trampoline, a priority-driven
// thread scheduler, and the blocking synchronization primitives built on top
// of it (semaphore, mutex with priority inheritance, event flags, message
// queue, fixed-size memory pool, and a publish/subscribe topic).
//
// # Architecture
//
// Everything CPU-specific — context-switch assembly, interrupt masking, and
// the monotonic hardware clock — is a collaborator the kernel consumes
// through the [github.com/joeycumines/go-rtkernel/port] interface, never
// something it implements. A [Kernel] is constructed with [New] from a set
// of [Option] values (static thread declarations, static init levels, object
// table capacities, and a port.HardwarePort), then started with [Kernel.Boot].
//
// Every state-mutating API routes through the privilege trampoline
// (trampoline.go): it enters the kernel's single critical section and runs
// the routine. Called from a thread's own body (invokeThread), it performs
// at most one hardware context switch on the way out if a higher-priority
// thread became runnable. Called from interrupt context or before any
// thread runs (invoke), it only asks the port to reschedule at the next
// safe point. The tick handler enters the critical section directly.
//
// # Thread Safety
//
// The kernel's control-block memory is exclusively kernel-owned; external
// code only ever sees opaque [ID] handles. Every mutation happens under
// the hardware port's EnterCritical/ExitCritical pair, which is the sole
// concurrency barrier — by construction, nothing above that boundary needs
// its own locking.
//
// # Usage
//
//	k, err := kernel.New(
//	    kernel.WithPort(hostsim.NewPort(hostsim.NewRealtimeClock())),
//	    kernel.WithThread("worker", 1, 4096, func(t *kernel.Thread) {
//	        for {
//	            t.Sleep(10 * time.Millisecond)
//	        }
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	k.Boot()
//
// # Error Types
//
// State-mutating APIs return a layered [Status] word (error bit, [Component],
// [Reason]) rather than a Go error — see status.go. The handful of
// construction-time failures that happen before any kernel object exists to
// report through (invalid [Option] values) are plain Go errors:
// [ConfigError].
package kernel
