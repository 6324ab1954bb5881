package hostsim

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-rtkernel/port"
)

// threadHandle is the port.StackPointer hostsim hands back from
// StackFrameInit: a goroutine parked on resume, standing in for a real
// thread's saved register/stack context.
type threadHandle struct {
	resume chan struct{}
}

// goroutineID extracts the calling goroutine's runtime ID by parsing its
// own stack trace header. Host-simulation-only: real silicon has no such
// concept, since EnterCritical there is just an interrupt mask and is
// trivially reentrant by virtue of running on a single hardware thread.
// hostsim instead has many real goroutines in flight (one per kernel
// thread, plus whichever goroutine calls RunAsInterrupt), so recovering an
// identity is the only way to tell "the same logical caller, nested" apart
// from "a genuinely different concurrent caller that must block".
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// Port implements port.HardwarePort by running each kernel thread as its
// own goroutine, cooperatively handed a single token of control at a time
// over unbuffered channels (ContextSwitch), and backed by a pluggable
// Clock (RealtimeClock for wall-clock-driven runs, ManualClock for
// deterministic tests via AdvanceClock).
type Port struct {
	clock Clock

	excl    chan struct{} // binary semaphore: send to acquire, receive to release
	stateMu sync.Mutex
	depth   int
	holder  uint64

	tickHandler func()
	timer       *time.Timer
	armed       bool
	deadlineUS  uint64

	interruptDepth atomic.Int32
	threadGoids    sync.Map // uint64 -> struct{}
}

// NewPort constructs a Port backed by clock. Pass a *ManualClock for
// deterministic tests (drive time with AdvanceClock) or a *RealtimeClock
// for a wall-clock-driven run.
func NewPort(clock Clock) *Port {
	return &Port{
		clock: clock,
		excl:  make(chan struct{}, 1),
	}
}

// EnterCritical implements port.HardwarePort. Reentrant for nested calls
// from the same goroutine; blocks a genuinely different goroutine (another
// thread's own cooperative slot, or one running RunAsInterrupt) until the
// outermost ExitCritical.
func (p *Port) EnterCritical() uint32 {
	gid := goroutineID()
	p.stateMu.Lock()
	if p.depth > 0 && p.holder == gid {
		p.depth++
		d := p.depth
		p.stateMu.Unlock()
		return uint32(d)
	}
	p.stateMu.Unlock()

	p.excl <- struct{}{}

	p.stateMu.Lock()
	p.holder = gid
	p.depth = 1
	p.stateMu.Unlock()
	return 1
}

// ExitCritical implements port.HardwarePort.
func (p *Port) ExitCritical(uint32) {
	p.stateMu.Lock()
	p.depth--
	d := p.depth
	p.stateMu.Unlock()
	if d == 0 {
		<-p.excl
	}
}

// StackFrameInit implements port.HardwarePort: spawns entry's goroutine,
// parked until the first ContextSwitch names it as next.
func (p *Port) StackFrameInit(entry func(), _ int) port.StackPointer {
	h := &threadHandle{resume: make(chan struct{})}
	go func() {
		<-h.resume
		gid := goroutineID()
		p.threadGoids.Store(gid, struct{}{})
		entry()
	}()
	return h
}

// ContextSwitch implements port.HardwarePort: wakes next, then — unless cur
// is nil (the boot case, where there is no prior thread to park) — blocks
// the calling goroutine (cur's own) until it is, in turn, resumed.
func (p *Port) ContextSwitch(cur *port.StackPointer, next port.StackPointer) {
	nh := next.(*threadHandle)
	if cur == nil {
		nh.resume <- struct{}{}
		return
	}
	ch := (*cur).(*threadHandle)
	nh.resume <- struct{}{}
	<-ch.resume
}

// TriggerReschedule implements port.HardwarePort. On real silicon this
// pends a low-priority ISR that performs the deferred switch once nothing
// higher-priority is running; hostsim has no way to forcibly preempt a
// goroutine that is genuinely executing thread-body code outside any
// kernel call (see trampoline.go's invoke doc comment), so the deferred
// switch instead takes effect the next time any thread re-enters the
// trampoline — which the kernel's own idle loop guarantees happens
// promptly. No action is needed here.
func (p *Port) TriggerReschedule() {}

// NowUS implements port.HardwarePort.
func (p *Port) NowUS() uint64 { return p.clock.NowUS() }

// ArmNextInterval implements port.HardwarePort.
func (p *Port) ArmNextInterval(d time.Duration) {
	if d == port.Forever {
		p.disarm()
		return
	}
	if _, ok := p.clock.(*ManualClock); ok {
		p.armed = true
		p.deadlineUS = p.clock.NowUS() + uint64(d/time.Microsecond)
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.armed = true
	p.timer = time.AfterFunc(d, p.fireTick)
}

func (p *Port) disarm() {
	p.armed = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// fireTick runs the registered tick handler as simulated interrupt
// context, matching real hardware where the timer IRQ itself is the
// caller.
func (p *Port) fireTick() {
	p.RunAsInterrupt(func() {
		if p.tickHandler != nil {
			p.tickHandler()
		}
	})
}

// SetTickHandler implements port.HardwarePort.
func (p *Port) SetTickHandler(fn func()) { p.tickHandler = fn }

// InInterrupt implements port.HardwarePort.
func (p *Port) InInterrupt() bool { return p.interruptDepth.Load() > 0 }

// InThreadMode implements port.HardwarePort: true iff the calling goroutine
// is one StackFrameInit spawned, and it is not currently inside
// RunAsInterrupt.
func (p *Port) InThreadMode() bool {
	if p.InInterrupt() {
		return false
	}
	_, ok := p.threadGoids.Load(goroutineID())
	return ok
}

// RunAsInterrupt runs fn with InInterrupt reporting true for its duration,
// simulating a hardware ISR. Nestable. Host-simulation-only: it marks
// whichever real goroutine calls it, rather than tracking genuine
// interrupt-vector identity.
func (p *Port) RunAsInterrupt(fn func()) {
	p.interruptDepth.Add(1)
	defer p.interruptDepth.Add(-1)
	fn()
}

// AdvanceClock moves a *ManualClock-backed Port's time forward by d and, if
// that crosses the currently armed interval, fires the tick handler — a
// no-op if the Port was constructed with a RealtimeClock instead, since
// that clock already advances and fires on its own.
func (p *Port) AdvanceClock(d time.Duration) {
	mc, ok := p.clock.(*ManualClock)
	if !ok {
		return
	}
	mc.Advance(d)
	for p.armed && mc.NowUS() >= p.deadlineUS {
		p.armed = false
		p.fireTick()
	}
}
