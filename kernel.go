package kernel

import (
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-rtkernel/port"
)

// NumPriorities bounds the scheduler's per-priority ready list array: valid
// thread priorities are 0 (highest) through NumPriorities-1 (lowest, the
// idle thread's fixed priority).
const NumPriorities = 32

// idleStackBytes is the stack reserved for the kernel's own idle thread.
const idleStackBytes = 4096

// Kernel holds every piece of kernel state named in spec section 3: the
// scheduler, the timer wheel, and one fixed-capacity table per object kind.
// Every field is mutated only from inside the critical section (see
// trampoline.go) once Boot has run; table allocation (New*) is only valid
// before Boot, matching the "statically reserved at build" object model.
type Kernel struct {
	port           port.HardwarePort
	metricsEnabled bool
	logger         Logger

	sched scheduler
	wheel timerWheel

	threads    *table[Thread]
	semaphores *table[Semaphore]
	mutexes    *table[Mutex]
	events     *table[Event]
	queues     *table[Queue]
	pools      *table[Pool]
	topics     *table[Topic]
	timers     *table[Timer]

	tempTimers    []Timer
	tempTimerFree []int

	threadDecls []threadDecl
	initLevels  []initLevelDecl

	publishLimiter *catrate.Limiter

	booted bool
	idle   *Thread

	fault    func(reason string, ctx any)
	idleHook func()
}

// New constructs a Kernel from opts. No thread runs and no object is
// reachable from any concurrent context until Boot is called; Newly
// returned, every table is merely reserved, matching spec 4.2's
// no-allocation-after-init registry.
func New(opts ...Option) (*Kernel, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		port:           cfg.port,
		metricsEnabled: cfg.metricsEnabled,
		logger:         cfg.logger,
		sched:          scheduler{ready: make([]dlist[*Thread], NumPriorities)},
		threads:        newTable[Thread](KindThread, cfg.threadCapacity+1), // +1 reserved for the idle thread
		semaphores:     newTable[Semaphore](KindSemaphore, cfg.semaphoreCapacity),
		mutexes:        newTable[Mutex](KindMutex, cfg.mutexCapacity),
		events:         newTable[Event](KindEvent, cfg.eventCapacity),
		queues:         newTable[Queue](KindQueue, cfg.queueCapacity),
		pools:          newTable[Pool](KindPool, cfg.poolCapacity),
		topics:         newTable[Topic](KindTopic, cfg.topicCapacity),
		timers:         newTable[Timer](KindTimer, cfg.timerCapacity),
		tempTimers:     make([]Timer, cfg.tempTimerCapacity),
		threadDecls:    cfg.threads,
		initLevels:     cfg.initLevels,
		fault:          defaultFaultHook,
	}
	if k.logger == nil {
		k.logger = defaultLogger()
	}
	k.tempTimerFree = make([]int, len(k.tempTimers))
	for i := range k.tempTimerFree {
		k.tempTimerFree[i] = len(k.tempTimers) - 1 - i
	}
	if len(cfg.publishRateLimits) > 0 {
		k.publishLimiter = catrate.NewLimiter(cfg.publishRateLimits)
	}
	return k, nil
}

// SetFaultHook overrides the fault handler invoked for fatal conditions
// (spec 4.7/7): stack overflow at context switch, corrupted list
// membership, or a privilege routine invoked from the wrong context. The
// default implementation panics with a *FaultError; it must never return.
func (k *Kernel) SetFaultHook(fn func(reason string, ctx any)) {
	if fn == nil {
		fn = defaultFaultHook
	}
	k.fault = fn
}

// SetIdleHook installs fn to run on every pass through the idle thread's
// loop (spec's idle thread: runs whenever no other thread is ready), for
// host-side work like entering a low-power sleep or yielding the OS
// scheduler in hostsim. Must be called before Boot.
func (k *Kernel) SetIdleHook(fn func()) {
	k.idleHook = fn
}

func defaultFaultHook(reason string, ctx any) {
	panic(&FaultError{Reason: reason, Context: ctx})
}

// FaultError is the panic value the default fault hook raises.
type FaultError struct {
	Reason  string
	Context any
}

func (e *FaultError) Error() string { return "kernel: fatal fault: " + e.Reason }

// ThreadByID resolves id to its *Thread, or nil if id does not name an
// allocated thread.
func (k *Kernel) ThreadByID(id ID) *Thread {
	t, ok := k.threads.at(id)
	if !ok {
		return nil
	}
	return t
}

// resolveObj is the precondition check every public API performs before
// touching an object: id must name an allocated slot of the expected kind.
func resolveObj[T any](t *table[T], id ID, c Component) (*T, Status) {
	obj, ok := t.at(id)
	if !ok {
		return nil, fail(c, ReasonInvalidID)
	}
	return obj, Success
}

// NewSemaphore reserves a semaphore control block. Valid only before Boot.
func (k *Kernel) NewSemaphore(initial, max int) (ID, error) {
	if k.booted {
		return InvalidID, &ConfigError{Option: "NewSemaphore", Message: "kernel already booted"}
	}
	if max < 0 || initial < 0 || initial > max {
		return InvalidID, &ConfigError{Option: "NewSemaphore", Message: "invalid initial/max count"}
	}
	id, obj, ok := k.semaphores.allocate()
	if !ok {
		return InvalidID, &ConfigError{Option: "NewSemaphore", Message: "semaphore table exhausted"}
	}
	obj.id = id
	obj.k = k
	obj.remain = initial
	obj.max = max
	return id, nil
}

// NewMutex reserves a mutex control block. Valid only before Boot.
func (k *Kernel) NewMutex() (ID, error) {
	if k.booted {
		return InvalidID, &ConfigError{Option: "NewMutex", Message: "kernel already booted"}
	}
	id, obj, ok := k.mutexes.allocate()
	if !ok {
		return InvalidID, &ConfigError{Option: "NewMutex", Message: "mutex table exhausted"}
	}
	obj.id = id
	obj.k = k
	return id, nil
}

// NewEvent reserves an event-flag-group control block. edgeMask marks which
// bits report edges (transitions) rather than level; clearOnReportMask
// marks which bits are cleared from value once a waiter has observed them.
// Valid only before Boot.
func (k *Kernel) NewEvent(edgeMask, clearOnReportMask uint32) (ID, error) {
	if k.booted {
		return InvalidID, &ConfigError{Option: "NewEvent", Message: "kernel already booted"}
	}
	id, obj, ok := k.events.allocate()
	if !ok {
		return InvalidID, &ConfigError{Option: "NewEvent", Message: "event table exhausted"}
	}
	obj.id = id
	obj.k = k
	obj.edgeMask = edgeMask
	obj.clearOnReportMask = clearOnReportMask
	return id, nil
}

// NewQueue reserves a fixed-slot-size ring buffer of capacity slots, each
// slotBytes long. Valid only before Boot.
func (k *Kernel) NewQueue(slotBytes, capacity int) (ID, error) {
	if k.booted {
		return InvalidID, &ConfigError{Option: "NewQueue", Message: "kernel already booted"}
	}
	if slotBytes <= 0 || capacity <= 0 {
		return InvalidID, &ConfigError{Option: "NewQueue", Message: "slot size and capacity must be positive"}
	}
	id, obj, ok := k.queues.allocate()
	if !ok {
		return InvalidID, &ConfigError{Option: "NewQueue", Message: "queue table exhausted"}
	}
	obj.id = id
	obj.k = k
	obj.slotBytes = slotBytes
	obj.ring = make([][]byte, capacity)
	for i := range obj.ring {
		obj.ring[i] = make([]byte, slotBytes)
	}
	return id, nil
}

// NewPool reserves a fixed-size memory pool of count slots, each slotBytes
// long. Valid only before Boot.
func (k *Kernel) NewPool(slotBytes, count int) (ID, error) {
	if k.booted {
		return InvalidID, &ConfigError{Option: "NewPool", Message: "kernel already booted"}
	}
	if slotBytes <= 0 || count <= 0 {
		return InvalidID, &ConfigError{Option: "NewPool", Message: "slot size and count must be positive"}
	}
	id, obj, ok := k.pools.allocate()
	if !ok {
		return InvalidID, &ConfigError{Option: "NewPool", Message: "pool table exhausted"}
	}
	obj.id = id
	obj.k = k
	obj.blockSize = slotBytes
	obj.slots = make([][]byte, count)
	obj.free = make([]bool, count)
	for i := range obj.slots {
		obj.slots[i] = make([]byte, slotBytes)
		obj.free[i] = true
	}
	return id, nil
}

// NewTopic reserves a publish/subscribe topic control block, sized for
// values of valueBytes and up to maxSubscribers concurrent subscriptions
// (spec 4.6/E.3). Valid only before Boot.
func (k *Kernel) NewTopic(valueBytes, maxSubscribers int) (ID, error) {
	if k.booted {
		return InvalidID, &ConfigError{Option: "NewTopic", Message: "kernel already booted"}
	}
	if valueBytes <= 0 || maxSubscribers <= 0 {
		return InvalidID, &ConfigError{Option: "NewTopic", Message: "value size and subscriber count must be positive"}
	}
	id, obj, ok := k.topics.allocate()
	if !ok {
		return InvalidID, &ConfigError{Option: "NewTopic", Message: "topic table exhausted"}
	}
	obj.id = id
	obj.k = k
	obj.valueBytes = valueBytes
	obj.last = make([]byte, valueBytes)
	obj.subs = make([]topicSubscriber, 0, maxSubscribers)
	return id, nil
}
