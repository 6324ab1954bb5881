package kernel

import (
	"sort"
	"time"

	"github.com/joeycumines/go-rtkernel/port"
)

// threadDecl is one entry of the static thread table: every thread the
// kernel will ever run must be declared before New returns. There is no
// API to create a thread after boot.
type threadDecl struct {
	name      string
	priority  int
	stackSize int
	entry     func(*Thread)
}

// initLevelDecl is one entry of the static init level table: a function
// run, in ascending level order, during Kernel.Boot before the scheduler
// starts picking threads.
type initLevelDecl struct {
	level int
	fn    func(*Kernel) error
}

// config holds every construction-time setting resolved from Options.
type config struct {
	threadCapacity    int
	semaphoreCapacity int
	mutexCapacity     int
	eventCapacity     int
	queueCapacity     int
	poolCapacity      int
	topicCapacity     int
	timerCapacity     int
	tempTimerCapacity int
	threads           []threadDecl
	initLevels        []initLevelDecl
	port              port.HardwarePort
	logger            Logger
	metricsEnabled    bool
	publishRateLimits map[time.Duration]int
}

// Option configures a Kernel at construction time.
type Option interface {
	apply(*config) error
}

// optionFunc implements Option from a plain closure.
type optionFunc struct {
	fn func(*config) error
}

func (o *optionFunc) apply(cfg *config) error { return o.fn(cfg) }

func newOption(fn func(*config) error) Option {
	return &optionFunc{fn: fn}
}

// WithThreadCapacity sets the size of the static thread control-block
// table. Every WithThread declaration consumes one slot.
func WithThreadCapacity(n int) Option {
	return newOption(func(cfg *config) error {
		if n < 0 {
			return &ConfigError{Option: "WithThreadCapacity", Message: "capacity must be non-negative"}
		}
		cfg.threadCapacity = n
		return nil
	})
}

// WithSemaphoreCapacity sets the size of the static semaphore table.
func WithSemaphoreCapacity(n int) Option {
	return newOption(func(cfg *config) error {
		if n < 0 {
			return &ConfigError{Option: "WithSemaphoreCapacity", Message: "capacity must be non-negative"}
		}
		cfg.semaphoreCapacity = n
		return nil
	})
}

// WithMutexCapacity sets the size of the static mutex table.
func WithMutexCapacity(n int) Option {
	return newOption(func(cfg *config) error {
		if n < 0 {
			return &ConfigError{Option: "WithMutexCapacity", Message: "capacity must be non-negative"}
		}
		cfg.mutexCapacity = n
		return nil
	})
}

// WithEventCapacity sets the size of the static event-flag-group table.
func WithEventCapacity(n int) Option {
	return newOption(func(cfg *config) error {
		if n < 0 {
			return &ConfigError{Option: "WithEventCapacity", Message: "capacity must be non-negative"}
		}
		cfg.eventCapacity = n
		return nil
	})
}

// WithQueueCapacity sets the size of the static message-queue table.
func WithQueueCapacity(n int) Option {
	return newOption(func(cfg *config) error {
		if n < 0 {
			return &ConfigError{Option: "WithQueueCapacity", Message: "capacity must be non-negative"}
		}
		cfg.queueCapacity = n
		return nil
	})
}

// WithPoolCapacity sets the size of the static memory-pool table.
func WithPoolCapacity(n int) Option {
	return newOption(func(cfg *config) error {
		if n < 0 {
			return &ConfigError{Option: "WithPoolCapacity", Message: "capacity must be non-negative"}
		}
		cfg.poolCapacity = n
		return nil
	})
}

// WithTopicCapacity sets the size of the static pub/sub topic table.
func WithTopicCapacity(n int) Option {
	return newOption(func(cfg *config) error {
		if n < 0 {
			return &ConfigError{Option: "WithTopicCapacity", Message: "capacity must be non-negative"}
		}
		cfg.topicCapacity = n
		return nil
	})
}

// WithTimerCapacity sets the size of the static (ONCE/CYCLE) timer table.
func WithTimerCapacity(n int) Option {
	return newOption(func(cfg *config) error {
		if n < 0 {
			return &ConfigError{Option: "WithTimerCapacity", Message: "capacity must be non-negative"}
		}
		cfg.timerCapacity = n
		return nil
	})
}

// WithTemporaryTimerCapacity sets the size of the dedicated free-list pool
// backing TEMPORARY timers (see Kernel.AfterFunc), kept separate from the
// static ONCE/CYCLE timer table per the original source's TEMPORARY mode.
func WithTemporaryTimerCapacity(n int) Option {
	return newOption(func(cfg *config) error {
		if n < 0 {
			return &ConfigError{Option: "WithTemporaryTimerCapacity", Message: "capacity must be non-negative"}
		}
		cfg.tempTimerCapacity = n
		return nil
	})
}

// WithThread declares one entry of the static thread table: name (for
// diagnostics), scheduling priority (lower value == higher priority, per
// spec), stack size in bytes (passed through to the hardware port's
// StackFrameInit), and the thread's entry function. Threads cannot be
// created after Kernel.Boot.
func WithThread(name string, priority, stackSize int, entry func(*Thread)) Option {
	return newOption(func(cfg *config) error {
		if entry == nil {
			return &ConfigError{Option: "WithThread", Message: "entry function must not be nil"}
		}
		if stackSize <= 0 {
			return &ConfigError{Option: "WithThread", Message: "stack size must be positive"}
		}
		cfg.threads = append(cfg.threads, threadDecl{
			name:      name,
			priority:  priority,
			stackSize: stackSize,
			entry:     entry,
		})
		return nil
	})
}

// WithInitLevel declares one entry of the static init level table: fn runs
// during Kernel.Boot, in ascending level order, before the scheduler picks
// its first thread. Levels must be unique and non-negative.
func WithInitLevel(level int, fn func(*Kernel) error) Option {
	return newOption(func(cfg *config) error {
		if level < 0 {
			return &ConfigError{Option: "WithInitLevel", Message: "level must be non-negative"}
		}
		if fn == nil {
			return &ConfigError{Option: "WithInitLevel", Message: "init function must not be nil"}
		}
		cfg.initLevels = append(cfg.initLevels, initLevelDecl{level: level, fn: fn})
		return nil
	})
}

// WithPort supplies the hardware port implementation. Required: New
// returns a *ConfigError if no port is supplied.
func WithPort(p port.HardwarePort) Option {
	return newOption(func(cfg *config) error {
		if p == nil {
			return &ConfigError{Option: "WithPort", Message: "port must not be nil"}
		}
		cfg.port = p
		return nil
	})
}

// WithLogger sets the structured logger the Kernel keeps. Without it, New
// takes the package-level logger (SetLogger), which is disabled unless
// replaced. No kernel code path writes log lines through it.
func WithLogger(l Logger) Option {
	return newOption(func(cfg *config) error {
		cfg.logger = l
		return nil
	})
}

// WithMetrics enables per-thread busy/idle percentage tracking
// (Thread.PercentUsed). Adds a small accounting cost to every context
// switch; disabled by default.
func WithMetrics(enabled bool) Option {
	return newOption(func(cfg *config) error {
		cfg.metricsEnabled = enabled
		return nil
	})
}

// WithPublishRateLimit bounds how often Topic.Publish may deliver per
// category (by default, per topic) using a token-bucket limiter, matching
// go-catrate's NewLimiter(rates) shape. A nil/empty map disables limiting.
func WithPublishRateLimit(rates map[time.Duration]int) Option {
	return newOption(func(cfg *config) error {
		cfg.publishRateLimits = rates
		return nil
	})
}

// resolveOptions applies every Option over a freshly defaulted config and
// validates the static init level table is usable.
func resolveOptions(opts []Option) (*config, error) {
	cfg := &config{
		threadCapacity:    8,
		semaphoreCapacity: 8,
		mutexCapacity:     8,
		eventCapacity:     8,
		queueCapacity:     8,
		poolCapacity:      8,
		topicCapacity:     8,
		timerCapacity:     16,
		tempTimerCapacity: 16,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.port == nil {
		return nil, &ConfigError{Option: "WithPort", Message: "a hardware port is required"}
	}
	if len(cfg.threads) > cfg.threadCapacity {
		return nil, &ConfigError{Option: "WithThread", Message: "declared threads exceed WithThreadCapacity"}
	}
	seen := make(map[int]bool, len(cfg.initLevels))
	for _, lv := range cfg.initLevels {
		if seen[lv.level] {
			return nil, &ConfigError{Option: "WithInitLevel", Message: "duplicate init level"}
		}
		seen[lv.level] = true
	}
	sort.Slice(cfg.initLevels, func(i, j int) bool {
		return cfg.initLevels[i].level < cfg.initLevels[j].level
	})
	return cfg, nil
}
