package kernel

import (
	"sync"
	"time"
)

// defaultMetricsWindow is the sampling window over which a thread's busy
// fraction is computed before being folded into the streaming quantile.
const defaultMetricsWindow = 100 * time.Millisecond

// ThreadMetrics tracks how much of the recent past a thread spent RUNNING
// versus READY/BLOCKED/SUSPENDED, expressed as a 0..100 percentage. Enabled
// per-Kernel via WithMetrics(true); otherwise unused and free.
//
// Thread Safety: every method is safe to call from within the kernel's
// critical section (the only caller), and PercentUsed is additionally safe
// to call concurrently from a snapshot/diagnostic goroutine.
type ThreadMetrics struct {
	mu          sync.Mutex
	psquare     *pSquareQuantile
	windowLen   time.Duration
	windowStart time.Duration
	runAccum    time.Duration
	lastPercent float64
}

func newThreadMetrics() *ThreadMetrics {
	return &ThreadMetrics{
		psquare:   newPSquareQuantile(0.5),
		windowLen: defaultMetricsWindow,
	}
}

// recordRun folds a slice of time a thread just spent RUNNING into the
// current sampling window, rotating the window (and feeding its busy
// fraction into the P-Square median estimator) whenever windowLen elapses.
// now and ran are both hardware-clock durations since boot.
func (m *ThreadMetrics) recordRun(now, ran time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runAccum += ran
	elapsed := now - m.windowStart
	if elapsed < m.windowLen {
		return
	}
	if elapsed <= 0 {
		return
	}
	fraction := float64(m.runAccum) / float64(elapsed)
	if fraction > 1 {
		fraction = 1
	}
	m.psquare.Update(fraction * 100)
	m.lastPercent = m.psquare.Quantile()
	m.windowStart = now
	m.runAccum = 0
}

// PercentUsed returns the most recent smoothed busy percentage (0..100).
func (m *ThreadMetrics) PercentUsed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPercent
}
