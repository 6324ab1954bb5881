package kernel

// ThreadSnapshot is a point-in-time, read-only view of one thread's
// scheduling state, as surfaced by Kernel.Snapshot for tracing/diagnostic
// tools (cmd/ktrace).
type ThreadSnapshot struct {
	ID           ID
	Name         string
	Priority     int
	BasePriority int
	State        ThreadState
	WaitReason   WaitReason
	PercentUsed  float64
}

// Snapshot is a point-in-time view of the whole kernel: the running
// thread, every declared thread's state, and the current system clock.
type Snapshot struct {
	SystemTimeUS uint64
	Current      ID
	Threads      []ThreadSnapshot
}

// Snapshot captures the kernel's current scheduling state. Safe to call
// from any context; does not perturb scheduling (no thread is woken or
// reprioritized as a side effect).
func (k *Kernel) Snapshot() Snapshot {
	return callerInvoke(k, func() Snapshot {
		snap := Snapshot{SystemTimeUS: k.nowUS()}
		if cur := k.sched.current; cur != nil {
			snap.Current = cur.id
		}
		snap.Threads = make([]ThreadSnapshot, 0, k.threads.len())
		k.threads.forEach(func(id ID, t *Thread) bool {
			snap.Threads = append(snap.Threads, ThreadSnapshot{
				ID:           id,
				Name:         t.name,
				Priority:     t.priority,
				BasePriority: t.basePriority,
				State:        t.state.Load(),
				WaitReason:   t.waitReason,
				PercentUsed:  t.PercentUsed(),
			})
			return true
		})
		return snap
	})
}
