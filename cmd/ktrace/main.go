// Command ktrace boots a small demonstration kernel instance on the
// hostsim port and prints a scheduling trace: one snapshot per simulated
// tick, driven by a ManualClock so the run is fully deterministic.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	kernel "github.com/joeycumines/go-rtkernel"
	"github.com/joeycumines/go-rtkernel/port/hostsim"
)

func main() {
	var (
		ticks    = flag.Int("ticks", 20, "number of simulated ticks to advance")
		tickStep = flag.Duration("step", time.Millisecond, "simulated duration per tick")
	)
	flag.Parse()

	if err := run(*ticks, *tickStep); err != nil {
		fmt.Fprintln(os.Stderr, "ktrace:", err)
		os.Exit(1)
	}
}

func run(ticks int, step time.Duration) error {
	p := hostsim.NewPort(hostsim.NewManualClock())

	runThread := func(t *kernel.Thread) {
		for i := 0; i < ticks; i++ {
			t.Sleep(step)
		}
	}

	k, err := kernel.New(
		kernel.WithPort(p),
		kernel.WithThreadCapacity(2),
		kernel.WithThread("hi", 0, 8192, runThread),
		kernel.WithThread("lo", 1, 8192, runThread),
	)
	if err != nil {
		return err
	}

	if err := k.Boot(); err != nil {
		return err
	}

	for i := 0; i < ticks; i++ {
		p.AdvanceClock(step)
		snap := k.Snapshot()
		fmt.Printf("t=%dus current=%v\n", snap.SystemTimeUS, snap.Current)
		for _, ts := range snap.Threads {
			fmt.Printf("  %-8s pri=%-2d base=%-2d state=%-9s wait=%-10s busy=%.1f%%\n",
				ts.Name, ts.Priority, ts.BasePriority, ts.State, ts.WaitReason, ts.PercentUsed)
		}
	}
	return nil
}
