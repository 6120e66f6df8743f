package stores

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper purges expired entries and reports how many it removed.
type Sweeper interface {
	Sweep() int
}

// Janitor runs a Sweeper on a fixed schedule. Intervals under a second are
// rounded up to one second.
type Janitor struct {
	cron  *cron.Cron
	runs  atomic.Uint64
	swept atomic.Uint64
}

// StartJanitor schedules s every interval and starts the scheduler.
func StartJanitor(s Sweeper, interval time.Duration) (*Janitor, error) {
	if s == nil {
		return nil, fmt.Errorf("janitor: nil sweeper")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("janitor: interval must be > 0")
	}

	j := &Janitor{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := j.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		n := s.Sweep()
		j.runs.Add(1)
		j.swept.Add(uint64(n))
	}); err != nil {
		return nil, fmt.Errorf("janitor: schedule: %w", err)
	}

	j.cron.Start()
	return j, nil
}

// Runs returns how many sweeps have completed.
func (j *Janitor) Runs() uint64 {
	return j.runs.Load()
}

// Swept returns the total entries removed by scheduled sweeps.
func (j *Janitor) Swept() uint64 {
	return j.swept.Load()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j == nil {
		return
	}
	<-j.cron.Stop().Done()
}
