// Package compaction provides the single background worker that drives a
// store's garbage collection. It owns no storage state itself — the actual
// merge algorithm (snapshotting the index, rewriting live records into a new
// segment, and retiring the old ones) belongs to the store that has the
// locks needed to run it safely. This package only owns the concurrency
// shape: a single goroutine that serializes merge requests and can be asked
// to shut down cleanly.
package compaction

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// MergeFunc performs one compaction pass. It is supplied by the store and is
// expected to acquire whatever locks the store's own merge algorithm
// requires.
type MergeFunc func() error

// Config holds the parameters needed to initialize a Compaction worker.
type Config struct {
	Logger    *zap.SugaredLogger
	Threshold uint64 // garbage byte threshold that triggers an automatic merge
	Merge     MergeFunc

	// Interval, when positive, runs an additional merge pass on a fixed
	// schedule independent of the garbage threshold, so a workload that
	// accumulates garbage too slowly to ever cross Threshold still gets
	// its segments reclaimed eventually. Zero disables the sweep.
	Interval time.Duration
}

// Compaction runs MergeFunc on a single dedicated goroutine, collapsing any
// number of pending triggers into at most one merge running at a time and
// at most one more queued behind it.
type Compaction struct {
	log       *zap.SugaredLogger
	threshold uint64
	interval  time.Duration
	merge     MergeFunc

	garbage atomic.Uint64

	workCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a Compaction worker and starts its background goroutine.
func New(config *Config) *Compaction {
	c := &Compaction{
		log:       config.Logger,
		threshold: config.Threshold,
		interval:  config.Interval,
		merge:     config.Merge,
		workCh:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}

	c.wg.Add(1)
	go c.run()

	return c
}

// run is the worker loop: it blocks on workCh and stopCh, invoking merge
// once per signal and draining any signals sent while a merge was already
// running into a single follow-up pass. When interval is positive, it also
// fires a merge on that fixed schedule regardless of the garbage total.
func (c *Compaction) run() {
	defer c.wg.Done()

	var ticks <-chan time.Time
	if c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		select {
		case <-c.stopCh:
			return
		case <-c.workCh:
			if err := c.merge(); err != nil {
				c.log.Errorw("compaction pass failed", "error", err)
			}
		case <-ticks:
			c.log.Infow("running scheduled compaction sweep")
			if err := c.merge(); err != nil {
				c.log.Errorw("scheduled compaction pass failed", "error", err)
			}
		}
	}
}

// Trigger records garbageBytes worth of newly-created garbage and schedules
// a compaction pass if the accumulated total has crossed the configured
// threshold. It never blocks: if a pass is already queued, the signal is
// dropped, since one pending pass already covers the garbage accounted for
// by this call.
func (c *Compaction) Trigger(garbageBytes uint64) {
	total := c.garbage.Add(garbageBytes)
	if total < c.threshold {
		return
	}

	select {
	case c.workCh <- struct{}{}:
	default:
	}
}

// Compact schedules an immediate compaction pass regardless of the
// accumulated garbage total.
func (c *Compaction) Compact() {
	select {
	case c.workCh <- struct{}{}:
	default:
	}
}

// ResetGarbage zeroes the accumulated garbage counter, called by the store
// at the start of a merge pass, just before it snapshots the index.
func (c *Compaction) ResetGarbage() {
	c.garbage.Store(0)
}

// Shutdown stops the worker goroutine and waits for any in-flight merge to
// finish. It is safe to call multiple times.
func (c *Compaction) Shutdown() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(c.stopCh)
	c.wg.Wait()
	return nil
}
