package core

import (
	"time"

	"devkit-installer/internal/types"
)

// ProgressFunc receives throttled progress snapshots during a download.
type ProgressFunc func(types.ProgressSnapshot)

const progressEmitInterval = 100 * time.Millisecond

// progressTracker turns byte counts into throttled ProgressSnapshots.
// Speed is measured over the window since the previous emit; AvgSpeed
// over the whole transfer. Not safe for concurrent use: one tracker
// belongs to one download goroutine.
type progressTracker struct {
	component string
	url       string
	total     int64
	clock     func() time.Time
	emit      ProgressFunc
	interval  time.Duration

	started    time.Time
	done       int64
	windowAt   time.Time
	windowDone int64
}

func newProgressTracker(component string, url string, total int64, clock func() time.Time, emit ProgressFunc) *progressTracker {
	if clock == nil {
		clock = time.Now
	}
	now := clock()
	return &progressTracker{
		component: component,
		url:       url,
		total:     total,
		clock:     clock,
		emit:      emit,
		interval:  progressEmitInterval,
		started:   now,
		windowAt:  now,
	}
}

// Add records n more transferred bytes and emits a snapshot when the
// throttle window has elapsed.
func (p *progressTracker) Add(n int64) {
	p.done += n
	if p.emit == nil {
		return
	}
	now := p.clock()
	if now.Sub(p.windowAt) < p.interval {
		return
	}
	p.emit(p.snapshot(now))
	p.windowAt = now
	p.windowDone = p.done
}

// Finish emits the terminal snapshot regardless of throttling.
func (p *progressTracker) Finish() {
	if p.emit == nil {
		return
	}
	p.emit(p.snapshot(p.clock()))
}

func (p *progressTracker) snapshot(now time.Time) types.ProgressSnapshot {
	elapsed := now.Sub(p.started)
	snapshot := types.ProgressSnapshot{
		Component:  p.component,
		URL:        p.url,
		BytesDone:  p.done,
		BytesTotal: p.total,
		Elapsed:    elapsed,
	}
	if window := now.Sub(p.windowAt); window > 0 {
		snapshot.Speed = float64(p.done-p.windowDone) / window.Seconds()
	}
	if elapsed > 0 {
		snapshot.AvgSpeed = float64(p.done) / elapsed.Seconds()
	}
	if p.total > 0 {
		snapshot.Percent = float64(p.done) / float64(p.total) * 100
		if snapshot.AvgSpeed > 0 && p.done <= p.total {
			remaining := float64(p.total-p.done) / snapshot.AvgSpeed
			snapshot.ETA = time.Duration(remaining * float64(time.Second))
		}
	}
	return snapshot
}
