// Package frameloop paces the windowed loop with a fixed-step accumulator.
package frameloop

import "time"

// DefaultMaxUpdates bounds catch-up steps per frame after a stall.
const DefaultMaxUpdates = 8

// Timing describes one advanced frame.
type Timing struct {
	FrameIndex   uint64
	DT           time.Duration
	FPS          float64
	FixedUpdates int
}

// Loop accumulates wall time into fixed simulation steps and counts frames.
// It is not safe for concurrent use.
type Loop struct {
	step       time.Duration
	maxUpdates int

	acc        time.Duration
	frameIndex uint64

	secondAcc   time.Duration
	secondCount int
	fps         float64
}

// New returns a loop running tickHz fixed steps per second. Values below 1
// are raised to 1; maxUpdates <= 0 selects DefaultMaxUpdates.
func New(tickHz, maxUpdates int) *Loop {
	tickHz = max(tickHz, 1)
	if maxUpdates <= 0 {
		maxUpdates = DefaultMaxUpdates
	}
	return &Loop{step: time.Second / time.Duration(tickHz), maxUpdates: maxUpdates}
}

func (l *Loop) FixedStep() time.Duration { return l.step }

// FrameIndex is the index of the last advanced frame; 0 before the first.
func (l *Loop) FrameIndex() uint64 { return l.frameIndex }

// Advance consumes dt and returns the timing of the next frame. The frame
// index grows by one per call; FPS is re-estimated once per elapsed second.
func (l *Loop) Advance(dt time.Duration) Timing {
	dt = max(dt, 0)
	l.acc = saturatingAdd(l.acc, dt)
	updates := 0
	for l.acc >= l.step && updates < l.maxUpdates {
		l.acc -= l.step
		updates++
	}

	l.frameIndex++
	l.secondCount++
	l.secondAcc = saturatingAdd(l.secondAcc, dt)
	if l.secondAcc >= time.Second {
		l.fps = float64(l.secondCount) / l.secondAcc.Seconds()
		l.secondCount = 0
		l.secondAcc = 0
	}
	return Timing{FrameIndex: l.frameIndex, DT: dt, FPS: l.fps, FixedUpdates: updates}
}

func saturatingAdd(a, b time.Duration) time.Duration {
	if s := a + b; s >= a {
		return s
	}
	return time.Duration(1<<63 - 1)
}
