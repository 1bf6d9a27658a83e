package gesture

import (
	"sync"
	"time"
)

// LongPress fires OnLongPress once a press has been held for Delay.
// Release reports whether the long press fired, so callers only stop what was started.
type LongPress struct {
	Delay       time.Duration
	OnLongPress func()

	mu      sync.Mutex
	pressed bool
	fired   bool
	timer   *time.Timer
	// seq invalidates timers from earlier presses
	seq uint64
	// callback in flight; Release waits for it
	running sync.WaitGroup
}

func NewLongPress(delay time.Duration, onLongPress func()) *LongPress {
	return &LongPress{Delay: delay, OnLongPress: onLongPress}
}

// Press starts the hold timer. Repeated presses while held are ignored (key repeat).
func (g *LongPress) Press() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pressed {
		return
	}
	g.pressed = true
	g.fired = false
	g.seq++
	seq := g.seq

	g.timer = time.AfterFunc(g.Delay, func() {
		g.mu.Lock()
		if !g.pressed || g.seq != seq {
			g.mu.Unlock()
			return
		}
		g.fired = true
		g.running.Add(1)
		g.mu.Unlock()

		defer g.running.Done()
		if g.OnLongPress != nil {
			g.OnLongPress()
		}
	})
}

// Release ends the hold and returns true if the long press had fired.
// It returns only after a running OnLongPress has completed.
func (g *LongPress) Release() bool {
	g.mu.Lock()
	if !g.pressed {
		g.mu.Unlock()
		return false
	}
	g.pressed = false
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}

	fired := g.fired
	g.fired = false
	g.mu.Unlock()

	if fired {
		g.running.Wait()
	}
	return fired
}
