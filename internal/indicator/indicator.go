package indicator

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

var frames = []string{"●", "◉", "○", "◉"}

// Spinner animates a "REC" line while playing. Pause freezes the current frame, Reset clears the line.
type Spinner struct {
	w        io.Writer
	interval time.Duration
	label    *color.Color

	mu      sync.Mutex
	frame   int
	started time.Time
	stop    chan struct{}
	done    chan struct{}
}

func NewSpinner(w io.Writer) *Spinner {
	return &Spinner{
		w:        w,
		interval: 150 * time.Millisecond,
		label:    color.New(color.FgRed, color.Bold),
	}
}

// Play starts the animation; it is a no-op while already running
func (s *Spinner) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		return
	}
	if s.started.IsZero() {
		s.started = time.Now()
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
}

func (s *Spinner) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.draw()
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.frame = (s.frame + 1) % len(frames)
			s.mu.Unlock()
		}
	}
}

func (s *Spinner) draw() {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := time.Since(s.started).Truncate(100 * time.Millisecond)
	fmt.Fprintf(s.w, "\r%s %s", s.label.Sprintf("%s REC", frames[s.frame]), elapsed)
}

// Pause stops the animation and leaves the last frame visible
func (s *Spinner) Pause() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// Reset stops the animation and clears the line
func (s *Spinner) Reset() {
	s.Pause()

	s.mu.Lock()
	defer s.mu.Unlock()

	wasShown := !s.started.IsZero()
	s.frame = 0
	s.started = time.Time{}
	if wasShown {
		fmt.Fprint(s.w, "\r\033[K")
	}
}

// Nop is an indicator that shows nothing
type Nop struct{}

func (Nop) Play()  {}
func (Nop) Pause() {}
func (Nop) Reset() {}
