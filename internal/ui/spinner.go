package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// LineSpinner animates a single status line on a writer until stopped. It
// borrows the frames of a bubbles spinner without running a tea.Program.
type LineSpinner struct {
	out    io.Writer
	frames []string
	every  time.Duration

	message string

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewLineSpinner writes to stderr with the given bubbles spinner style.
func NewLineSpinner(message string, style spinner.Spinner) *LineSpinner {
	return &LineSpinner{
		out:     os.Stderr,
		frames:  style.Frames,
		every:   style.FPS,
		message: message,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (s *LineSpinner) Start() {
	go func() {
		defer close(s.stopped)
		tick := time.NewTicker(s.every)
		defer tick.Stop()
		for frame := 0; ; frame = (frame + 1) % len(s.frames) {
			fmt.Fprintf(s.out, "\r%s %s", SpinnerStyle.Render(s.frames[frame]), s.message)

			select {
			case <-s.stop:
				return
			case <-tick.C:
			}
		}
	}()
}

// Stop halts the animation and clears the line. Later calls do nothing.
func (s *LineSpinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.stopped
		fmt.Fprint(s.out, "\r\033[K")
	})
}

// RunConnectionSpinner shows a globe spinner while a connection is set up
// and returns the function that removes it.
func RunConnectionSpinner(message string) func() {
	sp := NewLineSpinner(message, spinner.Globe)
	sp.Start()
	return sp.Stop
}
