package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/infinitybuddha29/caller/internal/ui"
)

// chatView is what a call reports to: the bubbletea chat or the line mode.
type chatView interface {
	AddIncoming(text string, at time.Time)
	AddSystem(text string)
	SetStatus(status string)
	SetConnected(connected bool)
	Done() <-chan struct{}
	Stop()
}

var _ chatView = (*ui.ChatUI)(nil)

// plainChat reads lines from in and prints the transcript to out, for
// pipes and terminals that cannot host the interactive UI.
type plainChat struct {
	in   io.Reader
	out  io.Writer
	send func(string) error

	mu        sync.Mutex
	connected bool

	done     chan struct{}
	stopOnce sync.Once
}

func newPlainChat(in io.Reader, out io.Writer, send func(string) error) *plainChat {
	return &plainChat{
		in:   in,
		out:  out,
		send: send,
		done: make(chan struct{}),
	}
}

// Start reads input until EOF.
func (p *plainChat) Start() {
	go func() {
		defer p.Stop()
		scanner := bufio.NewScanner(p.in)
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			p.mu.Lock()
			connected := p.connected
			p.mu.Unlock()
			if !connected {
				p.AddSystem("not connected yet, message not sent")
				continue
			}
			if err := p.send(text); err != nil {
				p.AddSystem("send failed: " + err.Error())
			}
		}
	}()
}

func (p *plainChat) AddIncoming(text string, at time.Time) {
	p.printf("[%s] peer: %s\n", at.Format("15:04"), text)
}

func (p *plainChat) AddSystem(text string) {
	p.printf("* %s\n", text)
}

func (p *plainChat) SetStatus(status string) {
	p.printf("* %s\n", status)
}

func (p *plainChat) SetConnected(connected bool) {
	p.mu.Lock()
	p.connected = connected
	p.mu.Unlock()
}

func (p *plainChat) Done() <-chan struct{} {
	return p.done
}

func (p *plainChat) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

func (p *plainChat) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}
