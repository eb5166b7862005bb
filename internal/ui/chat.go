package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const maxChatLines = 200

type lineKind int

const (
	lineSelf lineKind = iota
	linePeer
	lineSystem
)

type chatLine struct {
	kind lineKind
	text string
	at   time.Time
}

type (
	incomingMsg  chatLine
	statusMsg    string
	connectedMsg bool
)

// ChatUI is the interactive chat shown once a call is set up.
type ChatUI struct {
	program *tea.Program
	model   *chatModel
	updates chan tea.Msg
	done    chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup
}

// NewChatUI builds the chat screen for roomID. send delivers a typed line to
// the peer.
func NewChatUI(roomID string, send func(string) error) *ChatUI {
	updates := make(chan tea.Msg, 64)
	return &ChatUI{
		model:   newChatModel(roomID, send, updates),
		updates: updates,
		done:    make(chan struct{}),
	}
}

// Start starts the UI in a goroutine
func (ui *ChatUI) Start(opts ...tea.ProgramOption) {
	ui.program = tea.NewProgram(ui.model, opts...)
	ui.wg.Add(1)
	go func() {
		defer ui.wg.Done()
		defer ui.stop.Do(func() { close(ui.done) })
		if _, err := ui.program.Run(); err != nil {
			fmt.Printf("UI error: %v\n", err)
		}
	}()
}

// Done is closed when the user quits the chat.
func (ui *ChatUI) Done() <-chan struct{} {
	return ui.done
}

// Stop stops the UI and waits for it to restore the terminal.
func (ui *ChatUI) Stop() {
	if ui.program != nil {
		ui.program.Quit()
	}
	ui.wg.Wait()
}

// AddIncoming shows a line received from the peer.
func (ui *ChatUI) AddIncoming(text string, at time.Time) {
	ui.push(incomingMsg{kind: linePeer, text: text, at: at})
}

// AddSystem shows a status line in the transcript.
func (ui *ChatUI) AddSystem(text string) {
	ui.push(incomingMsg{kind: lineSystem, text: text, at: time.Now()})
}

// SetStatus sets the line shown above the input.
func (ui *ChatUI) SetStatus(status string) {
	ui.push(statusMsg(status))
}

// SetConnected toggles whether typed lines are sent.
func (ui *ChatUI) SetConnected(connected bool) {
	ui.push(connectedMsg(connected))
}

func (ui *ChatUI) push(msg tea.Msg) {
	select {
	case ui.updates <- msg:
	case <-ui.done:
	}
}

type chatModel struct {
	roomID    string
	input     textinput.Model
	spinner   spinner.Model
	lines     []chatLine
	status    string
	connected bool
	send      func(string) error
	updates   chan tea.Msg
	quitting  bool
}

func newChatModel(roomID string, send func(string) error, updates chan tea.Msg) *chatModel {
	in := textinput.New()
	in.Placeholder = "type a message"
	in.Prompt = "> "
	in.CharLimit = 4096
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &chatModel{
		roomID:  roomID,
		input:   in,
		spinner: s,
		status:  "Waiting for a peer...",
		send:    send,
		updates: updates,
	}
}

func (m *chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.listenForUpdates())
}

func (m *chatModel) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			m.submit()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.input.Width = max(10, msg.Width-4)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case incomingMsg:
		m.appendLine(chatLine(msg))
		return m, m.listenForUpdates()

	case statusMsg:
		m.status = string(msg)
		return m, m.listenForUpdates()

	case connectedMsg:
		m.connected = bool(msg)
		return m, m.listenForUpdates()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *chatModel) submit() {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}
	if !m.connected {
		m.appendLine(chatLine{kind: lineSystem, text: "not connected yet, message not sent", at: time.Now()})
		return
	}
	if err := m.send(text); err != nil {
		m.appendLine(chatLine{kind: lineSystem, text: "send failed: " + err.Error(), at: time.Now()})
		return
	}
	m.appendLine(chatLine{kind: lineSelf, text: text, at: time.Now()})
	m.input.SetValue("")
}

func (m *chatModel) appendLine(l chatLine) {
	m.lines = append(m.lines, l)
	if len(m.lines) > maxChatLines {
		m.lines = m.lines[len(m.lines)-maxChatLines:]
	}
}

func (m *chatModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s Room %s", IconChat, m.roomID)))
	b.WriteString("\n\n")

	for _, l := range m.lines {
		b.WriteString(renderLine(l))
		b.WriteString("\n")
	}
	if len(m.lines) > 0 {
		b.WriteString("\n")
	}

	if m.connected {
		b.WriteString(SuccessStyle.Render("● ") + m.status)
	} else {
		b.WriteString(m.spinner.View() + " " + m.status)
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n" + MutedStyle.Render("enter to send · esc to quit"))
	return b.String()
}

func renderLine(l chatLine) string {
	ts := MutedStyle.Render(l.at.Format("15:04"))
	switch l.kind {
	case lineSelf:
		return fmt.Sprintf("%s %s %s", ts, SelfStyle.Render("you:"), l.text)
	case linePeer:
		return fmt.Sprintf("%s %s %s", ts, PeerStyle.Render("peer:"), l.text)
	default:
		return fmt.Sprintf("%s %s", ts, MutedStyle.Render(l.text))
	}
}
