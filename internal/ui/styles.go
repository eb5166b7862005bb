// Package ui renders the caller command line output.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	Primary   = lipgloss.Color("#34d399")
	Secondary = lipgloss.Color("#818cf8")
	Success   = lipgloss.Color("#10B981")
	Warning   = lipgloss.Color("#F59E0B")
	Error     = lipgloss.Color("#EF4444")
	Muted     = lipgloss.Color("#6B7280")
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(Primary)
	SuccessStyle = lipgloss.NewStyle().Bold(true).Foreground(Success)
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(Error)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)
	SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

	// Chat transcript speakers.
	SelfStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary)
	PeerStyle = lipgloss.NewStyle().Bold(true).Foreground(Secondary)

	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary).Align(lipgloss.Center)
	TableRowStyle    = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("255"))
	TableRowAltStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))

	roomBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Primary).
		Padding(0, 2)
)

const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconInfo    = "ℹ️"
	IconRoom    = "🚪"
	IconCall    = "📞"
	IconChat    = "💬"
)

// Output is where the Print helpers write. Tests redirect it.
var Output io.Writer = os.Stdout

// status writes one icon-prefixed line. A zero textStyle leaves the text plain.
func status(icon string, iconStyle, textStyle lipgloss.Style, msg string) {
	fmt.Fprintln(Output, iconStyle.Render(icon), textStyle.Render(msg))
}

func PrintError(msg string) { status(IconError, ErrorStyle, ErrorStyle, msg) }

func PrintErrorf(format string, args ...any) { PrintError(fmt.Sprintf(format, args...)) }

func PrintWarning(msg string) { status(IconWarning, WarningStyle, WarningStyle, msg) }

func PrintSuccess(msg string) { status(IconSuccess, SuccessStyle, lipgloss.NewStyle(), msg) }

func PrintInfo(msg string) { status(IconInfo, lipgloss.NewStyle(), lipgloss.NewStyle(), msg) }

func PrintInfof(format string, args ...any) { PrintInfo(fmt.Sprintf(format, args...)) }

// RoomBanner renders the box shown after joining a room: the room to share
// and the server it lives on.
func RoomBanner(roomID, serverURL string) string {
	return roomBox.Render(lipgloss.JoinVertical(lipgloss.Left,
		fmt.Sprintf("%s Room   %s", IconRoom, TitleStyle.Render(roomID)),
		fmt.Sprintf("%s Server %s", IconCall, MutedStyle.Render(serverURL)),
	))
}
