package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	pretty "github.com/jedib0t/go-pretty/v6/table"

	"github.com/infinitybuddha29/caller/internal/signaling"
)

// Table output formats for RenderRooms.
const (
	FormatTable    = "table"
	FormatPlain    = "plain"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

var roomHeaders = []string{"Room", "Participants", "State"}

func roomRows(rooms []signaling.RoomInfo) [][]string {
	rows := make([][]string, 0, len(rooms))
	for _, r := range rooms {
		state := "active"
		switch {
		case r.Emptying:
			state = "emptying"
		case len(r.Participants) == 2:
			state = "paired"
		case len(r.Participants) == 1:
			state = "waiting"
		}
		rows = append(rows, []string{r.ID, strings.Join(r.Participants, ", "), state})
	}
	return rows
}

// RoomsView renders rooms as a styled table.
func RoomsView(rooms []signaling.RoomInfo) string {
	if len(rooms) == 0 {
		return MutedStyle.Render("No rooms")
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(roomHeaders...).
		Rows(roomRows(rooms)...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// RenderRooms writes rooms to w in the given format. The plain, markdown
// and csv formats carry no terminal styling.
func RenderRooms(w io.Writer, rooms []signaling.RoomInfo, format string) error {
	if format == "" || format == FormatTable {
		_, err := fmt.Fprintln(w, RoomsView(rooms))
		return err
	}

	tw := pretty.NewWriter()
	header := make(pretty.Row, len(roomHeaders))
	for i, h := range roomHeaders {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, r := range roomRows(rooms) {
		tw.AppendRow(pretty.Row{r[0], r[1], r[2]})
	}

	var out string
	switch format {
	case FormatPlain:
		tw.SetStyle(pretty.StyleLight)
		out = tw.Render()
	case FormatMarkdown:
		out = tw.RenderMarkdown()
	case FormatCSV:
		out = tw.RenderCSV()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	_, err := fmt.Fprintln(w, out)
	return err
}
