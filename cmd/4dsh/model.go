package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/mbertoldi/go-fourd/clipboard"
	"github.com/mbertoldi/go-fourd/fourd"
	"github.com/mbertoldi/go-fourd/highlight"
)

// model is the Bubble Tea model for the 4dsh REPL.
type model struct {
	conn *fourd.Connection
	cur  *fourd.Cursor

	input      string
	cursorPos  int
	history    []string
	historyIdx int

	lastQuery string
	output    string
	err       error
	hScroll   int

	width, height int
	quitting      bool
}

func newModel(conn *fourd.Connection) model {
	return model{conn: conn, cur: conn.Cursor()}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "ctrl+d":
		m.quitting = true
		return m, tea.Quit
	case "enter":
		return m.submit(), nil
	case "backspace":
		if m.cursorPos > 0 {
			runes := []rune(m.input)
			m.input = string(runes[:m.cursorPos-1]) + string(runes[m.cursorPos:])
			m.cursorPos--
		}
		return m, nil
	case "left":
		if m.cursorPos > 0 {
			m.cursorPos--
		}
		return m, nil
	case "right":
		if m.cursorPos < len([]rune(m.input)) {
			m.cursorPos++
		}
		return m, nil
	case "up":
		return m.recallHistory(-1), nil
	case "down":
		return m.recallHistory(1), nil
	case "ctrl+left":
		if m.hScroll > 0 {
			m.hScroll -= 8
			if m.hScroll < 0 {
				m.hScroll = 0
			}
		}
		return m, nil
	case "ctrl+right":
		m.hScroll += 8
		return m, nil
	}

	r := msg.Runes
	if len(r) == 0 {
		return m, nil
	}
	runes := []rune(m.input)
	m.input = string(runes[:m.cursorPos]) + string(r) + string(runes[m.cursorPos:])
	m.cursorPos += len(r)
	return m, nil
}

func (m model) recallHistory(dir int) model {
	if len(m.history) == 0 {
		return m
	}
	idx := m.historyIdx + dir
	if idx < 0 {
		idx = 0
	}
	if idx >= len(m.history) {
		m.historyIdx = len(m.history)
		m.input = ""
		m.cursorPos = 0
		return m
	}
	m.historyIdx = idx
	m.input = m.history[idx]
	m.cursorPos = len([]rune(m.input))
	return m
}

func (m model) submit() model {
	line := strings.TrimSpace(m.input)
	m.input = ""
	m.cursorPos = 0
	if line == "" {
		return m
	}
	m.history = append(m.history, line)
	m.historyIdx = len(m.history)

	if strings.HasPrefix(line, ":") {
		return m.runMeta(line)
	}
	return m.runQuery(line)
}

func (m model) runMeta(line string) model {
	ctx := context.Background()
	switch strings.ToLower(strings.TrimPrefix(line, ":")) {
	case "commit":
		m.err = m.conn.Commit(ctx)
		m.output = "COMMIT"
	case "rollback":
		m.err = m.conn.Rollback(ctx)
		m.output = "ROLLBACK"
	case "copy":
		if m.lastQuery == "" {
			m.err = fmt.Errorf("4dsh: no query to copy yet")
		} else {
			m.err = clipboard.Copy(ctx, m.lastQuery)
			m.output = "copied last query to clipboard"
		}
	case "quit", "exit":
		m.quitting = true
	default:
		m.err = fmt.Errorf("4dsh: unknown command %q", line)
	}
	return m
}

func (m model) runQuery(query string) model {
	m.lastQuery = query
	ctx := context.Background()
	if err := m.cur.Execute(ctx, query, nil); err != nil {
		m.err = err
		m.output = ""
		return m
	}
	m.err = nil

	if m.cur.Description() == nil {
		m.output = fmt.Sprintf("OK, %d row(s) affected", m.cur.RowCount())
		return m
	}
	rows, err := m.cur.FetchAll()
	if err != nil {
		m.err = err
		return m
	}
	m.output = renderTable(m.cur.Description(), rows)
	return m
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	if m.lastQuery != "" {
		b.WriteString(m.scrollLine(highlight.SQL(m.lastQuery)))
		b.WriteByte('\n')
	}
	if m.err != nil {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(m.err.Error()))
		b.WriteByte('\n')
	} else if m.output != "" {
		for _, line := range strings.Split(m.output, "\n") {
			b.WriteString(m.scrollLine(line))
			b.WriteByte('\n')
		}
	}
	b.WriteString("\n4d> " + renderInputWithCursor(m.input, m.cursorPos))
	b.WriteString("\n(:commit :rollback :copy :quit, ctrl+left/ctrl+right to scroll wide rows)")
	return b.String()
}

// scrollLine clips line to the terminal width starting at the model's
// horizontal scroll offset; at offset 0 (or before the terminal width is
// known) the line is returned whole. The cut is ANSI-escape-aware (so highlighted SQL and
// styled table cells aren't corrupted mid-sequence), mirroring the
// teacher's explain-view horizontal scroll (tui/explain.go's use of
// ansi.Cut to pan a rendered line without re-measuring escape codes).
func (m model) scrollLine(line string) string {
	if m.width <= 0 || m.hScroll == 0 {
		return line
	}
	return ansi.Cut(line, m.hScroll, m.hScroll+m.width)
}

// renderInputWithCursor draws the input line with a block cursor at pos.
func renderInputWithCursor(text string, pos int) string {
	runes := []rune(text)
	if pos >= len(runes) {
		return text + "█"
	}
	return string(runes[:pos]) + "█" + string(runes[pos:])
}
