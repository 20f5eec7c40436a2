// Command panel is a terminal notification panel: it renders the unread
// badge and list for one recipient token and drives the same optimistic
// mark-read/mark-all/delete flow the web panel uses.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lamiedu/taarifa/client"
	"github.com/lamiedu/taarifa/client/panel"
	"github.com/lamiedu/taarifa/core/notification"
)

const requestTimeout = 10 * time.Second

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	badgeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	unreadStyle = lipgloss.NewStyle().Bold(true)
	readStyle   = lipgloss.NewStyle().Faint(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
)

func main() {
	addr := flag.String("addr", "http://localhost:8000", "notification API base URL")
	token := flag.String("token", os.Getenv("TAARIFA_TOKEN"), "recipient JWT")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "a recipient token is required (-token or TAARIFA_TOKEN)")
		os.Exit(1)
	}

	m := newModel(client.NewClient(*addr, *token))
	if _, err := tea.NewProgram(m).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type (
	panelLoadedMsg struct {
		generation int
		items      []notification.Notification
		unread     int
		err        error
	}

	mutationDoneMsg struct {
		kind string // "markRead" | "markAll" | "delete"
		id   int
		err  error
	}
)

type model struct {
	client  panel.Client
	state   panel.State
	cursor  int
	spinner spinner.Model
}

func newModel(c panel.Client) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return model{client: c, state: panel.NewState().Open(), spinner: sp}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(m.state.Generation), m.spinner.Tick)
}

func (m model) open() (model, tea.Cmd) {
	m.state = m.state.Open()
	return m, m.loadCmd(m.state.Generation)
}

func (m model) loadCmd(generation int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		items, unread, err := panel.Load(ctx, m.client)
		return panelLoadedMsg{generation: generation, items: items, unread: unread, err: err}
	}
}

func (m model) markReadCmd(id int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return mutationDoneMsg{kind: "markRead", id: id, err: m.client.MarkRead(ctx, id)}
	}
}

func (m model) markAllCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := m.client.MarkAllRead(ctx)
		return mutationDoneMsg{kind: "markAll", err: err}
	}
}

func (m model) deleteCmd(id int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return mutationDoneMsg{kind: "delete", id: id, err: m.client.Delete(ctx, id)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case panelLoadedMsg:
		m.state = m.state.ApplyLoad(msg.generation, msg.items, msg.unread, msg.err)
		m.clampCursor()
		return m, nil

	case mutationDoneMsg:
		switch msg.kind {
		case "markRead":
			m.state = m.state.ResolveMarkRead(msg.id, msg.err)
		case "markAll":
			m.state = m.state.ResolveMarkAllRead(msg.err)
		case "delete":
			m.state = m.state.ResolveDelete(msg.id, msg.err)
			m.clampCursor()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}
	return m, nil
}

func (m model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.state = m.state.Close()
		return m, tea.Quit

	case "o":
		if m.state.Phase == panel.PhaseClosed {
			return m.open()
		}

	case "R":
		if m.state.Phase == panel.PhaseLoadFailed {
			m.state = m.state.Retry()
			return m, m.loadCmd(m.state.Generation)
		}

	case "g":
		// refresh: server state overwrites any local optimistic state
		if m.state.Phase == panel.PhaseLoaded && !m.state.Busy() {
			return m.open()
		}

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.state.Items)-1 {
			m.cursor++
		}

	case "r", "enter":
		if id, ok := m.cursorID(); ok {
			if next, ok := m.state.BeginMarkRead(id); ok {
				m.state = next
				return m, m.markReadCmd(id)
			}
		}

	case "a":
		if next, ok := m.state.BeginMarkAllRead(); ok {
			m.state = next
			return m, m.markAllCmd()
		}

	case "d":
		if id, ok := m.cursorID(); ok {
			if next, ok := m.state.BeginDelete(id); ok {
				m.state = next
				return m, m.deleteCmd(id)
			}
		}
	}
	return m, nil
}

func (m model) cursorID() (int, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.Items) {
		return 0, false
	}
	return m.state.Items[m.cursor].ID, true
}

func (m *model) clampCursor() {
	if m.cursor >= len(m.state.Items) {
		m.cursor = len(m.state.Items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m model) View() string {
	var b strings.Builder

	switch m.state.Phase {
	case panel.PhaseClosed:
		b.WriteString(helpStyle.Render("panel closed. o: open  q: quit"))

	case panel.PhaseOpening:
		b.WriteString(m.spinner.View() + " loading notifications...")

	case panel.PhaseLoadFailed:
		b.WriteString(errStyle.Render("could not load notifications: "+m.state.LoadErr) + "\n\n")
		b.WriteString(helpStyle.Render("R: retry  q: quit"))

	case panel.PhaseLoaded:
		header := titleStyle.Render("Notifications")
		if m.state.Badge > 0 {
			header += " " + badgeStyle.Render(fmt.Sprintf("(%d)", m.state.Badge))
		}
		if m.state.Busy() {
			header += " " + m.spinner.View()
		}
		b.WriteString(header + "\n\n")

		if len(m.state.Items) == 0 {
			b.WriteString(helpStyle.Render("nothing here yet") + "\n")
		}
		for i, n := range m.state.Items {
			cursor := "  "
			if i == m.cursor {
				cursor = cursorStyle.Render("> ")
			}
			line := n.Title + " - " + n.Message
			if n.IsRead {
				line = readStyle.Render(line)
			} else {
				line = unreadStyle.Render("* " + line)
			}
			b.WriteString(cursor + line + "\n")
			if msg, ok := m.state.ItemErrs[n.ID]; ok {
				b.WriteString("    " + errStyle.Render(msg) + "\n")
			}
		}
		b.WriteString("\n" + helpStyle.Render("r: mark read  a: mark all read  d: delete  g: refresh  esc: close  q: quit"))
	}

	return b.String() + "\n"
}
