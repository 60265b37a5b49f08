package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/scrypster/clawscope/internal/timeline"
)

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.clampScroll()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case feedMsg:
		m.Loading = false
		m.Events = timeline.MergeCached(m.Events, msg.events, timeline.ClientCacheMax)
		m.RefreshedAt = msg.at
		m.clampScroll()
		if msg.scheduled {
			return m, m.tick()
		}
		return m, nil

	case tickMsg:
		if m.Loading {
			// A manual refresh is in flight; keep the loop alive.
			return m, m.tick()
		}
		m.Loading = true
		return m, tea.Batch(m.load(true), m.spinner.Tick)

	case spinner.TickMsg:
		if !m.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "j", "down":
		m.Scroll++
	case "k", "up":
		m.Scroll--
	case "g", "home":
		m.Scroll = 0
	case "G", "end":
		m.Scroll = len(m.Visible())
	case "r":
		if !m.Loading {
			m.Loading = true
			return m, tea.Batch(m.load(false), m.spinner.Tick)
		}
	case "0", "a":
		m.Filter = ""
		m.Scroll = 0
	default:
		if kind, ok := filterKeys[key]; ok {
			m.Filter = kind
			m.Scroll = 0
		}
	}
	m.clampScroll()
	return m, nil
}

// Visible returns the events that pass the current filter.
func (m Model) Visible() []timeline.Event {
	if m.Filter == "" {
		return m.Events
	}
	var out []timeline.Event
	for _, ev := range m.Events {
		if ev.Kind == m.Filter {
			out = append(out, ev)
		}
	}
	return out
}

func (m Model) rows() int {
	if m.Height <= 0 {
		return 20
	}
	if r := m.Height - chromeLines; r > 1 {
		return r
	}
	return 1
}

func (m *Model) clampScroll() {
	last := len(m.Visible()) - m.rows()
	if last < 0 {
		last = 0
	}
	if m.Scroll > last {
		m.Scroll = last
	}
	if m.Scroll < 0 {
		m.Scroll = 0
	}
}
