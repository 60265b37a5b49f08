// Package tui is the live terminal view of the unified timeline behind
// `clawscope watch`.
package tui

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/scrypster/clawscope/internal/timeline"
)

// Feed builds the merged timeline.
type Feed interface {
	Timeline(ctx context.Context, since time.Time, limit int) []timeline.Event
}

const loadTimeout = 30 * time.Second

// filterKeys maps number keys to the kind they isolate.
var filterKeys = map[string]string{
	"1": timeline.KindSession,
	"2": timeline.KindCron,
	"3": timeline.KindTool,
	"4": timeline.KindMemory,
	"5": timeline.KindAlert,
}

type feedMsg struct {
	events []timeline.Event
	at     time.Time
	// scheduled loads keep the refresh loop going; manual ones do not.
	scheduled bool
}

type tickMsg time.Time

// Model holds all watch state.
type Model struct {
	feed     Feed
	interval time.Duration
	window   time.Duration
	now      func() time.Time

	Events      []timeline.Event
	Filter      string
	Scroll      int
	Width       int
	Height      int
	Loading     bool
	RefreshedAt time.Time

	spinner spinner.Model
}

// New creates a model that refreshes every interval and shows events from
// the trailing window. A zero interval refreshes only on demand; a zero
// window shows everything the feed returns.
func New(feed Feed, interval, window time.Duration) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		feed:     feed,
		interval: interval,
		window:   window,
		now:      time.Now,
		Loading:  true,
		spinner:  sp,
	}
}

// Init starts the first load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(true), m.spinner.Tick)
}

func (m Model) load(scheduled bool) tea.Cmd {
	feed, now, window := m.feed, m.now, m.window
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		var since time.Time
		if window > 0 {
			since = now().Add(-window)
		}
		return feedMsg{
			events:    feed.Timeline(ctx, since, timeline.DefaultLimit),
			at:        now(),
			scheduled: scheduled,
		}
	}
}

func (m Model) tick() tea.Cmd {
	if m.interval <= 0 {
		return nil
	}
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Run drives the program until the user quits or ctx ends.
func Run(ctx context.Context, m Model, in io.Reader, out io.Writer) error {
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
