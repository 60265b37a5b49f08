package tui

import (
	"fmt"
	"strings"

	"github.com/scrypster/clawscope/internal/timeline"
)

// chromeLines is the header, blank line and footer around the list.
const chromeLines = 4

// View renders the screen.
func (m Model) View() string {
	var b strings.Builder

	title := headerStyle.Render("ClawScope timeline")
	if m.Filter != "" {
		title += " " + filterStyle.Render("["+m.Filter+"]")
	}
	status := mutedStyle.Render("waiting for first refresh")
	switch {
	case m.Loading:
		status = m.spinner.View() + mutedStyle.Render(" refreshing")
	case !m.RefreshedAt.IsZero():
		status = mutedStyle.Render("updated " + m.RefreshedAt.Local().Format("15:04:05"))
	}
	fmt.Fprintf(&b, "%s  %s\n\n", title, status)

	events := m.Visible()
	if len(events) == 0 {
		b.WriteString(mutedStyle.Render("No events.") + "\n")
	} else {
		end := m.Scroll + m.rows()
		if end > len(events) {
			end = len(events)
		}
		for _, ev := range events[m.Scroll:end] {
			b.WriteString(m.line(ev) + "\n")
		}
	}

	b.WriteString("\n" + helpStyle.Render(fmt.Sprintf("%d events · j/k scroll · r refresh · 1-5 filter · 0 all · q quit", len(events))))
	return b.String()
}

func (m Model) line(ev timeline.Event) string {
	style, ok := kindStyles[ev.Kind]
	if !ok {
		style = mutedStyle
	}
	when := ev.TS
	if t := ev.Time(); !t.IsZero() {
		when = t.Local().Format("01-02 15:04:05")
	}
	summary := ev.Summary
	if m.Width > 0 {
		// timestamp, kind column and separators take 27 cells.
		if room := m.Width - 27; room > 0 {
			summary = timeline.Truncate(summary, room)
		}
	}
	return fmt.Sprintf("%s  %s  %s", mutedStyle.Render(when), style.Render(fmt.Sprintf("%-7s", ev.Kind)), summary)
}
