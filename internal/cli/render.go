package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/scrypster/clawscope/internal/engine"
	"github.com/scrypster/clawscope/internal/providers"
	"github.com/scrypster/clawscope/internal/search"
	"github.com/scrypster/clawscope/internal/timeline"
)

var (
	primaryColor = lipgloss.Color("39")
	accentColor  = lipgloss.Color("76")
	warnColor    = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")
	mutedColor   = lipgloss.Color("240")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)
	scoreStyle = lipgloss.NewStyle().Foreground(accentColor)
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(errorColor)

	kindStyles = map[string]lipgloss.Style{
		timeline.KindSession: lipgloss.NewStyle().Foreground(primaryColor),
		timeline.KindCron:    lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		timeline.KindTool:    lipgloss.NewStyle().Foreground(accentColor),
		timeline.KindMemory:  lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		timeline.KindAlert:   lipgloss.NewStyle().Foreground(warnColor).Bold(true),
	}
)

func renderSearch(w io.Writer, items []search.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No results."))
		return
	}
	for i, it := range items {
		fmt.Fprintf(w, "%s %s %s\n",
			mutedStyle.Render(fmt.Sprintf("%2d.", i+1)),
			titleStyle.Render(it.Title),
			scoreStyle.Render(fmt.Sprintf("%.3f", it.Score)),
		)
		if it.Snippet != "" {
			fmt.Fprintf(w, "    %s\n", it.Snippet)
		}
		meta := []string{it.Source}
		if it.CreatedAt != nil {
			meta = append(meta, *it.CreatedAt)
		}
		fmt.Fprintf(w, "    %s\n", mutedStyle.Render(strings.Join(meta, " · ")))
	}
}

func renderTimeline(w io.Writer, events []timeline.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No events."))
		return
	}
	for _, ev := range events {
		style, ok := kindStyles[ev.Kind]
		if !ok {
			style = mutedStyle
		}
		fmt.Fprintf(w, "%s  %s  %s\n",
			mutedStyle.Render(ev.TS),
			style.Render(fmt.Sprintf("%-7s", ev.Kind)),
			ev.Summary,
		)
	}
}

func renderTasks(w io.Writer, tasks []providers.ScheduledTask) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No scheduled tasks."))
		return
	}
	for _, t := range tasks {
		state := scoreStyle.Render("active")
		if !t.Active {
			state = mutedStyle.Render("paused")
		}
		next := "-"
		if t.NextRunAt != nil {
			next = *t.NextRunAt
		}
		fmt.Fprintf(w, "%s %s  %s\n", titleStyle.Render(t.Name), mutedStyle.Render("("+t.Kind+")"), state)
		fmt.Fprintf(w, "    %s  next %s\n", t.Schedule, next)
	}
}

func renderExtraction(w io.Writer, run engine.ExtractionRun) {
	fmt.Fprintln(w, titleStyle.Render("Extraction "+run.ID))
	fmt.Fprintf(w, "  mode      %s\n", run.Mode)
	fmt.Fprintf(w, "  items     %d\n", run.Items)
	fmt.Fprintf(w, "  facts     %d\n", run.Facts)
	fmt.Fprintf(w, "  embedded  %d\n", run.Embedded)
	fmt.Fprintf(w, "  took      %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
}
