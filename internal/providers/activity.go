package providers

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/scrypster/clawscope/internal/timeline"
	"github.com/scrypster/clawscope/internal/upstream"
)

// DefaultActivityLimit is how many log records are requested per fetch.
const DefaultActivityLimit = 100

// ActivityProvider lists recent activity events. The companion service
// returns events already shaped; CLI log lines go through the classifier.
type ActivityProvider struct {
	src Sources
}

// NewActivityProvider creates a provider over src.
func NewActivityProvider(src Sources) *ActivityProvider {
	return &ActivityProvider{src: src}
}

// List returns up to limit events. When every source fails it returns an
// empty list with the error.
func (p *ActivityProvider) List(ctx context.Context, limit int) ([]timeline.Event, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	n := strconv.Itoa(limit)

	var strategies []upstream.Strategy[[]timeline.Event]
	if p.src.Companion != nil {
		strategies = append(strategies, upstream.Strategy[[]timeline.Event]{
			Name:    StrategyPlugin,
			Timeout: p.src.companionTimeout(),
			Fetch: func(ctx context.Context) ([]timeline.Event, error) {
				var raw json.RawMessage
				if err := p.src.Companion.GetJSON(ctx, "/activity", map[string]string{"limit": n}, &raw); err != nil {
					return nil, err
				}
				return decodeList[timeline.Event](raw, "events")
			},
		})
	}
	if p.src.CLI != nil {
		strategies = append(strategies, upstream.Strategy[[]timeline.Event]{
			Name:    StrategyCLI,
			Timeout: p.src.LogsTimeout,
			Fetch: func(ctx context.Context) ([]timeline.Event, error) {
				lines, err := p.src.CLI.Lines(ctx, "logs", "--json", "--limit", n)
				if err != nil {
					return nil, err
				}
				return timeline.Classify(lines), nil
			},
		})
	}

	events, source, err := upstream.NewChain("activity", strategies...).Run(ctx)
	if err != nil {
		return []timeline.Event{}, err
	}

	out := events[:0]
	for _, ev := range events {
		if ev.ID == "" || ev.TS == "" {
			log.Debug().Str("source", source).Msg("activity event without id or ts skipped")
			continue
		}
		out = append(out, ev)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
