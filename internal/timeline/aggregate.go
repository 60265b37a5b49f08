package timeline

import (
	"sort"
	"time"
)

// DefaultLimit is the feed length when the caller does not specify one.
const DefaultLimit = 200

// ClientCacheMax caps the merged feed a client keeps between refreshes.
const ClientCacheMax = 500

// Aggregate merges sources in order into one feed. Events are keyed by id
// and a later source overwrites an earlier one. Events older than since are
// dropped (a zero since keeps everything), the rest are sorted newest first
// and cut to limit.
func Aggregate(sources [][]Event, since time.Time, limit int) []Event {
	if limit <= 0 {
		limit = DefaultLimit
	}

	merged := mergeByID(sources...)

	out := make([]Event, 0, len(merged))
	for _, ev := range merged {
		if !since.IsZero() && ev.Time().Before(since) {
			continue
		}
		out = append(out, ev)
	}

	sortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MergeCached folds fresh into cached the way a polling client does: fresh
// events replace cached ones with the same id, the result is newest first
// and capped at max (ClientCacheMax when max <= 0).
func MergeCached(cached, fresh []Event, max int) []Event {
	if max <= 0 {
		max = ClientCacheMax
	}
	out := mergeByID(cached, fresh)
	sortNewestFirst(out)
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// mergeByID keeps first-seen position and last-written value per id.
func mergeByID(sources ...[]Event) []Event {
	index := map[string]int{}
	var out []Event
	for _, src := range sources {
		for _, ev := range src {
			if i, ok := index[ev.ID]; ok {
				out[i] = ev
				continue
			}
			index[ev.ID] = len(out)
			out = append(out, ev)
		}
	}
	return out
}

func sortNewestFirst(events []Event) {
	times := make(map[string]time.Time, len(events))
	for _, ev := range events {
		times[ev.ID] = ev.Time()
	}
	sort.SliceStable(events, func(i, j int) bool {
		return times[events[i].ID].After(times[events[j].ID])
	})
}
