// Package providers fetches sessions, scheduled tasks and activity from the
// agent platform and normalizes them for the dashboard, the timeline and the
// MCP tools. Every provider tries the companion service first and the
// platform CLI second, and degrades to an empty list when both fail.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scrypster/clawscope/internal/timeline"
	"github.com/scrypster/clawscope/internal/upstream"
)

// Strategy names, reported as the "source" of normalized records.
const (
	StrategyPlugin = "plugin"
	StrategyCLI    = "cli"
)

// Sources bundles the two ways of reaching the platform. A nil Companion
// builds CLI-only chains.
type Sources struct {
	Companion   *upstream.Companion
	CLI         *upstream.CLI
	CLITimeout  time.Duration
	LogsTimeout time.Duration
}

func (s Sources) companionTimeout() time.Duration {
	if s.Companion == nil {
		return 0
	}
	return s.Companion.Timeout()
}

// companionStrategy fetches path from the companion service as raw JSON.
func companionStrategy(src Sources, path string, params map[string]string) upstream.Strategy[json.RawMessage] {
	return upstream.Strategy[json.RawMessage]{
		Name:    StrategyPlugin,
		Timeout: src.companionTimeout(),
		Fetch: func(ctx context.Context) (json.RawMessage, error) {
			var raw json.RawMessage
			if err := src.Companion.GetJSON(ctx, path, params, &raw); err != nil {
				return nil, err
			}
			return raw, nil
		},
	}
}

// cliStrategy runs the platform CLI and returns its JSON payload.
func cliStrategy(src Sources, timeout time.Duration, args ...string) upstream.Strategy[json.RawMessage] {
	return upstream.Strategy[json.RawMessage]{
		Name:    StrategyCLI,
		Timeout: timeout,
		Fetch: func(ctx context.Context) (json.RawMessage, error) {
			var raw json.RawMessage
			if err := src.CLI.JSON(ctx, &raw, args...); err != nil {
				return nil, err
			}
			return raw, nil
		},
	}
}

// rawChain builds the companion → CLI chain for one resource.
func rawChain(resource string, src Sources, path string, params map[string]string, cliTimeout time.Duration, cliArgs ...string) *upstream.Chain[json.RawMessage] {
	var strategies []upstream.Strategy[json.RawMessage]
	if src.Companion != nil {
		strategies = append(strategies, companionStrategy(src, path, params))
	}
	if src.CLI != nil {
		strategies = append(strategies, cliStrategy(src, cliTimeout, cliArgs...))
	}
	return upstream.NewChain(resource, strategies...)
}

// decodeList accepts either a bare JSON array or an object wrapping the
// array under key. Elements are decoded one at a time; a malformed element
// is logged and skipped so it cannot take the rest of the list down.
func decodeList[T any](raw json.RawMessage, key string) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}

	if raw[0] != '[' {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("decode %s object: %w", key, err)
		}
		inner, ok := wrapped[key]
		if !ok {
			return []T{}, nil
		}
		raw = bytes.TrimSpace(inner)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return []T{}, nil
		}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}

	out := make([]T, 0, len(elems))
	for i, elem := range elems {
		var v T
		if err := json.Unmarshal(elem, &v); err != nil {
			log.Debug().Err(err).Str("list", key).Int("index", i).Msg("skipping malformed record")
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// msToISO converts epoch milliseconds to an event timestamp. Zero and
// negative values are treated as absent.
func msToISO(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return timeline.FormatTS(time.UnixMilli(ms))
}
