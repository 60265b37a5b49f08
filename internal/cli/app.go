package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/scrypster/clawscope/internal/cache"
	"github.com/scrypster/clawscope/internal/config"
	"github.com/scrypster/clawscope/internal/engine"
	"github.com/scrypster/clawscope/internal/llm"
	"github.com/scrypster/clawscope/internal/providers"
	"github.com/scrypster/clawscope/internal/search"
	"github.com/scrypster/clawscope/internal/settings"
	"github.com/scrypster/clawscope/internal/storage"
	"github.com/scrypster/clawscope/internal/storage/sqlite"
	"github.com/scrypster/clawscope/internal/upstream"
)

// app holds the process-wide collaborators. The engine store is opened once
// and shared by every consumer. When it cannot be opened the app runs over
// an unavailable store: search reports the failure and the other memory
// panels come back empty.
type app struct {
	cfg    *config.Config
	store  storage.Store
	engine *engine.MemoryEngine
	search *search.Adapter
}

func openApp(cfg *config.Config) *app {
	var store storage.Store
	if ms, err := sqlite.NewMemoryStore(cfg.Storage.MemoryDBPath); err != nil {
		log.Warn().Err(err).Str("path", cfg.Storage.MemoryDBPath).Msg("memory store unavailable, memory features disabled")
		store = storage.NewUnavailableStore(fmt.Errorf("open memory store %s: %w", cfg.Storage.MemoryDBPath, err))
	} else {
		store = ms
	}

	var opts []engine.Option
	if cfg.LLM.OllamaURL != "" {
		opts = append(opts,
			engine.WithEmbedder(llm.NewOllamaClient(llm.OllamaConfig{
				BaseURL: cfg.LLM.OllamaURL,
				Model:   cfg.LLM.EmbedModel,
			})),
			engine.WithGenerator(llm.NewOllamaClient(llm.OllamaConfig{
				BaseURL: cfg.LLM.OllamaURL,
				Model:   cfg.LLM.ExtractModel,
			})),
		)
	}
	eng := engine.New(store, opts...)

	return &app{
		cfg:    cfg,
		store:  store,
		engine: eng,
		search: search.NewAdapter(eng,
			search.WithSemanticWeight(cfg.Search.SemanticWeight),
			search.WithDefaults(cfg.Search.Limit, cfg.Search.CandidateCount),
		),
	}
}

func (a *app) Close() error {
	return a.store.Close()
}

// sources reaches the platform through the companion service and the CLI.
func (a *app) sources() providers.Sources {
	src := a.cliSources()
	if a.cfg.Upstream.CompanionURL != "" {
		src.Companion = upstream.NewCompanion(a.cfg.Upstream.CompanionURL, a.cfg.Upstream.CompanionTimeout)
	}
	return src
}

// cliSources reaches the platform through the CLI only.
func (a *app) cliSources() providers.Sources {
	return providers.Sources{
		CLI:         upstream.NewCLI(a.cfg.Upstream.CLIBinary, nil),
		CLITimeout:  a.cfg.Upstream.CLITimeout,
		LogsTimeout: a.cfg.Upstream.LogsTimeout,
	}
}

func (a *app) feed(src providers.Sources) *providers.Feed {
	return &providers.Feed{
		Sessions: providers.NewSessionProvider(src, cache.NewSlot[[]providers.Session](a.cfg.Upstream.SessionCacheTTL)),
		Tasks:    providers.NewTaskProvider(src),
		Activity: providers.NewActivityProvider(src),
	}
}

// savedPreferences reads the dashboard settings. An unreadable file yields
// the defaults.
func savedPreferences(opts *rootOptions) settings.Preferences {
	prefs, err := settings.NewStore(opts.cfg.Storage.SettingsPath).Preferences()
	if err != nil {
		log.Warn().Err(err).Msg("read settings")
	}
	return prefs
}
