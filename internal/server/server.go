// Package server wires the HTTP front door: routes, middleware, the live
// timeline push, and the listener lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/scrypster/clawscope/internal/config"
	"github.com/scrypster/clawscope/internal/settings"
	"github.com/scrypster/clawscope/web/handlers"
	"github.com/scrypster/clawscope/web/templates"
)

// Services are the adapters the routes delegate to.
type Services struct {
	Searcher  handlers.Searcher
	Memory    handlers.MemoryReader
	Extractor handlers.FactExtractor
	Sessions  handlers.SessionLister
	Tasks     handlers.TaskLister
	Activity  handlers.ActivityLister
	Feed      handlers.TimelineFeed
	Settings  *settings.Store
	Status    handlers.StatusReporter
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg     *config.Config
	router  *mux.Router
	handler http.Handler
	hub     *handlers.WebSocketHub
	pusher  *Pusher
	done    chan struct{}
}

// New builds the router and middleware chain.
func New(cfg *config.Config, svc Services) (*Server, error) {
	pages, err := handlers.NewPages(templates.FS)
	if err != nil {
		return nil, err
	}

	port := strconv.Itoa(cfg.Server.Port)
	hub := handlers.NewWebSocketHub("localhost:"+port, "127.0.0.1:"+port, cfg.Server.Host+":"+port)

	var prefs handlers.PreferenceSource
	if svc.Settings != nil {
		prefs = handlers.StorePreferences{Store: svc.Settings}
	}
	memory := handlers.NewMemoryHandlers(svc.Searcher, svc.Memory, svc.Extractor, prefs)
	platform := handlers.NewPlatformHandlers(svc.Sessions, svc.Tasks, svc.Activity, svc.Feed)
	settingsH := handlers.NewSettingsHandlers(svc.Settings, svc.Status)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handlers.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handlers.NotFound)

	for _, name := range handlers.PageNames {
		path := "/" + name
		if name == "index" {
			path = "/"
		}
		r.HandleFunc(path, pages.Handler(name)).Methods(http.MethodGet)
	}

	r.HandleFunc("/memory/search", memory.Search).Methods(http.MethodGet)
	r.HandleFunc("/memory/categories", memory.Categories).Methods(http.MethodGet)
	r.HandleFunc("/memory/stats", memory.Stats).Methods(http.MethodGet)
	r.HandleFunc("/memory/items", memory.Items).Methods(http.MethodGet)
	r.HandleFunc("/graph-data", memory.GraphData).Methods(http.MethodGet)
	r.HandleFunc("/extract-facts", memory.ExtractFacts).Methods(http.MethodGet)

	r.HandleFunc("/sessions", platform.Sessions).Methods(http.MethodGet)
	r.HandleFunc("/tasks", platform.Tasks).Methods(http.MethodGet)
	r.HandleFunc("/activity", platform.Activity).Methods(http.MethodGet)
	r.HandleFunc("/timeline-data", platform.TimelineData).Methods(http.MethodGet)

	r.HandleFunc("/settings/config", settingsH.Config).Methods(http.MethodGet)
	r.HandleFunc("/settings/save", settingsH.Save).Methods(http.MethodPost)
	r.HandleFunc("/settings/status", settingsH.Status).Methods(http.MethodGet)

	r.HandleFunc("/healthz", handlers.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.Handle("/ws", hub).Methods(http.MethodGet)

	// Router middleware only runs on matched routes, so the chain wraps the
	// router from outside to also cover 404s and preflights.
	var h http.Handler = r
	h = handlers.RateLimitMiddleware(h, handlers.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst))
	h = handlers.AccessLog(h, routeLabeler(r))
	h = handlers.Recover(h)
	h = handlers.CORS(h)

	s := &Server{
		cfg:     cfg,
		router:  r,
		handler: h,
		hub:     hub,
		done:    make(chan struct{}),
	}
	if svc.Feed != nil && cfg.Live.PushInterval > 0 {
		s.pusher = NewPusher(svc.Feed, hub, cfg.Live.PushInterval)
	}
	return s, nil
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *handlers.WebSocketHub {
	return s.hub
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully. It returns the bound address,
// which differs from the configured one when the port is 0.
func (s *Server) Start(ctx context.Context) (string, error) {
	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Extraction and CLI fallbacks can run long.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.hub.Run()
	if s.pusher != nil {
		go s.pusher.Run(ctx)
	}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	go func() {
		defer close(s.done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http server shutdown")
		}
	}()

	bound := listener.Addr().String()
	log.Info().Str("addr", bound).Msg("http server listening")
	return bound, nil
}

// Done is closed once shutdown after context cancellation has finished.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

func routeLabeler(r *mux.Router) handlers.RouteLabeler {
	return func(req *http.Request) string {
		var match mux.RouteMatch
		if r.Match(req, &match) && match.Route != nil {
			if tpl, err := match.Route.GetPathTemplate(); err == nil {
				return tpl
			}
		}
		return "unmatched"
	}
}
