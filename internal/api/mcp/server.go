// Package mcp exposes ClawScope's read operations as Model Context Protocol
// tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"io"
	stdlog "log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/scrypster/clawscope/internal/providers"
	"github.com/scrypster/clawscope/internal/search"
	"github.com/scrypster/clawscope/internal/storage"
	"github.com/scrypster/clawscope/internal/timeline"
)

// DefaultActivityLimit is get_activity's limit when none is given.
const DefaultActivityLimit = 50

// Sessions lists platform sessions.
type Sessions interface {
	List(ctx context.Context) ([]providers.Session, error)
}

// Tasks lists scheduled tasks.
type Tasks interface {
	List(ctx context.Context) ([]providers.ScheduledTask, error)
}

// Activity lists recent activity events.
type Activity interface {
	List(ctx context.Context, limit int) ([]timeline.Event, error)
}

// Searcher runs memory searches.
type Searcher interface {
	Search(ctx context.Context, req search.Request) ([]search.Item, error)
}

// Graph reads the knowledge graph.
type Graph interface {
	Graph(ctx context.Context, q storage.GraphQuery) (*storage.Graph, error)
	GraphStats(ctx context.Context) (storage.GraphStats, error)
}

// Deps are the adapters behind the tools.
type Deps struct {
	Sessions Sessions
	Tasks    Tasks
	Activity Activity
	Search   Searcher
	Graph    Graph
}

// Server is the ClawScope MCP server.
type Server struct {
	srv  *server.MCPServer
	deps Deps
}

// NewServer registers every tool.
func NewServer(deps Deps, version string) *Server {
	s := &Server{
		srv: server.NewMCPServer(
			"clawscope",
			version,
			server.WithToolCapabilities(true),
			server.WithInstructions("Read-only view of an OpenClaw agent platform: sessions, scheduled tasks, recent activity, memory search and the extracted knowledge graph."),
		),
		deps: deps,
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.srv
}

// ServeStdio serves line-delimited JSON-RPC on in/out until ctx ends or
// in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.srv)
	stdio.SetErrorLogger(stdlog.New(log.Logger, "", 0))
	return stdio.Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	s.srv.AddTool(
		mcp.NewTool("list_sessions",
			mcp.WithDescription("List agent sessions with channel, model, token counts and last update time."),
		),
		s.handleListSessions,
	)
	s.srv.AddTool(
		mcp.NewTool("list_tasks",
			mcp.WithDescription("List scheduled cron jobs, reminders and heartbeats with their next run time."),
		),
		s.handleListTasks,
	)
	s.srv.AddTool(
		mcp.NewTool("get_activity",
			mcp.WithDescription("Recent platform activity classified into tool, session, memory, cron and alert events."),
			mcp.WithNumber("limit", mcp.Description("Maximum log records to read (default 50)")),
		),
		s.handleGetActivity,
	)
	s.srv.AddTool(
		mcp.NewTool("search_memory",
			mcp.WithDescription("Search the agent's memory. Hybrid mode blends keyword and embedding scores."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Free-text query")),
			mcp.WithString("mode", mcp.Description("lexical, semantic or hybrid (default hybrid)")),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
		),
		s.handleSearchMemory,
	)
	s.srv.AddTool(
		mcp.NewTool("get_graph",
			mcp.WithDescription("Entities and facts from the knowledge graph, optionally around one entity."),
			mcp.WithString("entity", mcp.Description("Only facts touching this entity")),
			mcp.WithNumber("minConfidence", mcp.Description("Drop facts below this confidence (0..1)")),
			mcp.WithNumber("limit", mcp.Description("Maximum facts (default 200)")),
		),
		s.handleGetGraph,
	)
	s.srv.AddTool(
		mcp.NewTool("get_graph_stats",
			mcp.WithDescription("Counts of entities, facts and predicates in the knowledge graph."),
		),
		s.handleGetGraphStats,
	)
}

func (s *Server) handleListSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.deps.Sessions.List(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(list), nil
}

func (s *Server) handleListTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.deps.Tasks.List(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(list), nil
}

func (s *Server) handleGetActivity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	events, err := s.deps.Activity.List(ctx, intArg(req, "limit", DefaultActivityLimit))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(events), nil
}

func (s *Server) handleSearchMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, _ := req.GetArguments()["query"].(string)
	mode, _ := req.GetArguments()["mode"].(string)

	items, err := s.deps.Search.Search(ctx, search.Request{
		Query: query,
		Mode:  search.ParseMode(mode, search.ModeHybrid),
		Limit: intArg(req, "limit", search.DefaultLimit),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(items), nil
}

func (s *Server) handleGetGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entity, _ := req.GetArguments()["entity"].(string)
	minConf, _ := req.GetArguments()["minConfidence"].(float64)

	g, err := s.deps.Graph.Graph(ctx, storage.GraphQuery{
		Entity:        strings.TrimSpace(entity),
		MinConfidence: minConf,
		Limit:         intArg(req, "limit", 0),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(g), nil
}

func (s *Server) handleGetGraphStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.deps.Graph.GraphStats(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(st), nil
}

// intArg reads a numeric argument. JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, name string, def int) int {
	switch v := req.GetArguments()[name].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return def
}

func jsonResult(v any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText(string(b))
}

func errorResult(err error) *mcp.CallToolResult {
	log.Warn().Err(err).Msg("mcp tool failed")
	return errorText(err.Error())
}

// errorText builds an isError result whose text is {"error": msg}.
func errorText(msg string) *mcp.CallToolResult {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return mcp.NewToolResultError(string(b))
}
