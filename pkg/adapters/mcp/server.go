package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/rewind"
	"github.com/aretw0/rewind/internal/logging"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/session"
)

// ProgramLoader resolves the program named in create_session.
type ProgramLoader func(name string) (ports.Program, error)

// Server exposes debugging sessions as MCP tools.
type Server struct {
	sessions  *session.Manager
	load      ProgramLoader
	logger    *slog.Logger
	mcpServer *server.MCPServer
	tools     map[string]server.ToolHandlerFunc
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions *session.Manager, load ProgramLoader, opts ...Option) *Server {
	s := &Server{
		sessions:  sessions,
		load:      load,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("rewind-mcp", strings.TrimSpace(rewind.Version)),
		tools:     make(map[string]server.ToolHandlerFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

var sessionArg = mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID returned by create_session"))

func (s *Server) registerTools() {
	s.addTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List live and stored debugging sessions."),
	), s.handleListSessions)

	s.addTool(mcp.NewTool("create_session",
		mcp.WithDescription("Load a program and open a debugging session for it."),
		mcp.WithString("program", mcp.Required(), mcp.Description("Program name")),
	), s.handleCreateSession)

	s.addTool(mcp.NewTool("start",
		mcp.WithDescription("Set the program up and run it to its first sync point."),
		sessionArg,
		mcp.WithString("breakpoints", mcp.Description("JSON array of source lines to break on")),
		mcp.WithBoolean("skip_breakpoints", mcp.Description("Mute breakpoints")),
		mcp.WithBoolean("skip_sync_points", mcp.Description("Run through sync points without stopping")),
		mcp.WithBoolean("wait_for_external_events", mcp.Description("Wait for external events instead of ending")),
	), s.handleStart)

	s.addTool(mcp.NewTool("next_sync",
		mcp.WithDescription("Select one event and advance to the next sync point."),
		sessionArg,
	), s.withDebugger(func(ctx context.Context, d *rewind.Debugger, _ map[string]any) domain.Result {
		return d.NextSync(ctx)
	}))

	s.addTool(mcp.NewTool("step",
		mcp.WithDescription("Step a program paused on a breakpoint."),
		sessionArg,
		mcp.WithString("kind", mcp.Required(), mcp.Enum("into", "over", "out", "continue"), mcp.Description("Step kind")),
	), s.withDebugger(func(_ context.Context, d *rewind.Debugger, args map[string]any) domain.Result {
		kind, _ := args["kind"].(string)
		switch kind {
		case "into":
			return d.StepInto()
		case "over":
			return d.StepOver()
		case "out":
			return d.StepOut()
		case "continue":
			return d.ContinueRun()
		}
		return domain.Fail(fmt.Errorf("%w: unknown step kind %q", domain.ErrCommandRejected, kind))
	}))

	s.addTool(mcp.NewTool("set_breakpoint",
		mcp.WithDescription("Arm or disarm the breakpoint of a source line."),
		sessionArg,
		mcp.WithNumber("line", mcp.Required(), mcp.Description("Source line")),
		mcp.WithBoolean("stop", mcp.Description("Arm the breakpoint (default true)")),
	), s.withDebugger(func(_ context.Context, d *rewind.Debugger, args map[string]any) domain.Result {
		line, _ := args["line"].(float64)
		stop := true
		if v, ok := args["stop"].(bool); ok {
			stop = v
		}
		return d.SetBreakpoint(int(line), stop)
	}))

	s.addTool(mcp.NewTool("add_event",
		mcp.WithDescription("Queue an external event."),
		sessionArg,
		mcp.WithString("name", mcp.Required(), mcp.Description("Event name")),
	), s.withDebugger(func(_ context.Context, d *rewind.Debugger, args map[string]any) domain.Result {
		name, _ := args["name"].(string)
		return d.AddExternalEvent(name)
	}))

	s.addTool(mcp.NewTool("remove_event",
		mcp.WithDescription("Remove every queued external event with the given name."),
		sessionArg,
		mcp.WithString("name", mcp.Required(), mcp.Description("Event name")),
	), s.withDebugger(func(_ context.Context, d *rewind.Debugger, args map[string]any) domain.Result {
		name, _ := args["name"].(string)
		return d.RemoveExternalEvent(name)
	}))

	s.addTool(mcp.NewTool("rollback",
		mcp.WithDescription("Return to a recorded sync point. Later history is discarded."),
		sessionArg,
		mcp.WithNumber("time", mcp.Required(), mcp.Description("Time of the sync point, as listed by get_history")),
	), s.withDebugger(func(_ context.Context, d *rewind.Debugger, args map[string]any) domain.Result {
		t, _ := args["time"].(float64)
		return d.SetSyncSnapshot(int64(t))
	}))

	s.addTool(mcp.NewTool("stop",
		mcp.WithDescription("End a debugging session."),
		sessionArg,
	), s.withDebugger(func(ctx context.Context, d *rewind.Debugger, _ map[string]any) domain.Result {
		return d.Stop(ctx)
	}))

	s.addTool(mcp.NewTool("get_state",
		mcp.WithDescription("Get the current debugger state."),
		sessionArg,
	), s.handleGetState)

	s.addTool(mcp.NewTool("get_history",
		mcp.WithDescription("Get the recorded sync points and the chosen events."),
		sessionArg,
	), s.handleGetHistory)
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.tools[tool.Name] = handler
	s.mcpServer.AddTool(tool, handler)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) debugger(request mcp.CallToolRequest) (*rewind.Debugger, *mcp.CallToolResult) {
	id, _ := request.GetArguments()["session_id"].(string)
	d, err := s.sessions.Get(id)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return d, nil
}

type debuggerOp func(ctx context.Context, d *rewind.Debugger, args map[string]any) domain.Result

func (s *Server) withDebugger(op debuggerOp) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		d, failed := s.debugger(request)
		if failed != nil {
			return failed, nil
		}
		res := op(ctx, d, request.GetArguments())
		if !res.Success {
			s.logger.Debug("MCP tool rejected", "tool", request.Params.Name, "code", res.Code)
			return mcp.NewToolResultError(res.Err().Error()), nil
		}
		return jsonResult(res)
	}
}

func (s *Server) handleListSessions(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stored, err := s.sessions.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string][]string{
		"live":   s.sessions.Live(),
		"stored": stored,
	})
}

func (s *Server) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := request.GetArguments()["program"].(string)
	if name == "" {
		return mcp.NewToolResultError("program is required"), nil
	}
	prog, err := s.load(name)
	if err != nil {
		s.logger.Warn("MCP create_session: program not loaded", "program", name, "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("program error: %v", err)), nil
	}
	d, err := s.sessions.Create(ctx, prog)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]string{"id": d.ID(), "program": prog.Name()})
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, failed := s.debugger(request)
	if failed != nil {
		return failed, nil
	}
	args := request.GetArguments()

	cfg := rewind.RunConfig{Breakpoints: map[int]bool{}}
	if raw, ok := args["breakpoints"].(string); ok && raw != "" {
		var lines []int
		if err := json.Unmarshal([]byte(raw), &lines); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid breakpoints: %v", err)), nil
		}
		for _, line := range lines {
			cfg.Breakpoints[line] = true
		}
	}
	cfg.SkipBreakpoints, _ = args["skip_breakpoints"].(bool)
	cfg.SkipSyncPoints, _ = args["skip_sync_points"].(bool)
	cfg.WaitForExternalEvents, _ = args["wait_for_external_events"].(bool)

	res := d.StartSync(ctx, cfg)
	if !res.Success {
		return mcp.NewToolResultError(res.Err().Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) handleGetState(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, failed := s.debugger(request)
	if failed != nil {
		return failed, nil
	}
	return jsonResult(d.CurrentState())
}

// History is the result of get_history.
type History struct {
	Snapshots []domain.TimedState `json:"snapshots"`
	Events    []domain.TimedEvent `json:"events"`
}

func (s *Server) handleGetHistory(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, failed := s.debugger(request)
	if failed != nil {
		return failed, nil
	}
	snapshots := d.GetSyncSnapshotsHistory()
	events, err := d.GetEventsHistory(0, len(snapshots))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(History{Snapshots: snapshots, Events: events})
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("rewind://sessions", "Debugging sessions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		stored, err := s.sessions.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		data, _ := json.Marshal(map[string][]string{"live": s.sessions.Live(), "stored": stored})
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "rewind://sessions",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
