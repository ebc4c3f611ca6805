package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/rewind"
	"github.com/aretw0/rewind/internal/logging"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/session"
)

// ProgramLoader resolves the program named in a create request.
type ProgramLoader func(name string) (ports.Program, error)

// Server exposes a session manager over REST and streams notifications over SSE.
type Server struct {
	Sessions *session.Manager
	Load     ProgramLoader
	Streams  *StreamManager
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server.
func NewServer(sessions *session.Manager, load ProgramLoader, opts ...Option) *Server {
	s := &Server{
		Sessions: sessions,
		Load:     load,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)
	return s
}

// NewHandler creates the HTTP handler of a new Server.
func NewHandler(sessions *session.Manager, load ProgramLoader, opts ...Option) http.Handler {
	return NewServer(sessions, load, opts...).Routes()
}

// Routes returns the router of s.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.CreateSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)

			r.Post("/setup", s.Setup)
			r.Post("/start", s.StartSync)
			r.Post("/next", s.withDebugger(func(d *rewind.Debugger, r *http.Request) domain.Result { return d.NextSync(r.Context()) }))
			r.Post("/stop", s.withDebugger(func(d *rewind.Debugger, r *http.Request) domain.Result { return d.Stop(r.Context()) }))
			r.Post("/step/into", s.withDebugger(func(d *rewind.Debugger, _ *http.Request) domain.Result { return d.StepInto() }))
			r.Post("/step/over", s.withDebugger(func(d *rewind.Debugger, _ *http.Request) domain.Result { return d.StepOver() }))
			r.Post("/step/out", s.withDebugger(func(d *rewind.Debugger, _ *http.Request) domain.Result { return d.StepOut() }))
			r.Post("/continue", s.withDebugger(func(d *rewind.Debugger, _ *http.Request) domain.Result { return d.ContinueRun() }))

			r.Get("/state", s.GetState)
			r.Put("/breakpoints/{line}", s.SetBreakpoint)
			r.Put("/mute/breakpoints", s.toggle(func(d *rewind.Debugger, on bool) domain.Result { return d.ToggleMuteBreakpoints(on) }))
			r.Put("/mute/sync-points", s.toggle(func(d *rewind.Debugger, on bool) domain.Result { return d.ToggleMuteSyncPoints(on) }))
			r.Put("/wait-external", s.toggle(func(d *rewind.Debugger, on bool) domain.Result { return d.ToggleWaitForExternalEvents(on) }))

			r.Post("/events", s.AddExternalEvent)
			r.Delete("/events/{name}", s.RemoveExternalEvent)
			r.Get("/stream", s.SubscribeEvents)

			r.Get("/history/snapshots", s.GetSyncSnapshotsHistory)
			r.Post("/history/snapshots/{time}", s.SetSyncSnapshot)
			r.Get("/history/events", s.GetEventsHistory)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusOf maps an error code to its HTTP status.
func statusOf(code domain.ErrorCode) int {
	switch code {
	case domain.CodeNone:
		return http.StatusOK
	case domain.CodeSessionNotFound, domain.CodeUnknownSnapshot:
		return http.StatusNotFound
	case domain.CodeInvalidEvent, domain.CodeInvalidRange, domain.CodeBreakpointNotAllowed:
		return http.StatusBadRequest
	case domain.CodeInvalidState, domain.CodeSetupRequired, domain.CodeCommandRejected:
		return http.StatusConflict
	case domain.CodeSetupFailed, domain.CodeAssertionFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func (s *Server) writeResult(w http.ResponseWriter, res domain.Result) {
	s.writeJSON(w, statusOf(res.Code), res)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	res := domain.Fail(err)
	if res.Code == domain.CodeInternal {
		s.logger.Error("Request failed", "err", err)
	}
	s.writeResult(w, res)
}

func (s *Server) debugger(w http.ResponseWriter, r *http.Request) (*rewind.Debugger, bool) {
	d, err := s.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return d, true
}

func (s *Server) withDebugger(op func(*rewind.Debugger, *http.Request) domain.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := s.debugger(w, r)
		if !ok {
			return
		}
		s.writeResult(w, op(d, r))
	}
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) toggle(op func(*rewind.Debugger, bool) domain.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := s.debugger(w, r)
		if !ok {
			return
		}
		var body toggleRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		s.writeResult(w, op(d, body.Enabled))
	}
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "rewind-http",
		"version": strings.TrimSpace(rewind.Version),
	})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	stored, err := s.Sessions.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{
		"live":   s.Sessions.Live(),
		"stored": stored,
	})
}

type createRequest struct {
	Program string `json:"program"`
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Program == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	prog, err := s.Load(body.Program)
	if err != nil {
		s.logger.Warn("CreateSession: program not loaded", "program", body.Program, "err", err)
		http.Error(w, fmt.Sprintf("Program error: %v", err), http.StatusBadRequest)
		return
	}
	d, err := s.Sessions.Create(r.Context(), prog)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": d.ID(), "program": prog.Name()})
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	record, err := s.Sessions.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunRequest is the body of setup and start requests.
type RunRequest struct {
	Breakpoints           map[int]bool `json:"breakpoints"`
	SkipBreakpoints       bool         `json:"skip_breakpoints"`
	SkipSyncPoints        bool         `json:"skip_sync_points"`
	WaitForExternalEvents bool         `json:"wait_for_external_events"`
}

func (req RunRequest) config() rewind.RunConfig {
	return rewind.RunConfig{
		Breakpoints:           req.Breakpoints,
		SkipBreakpoints:       req.SkipBreakpoints,
		SkipSyncPoints:        req.SkipSyncPoints,
		WaitForExternalEvents: req.WaitForExternalEvents,
	}
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, op func(*rewind.Debugger, rewind.RunConfig) domain.DebugResult) {
	d, ok := s.debugger(w, r)
	if !ok {
		return
	}
	var body RunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	res := op(d, body.config())
	s.writeJSON(w, statusOf(res.Code), res)
}

// Setup handles POST /sessions/{id}/setup.
func (s *Server) Setup(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, func(d *rewind.Debugger, cfg rewind.RunConfig) domain.DebugResult { return d.Setup(r.Context(), cfg) })
}

// StartSync handles POST /sessions/{id}/start.
func (s *Server) StartSync(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, func(d *rewind.Debugger, cfg rewind.RunConfig) domain.DebugResult { return d.StartSync(r.Context(), cfg) })
}

// GetState handles GET /sessions/{id}/state.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	d, ok := s.debugger(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, d.CurrentState())
}

type breakpointRequest struct {
	Stop bool `json:"stop"`
}

// SetBreakpoint handles PUT /sessions/{id}/breakpoints/{line}.
func (s *Server) SetBreakpoint(w http.ResponseWriter, r *http.Request) {
	d, ok := s.debugger(w, r)
	if !ok {
		return
	}
	line, err := strconv.Atoi(chi.URLParam(r, "line"))
	if err != nil {
		http.Error(w, "Invalid line", http.StatusBadRequest)
		return
	}
	body := breakpointRequest{Stop: true}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	s.writeResult(w, d.SetBreakpoint(line, body.Stop))
}

type eventRequest struct {
	Name string `json:"name"`
}

// AddExternalEvent handles POST /sessions/{id}/events.
func (s *Server) AddExternalEvent(w http.ResponseWriter, r *http.Request) {
	d, ok := s.debugger(w, r)
	if !ok {
		return
	}
	var body eventRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s.writeResult(w, d.AddExternalEvent(body.Name))
}

// RemoveExternalEvent handles DELETE /sessions/{id}/events/{name}.
func (s *Server) RemoveExternalEvent(w http.ResponseWriter, r *http.Request) {
	d, ok := s.debugger(w, r)
	if !ok {
		return
	}
	s.writeResult(w, d.RemoveExternalEvent(chi.URLParam(r, "name")))
}

// GetSyncSnapshotsHistory handles GET /sessions/{id}/history/snapshots.
func (s *Server) GetSyncSnapshotsHistory(w http.ResponseWriter, r *http.Request) {
	d, ok := s.debugger(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, d.GetSyncSnapshotsHistory())
}

// SetSyncSnapshot handles POST /sessions/{id}/history/snapshots/{time}.
func (s *Server) SetSyncSnapshot(w http.ResponseWriter, r *http.Request) {
	d, ok := s.debugger(w, r)
	if !ok {
		return
	}
	t, err := strconv.ParseInt(chi.URLParam(r, "time"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid time", http.StatusBadRequest)
		return
	}
	s.writeResult(w, d.SetSyncSnapshot(t))
}

// GetEventsHistory handles GET /sessions/{id}/history/events?from=&to=.
func (s *Server) GetEventsHistory(w http.ResponseWriter, r *http.Request) {
	d, ok := s.debugger(w, r)
	if !ok {
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	events, err := d.GetEventsHistory(from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

func parseRange(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	from, to := 0, int(^uint(0)>>1)
	var err error
	if v := q.Get("from"); v != "" {
		if from, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: from=%q", domain.ErrInvalidRange, v)
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: to=%q", domain.ErrInvalidRange, v)
		}
	}
	return from, to, nil
}

// SubscribeEvents handles GET /sessions/{id}/stream (SSE).
// The optional watch query keeps only the listed frame kinds (status, console, state).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	d, ok := s.debugger(w, r)
	if !ok {
		return
	}

	watch := map[string]bool{}
	if v := r.URL.Query().Get("watch"); v != "" {
		for _, field := range strings.Split(v, ",") {
			watch[strings.TrimSpace(field)] = true
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(d)
	defer cancel()
	s.logger.Info("SSE: Subscribing to session", "session_id", d.ID())

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: Client disconnected", "session_id", d.ID())
			return
		case f, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !watch[f.Event] {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.Event, f.Data)
			flusher.Flush()
		}
	}
}
