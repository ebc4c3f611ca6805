package http

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/rewind"
	"github.com/aretw0/rewind/pkg/bus"
	"github.com/aretw0/rewind/pkg/domain"
)

// streamBuffer is the per-client backlog of SSE frames.
const streamBuffer = 32

// Frame is one SSE message.
type Frame struct {
	Event string
	Data  string
}

type stream struct {
	clients     map[chan Frame]struct{}
	last        *domain.DebuggerState
	unsubscribe func()
}

// StreamManager fans the notifications of each debugger out to its SSE clients.
// State notifications are sent as diffs against the previous state of the session.
type StreamManager struct {
	mu      sync.Mutex
	streams map[string]*stream
	logger  *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		streams: make(map[string]*stream),
		logger:  logger,
	}
}

// Subscribe registers a client of d. The debugger is subscribed on the first client and
// unsubscribed after the last one leaves.
func (sm *StreamManager) Subscribe(d *rewind.Debugger) (<-chan Frame, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	id := d.ID()
	st, ok := sm.streams[id]
	if !ok {
		st = &stream{clients: make(map[chan Frame]struct{})}
		sm.streams[id] = st
		st.unsubscribe = d.Subscribe(bus.SubscriberFunc(func(n domain.Notification) {
			sm.Broadcast(id, n)
		}))
	}
	ch := make(chan Frame, streamBuffer)
	st.clients[ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		st, ok := sm.streams[id]
		if !ok {
			return
		}
		if _, ok := st.clients[ch]; !ok {
			return
		}
		delete(st.clients, ch)
		close(ch)
		if len(st.clients) == 0 {
			delete(sm.streams, id)
			go st.unsubscribe()
		}
	}
}

// Broadcast encodes n and sends it to every client of sessionID.
func (sm *StreamManager) Broadcast(sessionID string, n domain.Notification) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	st, ok := sm.streams[sessionID]
	if !ok {
		return
	}
	frame, ok := sm.encode(st, n)
	if !ok {
		return
	}
	for ch := range st.clients {
		select {
		case ch <- frame:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message", "session_id", sessionID)
		}
	}
}

func (sm *StreamManager) encode(st *stream, n domain.Notification) (Frame, bool) {
	var payload any
	switch n.Type {
	case domain.NotificationStatus:
		payload = map[string]any{"debugger_id": n.DebuggerID, "status": n.Status}
	case domain.NotificationConsole:
		payload = map[string]any{"debugger_id": n.DebuggerID, "message": n.Console.Message, "level": n.Console.Level}
	case domain.NotificationState:
		diff := domain.Diff(n.DebuggerID, st.last, n.State)
		st.last = n.State
		if diff == nil {
			return Frame{}, false
		}
		payload = diff
	default:
		return Frame{}, false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		sm.logger.Error("SSE: encode failed", "err", err)
		return Frame{}, false
	}
	return Frame{Event: string(n.Type), Data: string(data)}, true
}
