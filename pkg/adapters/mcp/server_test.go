package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rewind"
	"github.com/aretw0/rewind/pkg/adapters/memory"
	"github.com/aretw0/rewind/pkg/bprog"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/session"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mgr := session.NewManager(memory.NewStore(),
		session.WithDebuggerOptions(rewind.WithStopGracePeriod(100*time.Millisecond)))
	t.Cleanup(func() { mgr.Close(context.Background()) })
	return NewServer(mgr, func(name string) (ports.Program, error) {
		return bprog.LoadFile("../../bprog/testdata/" + name + ".yaml")
	})
}

func call(t *testing.T, s *Server, tool string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	handler, ok := s.tools[tool]
	require.True(t, ok, tool)
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	content, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return content.Text
}

func TestServer_Tools(t *testing.T) {
	s := newTestServer(t)

	res := call(t, s, "create_session", map[string]any{"program": "hot-cold"})
	require.False(t, res.IsError, text(t, res))
	var created map[string]string
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &created))
	id := created["id"]
	require.NotEmpty(t, id)

	res = call(t, s, "start", map[string]any{"session_id": id, "breakpoints": "[3]"})
	require.False(t, res.IsError, text(t, res))
	var started domain.DebugResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &started))
	assert.True(t, started.Breakpoints[3])

	state := func() domain.DebuggerState {
		var st domain.DebuggerState
		require.NoError(t, json.Unmarshal([]byte(text(t, call(t, s, "get_state", map[string]any{"session_id": id}))), &st))
		return st
	}
	require.Eventually(t, func() bool { return state().RunState == domain.StateSync }, 2*time.Second, 10*time.Millisecond)

	res = call(t, s, "next_sync", map[string]any{"session_id": id})
	require.False(t, res.IsError, text(t, res))

	var history History
	require.Eventually(t, func() bool {
		res := call(t, s, "get_history", map[string]any{"session_id": id})
		history = History{}
		return json.Unmarshal([]byte(text(t, res)), &history) == nil &&
			len(history.Snapshots) == 1 && state().RunState == domain.StateSync
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, history.Events, 1)
	assert.Equal(t, "hot", history.Events[0].Event.Name)

	res = call(t, s, "rollback", map[string]any{"session_id": id, "time": float64(history.Snapshots[0].Time)})
	require.False(t, res.IsError, text(t, res))

	res = call(t, s, "add_event", map[string]any{"session_id": id, "name": "tick"})
	require.False(t, res.IsError, text(t, res))
	assert.Contains(t, state().Events.External, domain.Event{Name: "tick"})

	res = call(t, s, "stop", map[string]any{"session_id": id})
	require.False(t, res.IsError, text(t, res))
}

func TestServer_ToolErrors(t *testing.T) {
	s := newTestServer(t)

	res := call(t, s, "next_sync", map[string]any{"session_id": "missing"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "session not found")

	res = call(t, s, "create_session", map[string]any{"program": "missing"})
	assert.True(t, res.IsError)

	res = call(t, s, "create_session", map[string]any{"program": "hot-cold"})
	var created map[string]string
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &created))

	res = call(t, s, "step", map[string]any{"session_id": created["id"], "kind": "into"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), string(domain.CodeSetupRequired))

	res = call(t, s, "add_event", map[string]any{"session_id": created["id"], "name": ""})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), string(domain.CodeInvalidEvent))
}
