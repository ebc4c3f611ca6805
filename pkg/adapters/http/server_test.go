package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rewind"
	"github.com/aretw0/rewind/pkg/adapters/memory"
	"github.com/aretw0/rewind/pkg/bprog"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/session"
)

func loadTestProgram(name string) (ports.Program, error) {
	return bprog.LoadFile("../../bprog/testdata/" + name + ".yaml")
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mgr := session.NewManager(memory.NewStore(),
		session.WithDebuggerOptions(rewind.WithStopGracePeriod(100*time.Millisecond)))
	srv := httptest.NewServer(NewHandler(mgr, loadTestProgram))
	t.Cleanup(func() {
		srv.Close()
		mgr.Close(context.Background())
	})
	return srv
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createSession(t *testing.T, base string) string {
	t.Helper()
	resp := do(t, http.MethodPost, base+"/sessions", map[string]string{"program": "hot-cold"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]string](t, resp)
	require.NotEmpty(t, created["id"])
	assert.Equal(t, "hot-cold", created["program"])
	return created["id"]
}

func runState(t *testing.T, url string) domain.RunState {
	resp := do(t, http.MethodGet, url+"/state", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[domain.DebuggerState](t, resp).RunState
}

func historyLen(t *testing.T, url string) int {
	resp := do(t, http.MethodGet, url+"/history/snapshots", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return len(decode[[]domain.TimedState](t, resp))
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])

	resp = do(t, http.MethodGet, srv.URL+"/info", nil)
	assert.Equal(t, rewind.Version, decode[map[string]string](t, resp)["version"])
}

func TestServer_SessionFlow(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv.URL)
	url := srv.URL + "/sessions/" + id

	resp := do(t, http.MethodPost, url+"/start", RunRequest{Breakpoints: map[int]bool{3: true}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	started := decode[domain.DebugResult](t, resp)
	assert.True(t, started.Success)
	assert.True(t, started.Breakpoints[3])

	require.Eventually(t, func() bool { return runState(t, url) == domain.StateSync }, 2*time.Second, 10*time.Millisecond)

	resp = do(t, http.MethodPost, url+"/next", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Eventually(t, func() bool {
		return runState(t, url) == domain.StateSync && historyLen(t, url) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp = do(t, http.MethodGet, url+"/history/events?from=0&to=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := decode[[]domain.TimedEvent](t, resp)
	require.Len(t, events, 1)
	assert.Equal(t, "hot", events[0].Event.Name)

	resp = do(t, http.MethodGet, srv.URL+"/sessions", nil)
	listed := decode[map[string][]string](t, resp)
	assert.Contains(t, listed["live"], id)
	assert.Contains(t, listed["stored"], id)

	resp = do(t, http.MethodDelete, url, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, url, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Errors(t *testing.T) {
	srv := newTestServer(t)

	t.Run("missing session", func(t *testing.T) {
		resp := do(t, http.MethodPost, srv.URL+"/sessions/nope/next", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		res := decode[domain.Result](t, resp)
		assert.Equal(t, domain.CodeSessionNotFound, res.Code)
	})

	t.Run("unknown program", func(t *testing.T) {
		resp := do(t, http.MethodPost, srv.URL+"/sessions", map[string]string{"program": "missing"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	id := createSession(t, srv.URL)
	url := srv.URL + "/sessions/" + id

	t.Run("next before setup", func(t *testing.T) {
		resp := do(t, http.MethodPost, url+"/next", nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, domain.CodeSetupRequired, decode[domain.Result](t, resp).Code)
	})

	t.Run("blank event", func(t *testing.T) {
		resp := do(t, http.MethodPost, url+"/events", map[string]string{"name": " "})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, domain.CodeInvalidEvent, decode[domain.Result](t, resp).Code)
	})

	t.Run("bad range", func(t *testing.T) {
		resp := do(t, http.MethodGet, url+"/history/events?from=x", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_Stream(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv.URL)
	url := srv.URL + "/sessions/" + id

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/stream?watch=state,status", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	require.True(t, scanner.Scan())
	assert.Equal(t, "event: ping", scanner.Text())

	start := do(t, http.MethodPost, url+"/start", nil)
	require.Equal(t, http.StatusOK, start.StatusCode)

	var state string
	for scanner.Scan() {
		line := scanner.Text()
		if line != "event: state" {
			continue
		}
		require.True(t, scanner.Scan())
		state = strings.TrimPrefix(scanner.Text(), "data: ")
		break
	}
	require.NotEmpty(t, state)

	var diff domain.StateDiff
	require.NoError(t, json.Unmarshal([]byte(state), &diff))
	assert.Equal(t, id, diff.DebuggerID)
	assert.NotNil(t, diff.Threads)
}
