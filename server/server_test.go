package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorvus/datachat/core"
	"github.com/quorvus/datachat/executor"
	"github.com/quorvus/datachat/model"
	"github.com/quorvus/datachat/session"
)

func newTestServer(t *testing.T, m *model.MockModel) *httptest.Server {
	t.Helper()
	srv, err := New(Config{
		Store:    session.NewStore(),
		Executor: executor.New(m, nil),
		Budget:   core.DefaultBudget(),
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postChat(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestChatGeneratesSessionAndEvents(t *testing.T) {
	ts := newTestServer(t, model.NewMockModel("test"))

	resp := postChat(t, ts, "/chat", `{"prompt":"hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Mock response to: hello", body.Response)
	assert.NotEmpty(t, body.SessionID)

	types := make([]string, len(body.Events))
	for i, ev := range body.Events {
		types[i] = ev.Type
	}
	assert.Equal(t, []string{"update", "start", "update", "success", "success"}, types)
	assert.Equal(t, "user", body.Events[0].Key)
	assert.Equal(t, "hello", body.Events[0].Message)
}

func TestChatReusesSession(t *testing.T) {
	m := model.NewMockModel("test").Script(
		model.MockTurn{Text: "first answer"},
		model.MockTurn{Text: "second answer"},
	)
	ts := newTestServer(t, m)

	resp := postChat(t, ts, "/chat", `{"prompt":"one"}`)
	var first ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&first))
	require.NotEmpty(t, first.SessionID)

	resp = postChat(t, ts, "/chat", `{"prompt":"two","session_id":"`+first.SessionID+`"}`)
	var second ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&second))
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, "second answer", second.Response)
}

func TestChatAgentFailureStaysHTTP200(t *testing.T) {
	m := model.NewMockModel("test")
	for i := 0; i < 30; i++ {
		m.Script(model.MockTurn{Err: errors.New("provider down")})
	}
	ts := newTestServer(t, m)

	resp := postChat(t, ts, "/chat", `{"prompt":"hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, strings.HasPrefix(body.Response, "Agent error: "), "got %q", body.Response)
	assert.NotEmpty(t, body.SessionID)

	require.NotEmpty(t, body.Events)
	last := body.Events[len(body.Events)-1]
	assert.Equal(t, "error", last.Type)
	assert.NotEmpty(t, last.Message)
}

func TestChatValidation(t *testing.T) {
	ts := newTestServer(t, model.NewMockModel("test"))

	resp := postChat(t, ts, "/chat", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postChat(t, ts, "/chat", `{"prompt":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	getResp, err := http.Get(ts.URL + "/chat")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, getResp.StatusCode)
}

func TestChatStream(t *testing.T) {
	m := model.NewMockModel("test").Script(model.MockTurn{Text: "streamed answer"})
	ts := newTestServer(t, m)

	resp := postChat(t, ts, "/chat/stream", `{"prompt":"hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.NotEmpty(t, resp.Header.Get("X-Session-ID"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "streamed answer", string(body))
}

func TestChatStreamSurfacesAgentError(t *testing.T) {
	m := model.NewMockModel("test")
	for i := 0; i < 30; i++ {
		m.Script(model.MockTurn{Err: errors.New("provider down")})
	}
	ts := newTestServer(t, m)

	resp := postChat(t, ts, "/chat/stream", `{"prompt":"hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "Agent error: "), "got %q", string(body))
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, model.NewMockModel("test"))
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
