package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/calendar-manager/internal/testfixtures"
)

const testLoginPage = "/login.html"

type testServer struct {
	stack   *testfixtures.Stack
	handler http.Handler
	logs    *bytes.Buffer
}

type decodedEnvelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

func newTestServer(t *testing.T, opts testfixtures.StackOptions) *testServer {
	t.Helper()

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))
	opts.Logger = logger
	stack := testfixtures.NewStack(t, opts)
	now := stack.Clock.NowFunc()

	gate := NewAuthGate(stack.Sessions, stack.Auth, testLoginPage, logger)
	static := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "static:"+r.URL.Path)
	})

	handler := NewRouter(RouterConfig{
		Gate:        gate,
		Auth:        NewAuthHandler(stack.Auth, gate, AuthHandlerOptions{Location: stack.Location, Now: now}, logger),
		Events:      NewEventHandler(stack.Events, now, logger),
		Uploads:     NewUploadHandler(stack.Files, stack.Location, now, logger),
		Files:       http.FileServerFS(stack.Blobs.FS()),
		FilesPrefix: "/uploads/",
		Static:      static,
		LoginPage:   testLoginPage,
		Logger:      logger,
		Now:         now,
		Middleware:  []func(http.Handler) http.Handler{RequestLogger(logger), Recoverer(logger)},
	})

	return &testServer{stack: stack, handler: handler, logs: logs}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) request(method, target, token string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.do(req)
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	rec := s.request(http.MethodPost, "/api/login", "", jsonBody(t, map[string]string{
		"username": testfixtures.AdminUsername,
		"password": testfixtures.AdminPassword,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := rec.Header().Get(sessionTokenHeader)
	require.NotEmpty(t, token)
	return token
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) decodedEnvelope {
	t.Helper()
	var env decodedEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeData(t *testing.T, env decodedEnvelope, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v), string(env.Data))
}
