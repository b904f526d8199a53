package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/studyplan/internal/api"
	"github.com/ashureev/studyplan/internal/domain"
	"github.com/ashureev/studyplan/internal/identity"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type agentFixture struct {
	router  http.Handler
	handler *Handler
	gate    *fakeGate
	llm     *fakeCompleter
	log     *memLog
}

func newAgentFixture(t *testing.T, limit int) *agentFixture {
	t.Helper()
	gate := newFakeGate()
	gate.grant("tok-alice", 1)
	llm := &fakeCompleter{reply: validPlan}
	log := &memLog{}

	svc := NewService(newMemStore(), llm, Options{})
	h := NewHandler(svc, identity.NewGuard(gate, api.WriteError), gate, HandlerOptions{
		Limiter: NewRateLimiter(limit, time.Minute),
		Log:     log,
	})
	t.Cleanup(h.Close)

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return &agentFixture{router: r, handler: h, gate: gate, llm: llm, log: log}
}

func (f *agentFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *agentFixture) configure(t *testing.T) {
	t.Helper()
	w := f.do(t, http.MethodPut, "/api/ai/config", "tok-alice", SaveConfigInput{APIKey: "sk-1234567890abcdef"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestConfigRoutes(t *testing.T) {
	f := newAgentFixture(t, 10)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/ai/config", "", nil).Code)

	w := f.do(t, http.MethodGet, "/api/ai/config", "tok-alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view ConfigView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.False(t, view.Configured)

	w = f.do(t, http.MethodPut, "/api/ai/config", "tok-alice", SaveConfigInput{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.configure(t)
	w = f.do(t, http.MethodGet, "/api/ai/config", "tok-alice", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.True(t, view.Configured)
	assert.Equal(t, "sk-1****cdef", view.APIKeyMasked)
	assert.NotContains(t, w.Body.String(), "sk-1234567890abcdef")

	w = f.do(t, http.MethodPost, "/api/ai/config/test", "tok-alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
}

func TestPlanRoute(t *testing.T) {
	f := newAgentFixture(t, 10)
	req := domain.PlanRequest{Subjects: []string{"数学"}}

	w := f.do(t, http.MethodPost, "/api/ai/plan", "tok-alice", req)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Contains(t, w.Body.String(), "请先配置 AI API")
	assert.Zero(t, f.llm.callCount())

	f.configure(t)
	w = f.do(t, http.MethodPost, "/api/ai/plan", "tok-alice", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res PlanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, "数学", res.Suggestions[0].Subject)

	f.llm.set("今天学数学", nil)
	w = f.do(t, http.MethodPost, "/api/ai/plan", "tok-alice", req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "今天学数学")

	f.llm.set("", &domain.ExternalServiceError{StatusCode: 401, Body: "invalid key"})
	w = f.do(t, http.MethodPost, "/api/ai/plan", "tok-alice", req)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = f.do(t, http.MethodPost, "/api/ai/plan", "tok-alice", domain.PlanRequest{ExamDate: "next year"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatRoute(t *testing.T) {
	f := newAgentFixture(t, 10)
	f.configure(t)
	f.llm.set("先看教材", nil)

	w := f.do(t, http.MethodPost, "/api/ai/chat", "tok-alice", ChatRequest{Message: "怎么开始复习？"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "先看教材", res.Reply)

	events := f.log.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, "chat_user_message", events[0].EventType)
	assert.Equal(t, "怎么开始复习？", events[0].ContentRaw)
	assert.Equal(t, "chat_assistant_message", events[1].EventType)
	assert.Equal(t, "1", events[1].UserID)
	assert.Equal(t, time.Now().Format(domain.DateLayout), events[1].SessionID)

	w = f.do(t, http.MethodPost, "/api/ai/chat", "tok-alice", ChatRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimitedRoutes(t *testing.T) {
	f := newAgentFixture(t, 2)
	f.configure(t)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/ai/chat", "tok-alice", ChatRequest{Message: "hi"}).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodPost, "/api/ai/chat", "tok-alice", ChatRequest{Message: "hi"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodPost, "/api/ai/plan", "tok-alice", domain.PlanRequest{}).Code)
	assert.Equal(t, 2, f.llm.callCount())

	// Configuration reads are not limited.
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/ai/config", "tok-alice", nil).Code)
}

func dialChat(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?" + identity.TokenQueryParam + "=" + token
	return websocket.Dial(ctx, url, nil)
}

func TestChatSocket(t *testing.T) {
	f := newAgentFixture(t, 10)
	f.configure(t)
	f.llm.set("加油", nil)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	conn, _, err := dialChat(t, srv, "tok-alice")
	require.NoError(t, err)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, wsjson.Write(ctx, conn, socketFrame{Message: "好累"}))
	var frame socketFrame
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	assert.Equal(t, FrameReply, frame.Type)
	assert.Equal(t, "加油", frame.Content)

	require.NoError(t, wsjson.Write(ctx, conn, socketFrame{Type: "ping"}))
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	assert.Equal(t, FramePong, frame.Type)

	require.NoError(t, wsjson.Write(ctx, conn, socketFrame{Message: ""}))
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	assert.Equal(t, FrameError, frame.Type)

	// Frames are re-validated: a revoked session is answered with an error and closed.
	f.gate.revoke("tok-alice")
	require.NoError(t, wsjson.Write(ctx, conn, socketFrame{Message: "还在吗"}))
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	assert.Equal(t, FrameError, frame.Type)
	assert.Equal(t, domain.ErrUnauthenticated.Error(), frame.Error)

	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
}

func TestChatSocketRejectsBadToken(t *testing.T) {
	f := newAgentFixture(t, 10)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	_, resp, err := dialChat(t, srv, "nope")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCloseSessionClosesSocket(t *testing.T) {
	f := newAgentFixture(t, 10)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	conn, _, err := dialChat(t, srv, "tok-alice")
	require.NoError(t, err)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	require.Eventually(t, func() bool { return f.handler.registry.Count(1) == 1 }, 2*time.Second, 10*time.Millisecond)

	f.handler.CloseSession("tok-alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
	assert.Eventually(t, func() bool { return f.handler.registry.Count(1) == 0 }, 2*time.Second, 10*time.Millisecond)
}
