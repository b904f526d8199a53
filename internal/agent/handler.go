package agent

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/studyplan/internal/api"
	"github.com/ashureev/studyplan/internal/domain"
	"github.com/ashureev/studyplan/internal/identity"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// HandlerOptions holds the optional collaborators of a Handler.
type HandlerOptions struct {
	Limiter  *RateLimiter
	Registry *Registry
	Log      ConversationLogger
	// OriginPatterns are the hosts allowed to open the chat socket. Empty
	// means same-origin only.
	OriginPatterns []string
}

// Handler serves the AI routes and the chat socket.
type Handler struct {
	svc      *Service
	guard    *identity.Guard
	gate     identity.Authorizer
	limiter  *RateLimiter
	registry *Registry
	log      ConversationLogger
	origins  []string
}

// NewHandler creates a Handler. gate re-validates chat socket frames.
func NewHandler(svc *Service, guard *identity.Guard, gate identity.Authorizer, opts HandlerOptions) *Handler {
	if opts.Limiter == nil {
		opts.Limiter = NewRateLimiter(10, time.Minute)
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Log == nil {
		opts.Log = noopConversationLogger{}
	}
	return &Handler{
		svc:      svc,
		guard:    guard,
		gate:     gate,
		limiter:  opts.Limiter,
		registry: opts.Registry,
		log:      opts.Log,
		origins:  opts.OriginPatterns,
	}
}

// RegisterRoutes registers the AI routes. Calls that reach the external
// service are rate limited per user.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/ai", func(r chi.Router) {
		r.Use(h.guard.Protect())

		r.Get("/config", h.GetConfig)
		r.Put("/config", h.SaveConfig)

		r.Group(func(r chi.Router) {
			r.Use(h.rateLimit)
			r.Post("/config/test", h.TestConnection)
			r.Post("/plan", h.GeneratePlan)
			r.Post("/chat", h.Chat)
		})
	})
	r.Get("/ws/chat", h.ServeChatSocket)
}

// CloseSession closes chat sockets opened with token. It is called on logout.
func (h *Handler) CloseSession(token string) {
	h.registry.CloseToken(token)
}

// Close releases handler resources.
func (h *Handler) Close() {
	h.limiter.Close()
	if err := h.log.Close(); err != nil {
		slog.Warn("Failed to close conversation logger", "error", err)
	}
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := identity.MustPrincipal(r.Context())
		if !h.limiter.Allow(p.UserID) {
			slog.Warn("AI rate limit exceeded", "user_id", p.UserID, "path", r.URL.Path)
			api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetConfig returns the caller's masked credential.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	view, err := h.svc.GetConfig(r.Context(), p.UserID)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, view)
}

// SaveConfig stores the caller's credential.
func (h *Handler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	var in SaveConfigInput
	if err := api.Decode(w, r, &in); err != nil {
		api.WriteError(w, r, err)
		return
	}
	view, err := h.svc.SaveConfig(r.Context(), p.UserID, in)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, view)
}

// TestConnection checks the caller's credential against the service.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	if err := h.svc.TestConnection(r.Context(), p.UserID); err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, TestResponse{Success: true, Message: "连接成功"})
}

// GeneratePlan returns suggested tasks for the caller's day.
func (h *Handler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	var req domain.PlanRequest
	if err := api.Decode(w, r, &req); err != nil {
		api.WriteError(w, r, err)
		return
	}
	if req.ExamDate != "" {
		d, err := domain.NormalizeDate(req.ExamDate)
		if err != nil {
			api.WriteError(w, r, domain.NewValidationError("exam_date", err.Error()))
			return
		}
		req.ExamDate = d
	}

	suggestions, err := h.svc.GeneratePlan(r.Context(), p.UserID, req)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, PlanResponse{Suggestions: suggestions})
}

// Chat relays one message to the assistant.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	var req ChatRequest
	if err := api.Decode(w, r, &req); err != nil {
		api.WriteError(w, r, err)
		return
	}
	reqID := chiMiddleware.GetReqID(r.Context())

	slog.Info("AI chat request", "user_id", p.UserID, "message_length", len(req.Message), "history", len(req.History))
	h.logChat(p.UserID, "chat_http", "outbound", "chat_user_message", req.Message, map[string]any{"request_id": reqID})

	reply, err := h.svc.Chat(r.Context(), p.UserID, req.Message, req.History)
	if err != nil {
		h.logChat(p.UserID, "chat_http", "inbound", "chat_error", err.Error(), map[string]any{"request_id": reqID})
		api.WriteError(w, r, err)
		return
	}
	h.logChat(p.UserID, "chat_http", "inbound", "chat_assistant_message", reply, map[string]any{"request_id": reqID})
	api.JSON(w, http.StatusOK, ChatResponse{Reply: reply})
}

// logChat records one chat event. Events are grouped into one file per user per day.
func (h *Handler) logChat(userID int64, channel, direction, eventType, content string, meta map[string]any) {
	now := time.Now()
	h.log.Log(ConversationLogEvent{
		Timestamp:  now.UTC().Format(time.RFC3339Nano),
		UserID:     strconv.FormatInt(userID, 10),
		SessionID:  now.Format(domain.DateLayout),
		Channel:    channel,
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Content:    cleanForReadability(content),
		Meta:       meta,
	})
}
