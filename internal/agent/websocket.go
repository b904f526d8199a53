package agent

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/studyplan/internal/api"
	"github.com/ashureev/studyplan/internal/domain"
	"github.com/ashureev/studyplan/internal/identity"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const socketWriteTimeout = 10 * time.Second

// ServeChatSocket upgrades to a chat socket. Browsers cannot set headers on
// the upgrade request, so the token may be passed as ?session_token=. The
// token is checked on connect and again before every frame is answered.
func (h *Handler) ServeChatSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get(identity.TokenQueryParam)
	if token == "" {
		token = identity.TokenFromRequest(r)
	}
	p, err := h.gate.Authorize(r.Context(), token)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Warn("Failed to accept chat socket", "error", err, "user_id", p.UserID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close chat socket", "error", closeErr, "user_id", p.UserID)
		}
	}()
	ws.SetReadLimit(api.MaxRequestBodySize)

	h.registry.Register(p.UserID, token, ws)
	defer h.registry.Unregister(p.UserID, ws)

	ctx := r.Context()
	for {
		var frame socketFrame
		if err := wsjson.Read(ctx, ws, &frame); err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("Chat socket closed", "user_id", p.UserID)
			} else {
				slog.Warn("Chat socket read error", "error", err, "user_id", p.UserID)
			}
			return
		}

		if _, err := h.gate.Authorize(ctx, token); err != nil {
			h.writeFrame(ctx, ws, socketFrame{Type: FrameError, Error: domain.ErrUnauthenticated.Error()})
			_ = ws.Close(websocket.StatusPolicyViolation, "session ended")
			slog.Info("Chat socket session no longer valid", "user_id", p.UserID)
			return
		}

		out := socketFrame{Type: FramePong}
		if frame.Type != "ping" {
			out = h.answer(ctx, p.UserID, frame)
		}
		if err := h.writeFrame(ctx, ws, out); err != nil {
			return
		}
	}
}

// answer runs one chat turn and renders the result as a frame.
func (h *Handler) answer(ctx context.Context, userID int64, frame socketFrame) socketFrame {
	if !h.limiter.Allow(userID) {
		return socketFrame{Type: FrameError, Error: "rate limit exceeded"}
	}

	h.logChat(userID, "chat_ws", "outbound", "chat_user_message", frame.Message, nil)
	reply, err := h.svc.Chat(ctx, userID, frame.Message, frame.History)
	if err != nil {
		h.logChat(userID, "chat_ws", "inbound", "chat_error", err.Error(), nil)
		return socketFrame{Type: FrameError, Error: socketErrorMessage(userID, err)}
	}
	h.logChat(userID, "chat_ws", "inbound", "chat_assistant_message", reply, nil)
	return socketFrame{Type: FrameReply, Content: reply}
}

func (h *Handler) writeFrame(ctx context.Context, ws *websocket.Conn, frame socketFrame) error {
	ctx, cancel := context.WithTimeout(ctx, socketWriteTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, ws, frame); err != nil {
		slog.Debug("Failed to write chat frame", "error", err, "type", frame.Type)
		return err
	}
	return nil
}

// socketErrorMessage mirrors api.WriteError for socket clients.
func socketErrorMessage(userID int64, err error) string {
	var ext *domain.ExternalServiceError
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		return "请先配置 AI API"
	case errors.Is(err, domain.ErrValidation):
		return err.Error()
	case errors.As(err, &ext):
		return ext.Error()
	default:
		slog.Error("Chat socket turn failed", "user_id", userID, "error", err)
		return "internal server error"
	}
}
