package agent

import "github.com/ashureev/studyplan/internal/domain"

// ChatRequest is the body of POST /api/ai/chat and the payload of a chat socket frame.
type ChatRequest struct {
	Message string               `json:"message"`
	History []domain.ChatMessage `json:"history,omitempty"`
}

// ChatResponse carries the assistant reply.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// PlanResponse carries a validated generated plan.
type PlanResponse struct {
	Suggestions []domain.TaskSuggestion `json:"suggestions"`
}

// TestResponse reports the outcome of a credential check.
type TestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Socket frame types sent to chat socket clients.
const (
	FrameReply = "reply"
	FrameError = "error"
	FramePong  = "pong"
)

// socketFrame is one message on the chat socket. Inbound frames use Type
// "ping" or leave it empty for a chat message.
type socketFrame struct {
	Type    string               `json:"type,omitempty"`
	Message string               `json:"message,omitempty"`
	History []domain.ChatMessage `json:"history,omitempty"`
	Content string               `json:"content,omitempty"`
	Error   string               `json:"error,omitempty"`
}
