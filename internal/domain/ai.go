package domain

import "time"

// Defaults for an AI configuration saved without model or endpoint.
const (
	DefaultAIModel    = "Qwen/Qwen2.5-7B-Instruct"
	DefaultAIEndpoint = "https://api.siliconflow.cn/v1/chat/completions"
)

// AIConfig is a user's credential for the text-generation service.
type AIConfig struct {
	UserID    int64     `json:"user_id"`
	APIKey    string    `json:"-"`
	Model     string    `json:"model_name"`
	Endpoint  string    `json:"api_endpoint"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Configured reports whether a usable credential is present.
func (c *AIConfig) Configured() bool {
	return c != nil && c.APIKey != ""
}

// MaskedKey returns the key with its middle hidden. Short keys are fully hidden.
func (c *AIConfig) MaskedKey() string {
	if c == nil || c.APIKey == "" {
		return ""
	}
	if len(c.APIKey) <= 8 {
		return "****"
	}
	return c.APIKey[:4] + "****" + c.APIKey[len(c.APIKey)-4:]
}

// PlanRequest is the caller-supplied context for plan generation.
type PlanRequest struct {
	ExamDate        string   `json:"exam_date,omitempty"`
	Subjects        []string `json:"subjects"`
	IncompleteTasks []string `json:"incomplete_tasks,omitempty"`
	Notes           string   `json:"review_content,omitempty"`
}

// TaskSuggestion is one validated item of a generated plan.
type TaskSuggestion struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Content   string `json:"content"`
	Subject   string `json:"subject"`
}

// Chat message roles.
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
