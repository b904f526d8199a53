package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ashureev/studyplan/internal/domain"
	"github.com/ashureev/studyplan/internal/identity"
)

type taskRequest struct {
	SubjectID    *int64            `json:"subject_id"`
	TaskDate     string            `json:"task_date"`
	StartTime    string            `json:"start_time"`
	EndTime      string            `json:"end_time"`
	Content      string            `json:"content"`
	Status       domain.TaskStatus `json:"status"`
	AlarmEnabled bool              `json:"alarm_enabled"`
	AlarmTime    string            `json:"alarm_time"`
}

type checkRequest struct {
	Date    string `json:"date"`
	Content string `json:"content"`
}

type checkResponse struct {
	Matched []*domain.Task `json:"matched"`
	Count   int            `json:"count"`
	Error   string         `json:"error,omitempty"`
}

// checkSubject rejects a subject id that does not belong to ownerID.
func (h *Handler) checkSubject(ctx context.Context, ownerID int64, subjectID *int64) error {
	if subjectID == nil {
		return nil
	}
	sub, err := h.repo.GetSubject(ctx, ownerID, *subjectID)
	if err != nil {
		return err
	}
	if sub == nil {
		return domain.NewValidationError("subject_id", "unknown subject")
	}
	return nil
}

// ListTasks returns the caller's tasks for ?date=, ordered by start time.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	date, err := domain.NormalizeDate(r.URL.Query().Get("date"))
	if err != nil {
		WriteError(w, r, domain.NewValidationError("date", err.Error()))
		return
	}
	tasks, err := h.repo.ListTasksByDate(r.Context(), p.UserID, date)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, tasks)
}

// CreateTask schedules a task.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	var req taskRequest
	if err := Decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	task := &domain.Task{
		UserID:       p.UserID,
		SubjectID:    req.SubjectID,
		TaskDate:     req.TaskDate,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Content:      req.Content,
		Status:       req.Status,
		AlarmEnabled: req.AlarmEnabled,
		AlarmTime:    req.AlarmTime,
	}
	if err := task.Normalize(); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.checkSubject(r.Context(), p.UserID, task.SubjectID); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.repo.CreateTask(r.Context(), task); err != nil {
		WriteError(w, r, err)
		return
	}

	created, err := h.repo.GetTask(r.Context(), p.UserID, task.ID)
	if err != nil || created == nil {
		// The insert succeeded; fall back to what was written.
		created = task
	}
	JSON(w, http.StatusCreated, created)
}

// UpdateTask applies a partial update and returns the stored task.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var patch domain.TaskPatch
	if err := Decode(w, r, &patch); err != nil {
		WriteError(w, r, err)
		return
	}
	if patch.Empty() {
		WriteError(w, r, domain.NewValidationError("body", "no fields to update"))
		return
	}
	if err := patch.Normalize(); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.checkSubject(r.Context(), p.UserID, patch.SubjectID); err != nil {
		WriteError(w, r, err)
		return
	}

	existing, err := h.repo.GetTask(r.Context(), p.UserID, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if existing == nil {
		WriteError(w, r, domain.ErrNotFound)
		return
	}
	start, end := existing.StartTime, existing.EndTime
	if patch.StartTime != nil {
		start = *patch.StartTime
	}
	if patch.EndTime != nil {
		end = *patch.EndTime
	}
	if start >= end {
		WriteError(w, r, domain.NewValidationError("end_time", "must be after start_time"))
		return
	}

	if err := h.repo.UpdateTask(r.Context(), p.UserID, id, patch); err != nil {
		WriteError(w, r, err)
		return
	}
	task, err := h.repo.GetTask(r.Context(), p.UserID, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if task == nil {
		WriteError(w, r, domain.ErrNotFound)
		return
	}
	JSON(w, http.StatusOK, task)
}

// DeleteTask removes one of the caller's tasks.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.repo.DeleteTask(r.Context(), p.UserID, id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleTask advances a task through pending, completed and failed.
func (h *Handler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	task, err := h.matcher.ToggleStatus(r.Context(), p.UserID, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, task)
}

// CheckTasks completes every pending task on date whose content resembles
// the reported activity. When some matches could not be saved the committed
// ones are still returned, together with an error message.
func (h *Handler) CheckTasks(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	var req checkRequest
	if err := Decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	matched, err := h.matcher.CheckContent(r.Context(), p.UserID, req.Date, req.Content)
	if err != nil && len(matched) == 0 {
		WriteError(w, r, err)
		return
	}
	resp := checkResponse{Matched: matched, Count: len(matched)}
	if err != nil {
		slog.Warn("Task check partially failed", "user_id", p.UserID, "matched", len(matched), "error", err)
		resp.Error = "some matching tasks could not be updated"
	}
	JSON(w, http.StatusOK, resp)
}
