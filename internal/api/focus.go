package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
	"github.com/ashureev/studyplan/internal/identity"
)

const (
	defaultFocusHistory = 50
	maxFocusHistory     = 200
)

type startFocusRequest struct {
	SubjectID *int64 `json:"subject_id"`
	TaskID    *int64 `json:"task_id"`
}

type finishFocusRequest struct {
	DurationMinutes *int `json:"duration_minutes"`
}

// ListFocusSessions returns the caller's most recent focus sessions.
func (h *Handler) ListFocusSessions(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	limit, err := limitParam(r, defaultFocusHistory, maxFocusHistory)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	sessions, err := h.repo.ListFocusSessions(r.Context(), p.UserID, limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, sessions)
}

// StartFocusSession begins a running focus session.
func (h *Handler) StartFocusSession(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	var req startFocusRequest
	if err := decodeOptional(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.checkSubject(r.Context(), p.UserID, req.SubjectID); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.TaskID != nil {
		task, err := h.repo.GetTask(r.Context(), p.UserID, *req.TaskID)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		if task == nil {
			WriteError(w, r, domain.NewValidationError("task_id", "unknown task"))
			return
		}
	}

	f := &domain.FocusSession{UserID: p.UserID, SubjectID: req.SubjectID, TaskID: req.TaskID}
	if err := h.repo.StartFocusSession(r.Context(), f); err != nil {
		WriteError(w, r, err)
		return
	}
	started, err := h.repo.GetFocusSession(r.Context(), p.UserID, f.ID)
	if err != nil || started == nil {
		started = f
	}
	JSON(w, http.StatusCreated, started)
}

// CompleteFocusSession closes a running session as completed.
func (h *Handler) CompleteFocusSession(w http.ResponseWriter, r *http.Request) {
	h.finishFocusSession(w, r, domain.FocusCompleted)
}

// CancelFocusSession closes a running session as cancelled.
func (h *Handler) CancelFocusSession(w http.ResponseWriter, r *http.Request) {
	h.finishFocusSession(w, r, domain.FocusCancelled)
}

// finishFocusSession records the end of a running session. The duration is
// taken from the body when given, otherwise from the elapsed wall time.
func (h *Handler) finishFocusSession(w http.ResponseWriter, r *http.Request, status domain.FocusStatus) {
	p := identity.MustPrincipal(r.Context())
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req finishFocusRequest
	if err := decodeOptional(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.DurationMinutes != nil && *req.DurationMinutes < 0 {
		WriteError(w, r, domain.NewValidationError("duration_minutes", "must not be negative"))
		return
	}

	f, err := h.repo.GetFocusSession(r.Context(), p.UserID, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if f == nil {
		WriteError(w, r, domain.ErrNotFound)
		return
	}
	if f.Status != domain.FocusRunning {
		WriteError(w, r, fmt.Errorf("focus session is %s: %w", f.Status, domain.ErrConflict))
		return
	}

	end := time.Now()
	minutes := int(end.Sub(f.StartTime) / time.Minute)
	if req.DurationMinutes != nil {
		minutes = *req.DurationMinutes
	}
	if err := h.repo.FinishFocusSession(r.Context(), p.UserID, id, status, minutes, end); err != nil {
		WriteError(w, r, err)
		return
	}

	f.Status, f.DurationMinutes, f.EndTime = status, minutes, &end
	JSON(w, http.StatusOK, f)
}
