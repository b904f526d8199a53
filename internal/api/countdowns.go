package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
	"github.com/ashureev/studyplan/internal/identity"
)

type countdownView struct {
	*domain.Countdown
	domain.Remaining
}

func newCountdownView(c *domain.Countdown, now time.Time) countdownView {
	return countdownView{Countdown: c, Remaining: c.Remaining(now)}
}

type countdownRequest struct {
	Name          string     `json:"name"`
	TargetTime    *time.Time `json:"target_time"`
	NotifyEnabled bool       `json:"notify_enabled"`
}

// ListCountdowns returns the caller's countdowns with the time left on each.
func (h *Handler) ListCountdowns(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	countdowns, err := h.repo.ListCountdowns(r.Context(), p.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	now := time.Now()
	views := make([]countdownView, 0, len(countdowns))
	for _, c := range countdowns {
		views = append(views, newCountdownView(c, now))
	}
	JSON(w, http.StatusOK, views)
}

// CreateCountdown adds a countdown.
func (h *Handler) CreateCountdown(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	var req countdownRequest
	if err := Decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		WriteError(w, r, domain.NewValidationError("name", "must not be empty"))
		return
	}
	if req.TargetTime == nil || req.TargetTime.IsZero() {
		WriteError(w, r, domain.NewValidationError("target_time", "is required"))
		return
	}

	c := &domain.Countdown{
		UserID:        p.UserID,
		Name:          name,
		TargetTime:    *req.TargetTime,
		NotifyEnabled: req.NotifyEnabled,
	}
	if err := h.repo.CreateCountdown(r.Context(), c); err != nil {
		WriteError(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, newCountdownView(c, time.Now()))
}

// DeleteCountdown removes one of the caller's countdowns.
func (h *Handler) DeleteCountdown(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.repo.DeleteCountdown(r.Context(), p.UserID, id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
