package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
	"github.com/ashureev/studyplan/internal/identity"
	"github.com/go-chi/chi/v5"
)

const (
	defaultReviewLimit = 7
	maxReviewLimit     = 100
)

type reviewRequest struct {
	ReviewDate    string `json:"review_date"`
	Feelings      string `json:"feelings"`
	Difficulties  string `json:"difficulties"`
	AISuggestions string `json:"ai_suggestions"`
}

// ListReviews returns the caller's most recent reviews, newest first.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	limit, err := limitParam(r, defaultReviewLimit, maxReviewLimit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	reviews, err := h.repo.ListReviews(r.Context(), p.UserID, limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, reviews)
}

// GetReview returns the caller's review for {date}.
func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	date, err := domain.NormalizeDate(chi.URLParam(r, "date"))
	if err != nil {
		WriteError(w, r, domain.NewValidationError("date", err.Error()))
		return
	}
	review, err := h.repo.GetReviewByDate(r.Context(), p.UserID, date)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if review == nil {
		WriteError(w, r, domain.ErrNotFound)
		return
	}
	JSON(w, http.StatusOK, review)
}

// SaveReview creates or replaces the caller's review for a date, today by default.
func (h *Handler) SaveReview(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	var req reviewRequest
	if err := Decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	date := strings.TrimSpace(req.ReviewDate)
	if date == "" {
		date = time.Now().Format(domain.DateLayout)
	}
	date, err := domain.NormalizeDate(date)
	if err != nil {
		WriteError(w, r, domain.NewValidationError("review_date", err.Error()))
		return
	}

	review := &domain.Review{
		UserID:        p.UserID,
		ReviewDate:    date,
		Feelings:      strings.TrimSpace(req.Feelings),
		Difficulties:  strings.TrimSpace(req.Difficulties),
		AISuggestions: strings.TrimSpace(req.AISuggestions),
	}
	if err := h.repo.UpsertReview(r.Context(), review); err != nil {
		WriteError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, review)
}
