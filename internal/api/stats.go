package api

import (
	"net/http"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
	"github.com/ashureev/studyplan/internal/identity"
)

// maxStatsDays bounds the range of a single stats query.
const maxStatsDays = 366

// GetStats aggregates the caller's activity between ?start= and ?end=, inclusive.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	q := r.URL.Query()

	start, err := time.Parse(domain.DateLayout, q.Get("start"))
	if err != nil {
		WriteError(w, r, domain.NewValidationError("start", "want YYYY-MM-DD"))
		return
	}
	end, err := time.Parse(domain.DateLayout, q.Get("end"))
	if err != nil {
		WriteError(w, r, domain.NewValidationError("end", "want YYYY-MM-DD"))
		return
	}
	if end.Before(start) {
		WriteError(w, r, domain.NewValidationError("end", "must not be before start"))
		return
	}
	if end.Sub(start) > maxStatsDays*24*time.Hour {
		WriteError(w, r, domain.NewValidationError("end", "range exceeds one year"))
		return
	}

	stats, err := h.repo.GetStats(r.Context(), p.UserID, start.Format(domain.DateLayout), end.Format(domain.DateLayout))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, stats)
}
