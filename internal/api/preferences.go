package api

import (
	"net/http"

	"github.com/ashureev/studyplan/internal/domain"
	"github.com/ashureev/studyplan/internal/identity"
)

// GetPreference returns the caller's study preference, or the defaults when
// none has been saved.
func (h *Handler) GetPreference(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	pref, err := h.repo.GetPreference(r.Context(), p.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if pref == nil {
		pref = domain.DefaultPreference(p.UserID)
	}
	JSON(w, http.StatusOK, pref)
}

// SavePreference validates and stores the caller's study preference.
func (h *Handler) SavePreference(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	pref := domain.DefaultPreference(p.UserID)
	if err := Decode(w, r, pref); err != nil {
		WriteError(w, r, err)
		return
	}
	pref.UserID = p.UserID
	if err := pref.Validate(); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.repo.UpsertPreference(r.Context(), pref); err != nil {
		WriteError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, pref)
}
