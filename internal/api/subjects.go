package api

import (
	"net/http"
	"strings"

	"github.com/ashureev/studyplan/internal/domain"
	"github.com/ashureev/studyplan/internal/identity"
)

type subjectRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ListSubjects returns the caller's subjects, defaults first.
func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	subjects, err := h.repo.ListSubjects(r.Context(), p.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, subjects)
}

// CreateSubject adds a custom subject.
func (h *Handler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	var req subjectRequest
	if err := Decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		WriteError(w, r, domain.NewValidationError("name", "must not be empty"))
		return
	}

	sub := &domain.Subject{UserID: p.UserID, Name: name, Color: strings.TrimSpace(req.Color)}
	if err := h.repo.CreateSubject(r.Context(), sub); err != nil {
		WriteError(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, sub)
}

// DeleteSubject removes a custom subject. Default subjects report not found.
func (h *Handler) DeleteSubject(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.repo.DeleteSubject(r.Context(), p.UserID, id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
