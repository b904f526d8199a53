package api

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/studyplan/internal/auth"
	"github.com/ashureev/studyplan/internal/identity"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := Decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		slog.Info("Login rejected", "ip", identity.IPFromRequest(r), "error", err)
		WriteError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// Logout revokes the caller's session and closes connections bound to it.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := identity.TokenFromContext(r.Context())
	if err := h.auth.Logout(r.Context(), token); err != nil {
		WriteError(w, r, err)
		return
	}
	h.onLogout(token)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the caller's account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	user, err := h.auth.CurrentUser(r.Context(), p.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword replaces the caller's password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	var req changePasswordRequest
	if err := Decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.auth.ChangePassword(r.Context(), p.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type displayNameRequest struct {
	DisplayName string `json:"display_name"`
}

// ChangeDisplayName updates the caller's display name.
func (h *Handler) ChangeDisplayName(w http.ResponseWriter, r *http.Request) {
	p := identity.MustPrincipal(r.Context())
	var req displayNameRequest
	if err := Decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	user, err := h.auth.ChangeDisplayName(r.Context(), p.UserID, req.DisplayName)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, user)
}

// ListUsers returns every account. Admin only.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, users)
}

// CreateUser creates an account. Admin only.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req auth.NewUser
	if err := Decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	user, err := h.auth.CreateUser(r.Context(), req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, user)
}

// DeleteUser removes another account. Admin only, never the caller's own.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	target, err := IDParam(r, "userID")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.auth.DeleteUser(r.Context(), identity.MustPrincipal(r.Context()), target); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// ResetPassword sets another account's password. Admin only.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	target, err := IDParam(r, "userID")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req resetPasswordRequest
	if err := Decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.auth.ResetPassword(r.Context(), target, req.NewPassword); err != nil {
		WriteError(w, r, err)
		return
	}
	slog.Info("Password reset", "user_id", target, "by", identity.MustPrincipal(r.Context()).UserID)
	w.WriteHeader(http.StatusNoContent)
}
