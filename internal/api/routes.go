package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
	"github.com/ashureev/studyplan/internal/identity"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers every account and study-data route. All routes
// except login and the health check are behind the gate.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.guard.Protect())

			r.Post("/auth/logout", h.Logout)
			r.Get("/auth/me", h.Me)
			r.Put("/auth/password", h.ChangePassword)
			r.Put("/auth/display-name", h.ChangeDisplayName)

			r.Get("/subjects", h.ListSubjects)
			r.Post("/subjects", h.CreateSubject)
			r.Delete("/subjects/{id}", h.DeleteSubject)

			r.Get("/countdowns", h.ListCountdowns)
			r.Post("/countdowns", h.CreateCountdown)
			r.Delete("/countdowns/{id}", h.DeleteCountdown)

			r.Get("/tasks", h.ListTasks)
			r.Post("/tasks", h.CreateTask)
			r.Post("/tasks/check", h.CheckTasks)
			r.Patch("/tasks/{id}", h.UpdateTask)
			r.Delete("/tasks/{id}", h.DeleteTask)
			r.Post("/tasks/{id}/toggle", h.ToggleTask)

			r.Get("/focus", h.ListFocusSessions)
			r.Post("/focus", h.StartFocusSession)
			r.Post("/focus/{id}/complete", h.CompleteFocusSession)
			r.Post("/focus/{id}/cancel", h.CancelFocusSession)

			r.Get("/reviews", h.ListReviews)
			r.Put("/reviews", h.SaveReview)
			r.Get("/reviews/{date}", h.GetReview)

			r.Get("/preferences", h.GetPreference)
			r.Put("/preferences", h.SavePreference)

			r.Get("/stats", h.GetStats)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.guard.Protect(identity.Role(domain.RoleAdmin)))

			r.Get("/admin/users", h.ListUsers)
			r.Post("/admin/users", h.CreateUser)
			r.Put("/admin/users/{userID}/password", h.ResetPassword)
		})
		r.With(h.guard.Protect(identity.Role(domain.RoleAdmin), identity.NotSelf("userID"))).
			Delete("/admin/users/{userID}", h.DeleteUser)
	})
}

// Health reports whether the database is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.repo.Ping(ctx); err != nil {
		Error(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
