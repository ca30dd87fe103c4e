// Package api HTTP-поверхность сервиса: REST для участников, вебхук оплаты
// и публичная страница учителя.
package api

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter собирает роутер со всеми маршрутами
func NewRouter(h *Handler, allowedOrigins []string, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	// креды разрешены только для явного списка источников, не для "*"
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", headerUserID, headerUserRole},
		AllowCredentials: !slices.Contains(allowedOrigins, "*"),
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/webhooks/payments", h.PaymentWebhook)
	r.Get("/public/teachers/{handle}", h.PublicProfile)

	r.Route("/api", func(r chi.Router) {
		r.Use(authenticate)

		r.Route("/shifts", func(r chi.Router) {
			r.Get("/", h.ListShifts)
			r.Post("/", h.CreateShift)
			r.Put("/{id}", h.UpdateShift)
			r.Delete("/{id}", h.DeleteShift)
			r.Post("/{id}/expand", h.ExpandShift)
		})

		r.Route("/slots", func(r chi.Router) {
			r.Post("/", h.CreateSlot)
			r.Delete("/{id}", h.DeleteSlot)
		})

		r.Route("/teachers", func(r chi.Router) {
			r.Put("/me/profile", h.UpsertProfile)
			r.Get("/{id}/slots", h.ListBookable)
			r.Get("/{id}/products", h.ListProducts)
			r.Get("/{id}/utilization", h.TeacherUtilization)
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", h.ListBookings)
			r.Post("/", h.CreateBooking)
			r.Get("/{id}", h.GetBooking)
			r.Post("/{id}/approve", h.ApproveBooking)
			r.Post("/{id}/reject", h.RejectBooking)
			r.Post("/{id}/cancel", h.CancelBooking)
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
		})

		r.Get("/students/{id}/balances", h.ListBalances)
		r.Get("/admin/utilization", h.UtilizationReport)
	})

	return r
}
