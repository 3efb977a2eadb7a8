package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	CORSOrigins    []string
}

type Handlers struct {
	Auth          *AuthHandler
	Products      *ProductHandler
	Users         *UserHandler
	Messages      *MessageHandler
	Carts         *CartHandler
	Orders        *OrderHandler
	Disputes      *DisputeHandler
	Notifications *NotificationHandler
	Admin         *AdminHandler
	Uploads       *UploadHandler
}

func NewRouter(cfg RouterConfig, tokens TokenParser, h Handlers, checks map[string]HealthCheck, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestSize(cfg.MaxBodyBytes))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotencyHeader, middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler(checks, log))

	auth := Authenticate(tokens)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.Post("/verify-phone", h.Auth.VerifyPhone)
			r.Get("/verify-email", h.Auth.VerifyEmail)
			r.Post("/request-password-reset", h.Auth.RequestPasswordReset)
			r.Post("/reset-password", h.Auth.ResetPassword)
			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Post("/resend-otp", h.Auth.ResendOTP)
				r.Post("/resend-email", h.Auth.ResendEmail)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.List)
			r.Get("/{id}", h.Products.Get)
			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Post("/", h.Products.Create)
				r.Put("/{id}", h.Products.Update)
				r.Delete("/{id}", h.Products.Delete)
				r.Post("/{id}/bid", h.Products.PlaceBid)
				r.Post("/{id}/save", h.Products.ToggleSave)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.Get("/{userId}/products", h.Products.ListBySeller)
			r.Get("/{userId}/reviews", h.Users.Reviews)
			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Get("/profile", h.Users.GetProfile)
				r.Put("/profile", h.Users.UpdateProfile)
				r.Get("/listings", h.Products.ListMine)
				r.Post("/{userId}/reviews", h.Users.AddReview)
			})
		})

		r.Route("/messages", func(r chi.Router) {
			r.Use(auth)
			r.Post("/", h.Messages.Send)
			r.Get("/conversations", h.Messages.Conversations)
			r.Get("/{productId}/{userId}", h.Messages.Thread)
			r.Put("/{messageId}/read", h.Messages.MarkRead)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(auth)
			r.Get("/", h.Carts.GetCart)
			r.Post("/", h.Carts.AddItem)
			r.Put("/", h.Carts.UpdateItem)
			r.Delete("/", h.Carts.RemoveItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(auth)
			r.Get("/", h.Orders.List)
			r.Post("/", h.Orders.Checkout)
			r.Get("/sales", h.Orders.ListSales)
			r.Get("/{id}", h.Orders.Get)
			r.Patch("/{id}/status", h.Orders.UpdateStatus)
		})

		r.Route("/disputes", func(r chi.Router) {
			r.Use(auth)
			r.Get("/", h.Disputes.List)
			r.Post("/", h.Disputes.Open)
			r.Get("/{id}", h.Disputes.Get)
			r.Post("/{id}/messages", h.Disputes.AddMessage)
			r.Post("/{id}/evidence", h.Disputes.AddEvidence)
			r.Patch("/{id}/status", h.Disputes.UpdateStatus)
		})

		r.Route("/complaints", func(r chi.Router) {
			r.Use(auth)
			r.Get("/", h.Disputes.ListComplaints)
			r.Post("/", h.Disputes.FileComplaint)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(auth)
			r.Get("/", h.Notifications.List)
			r.Put("/read-all", h.Notifications.MarkAllRead)
			r.Put("/{id}/read", h.Notifications.MarkRead)
			r.Delete("/{id}", h.Notifications.Delete)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth, RequireAdmin)
			r.Get("/complaints", h.Admin.ListComplaints)
			r.Get("/complaints/{id}", h.Admin.GetComplaint)
			r.Patch("/complaints/{id}/status", h.Admin.UpdateComplaint)
			r.Post("/disputes/{id}/resolve", h.Admin.ResolveDispute)
			r.Patch("/disputes/{id}/assign", h.Admin.AssignDispute)
			r.Patch("/products/{id}/status", h.Admin.SetProductStatus)
			r.Get("/audit", h.Admin.ListAudit)
			r.Get("/actions", h.Admin.ListActions)
		})

		r.With(auth).Get("/imagekit/auth", h.Uploads.ImageKitAuth)
	})

	return otelhttp.NewHandler(r, "ecofinds-http")
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		res := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				res.Checks[name] = "unavailable"
				res.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			res.Checks[name] = "ok"
		}
		respondJSON(w, status, res)
	}
}
