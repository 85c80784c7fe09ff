package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/malulos-pos/api/internal/config"
	"github.com/malulos-pos/api/internal/database"
	"github.com/malulos-pos/api/internal/enum"
	"github.com/malulos-pos/api/internal/handler"
	mw "github.com/malulos-pos/api/internal/middleware"
	"github.com/malulos-pos/api/internal/service"
	"github.com/malulos-pos/api/internal/ticket"
	"github.com/malulos-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, queries *database.Queries, orderSvc *service.OrderService, sessionSvc *service.CashSessionService, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(mw.Metrics)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // Vite dev server
			"https://pos.malulos.co",
			"https://admin.malulos.co",
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket routes (auth via query param token)
	r.Get("/ws/{topic}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	printer := ticket.NewPrinter(cfg.BusinessName, cfg.BusinessAddress, cfg.BusinessPhone)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Staff management is admin-only
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			userHandler := handler.NewUserHandler(queries)
			r.Route("/users", userHandler.RegisterRoutes)
		})

		categoryHandler := handler.NewCategoryHandler(queries)
		r.Route("/categories", categoryHandler.RegisterRoutes)

		productHandler := handler.NewProductHandler(queries)
		r.Route("/products", productHandler.RegisterRoutes)

		tableHandler := handler.NewTableHandler(queries)
		r.Route("/tables", tableHandler.RegisterRoutes)

		customerHandler := handler.NewCustomerHandler(queries)
		r.Route("/customers", customerHandler.RegisterRoutes)

		orderHandler := handler.NewOrderHandler(orderSvc, queries, printer)
		r.Route("/orders", orderHandler.RegisterRoutes)

		sessionHandler := handler.NewCashSessionHandler(sessionSvc, queries)
		r.Route("/cash-sessions", sessionHandler.RegisterRoutes)

		reportHandler := handler.NewReportHandler(queries)
		r.Route("/reports", reportHandler.RegisterRoutes)
	})

	return r
}
