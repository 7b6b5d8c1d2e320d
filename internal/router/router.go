package router

import (
	"net/http"

	"github.com/bakehouse/api/internal/config"
	"github.com/bakehouse/api/internal/database"
	"github.com/bakehouse/api/internal/enum"
	"github.com/bakehouse/api/internal/handler"
	mw "github.com/bakehouse/api/internal/middleware"
	"github.com/bakehouse/api/internal/service"
	"github.com/bakehouse/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, pub handler.EventPublisher, reg *prometheus.Registry) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(mw.NewMetrics(reg).Instrument)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := pool.Ping(r.Context()); err != nil {
			log.Error().Err(err).Msg("health check: ping database")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	loc := cfg.Display.Location()

	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newOrderStore)

	userHandler := handler.NewUserHandler(queries)
	storeHandler := handler.NewStoreHandler(queries)
	productHandler := handler.NewProductHandler(queries)
	orderHandler := handler.NewOrderHandler(orderService, queries, pub)
	paymentHandler := handler.NewPaymentHandler(queries, pub)
	distributionHandler := handler.NewDistributionHandler(queries, pub, loc)
	reportsHandler := handler.NewReportsHandler(queries, loc)
	settingsHandler := handler.NewSettingsHandler(cfg.Display)

	staff := mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleManager)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		authHandler.RegisterProtectedRoutes(r)
		r.Get("/settings", settingsHandler.Get)

		// Admin only
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			r.Route("/users", userHandler.RegisterRoutes)
		})

		r.With(staff).Get("/distributors", userHandler.Distributors)

		r.Route("/stores", func(r chi.Router) {
			storeHandler.RegisterReadRoutes(r)
			r.With(staff).Group(storeHandler.RegisterWriteRoutes)
		})

		r.Route("/products", func(r chi.Router) {
			productHandler.RegisterReadRoutes(r)
			r.With(staff).Group(productHandler.RegisterWriteRoutes)
		})

		r.Route("/orders", func(r chi.Router) {
			orderHandler.RegisterReadRoutes(r)
			r.With(staff).Group(func(r chi.Router) {
				orderHandler.RegisterWriteRoutes(r)
				paymentHandler.RegisterRoutes(r)
			})
		})

		r.Route("/distribution", func(r chi.Router) {
			distributionHandler.RegisterReadRoutes(r)
			r.With(staff).Group(distributionHandler.RegisterWriteRoutes)
		})

		r.Route("/reports", reportsHandler.RegisterRoutes)
	})

	log.Info().Msg("router initialized with all handlers")
	return r
}
