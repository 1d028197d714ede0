// Package server assembles the HTTP router and the middleware stack.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nexusbtp/nexus-backend/internal/auth"
	"github.com/nexusbtp/nexus-backend/internal/config"
	"github.com/nexusbtp/nexus-backend/internal/handlers"
	"github.com/nexusbtp/nexus-backend/internal/httpx"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
	"github.com/nexusbtp/nexus-backend/internal/services"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Durée des requêtes HTTP par route et statut.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Nombre de requêtes HTTP par route et statut.",
	}, []string{"method", "route", "status"})
)

// Server holds the router and its dependencies.
type Server struct {
	Router chi.Router
	log    *zap.Logger
}

// New wires the services, the handlers and the middleware stack.
func New(db *gorm.DB, cfg config.Config, log *zap.Logger) *Server {
	notifier := services.NewNotifier(db, log)
	users := services.NewUserService(db, cfg, log)
	chantiers := services.NewChantierService(db, notifier, log)
	depenses := services.NewDepenseService(db, notifier, log)
	employes := services.NewEmployeService(db, notifier, log)
	stock := services.NewStockService(db, notifier, log)
	documents := services.NewDocumentService(db, notifier, log, cfg.DocumentStoreDir)
	notifications := services.NewNotificationService(db)
	taches := services.NewTacheService(db, notifier)
	rapports := services.NewRapportService(db)

	authMW := auth.NewMiddleware(cfg.JWTSecret, func(ctx context.Context, userID uint) bool {
		ok, err := users.Exists(ctx, userID)
		return err == nil && ok
	})

	authH := handlers.NewAuthHandler(users)
	userH := handlers.NewUserHandler(users, authMW.Invalidate)
	chantierH := handlers.NewChantierHandler(chantiers, rapports)
	depenseH := handlers.NewDepenseHandler(depenses)
	employeH := handlers.NewEmployeHandler(employes)
	stockH := handlers.NewStockHandler(stock)
	documentH := handlers.NewDocumentHandler(documents)
	notificationH := handlers.NewNotificationHandler(notifications)
	tacheH := handlers.NewTacheHandler(taches)
	rapportH := handlers.NewRapportHandler(rapports)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(authMW.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", authH.Routes)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			authH.SelfRoutes(r)
			r.Route("/users", func(r chi.Router) {
				r.Use(handlers.RequireAdmin)
				userH.Routes(r)
			})
			r.Route("/chantiers", chantierH.Routes)
			r.Route("/depenses", depenseH.Routes)
			r.Route("/employes", employeH.Routes)
			r.Route("/presences", employeH.PresenceRoutes)
			r.Route("/materiels", func(r chi.Router) {
				r.Use(handlers.RequirePermission(rbac.PermViewStock, rbac.PermViewAllStock))
				stockH.Routes(r)
			})
			r.Route("/documents", documentH.Routes)
			r.Route("/notifications", notificationH.Routes)
			r.Route("/taches", tacheH.Routes)
			r.Route("/rapports", func(r chi.Router) {
				r.Use(handlers.RequirePermission(rbac.PermViewRapports, rbac.PermViewBudgetGlobal))
				rapportH.Routes(r)
			})
		})
	})

	return &Server{Router: r, log: log}
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("requête",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duree", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		status := strconv.Itoa(ww.Status())
		requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		requestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}
