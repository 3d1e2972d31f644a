package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/clock"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/events"
	"github.com/ukydev/fleet-maintenance/internal/handlers"
	"github.com/ukydev/fleet-maintenance/internal/maintenance"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// routerDeps is everything newRouter needs; main wires the Mongo-backed
// versions and tests wire mocks.
type routerDeps struct {
	cfg         config.Config
	authService *auth.Service
	users       db.UserCollection
	maintenance handlers.MaintenanceService
	ping        func(ctx context.Context) error
}

func newRouter(d routerDeps) http.Handler {
	authMiddleware := middleware.NewAuthMiddleware(d.authService)
	authHandler := handlers.NewAuthHandler(d.authService, d.users)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler(d.ping))
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("GET /api/auth/profile", authHandler.GetProfile)
	manageUsers := authMiddleware.RequirePermission(models.ActionManageUsers)
	mux.Handle("GET /api/auth/users", manageUsers(http.HandlerFunc(authHandler.ListUsers)))
	mux.Handle("POST /api/auth/users", manageUsers(http.HandlerFunc(authHandler.InviteUser)))
	handlers.NewMaintenanceHandler(d.maintenance).Register(mux, authMiddleware)

	limiter := middleware.NewRateLimitMiddleware(d.cfg.TrustedProxies...)
	var h http.Handler = authMiddleware.Authenticate(mux)
	h = limiter.RateLimit(d.cfg.RateLimitRequests, d.cfg.RateLimitWindowSeconds)(h)
	return middleware.RequestLogger(log.StandardLogger())(h)
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				log.WithError(err).Warn("Health check: database unreachable")
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}

func newPublisher(cfg config.Config) (events.Publisher, func()) {
	if cfg.MQTTBroker == "" {
		log.Info("MQTT_BROKER not set, maintenance events disabled")
		return events.NopPublisher{}, func() {}
	}
	publisher, err := events.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopicPrefix)
	if err != nil {
		log.WithError(err).WithField("broker", cfg.MQTTBroker).Warn("MQTT unavailable, maintenance events disabled")
		return events.NopPublisher{}, func() {}
	}
	log.WithField("broker", cfg.MQTTBroker).Info("Connected to MQTT broker")
	return publisher, publisher.Close
}

func main() {
	cfg := config.Load()
	cfg.ConfigureLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			log.WithError(err).Warn("MongoDB disconnect failed")
		}
	}()
	log.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")

	database := client.Database(cfg.MongoDB)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		log.WithError(err).Warn("Failed to ensure indexes")
	}

	publisher, closePublisher := newPublisher(cfg)
	defer closePublisher()

	service := maintenance.NewService(
		&db.MongoScheduleCollection{Collection: database.Collection(db.SchedulesCollection)},
		&db.MongoEnhancedScheduleCollection{Collection: database.Collection(db.EnhancedSchedulesCollection)},
		maintenance.WithServiceRecords(&db.MongoServiceRecordCollection{Collection: database.Collection(db.ServiceRecordsCollection)}),
		maintenance.WithPublisher(publisher),
		maintenance.WithClock(clock.NewRealClock(cfg.Location)),
		maintenance.WithLogger(log.StandardLogger()),
	)

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, using the built-in development secret")
	}

	router := newRouter(routerDeps{
		cfg:         cfg,
		authService: auth.NewService(cfg.JWTSecret, cfg.JWTExpiry),
		users:       &db.MongoUserCollection{Collection: database.Collection(db.UsersCollection)},
		maintenance: service,
		ping:        func(ctx context.Context) error { return client.Ping(ctx, nil) },
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("HTTP server shutdown failed")
		}
	}()

	log.WithField("port", cfg.Port).Info("HTTP server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("HTTP server failed")
	}
	log.Info("HTTP server stopped")
}
