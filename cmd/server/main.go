package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nexusbtp/nexus-backend/internal/config"
	"github.com/nexusbtp/nexus-backend/internal/db"
	"github.com/nexusbtp/nexus-backend/internal/server"
	"github.com/nexusbtp/nexus-backend/internal/services"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	var log *zap.Logger
	var err error
	if cfg.Env == "production" {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	conn, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal("connexion base de données", zap.String("dsn", db.MaskDSN(cfg.DatabaseDSN)), zap.Error(err))
	}
	log.Info("base de données prête", zap.String("dsn", db.MaskDSN(cfg.DatabaseDSN)))

	users := services.NewUserService(conn, cfg, log)
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminEmail != "" && adminPassword != "" {
		if err := users.SeedAdmin(context.Background(), adminEmail, adminPassword); err != nil {
			log.Fatal("initialisation du compte admin", zap.Error(err))
		}
	}

	srv := server.New(conn, cfg, log)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("serveur démarré", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("serveur HTTP", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("arrêt en cours")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("arrêt forcé", zap.Error(err))
	}
	log.Info("serveur arrêté")
}
