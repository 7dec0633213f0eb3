package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	httpmiddleware "github.com/voiceops/crmbot/internal/http/middleware"
	"github.com/voiceops/crmbot/internal/mockcrm"
	"github.com/voiceops/crmbot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	port := os.Getenv("MOCKCRM_PORT")
	if port == "" {
		port = "8001"
	}
	snapshotPath := os.Getenv("CRM_SNAPSHOT_PATH")
	if snapshotPath == "" {
		snapshotPath = "data/crm_data_latest.json"
	}

	logger := logging.New(os.Getenv("LOG_LEVEL"))
	logger.Info("starting mock CRM server", "port", port, "snapshot", snapshotPath)

	store := mockcrm.NewStore(snapshotPath, logger)
	handler := mockcrm.NewHandler(store, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(logger))
	handler.Routes(r)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
