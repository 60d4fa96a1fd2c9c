package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/internal/config"
	h "github.com/resplendentHSHI/AR-Glasses-Tour-Guide/internal/http"
	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logg := logger.New(cfg.Debug, cfg.LogFile)
	defer logg.Sync()

	r := h.NewRouter(cfg, logg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r.Handler(),
	}

	go func() {
		logg.Infow("listening", "port", cfg.Port, "package", cfg.PackageName)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatalw("server exited", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logg.Errorw("shutdown", "err", err)
	}
	logg.Info("shutdown complete")
}
