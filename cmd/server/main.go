package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ragbot/ragchat/internal/config"
	"github.com/ragbot/ragchat/internal/db"
	"github.com/ragbot/ragchat/internal/httpapi"
	"github.com/ragbot/ragchat/internal/store/rabbitmq"
	"github.com/ragbot/ragchat/internal/store/redisstore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file, using environment as-is")
	}

	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	defer db.Close(gdb)

	// Redis only backs session revocation. The service degrades to
	// cookie-expiry-only logout when it is unreachable.
	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rds.Ping(pingCtx); err != nil {
		logrus.WithError(err).Warn("redis unreachable, session revocation disabled")
		_ = rds.Close()
		rds = nil
	}
	cancelPing()
	if rds != nil {
		defer rds.Close()
	}

	// Rabbit only backs the async ask endpoint; the synchronous path
	// works without it.
	rabbit, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		logrus.WithError(err).Warn("rabbitmq unreachable, async ask disabled")
		rabbit = nil
	}
	if rabbit != nil {
		defer rabbit.Close()
	}

	router := httpapi.NewRouter(gdb, cfg, rds, rabbit)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // RAG backend calls can be slow
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logrus.WithField("addr", cfg.HTTPAddr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Fatal("forced shutdown")
	}
	logrus.Info("server stopped")
}
