package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"llmstxt-crawler/internal/config"
	"llmstxt-crawler/pkg/logger"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	cfgPath := flag.String("config", "", "config file with defaults for every request")
	level := flag.String("log-level", "info", "log level: debug|info|warn|error")
	flag.Parse()

	l := logger.New(logger.ParseLevel(*level))

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		l.Error("load config", "error", err)
		os.Exit(1)
	}
	cfg.LoadEnv()

	srv := &http.Server{
		Addr:         *addr,
		Handler:      newRouter(*cfg, l),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		l.Info("server listening", "addr", *addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			l.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	l.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	l.Info("bye")
}

func logRequest(l *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		l.Info("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}
