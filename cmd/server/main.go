/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the labor ledger server: configuration, store,
  handler wiring, and graceful shutdown.

CONFIGURATION:
  Flags, overridable by environment variables (a .env file is loaded
  when present):
    -port / PORT          HTTP server port (default: 8080)
    -db   / DB_PATH       SQLite database path (default: ledger.db;
                          ":memory:" for in-memory)
    -week-start / WEEK_START  First day of calendar week (default: Sunday)
    -demo / DEMO_MODE     Enable demo scenario endpoints (default: off)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, drain active requests
  (30s timeout), close the store, exit.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/fieldline/labor-engine/api"
	"github.com/fieldline/labor-engine/store/sqlite"
)

func main() {
	// .env is optional; real environment wins over it.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "ledger.db"), "SQLite database path")
	weekStart := flag.String("week-start", envStr("WEEK_START", "sunday"), "first day of calendar week")
	demo := flag.Bool("demo", envStr("DEMO_MODE", "") != "", "enable demo scenario endpoints (resets data)")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	handler := api.NewHandler(store, store, log)
	defer handler.Close()
	handler.SetWeekStart(parseWeekday(*weekStart))
	if *demo {
		log.Warn("demo mode enabled; scenario endpoints can reset the database")
		handler.EnableScenarios(store)
	}

	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("labor ledger server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseWeekday(s string) time.Weekday {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monday":
		return time.Monday
	case "tuesday":
		return time.Tuesday
	case "wednesday":
		return time.Wednesday
	case "thursday":
		return time.Thursday
	case "friday":
		return time.Friday
	case "saturday":
		return time.Saturday
	default:
		return time.Sunday
	}
}
