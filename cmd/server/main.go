/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the POS ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, POS_* environment, then flags)
  2. Initialize SQLite store (runs migrations)
  3. Build the ledger engine in the shop's time zone
  4. Create API handler and router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port       HTTP server port
  -db         SQLite database path ("" keeps POS_DB_PATH)
              Use ":memory:" for in-memory database
  -log-level  logrus level (debug, info, warn, error)

ENVIRONMENT:
  POS_DB_PATH       default negocio.db
  POS_PORT          default 8080
  POS_TIMEZONE      IANA zone for day boundaries, default Local
  POS_MARGIN_RATIO  profit estimate for uncosted sales, default 0.25
  POS_LOG_LEVEL     default info
  POS_CORS_ORIGINS  comma separated

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/negocio.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run in Buenos Aires time on a different port
  POS_TIMEZONE=America/Argentina/Buenos_Aires ./server -port=3000

SEE ALSO:
  - config/config.go: Environment configuration
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Embedded zone database so POS_TIMEZONE works on minimal hosts.
	_ "time/tzdata"

	"github.com/comideria/pos-ledger/api"
	"github.com/comideria/pos-ledger/config"
	"github.com/comideria/pos-ledger/ledger"
	"github.com/comideria/pos-ledger/store/sqlite"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags
	port := flag.String("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	logLevel := flag.String("log-level", cfg.LogLevel.String(), "Log level")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level: %v\n", err)
		os.Exit(2)
	}
	logger := config.NewLogger(level)

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	engine := ledger.New(store, ledger.Options{
		Location:    cfg.Location,
		MarginRatio: &cfg.MarginRatio,
	})

	handler := api.NewHandler(engine, store, logger, cfg.Location)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"addr":     server.Addr,
			"db":       *dbPath,
			"timezone": cfg.Location.String(),
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
		return
	}

	logger.Info("server stopped")
}
