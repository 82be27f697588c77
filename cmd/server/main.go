/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance aggregation engine: store,
  settings, error recorder, job launcher, scheduler, and the HTTP launch
  surface. Handles graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load and validate settings (fatal on any out-of-range value)
  3. Initialize SQLite store and the error log
  4. Build launcher, scheduler, router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -db         SQLite database path (default: attendance.db)
              Use ":memory:" for an in-memory database
  -settings   Optional YAML settings file (defaults apply when omitted)
  -errorlog   Error log path (default: attendance-errors.log)
  -schedule   Scheduler interval, 0 disables (default: 1h)

EXAMPLES:
  ./server -db=./data/attendance.db -settings=./settings.yaml
  ./server -db=":memory:" -schedule=0

SEE ALSO:
  - api/server.go: Router configuration
  - jobs/launcher.go: Job execution
  - settings/settings.go: Tuning parameters
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/joblog"
	"github.com/warp/attendance-engine/jobs"
	"github.com/warp/attendance-engine/settings"
	"github.com/warp/attendance-engine/store/sqlite"
)

func main() {
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "attendance.db", "SQLite database path")
	settingsPath := flag.String("settings", "", "YAML settings file (optional)")
	errorLogPath := flag.String("errorlog", "attendance-errors.log", "error log path")
	schedule := flag.Duration("schedule", time.Hour, "scheduler interval, 0 disables")
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)

	// Settings: defaults unless a file is given; invalid values are fatal.
	cfg := settings.Default()
	if *settingsPath != "" {
		var err error
		cfg, err = settings.Load(*settingsPath)
		if err != nil {
			logger.WithError(err).Fatal("failed to load settings")
		}
	}

	st, err := sqlite.New(*dbPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database")
	}
	defer st.Close()

	recorder, err := joblog.NewFileRecorder(*errorLogPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to open error log")
	}
	defer recorder.Close()

	launcher, err := jobs.NewLauncher(st, cfg, recorder, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to build launcher")
	}

	scheduler := api.NewScheduler(launcher, logger)
	if *schedule <= 0 {
		scheduler.Enabled = false
	} else {
		scheduler.CheckInterval = *schedule
	}
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(st, launcher, recorder)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Timeout() + 15*time.Second, // sync job runs can be slow
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("server forced to shutdown")
	}
	logger.Info("server stopped")
}
