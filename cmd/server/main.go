/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the withdrawal bands server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Import seed mandates (optional)
  4. Create API handler and scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -db         SQLite database path (default: withdrawals.db)
              Use ":memory:" for in-memory database
  -schedule   Cron expression for the withdrawal scheduler (default: "0 6 * * *")
  -horizon    Days past the band's lead a withdrawal is recorded (default: 10)
  -scheduler  Enable the background scheduler (default: true)
  -seed       JSON file with an array of mandates to import at startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/withdrawals.db" -seed=mandates.json
  ./server -db=":memory:" -schedule="0 6 * * 1-5" -horizon=31

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Withdrawal scheduler
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/withdrawal-bands/api"
	"github.com/warp/withdrawal-bands/factory"
	"github.com/warp/withdrawal-bands/mandate"
	"github.com/warp/withdrawal-bands/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "withdrawals.db", "SQLite database path")
	schedule := flag.String("schedule", api.DefaultSchedule, "Cron expression for the withdrawal scheduler")
	horizon := flag.Int("horizon", api.DefaultHorizon, "Days past the band's lead a withdrawal is recorded")
	enabled := flag.Bool("scheduler", true, "Enable the background scheduler")
	seed := flag.String("seed", "", "JSON file of mandates to import at startup")
	flag.Parse()

	if *horizon < 0 {
		log.Fatalf("Invalid horizon %d: must be zero or more days", *horizon)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	svc := mandate.NewService(store)
	handler := api.NewHandler(store, svc)

	if *seed != "" {
		if err := importMandates(context.Background(), handler.Factory, svc, *seed); err != nil {
			log.Fatalf("Failed to import mandates: %v", err)
		}
	}

	// Scheduler
	scheduler, err := api.NewWithdrawalScheduler(store, svc, *schedule)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	scheduler.Horizon = *horizon
	scheduler.Enabled = *enabled
	handler.AttachScheduler(scheduler)
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func importMandates(ctx context.Context, f *factory.MandateFactory, svc *mandate.Service, path string) error {
	mandates, err := f.LoadFile(path)
	if err != nil {
		return err
	}
	imported := 0
	for _, m := range mandates {
		_, err := svc.CreateMandate(ctx, m)
		switch {
		case errors.Is(err, mandate.ErrMandateExists):
			log.Printf("Mandate %s already exists, keeping stored version", m.ID)
		case err != nil:
			return fmt.Errorf("mandate %s: %w", m.ID, err)
		default:
			imported++
		}
	}
	log.Printf("Imported %d of %d mandates from %s", imported, len(mandates), path)
	return nil
}
