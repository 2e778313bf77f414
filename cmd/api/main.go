package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/cors"

	"github.com/pagedeck/pagedeck/backend/internal/handlers"
	"github.com/pagedeck/pagedeck/backend/internal/insights"
	"github.com/pagedeck/pagedeck/backend/internal/middleware"
)

func envInterval(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var secs int
	if _, err := fmt.Sscanf(v, "%d", &secs); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Root context for background workers and graceful shutdown
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Run migrations on startup
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to init migration driver: %v", err)
	}
	migrator, err := migrate.NewWithDatabaseInstance("file://db/migrations", "postgres", driver)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}
	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Database migration failed: %v", err)
	}
	log.Println("Database is up-to-date")

	h := handlers.New(db)

	r := mux.NewRouter()
	handlers.RegisterRoutes(h, r)

	guard := middleware.NewSessionGuard()

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(guard.Middleware(r))

	port := os.Getenv("PORT")
	if port == "" {
		port = "18920"
	}

	srv := &http.Server{
		Handler:      handler,
		Addr:         ":" + port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	// Handle graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Background: scheduled post publisher
	{
		enabled := os.Getenv("SCHEDULED_PUBLISHER_ENABLED")
		if enabled == "" || enabled == "true" {
			interval := envInterval("SCHEDULED_PUBLISHER_INTERVAL_SECONDS", time.Minute)
			go h.StartScheduledPostsWorker(rootCtx, interval)
		} else {
			log.Printf("[SchedPublisher] disabled via SCHEDULED_PUBLISHER_ENABLED=%q", enabled)
		}
	}

	// Background: per-platform analytics sync workers
	{
		enabled := os.Getenv("INSIGHT_SYNC_ENABLED")
		if enabled == "" || enabled == "true" {
			interval := envInterval("INSIGHT_SYNC_INTERVAL_SECONDS", 15*time.Minute)
			runner := &insights.Runner{DB: db, Client: http.DefaultClient, Logger: log.Default()}
			for _, p := range insights.AllProviders() {
				go runner.StartProviderWorker(rootCtx, p, interval)
			}
		} else {
			log.Printf("[InsightWorker] disabled via INSIGHT_SYNC_ENABLED=%q", enabled)
		}
	}

	go func() {
		<-stop
		log.Println("Shutting down server...")
		cancel()
		ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
	log.Println("Server stopped")
}
