package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gluk-w/bothive/internal/config"
	"github.com/gluk-w/bothive/internal/crypto"
	"github.com/gluk-w/bothive/internal/database"
	"github.com/gluk-w/bothive/internal/engine"
	"github.com/gluk-w/bothive/internal/fleet"
	"github.com/gluk-w/bothive/internal/handlers"
	"github.com/gluk-w/bothive/internal/logging"
	"github.com/gluk-w/bothive/internal/logutil"
	"github.com/gluk-w/bothive/internal/middleware"
	"github.com/gluk-w/bothive/internal/registry"
	"github.com/gluk-w/bothive/internal/store"
	"github.com/gluk-w/bothive/internal/supervisor"
	"github.com/gluk-w/bothive/internal/sweeper"
)

func main() {
	config.Load()
	logging.Init()
	defer logging.Close()

	codec, err := crypto.Load(config.Cfg.DataPath)
	if err != nil {
		log.Fatalf("Crypto init: %v", err)
	}

	var (
		tenants registry.Registry
		creds   store.Store
	)
	switch config.Cfg.StorageBackend {
	case "database":
		if err := database.Init(); err != nil {
			log.Fatalf("Database init: %v", err)
		}
		defer database.Close()
		tenants = registry.NewDB()
		creds = store.NewDB(codec)
	case "filesystem":
		tenants, err = registry.NewFS(config.Cfg.DataPath)
		if err != nil {
			log.Fatalf("Registry init: %v", err)
		}
		creds, err = store.NewFS(config.Cfg.DataPath, codec)
		if err != nil {
			log.Fatalf("Store init: %v", err)
		}
	default:
		log.Fatalf("Unknown storage backend %q (want database or filesystem)", config.Cfg.StorageBackend)
	}

	sup := supervisor.New(
		&engine.GatewayDialer{URL: config.Cfg.GatewayURL},
		creds,
		tenants,
		supervisor.Config{
			InitialBackoff: config.Cfg.ReconnectInitialBackoff,
			MaxBackoff:     config.Cfg.ReconnectMaxBackoff,
			MaxRetries:     config.Cfg.ReconnectMaxRetries,
		},
	)
	handlers.Sup = sup
	handlers.Tenants = tenants
	handlers.Creds = creds

	if config.Cfg.ImportFile != "" {
		importFleet(sup, tenants, config.Cfg.ImportFile)
	}

	resumeBots(sup, tenants)

	sweep := sweeper.New(sup, tenants, creds, config.Cfg.Retention)
	if err := sweep.Start(config.Cfg.SweepSchedule); err != nil {
		log.Fatalf("Sweeper init: %v", err)
	}

	limiter := middleware.NewRateLimiter(15*time.Minute, 5)

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", handlers.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(limiter.Limit)
		r.Post("/api/connect", handlers.ConnectBot)
	})

	r.Get("/api/users", handlers.ListUsers)
	r.Get("/api/bots/{botName}/events", handlers.BotEvents)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Delete("/api/admin/bots/{botName}", handlers.DeleteBot)
		r.Delete("/api/admin/bots", handlers.DeleteAllBots)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Cfg.Port),
		Handler: r,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s (backend=%s)", srv.Addr, config.Cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	sweep.Stop()
	sup.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

// importFleet applies the declarative enrollment file. Bots already in
// the registry are skipped; new ones are enrolled exactly as if they had
// come through POST /api/connect.
func importFleet(sup *supervisor.Supervisor, tenants registry.Registry, path string) {
	bots, err := fleet.Load(path)
	if err != nil {
		log.Fatalf("Fleet import: %v", err)
	}

	imported := 0
	for _, b := range bots {
		if _, err := tenants.Get(b.BotName); err == nil {
			continue
		} else if !errors.Is(err, registry.ErrNotFound) {
			log.Fatalf("Fleet import: lookup %s: %v", logutil.SanitizeForLog(b.BotName), err)
		}
		rec := registry.Record{
			BotName:        b.BotName,
			OwnerNumber:    b.OwnerNumber,
			SessionSeed:    b.SessionID,
			Status:         registry.StatusConnecting,
			LastActivityAt: time.Now(),
		}
		if err := tenants.Upsert(rec); err != nil {
			log.Fatalf("Fleet import: register %s: %v", logutil.SanitizeForLog(b.BotName), err)
		}
		imported++
	}
	log.Printf("Fleet import: %d new bots from %s", imported, path)
}

// resumeBots restarts every bot that was connected or connecting when the
// process last stopped. Failures are logged per bot and do not block the
// rest of the fleet or the server start.
func resumeBots(sup *supervisor.Supervisor, tenants registry.Registry) {
	recs, err := tenants.List()
	if err != nil {
		log.Fatalf("Resume: list bots: %v", err)
	}

	resumed := 0
	for _, rec := range recs {
		if rec.Status != registry.StatusConnected && rec.Status != registry.StatusConnecting {
			continue
		}
		if err := sup.Start(rec.BotName, rec.OwnerNumber, rec.SessionSeed); err != nil {
			log.Printf("Resume: start %s: %v", logutil.SanitizeForLog(rec.BotName), err)
			continue
		}
		resumed++
	}
	log.Printf("Resumed %d of %d bots", resumed, len(recs))
}
