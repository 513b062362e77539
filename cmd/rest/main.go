package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"narrative-engine-be/internal/bootstrap"
	"narrative-engine-be/internal/config"
	"narrative-engine-be/internal/server"
	"narrative-engine-be/internal/tracer"
	"narrative-engine-be/pkg/database"
)

func main() {
	// 0. Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDB(database.GormConfig{
		Driver:     cfg.Database.Driver,
		DSN:        cfg.Database.Connection,
		SQLitePath: cfg.Database.SQLitePath,
		LogSQL:     cfg.Database.LogSQL,
	})
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Start Background Services
	go container.WebSocketHub.Run(ctx)
	go func() {
		log.Println("Background: Starting Progression Service...")
		if err := container.ProgressionService.Consume(ctx); err != nil {
			log.Printf("Background Progression Error: %v", err)
		}
	}()
	if err := container.SessionSyncService.Start(); err != nil {
		log.Printf("Background Session Sync Error: %v", err)
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
