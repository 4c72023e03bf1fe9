package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dinehub/leaderboard-backend/api/routes"
	"github.com/dinehub/leaderboard-backend/internal/config"
	"github.com/dinehub/leaderboard-backend/internal/handlers"
	"github.com/dinehub/leaderboard-backend/internal/scheduler"
	"github.com/dinehub/leaderboard-backend/internal/services"
	"github.com/joho/godotenv"

	mongorepo "github.com/dinehub/leaderboard-backend/internal/repositories/mongodb"
	mongodb "github.com/dinehub/leaderboard-backend/pkg/mongodb"
)

func main() {
	// .env is optional; real deployments use environment variables
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	mongoClient, err := mongodb.NewClient(cfg.MongoDB.URI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	db := mongoClient.Database(cfg.MongoDB.Database)

	// Repositories
	cycleRepo := mongorepo.NewCycleRepository(db)
	participantRepo := mongorepo.NewParticipantRepository(db)
	winnerRepo := mongorepo.NewWinnerRepository(db)
	ledgerRepo := mongorepo.NewPointTransactionRepository(db)
	userRepo := mongorepo.NewUserRepository(db)
	configRepo := mongorepo.NewSystemConfigRepository(db)
	adminRepo := mongorepo.NewAdminUserRepository(db)

	// Services
	cycleService := services.NewCycleService(cycleRepo, participantRepo, winnerRepo, ledgerRepo, userRepo, configRepo, nil, nil)
	sweepService := services.NewSweepService(cycleRepo, cycleService, configRepo, nil, 0)
	authService := services.NewAuthService(adminRepo, cfg)

	// Handlers
	handlerDeps := routes.HandlerDependencies{
		AuthHandler:  handlers.NewAuthHandler(authService),
		CycleHandler: handlers.NewCycleHandler(cycleService, sweepService),
	}

	router := routes.SetupRouter(cfg, handlerDeps)

	// Periodic trigger; the sweep endpoint remains available for manual runs
	// and external cron even when this is disabled.
	var sweepScheduler *scheduler.SweepScheduler
	if cfg.Sweep.Enabled {
		sweepScheduler = scheduler.NewSweepScheduler(sweepService, cfg.Sweep.CronSpec)
		if err := sweepScheduler.Start(); err != nil {
			log.Fatalf("Failed to start sweep scheduler: %v", err)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	log.Printf("Server starting on port %s", cfg.Server.Port)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if sweepScheduler != nil {
		sweepScheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Server exiting")
}
