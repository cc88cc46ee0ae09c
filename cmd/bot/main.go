package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"straddle-bot-go/internal/config"
	"straddle-bot-go/internal/database"
	"straddle-bot-go/internal/delta"
	"straddle-bot-go/internal/engine"
	"straddle-bot-go/internal/logger"
	"straddle-bot-go/internal/web"
)

func main() {
	// API credentials come from the environment; a local .env is optional.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	store := database.NewStore(db)
	log.Info("Database connection successful and schema migrated.")

	gateway := delta.NewRestClient(&cfg.Delta, log)
	if _, err := gateway.GetWalletBalance(); err != nil {
		log.Warn("Could not verify exchange connectivity", zap.Error(err))
	}

	selector := engine.NewRandomStrikeSelector(50000, 5000)
	priceTick := time.Duration(cfg.Engine.PriceTickSeconds) * time.Second
	eng, err := engine.New(log, gateway, store, selector, priceTick)
	if err != nil {
		log.Fatal("Failed to initialize engine", zap.Error(err))
	}

	server := web.NewServer(cfg.Server.Port, eng, gateway, log)
	server.Start()

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	eng.Start()
	eng.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Web server shutdown failed", zap.Error(err))
	}

	log.Info("Bot has been shut down.")
}
