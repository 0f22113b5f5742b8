package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"

	"volatility-observer/src/config"
	"volatility-observer/src/helpers"
	"volatility-observer/src/logger"
	"volatility-observer/src/models"
	"volatility-observer/src/server"
	"volatility-observer/src/utils"
)

func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	logger.SetDefaults(conf.LogLevel, conf.LogFormat)
	appLogger := logger.NewLogger(conf, conf.Name)

	// 4. Setup Components
	db, err := setupDatabase(conf.MConfig, appLogger)
	if err != nil {
		os.Exit(1)
	}
	defer db.Close()

	networkManager := setupNetwork(conf.MConfig)
	multiSource, err := setupDataSources(conf.MConfig, db, appLogger, networkManager)
	if err != nil {
		os.Exit(1)
	}

	analyzer := setupAnalysis(conf)

	// 5. Memory Manager
	maxPoints := utils.CalculateMaxDataPoints(conf.DataSource.DataRetentionDays)
	memLimit := helpers.GetRecommendedMemoryLimit(appLogger)
	appLogger.Info("Memory Limit set to: %d MB", memLimit)
	memManager := utils.NewMemoryManager(memLimit, maxPoints)

	srv := server.NewFastAPIServer(conf.MConfig, memManager, multiSource, analyzer, logger.NewLogger(conf, "FastAPIServer"))

	// Lifecycle Management
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. Bootstrap (Initial Load)
	initialState, err := performInitialLoad(ctx, multiSource, db, analyzer, memManager, conf.MConfig, appLogger)
	if err != nil {
		appLogger.Warning("Bootstrap completed with warnings: %v", err)
	}

	// 7. Update Server State with Initial Data
	srv.UpdateState(initialState)

	// 8. Start Servers
	grpcServer := startServers(srv, multiSource, analyzer, conf, *configPath, appLogger)

	// 9. Run Main Processing Loop
	appLogger.Info("Starting Main Data Loop...")

	var wg sync.WaitGroup
	updatesChan := make(chan map[string][]models.MVolatilityPoint, 500)

	// Start Sources (Context-Based Direct Push)
	if err := multiSource.Start(ctx, updatesChan, &wg); err != nil {
		appLogger.Critical("Failed to start data sources: %v", err)
	}

	// Wait for cleanup on exit
	defer func() {
		appLogger.Info("Waiting for sources to stop...")
		multiSource.Stop()
		cancel()
		wg.Wait()
		close(updatesChan)
		if err := multiSource.Close(); err != nil {
			appLogger.Error("Releasing sources failed: %v", err)
		}

		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		if err := srv.Stop(); err != nil {
			appLogger.Error("Server shutdown failed: %v", err)
		}
		appLogger.Info("Shutdown complete.")
	}()

	// Run Loop (Blocking)
	runDataLoop(ctx, updatesChan, db, analyzer, memManager, srv, conf.MConfig, appLogger)
}
