package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"volatility-observer/src/analysis"
	"volatility-observer/src/helpers"
	"volatility-observer/src/interfaces"
	"volatility-observer/src/logger"
	"volatility-observer/src/models"
	"volatility-observer/src/utils"
)

const cleanupInterval = time.Hour

// -----------------------------------------------------------------------------

// runDataLoop handles the main data processing loop (direct push model)
func runDataLoop(
	ctx context.Context,
	updatesChan <-chan map[string][]models.MVolatilityPoint,
	db interfaces.IDatabase,
	analyzer *analysis.AnalysisFacade,
	memManager *utils.MemoryManager,
	srv interfaces.IDataExchanger,
	config *models.MConfig,
	appLogger *logger.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	cleanup := time.NewTicker(cleanupInterval)
	defer cleanup.Stop()

	errHandler := helpers.NewErrorHandler(logger.NewLogger(config, "ErrorHandler"))

	appLogger.Info("Starting data loop (Push Model)...")

	for {
		select {
		case updates, ok := <-updatesChan:
			if !ok {
				appLogger.Info("Data source closed channel.")
				return
			}

			startProcess := time.Now().UTC()
			appLogger.Info("Received update for %d currencies", len(updates))

			var newPoints []models.MVolatilityPoint
			currencies := make([]string, 0, len(updates))
			for cur, points := range updates {
				newPoints = append(newPoints, points...)
				currencies = append(currencies, cur)
			}
			memManager.AddDataPoints(newPoints)

			if err := errHandler.ExecuteWithRetry(ctx, "save volatility points", func() error {
				return db.SaveVolatilityPointsBulk(newPoints)
			}, 3); err != nil {
				appLogger.Error("Dropping %d points from storage: %v", len(newPoints), err)
			}

			// Snapshots use the full in-memory history of updated currencies
			snapshots := analyzer.BuildSnapshots(memManager, currencies)
			if err := errHandler.ExecuteWithRetry(ctx, "save snapshots", func() error {
				return db.SaveSnapshots(snapshotList(snapshots))
			}, 3); err != nil {
				appLogger.Error("Snapshots not stored: %v", err)
			}

			state := &models.MLatestData{
				Type:      "UPDATE",
				Snapshots: snapshots,
				Timestamp: time.Now().UTC().Unix(),
				ProcessingMetrics: models.MProcessingMetrics{
					AnalysisTimeSeconds: time.Since(startProcess).Seconds(),
					ValidCurrencies:     len(snapshots),
					PointsReceived:      len(newPoints),
				},
			}

			srv.UpdateState(state)
			srv.Broadcast(state)

			checkStorageErrors(errHandler, appLogger)

		case <-cleanup.C:
			if err := db.CleanupOldData(); err != nil {
				appLogger.Error("Cleanup failed: %v", err)
			}
			memManager.CheckMemoryLimits()

		case <-ctx.Done():
			return

		case <-quit:
			appLogger.Info("Shutting down...")
			return
		}
	}
}

// -----------------------------------------------------------------------------

// checkStorageErrors reports and clears a run of storage failures. The loop
// keeps serving in-memory data while storage is down.
func checkStorageErrors(errHandler *helpers.ErrorHandler, appLogger *logger.Logger) bool {
	if !errHandler.TooManyErrors() {
		return false
	}
	appLogger.Error("Storage keeps failing (%d errors)", errHandler.ErrorCount)
	errHandler.ResetErrorCount()
	return true
}
