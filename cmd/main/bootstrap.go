package main

import (
	"context"
	"time"

	"volatility-observer/src/analysis"
	"volatility-observer/src/interfaces"
	"volatility-observer/src/logger"
	"volatility-observer/src/models"
	"volatility-observer/src/utils"
)

// performInitialLoad warms the memory manager from storage, fetches fresh
// history and builds the first server state.
func performInitialLoad(
	ctx context.Context,
	source interfaces.IDataSource,
	db interfaces.IDatabase,
	analyzer *analysis.AnalysisFacade,
	memManager *utils.MemoryManager,
	config *models.MConfig,
	appLogger *logger.Logger,
) (*models.MLatestData, error) {
	start := time.Now()
	currencies := source.Symbols()

	// Stored history first, so a failed fetch still leaves something to serve
	now := time.Now().UTC()
	since := map[string]int64{
		models.SeriesDvol:                 now.AddDate(0, 0, -(utils.DvolHistoryDays + 1)).Unix(),
		models.SeriesHistoricalVolatility: now.AddDate(0, 0, -config.DataSource.DataRetentionDays).Unix(),
		models.SeriesDvolIndex:            now.AddDate(0, 0, -utils.DefaultRetentionDays).Unix(),
	}
	restored := 0
	for _, cur := range currencies {
		for series, ts := range since {
			points, err := db.LoadVolatilityPoints(cur, series, ts)
			if err != nil {
				appLogger.Warning("Failed to load stored %s for %s: %v", series, cur, err)
				continue
			}
			restored += memManager.AddDataPoints(points)
		}
	}
	appLogger.Info("Restored %d stored points for %d currencies", restored, len(currencies))

	appLogger.Info("Fetching initial data...")
	initialData, fetchErr := source.FetchInitialData(ctx)
	if fetchErr != nil {
		appLogger.Warning("Initial fetch failed: %v", fetchErr)
	}

	var allPoints []models.MVolatilityPoint
	for _, points := range initialData {
		allPoints = append(allPoints, points...)
	}
	memManager.AddDataPoints(allPoints)
	if err := db.SaveVolatilityPointsBulk(allPoints); err != nil {
		appLogger.Error("Failed to save initial points: %v", err)
	}

	snapshots := analyzer.BuildSnapshots(memManager, currencies)
	if err := db.SaveSnapshots(snapshotList(snapshots)); err != nil {
		appLogger.Error("Failed to save initial snapshots: %v", err)
	}

	appLogger.Info("Initialization complete.")

	return &models.MLatestData{
		Type:      "INITIAL",
		Snapshots: snapshots,
		Timestamp: time.Now().UTC().Unix(),
		ProcessingMetrics: models.MProcessingMetrics{
			AnalysisTimeSeconds: time.Since(start).Seconds(),
			ValidCurrencies:     len(snapshots),
			PointsReceived:      len(allPoints),
		},
	}, fetchErr
}

// -----------------------------------------------------------------------------

func snapshotList(snapshots map[string]models.MVolatilitySnapshot) []models.MVolatilitySnapshot {
	list := make([]models.MVolatilitySnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		list = append(list, s)
	}
	return list
}
