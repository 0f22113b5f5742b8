package main

import (
	"fmt"

	"volatility-observer/src/analysis"
	"volatility-observer/src/config"
	datasource "volatility-observer/src/data_source"
	"volatility-observer/src/data_source/deribit"
	"volatility-observer/src/interfaces"
	"volatility-observer/src/logger"
	"volatility-observer/src/models"
	"volatility-observer/src/network"
	"volatility-observer/src/storage"
)

// -----------------------------------------------------------------------------

// setupDatabase initializes the database connection based on config
func setupDatabase(config *models.MConfig, appLogger *logger.Logger) (interfaces.IDatabase, error) {
	var db interfaces.IDatabase
	var err error

	switch config.Storage.DBType {
	case "postgres":
		pgLogger := logger.NewLogger(config, "PostgresDB")
		db, err = storage.NewPostgresDB(config, pgLogger)
	default:
		// Default to SQLite
		sqliteLogger := logger.NewLogger(config, "SQLiteDB")
		db, err = storage.NewAsyncSQLiteDB(config, sqliteLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
		return nil, err
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
		return nil, err
	}
	return db, nil
}

// -----------------------------------------------------------------------------

// setupNetwork initializes the network manager
func setupNetwork(config *models.MConfig) interfaces.INetworkManager {
	networkLogger := logger.NewLogger(config, "NetworkManager")
	return network.NewAsyncNetworkManager(config, networkLogger)
}

// -----------------------------------------------------------------------------

// setupDataSources builds one source per configured entry, records the
// tracked currencies and wraps everything in a manager.
func setupDataSources(
	config *models.MConfig,
	db interfaces.IDatabase,
	appLogger *logger.Logger,
	networkManager interfaces.INetworkManager,
) (*datasource.MultiSourceManager, error) {
	var sources []interfaces.IDataSource
	appLogger.Info("Initializing data sources...")

	for _, srcCfg := range config.DataSource.Sources {
		if len(srcCfg.Currencies) == 0 {
			appLogger.Info("Source %s: No currencies to fetch from provider.", srcCfg.Name)
			continue
		}

		switch srcCfg.Type {
		case "deribit":
			s := deribit.NewDeribitSource(config, srcCfg, networkManager)
			sources = append(sources, s)
			appLogger.Info("Added source: %s with %d currencies (IsRealTime: %v)", srcCfg.Name, len(srcCfg.Currencies), s.IsRealTime())
		default:
			appLogger.Warning("Unknown source type in config: %s", srcCfg.Type)
			continue
		}

		if err := db.RegisterCurrencies(srcCfg.Name, srcCfg.Currencies); err != nil {
			appLogger.Warning("Failed to register currencies for %s: %v", srcCfg.Name, err)
		}
	}

	if len(sources) == 0 {
		appLogger.Critical("No valid data sources initialized. Exiting.")
		return nil, fmt.Errorf("no valid data sources")
	}

	appLogger.Info("Initializing MultiSourceManager for %d sources.", len(sources))
	return datasource.NewMultiSourceManager(sources, logger.NewLogger(config, "MultiSourceManager")), nil
}

// -----------------------------------------------------------------------------

// setupAnalysis initializes the analysis facade
func setupAnalysis(conf *config.Config) *analysis.AnalysisFacade {
	analysisLogger := logger.NewLogger(conf, "Analysis")
	return analysis.NewAnalysisFacade(conf.NormalizeOptions(), analysisLogger)
}
