package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"volatility-observer/src/logger"
	"volatility-observer/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	sqlStore
	Schema string
}

// -----------------------------------------------------------------------------

// NewPostgresDB stores tables in a schema named after the running executable.
func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return newPostgresDB(cfg, log, name), nil
}

func newPostgresDB(cfg *models.MConfig, log *logger.Logger, schema string) *PostgresDB {
	d := &PostgresDB{Schema: schema}
	d.sqlStore = sqlStore{
		Config: cfg,
		Logger: log,
		dialect: dialect{
			realType: "DOUBLE PRECISION",
			intType:  "BIGINT",
			table: func(name string) string {
				return fmt.Sprintf(`"%s"."%s"`, schema, name)
			},
			placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		},
	}
	return d
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	// Resolve schema.table.field references so later logic only sees plain currencies
	for i := range d.Config.DataSource.Sources {
		srcCfg := &d.Config.DataSource.Sources[i]
		currencies, err := d.ResolveAndRegisterCurrencies(srcCfg.Name, srcCfg.Currencies)
		if err != nil {
			d.Logger.Error("PostgresDB: Failed to resolve currencies for source %s: %v", srcCfg.Name, err)
		} else {
			srcCfg.Currencies = currencies
		}
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}
