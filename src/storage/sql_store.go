package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"volatility-observer/src/logger"
	"volatility-observer/src/models"
	"volatility-observer/src/utils"
)

// dialect captures the few differences between the SQLite and Postgres backends.
type dialect struct {
	realType    string
	intType     string
	table       func(name string) string
	placeholder func(n int) string
}

// -----------------------------------------------------------------------------

// sqlStore implements the shared part of interfaces.IDatabase over database/sql.
type sqlStore struct {
	Config  *models.MConfig
	DB      *sql.DB
	Logger  *logger.Logger
	dialect dialect
}

// -----------------------------------------------------------------------------

func (s *sqlStore) placeholders(from, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = s.dialect.placeholder(from + i)
	}
	return strings.Join(parts, ", ")
}

// -----------------------------------------------------------------------------

func (s *sqlStore) createTables() error {
	r, i := s.dialect.realType, s.dialect.intType

	statements := []struct {
		name  string
		query string
	}{
		{"volatility_points", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				currency TEXT NOT NULL,
				series TEXT NOT NULL,
				timestamp %s NOT NULL,
				point_date TEXT,
				value %s NOT NULL,
				created_at %s,
				PRIMARY KEY (currency, series, timestamp)
			);
		`, s.dialect.table("volatility_points"), i, r, i)},
		{"volatility_snapshots", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				currency TEXT PRIMARY KEY,
				current_dvol %s,
				dvol_ratio %s,
				dvol_mean %s,
				dvol_std %s,
				dvol_change_percent %s,
				latest_hv %s,
				hv_ratio %s,
				history_points INTEGER,
				updated_at %s
			);
		`, s.dialect.table("volatility_snapshots"), r, r, r, r, r, r, r, i)},
		{"tracked_currencies", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				currency TEXT NOT NULL,
				source_name TEXT NOT NULL,
				index_name TEXT,
				updated_at %s,
				PRIMARY KEY (currency, source_name)
			);
		`, s.dialect.table("tracked_currencies"), i)},
	}

	for _, st := range statements {
		if _, err := s.DB.Exec(st.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.name, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) SaveVolatilityPointsBulk(points []models.MVolatilityPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (currency, series, timestamp, point_date, value, created_at)
		VALUES (%s)
		ON CONFLICT (currency, series, timestamp) DO UPDATE SET
			point_date = excluded.point_date,
			value = excluded.value,
			created_at = excluded.created_at
	`, s.dialect.table("volatility_points"), s.placeholders(1, 6)))
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for _, p := range points {
		created := now
		if !p.CreatedAt.IsZero() {
			created = p.CreatedAt.Unix()
		}
		if _, err := stmt.Exec(p.Currency, p.Series, p.Timestamp, p.Date, p.Value, created); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func nullRatio(r models.MRatio) sql.NullFloat64 {
	v, ok := r.Float()
	return sql.NullFloat64{Float64: v, Valid: ok}
}

func (s *sqlStore) SaveSnapshots(snapshots []models.MVolatilitySnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (currency, current_dvol, dvol_ratio, dvol_mean, dvol_std, dvol_change_percent, latest_hv, hv_ratio, history_points, updated_at)
		VALUES (%s)
		ON CONFLICT (currency) DO UPDATE SET
			current_dvol = excluded.current_dvol,
			dvol_ratio = excluded.dvol_ratio,
			dvol_mean = excluded.dvol_mean,
			dvol_std = excluded.dvol_std,
			dvol_change_percent = excluded.dvol_change_percent,
			latest_hv = excluded.latest_hv,
			hv_ratio = excluded.hv_ratio,
			history_points = excluded.history_points,
			updated_at = excluded.updated_at
	`, s.dialect.table("volatility_snapshots"), s.placeholders(1, 10)))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, snap := range snapshots {
		_, err := stmt.Exec(snap.Currency, snap.CurrentDvol, nullRatio(snap.DvolRatio), snap.DvolMean,
			snap.DvolStd, snap.DvolChangePercent, snap.LatestHV, nullRatio(snap.HVRatio),
			snap.HistoryPoints, snap.UpdatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (s *sqlStore) LoadVolatilityPoints(currency, series string, sinceUnix int64) ([]models.MVolatilityPoint, error) {
	rows, err := s.DB.Query(fmt.Sprintf(`
		SELECT timestamp, point_date, value, created_at FROM %s
		WHERE currency = %s AND series = %s AND timestamp >= %s
		ORDER BY timestamp ASC
	`, s.dialect.table("volatility_points"), s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3)),
		currency, series, sinceUnix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.MVolatilityPoint
	for rows.Next() {
		p := models.MVolatilityPoint{Currency: currency, Series: series}
		var date sql.NullString
		var created sql.NullInt64
		if err := rows.Scan(&p.Timestamp, &date, &p.Value, &created); err != nil {
			return nil, err
		}
		p.Date = date.String
		if p.Date == "" {
			p.Date = models.PointDate(series, p.Timestamp)
		}
		if created.Valid {
			p.CreatedAt = time.Unix(created.Int64, 0).UTC()
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// -----------------------------------------------------------------------------

func (s *sqlStore) RegisterCurrencies(sourceName string, currencies []string) error {
	if len(currencies) == 0 {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (currency, source_name, index_name, updated_at)
		VALUES (%s)
		ON CONFLICT (currency, source_name) DO UPDATE SET
			index_name = excluded.index_name,
			updated_at = excluded.updated_at
	`, s.dialect.table("tracked_currencies"), s.placeholders(1, 4)))
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for _, cur := range currencies {
		index := strings.ToLower(cur) + "dvol_usdc"
		if _, err := stmt.Exec(cur, sourceName, index, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

// TrackedCurrencies lists the currencies registered for a source.
func (s *sqlStore) TrackedCurrencies(sourceName string) ([]string, error) {
	rows, err := s.DB.Query(fmt.Sprintf(
		`SELECT currency FROM %s WHERE source_name = %s ORDER BY currency`,
		s.dialect.table("tracked_currencies"), s.dialect.placeholder(1)), sourceName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var cur string
		if err := rows.Scan(&cur); err != nil {
			return nil, err
		}
		out = append(out, cur)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

// CleanupOldData applies the retention window to intraday series. DVOL history
// is kept for a full year regardless.
func (s *sqlStore) CleanupOldData() error {
	retentionDays := s.Config.DataSource.DataRetentionDays
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -retentionDays).Unix()
	dvolCutoff := now.AddDate(0, 0, -(utils.DvolHistoryDays + 1)).Unix()

	s.Logger.Info("Cleaning up data older than %d days (timestamp < %d)...", retentionDays, cutoff)

	table := s.dialect.table("volatility_points")
	if _, err := s.DB.Exec(fmt.Sprintf(`DELETE FROM %s WHERE series <> %s AND timestamp < %s`,
		table, s.dialect.placeholder(1), s.dialect.placeholder(2)), models.SeriesDvol, cutoff); err != nil {
		s.Logger.Error("Cleanup volatility_points error: %v", err)
		return err
	}
	if _, err := s.DB.Exec(fmt.Sprintf(`DELETE FROM %s WHERE series = %s AND timestamp < %s`,
		table, s.dialect.placeholder(1), s.dialect.placeholder(2)), models.SeriesDvol, dvolCutoff); err != nil {
		s.Logger.Error("Cleanup DVOL history error: %v", err)
		return err
	}

	s.Logger.Info("Cleanup completed")
	return nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}
