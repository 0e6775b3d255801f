package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/thesavant42/dragos-portal/internal/models"

	_ "modernc.org/sqlite"
)

// timestampFormat is how run dates are stored in the logs table
const timestampFormat = "2006-01-02T15:04:05Z"

// DB wraps the SQLite local cache connection
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the cache database and initializes the schema
func New(dbPath string) (*DB, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := conn.Exec(createLogsTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create logs schema: %w", err)
	}

	if _, err := conn.Exec(createReportsTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create reports schema: %w", err)
	}

	if _, err := conn.Exec(createIndicatorsTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create indicators schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// UpsertIndicators inserts or replaces indicators keyed by id
func (db *DB) UpsertIndicators(records []models.IndicatorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertIndicator)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.Exec(
			r.ID,
			r.Value,
			r.IndicatorType,
			r.Comment,
			r.FirstSeen,
			r.LastSeen,
			r.UpdatedAt,
			r.Confidence,
			r.KillChain,
			r.ActivityGroups,
			r.AttackTechniques,
			r.PreAttackTechniques,
		)
		if err != nil {
			return fmt.Errorf("failed to insert indicator %d: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpsertReports inserts or replaces reports keyed by serial
func (db *DB) UpsertReports(records []models.ReportRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertReport)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.Exec(
			r.Serial,
			r.Type,
			r.TLPLevel,
			r.UpdatedAt,
			r.ReleaseDate,
			r.ThreatLevel,
			r.IOCCount,
			r.Title,
			r.ExecutiveSummary,
			r.Tags,
		)
		if err != nil {
			return fmt.Errorf("failed to insert report %s: %w", r.Serial, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// LastRun returns the date of the most recent successful sync.
// ok is false when no run has been logged yet.
func (db *DB) LastRun() (time.Time, bool, error) {
	var date string
	err := db.conn.QueryRow(selectLastRun).Scan(&date)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil // No previous run
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get last run: %w", err)
	}

	ts, err := parseTimestamp(date)
	if err != nil {
		return time.Time{}, false, err
	}
	return ts, true, nil
}

// AppendRunLog records a successful sync and the number of indicators it fetched
func (db *DB) AppendRunLog(date time.Time, count int) error {
	_, err := db.conn.Exec(insertLog, date.UTC().Format(timestampFormat), count)
	if err != nil {
		return fmt.Errorf("failed to append run log: %w", err)
	}
	return nil
}

// PurgeIndicators deletes every cached indicator
func (db *DB) PurgeIndicators() error {
	_, err := db.conn.Exec(deleteIndicators)
	if err != nil {
		return fmt.Errorf("failed to purge indicators: %w", err)
	}
	return nil
}

// CountIndicators returns the number of cached indicators
func (db *DB) CountIndicators() (int, error) {
	var total int
	if err := db.conn.QueryRow(selectIndicatorCount).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count indicators: %w", err)
	}
	return total, nil
}

// CountReports returns the number of cached reports
func (db *DB) CountReports() (int, error) {
	var total int
	if err := db.conn.QueryRow(selectReportCount).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return total, nil
}

// GetIndicator returns one cached indicator by id
func (db *DB) GetIndicator(id int64) (*models.IndicatorRecord, error) {
	var r models.IndicatorRecord
	err := db.conn.QueryRow(selectIndicator, id).Scan(
		&r.ID, &r.Value, &r.IndicatorType, &r.Comment, &r.FirstSeen, &r.LastSeen, &r.UpdatedAt,
		&r.Confidence, &r.KillChain, &r.ActivityGroups, &r.AttackTechniques, &r.PreAttackTechniques,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get indicator %d: %w", id, err)
	}
	return &r, nil
}

// GetReport returns one cached report by serial
func (db *DB) GetReport(serial string) (*models.ReportRecord, error) {
	var r models.ReportRecord
	err := db.conn.QueryRow(selectReport, serial).Scan(
		&r.Serial, &r.Type, &r.TLPLevel, &r.UpdatedAt, &r.ReleaseDate, &r.ThreatLevel,
		&r.IOCCount, &r.Title, &r.ExecutiveSummary, &r.Tags,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %s: %w", serial, err)
	}
	return &r, nil
}

// ListReports returns every cached report, newest release first
func (db *DB) ListReports() ([]models.ReportRecord, error) {
	rows, err := db.conn.Query(selectReports)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.ReportRecord
	for rows.Next() {
		var r models.ReportRecord
		if err := rows.Scan(
			&r.Serial, &r.Type, &r.TLPLevel, &r.UpdatedAt, &r.ReleaseDate, &r.ThreatLevel,
			&r.IOCCount, &r.Title, &r.ExecutiveSummary, &r.Tags,
		); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// TypeCount is the number of cached indicators of one type
type TypeCount struct {
	IndicatorType string
	Count         int
}

// IndicatorTypeCounts groups cached indicators by type, largest first
func (db *DB) IndicatorTypeCounts() ([]TypeCount, error) {
	rows, err := db.conn.Query(selectIndicatorTypeCounts)
	if err != nil {
		return nil, fmt.Errorf("failed to count indicator types: %w", err)
	}
	defer rows.Close()

	var counts []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.IndicatorType, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan indicator type count: %w", err)
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

// RunLog is one entry in the sync run log
type RunLog struct {
	Date  time.Time
	Count int
}

// RecentRuns returns up to limit run log entries, newest first
func (db *DB) RecentRuns(limit int) ([]RunLog, error) {
	rows, err := db.conn.Query(selectRunLogs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	defer rows.Close()

	var runs []RunLog
	for rows.Next() {
		var date string
		var run RunLog
		if err := rows.Scan(&date, &run.Count); err != nil {
			return nil, fmt.Errorf("failed to scan run log: %w", err)
		}
		if run.Date, err = parseTimestamp(date); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// parseTimestamp parses SQLite timestamp formats
func parseTimestamp(ts string) (time.Time, error) {
	formats := []string{
		timestampFormat,
		"2006-01-02 15:04:05.999999",
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
	}
	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", ts)
}
