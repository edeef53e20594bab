// Package storage provides SQLite-backed persistence for ensemble results,
// alerts, and calculation records.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jdals-gh/goalsentry/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/goalsentry/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "goalsentry", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS results (
			id          TEXT PRIMARY KEY,
			match_id    INTEGER NOT NULL,
			minute      INTEGER NOT NULL,
			home_team   TEXT NOT NULL,
			away_team   TEXT NOT NULL,
			home_score  INTEGER NOT NULL,
			away_score  INTEGER NOT NULL,
			probs       TEXT NOT NULL,
			confidence  REAL NOT NULL,
			degraded    INTEGER NOT NULL DEFAULT 0,
			action      TEXT NOT NULL,
			reason      TEXT,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_match ON results(match_id, minute)`,
		`CREATE INDEX IF NOT EXISTS idx_results_created_at ON results(created_at)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id          TEXT PRIMARY KEY,
			match_id    INTEGER NOT NULL,
			minute      INTEGER NOT NULL,
			message     TEXT NOT NULL,
			probability REAL NOT NULL,
			confidence  REAL NOT NULL,
			created_at  INTEGER NOT NULL,
			processed   INTEGER NOT NULL DEFAULT 0,
			attempts    INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at)`,
		`CREATE TABLE IF NOT EXISTS calc_records (
			match_id            INTEGER PRIMARY KEY,
			last_calculation_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// EmitResult persists an ensemble result. Results are append-only; a missed
// write is superseded by the next cycle's recomputation, so callers treat
// errors as best-effort.
func (s *Storage) EmitResult(res *models.EnsembleResult) error {
	probsJSON, err := json.Marshal(res.Probabilities)
	if err != nil {
		return fmt.Errorf("failed to marshal probabilities: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO results
			(id, match_id, minute, home_team, away_team, home_score, away_score,
			 probs, confidence, degraded, action, reason, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		uuid.New().String(), res.MatchID, res.Minute, res.HomeTeam, res.AwayTeam,
		res.HomeScore, res.AwayScore,
		string(probsJSON), res.Confidence, boolToInt(res.Degraded),
		string(res.Recommendation.Action), res.Recommendation.Reason,
		res.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

// ResultsForMatch returns stored results for a match, newest first.
func (s *Storage) ResultsForMatch(matchID int64, limit int) ([]models.EnsembleResult, error) {
	rows, err := s.db.Query(`
		SELECT match_id, minute, home_team, away_team, home_score, away_score,
		       probs, confidence, degraded, action, reason, created_at
		FROM results WHERE match_id = ? ORDER BY created_at DESC LIMIT ?`, matchID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []models.EnsembleResult
	for rows.Next() {
		var r models.EnsembleResult
		var probsJSON, action string
		var degraded int
		var createdAtNano int64
		err := rows.Scan(
			&r.MatchID, &r.Minute, &r.HomeTeam, &r.AwayTeam, &r.HomeScore, &r.AwayScore,
			&probsJSON, &r.Confidence, &degraded, &action, &r.Recommendation.Reason,
			&createdAtNano,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(probsJSON), &r.Probabilities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal probabilities: %w", err)
		}
		r.Degraded = degraded != 0
		r.Recommendation.Action = models.Action(action)
		r.CreatedAt = time.Unix(0, createdAtNano)
		results = append(results, r)
	}
	return results, rows.Err()
}

// SaveAlert inserts a new alert row.
func (s *Storage) SaveAlert(alert *models.Alert) error {
	if err := alert.Validate(); err != nil {
		return fmt.Errorf("invalid alert: %w", err)
	}
	_, err := s.db.Exec(`
		INSERT INTO alerts
			(id, match_id, minute, message, probability, confidence, created_at, processed, attempts)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		alert.ID, alert.MatchID, alert.Minute, alert.Message,
		alert.Probability, alert.Confidence,
		alert.CreatedAt.UnixNano(), boolToInt(alert.Processed), alert.Attempts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// MarkAlertProcessed flags an alert as acknowledged by the notifier.
func (s *Storage) MarkAlertProcessed(id string) error {
	res, err := s.db.Exec(`UPDATE alerts SET processed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark alert processed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("alert not found: %s", id)
	}
	return nil
}

// IncrementAlertAttempts records one failed delivery attempt.
func (s *Storage) IncrementAlertAttempts(id string) error {
	res, err := s.db.Exec(`UPDATE alerts SET attempts = attempts + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment alert attempts: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("alert not found: %s", id)
	}
	return nil
}

// PendingAlerts returns undelivered alerts that still have attempts left.
// Alerts at or past maxAttempts are excluded, which is how exhausted alerts
// are dropped from the retry sweep.
func (s *Storage) PendingAlerts(maxAttempts int) ([]models.Alert, error) {
	rows, err := s.db.Query(`
		SELECT id, match_id, minute, message, probability, confidence, created_at, processed, attempts
		FROM alerts WHERE processed = 0 AND attempts < ? ORDER BY created_at`, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// LoadAlertIDs returns all stored alert IDs, used to seed the dedup registry
// at startup.
func (s *Storage) LoadAlertIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM alerts`)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan alert id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ExpireBefore removes results and alerts older than their cutoffs and
// calculation records older than the record cutoff. Returns removed row
// counts for results, alerts, and records.
func (s *Storage) ExpireBefore(resultCutoff, alertCutoff, recordCutoff time.Time) (int64, int64, int64, error) {
	res, err := s.db.Exec(`DELETE FROM results WHERE created_at < ?`, resultCutoff.UnixNano())
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to expire results: %w", err)
	}
	nResults, _ := res.RowsAffected()

	res, err = s.db.Exec(`DELETE FROM alerts WHERE created_at < ?`, alertCutoff.UnixNano())
	if err != nil {
		return nResults, 0, 0, fmt.Errorf("failed to expire alerts: %w", err)
	}
	nAlerts, _ := res.RowsAffected()

	res, err = s.db.Exec(`DELETE FROM calc_records WHERE last_calculation_at < ?`, recordCutoff.UnixNano())
	if err != nil {
		return nResults, nAlerts, 0, fmt.Errorf("failed to expire calc records: %w", err)
	}
	nRecords, _ := res.RowsAffected()

	return nResults, nAlerts, nRecords, nil
}

// SaveCalculationRecords checkpoints the throttle's records, replacing
// whatever was stored for each match.
func (s *Storage) SaveCalculationRecords(records map[int64]time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for matchID, at := range records {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO calc_records (match_id, last_calculation_at)
			VALUES (?,?)`, matchID, at.UnixNano()); err != nil {
			return fmt.Errorf("failed to save calc record: %w", err)
		}
	}
	return tx.Commit()
}

// LoadCalculationRecords returns all persisted calculation records.
func (s *Storage) LoadCalculationRecords() (map[int64]time.Time, error) {
	rows, err := s.db.Query(`SELECT match_id, last_calculation_at FROM calc_records`)
	if err != nil {
		return nil, fmt.Errorf("failed to query calc records: %w", err)
	}
	defer rows.Close()

	records := make(map[int64]time.Time)
	for rows.Next() {
		var matchID, atNano int64
		if err := rows.Scan(&matchID, &atNano); err != nil {
			return nil, fmt.Errorf("failed to scan calc record: %w", err)
		}
		records[matchID] = time.Unix(0, atNano)
	}
	return records, rows.Err()
}

func scanAlert(scan func(...any) error) (*models.Alert, error) {
	var a models.Alert
	var createdAtNano int64
	var processed int
	err := scan(
		&a.ID, &a.MatchID, &a.Minute, &a.Message, &a.Probability, &a.Confidence,
		&createdAtNano, &processed, &a.Attempts,
	)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = time.Unix(0, createdAtNano)
	a.Processed = processed != 0
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
