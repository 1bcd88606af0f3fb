// Package database implements the durable stores on SQLite.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/database/migrations"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/guard"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements guard.Database using a single SQLite file
// holding the signature cache, the scan log ledger, and the rate limiter
// counters.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

var _ guard.Database = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase opens (and migrates) a SQLite database at path.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &SQLiteDatabase{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection with
// appropriate PRAGMAs. Exported for tools and tests that need a properly
// configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	// Settings ride on the DSN so every pooled connection gets them, not
	// just the first one opened. Multiple scan workers write concurrently;
	// WAL plus a busy timeout keeps writers from failing on short-lived
	// locks.
	const params = "_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_synchronous=NORMAL"
	memory := path == ":memory:"
	dsn := "file:" + path + "?" + params
	if memory {
		dsn = "file::memory:?" + params
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		// Each pooled connection to ":memory:" sees its own empty
		// database; a single shared connection keeps one database.
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// Signature cache operations

func (s *SQLiteDatabase) LookupSignature(hash string) (*guard.SignatureEntry, error) {
	row := s.db.QueryRow(
		`SELECT hash, threat_label, source, updated_at FROM signatures WHERE hash = ?`, hash)

	var entry guard.SignatureEntry
	var updatedAt int64
	if err := row.Scan(&entry.Hash, &entry.ThreatLabel, &entry.Source, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // not cached
		}
		return nil, fmt.Errorf("looking up signature: %w", err)
	}
	entry.UpdatedAt = fromMillis(updatedAt)
	return &entry, nil
}

func (s *SQLiteDatabase) UpsertSignature(entry *guard.SignatureEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO signatures (hash, threat_label, source, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET
		   threat_label = excluded.threat_label,
		   source = excluded.source,
		   updated_at = excluded.updated_at`,
		entry.Hash, entry.ThreatLabel, entry.Source, toMillis(entry.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upserting signature: %w", err)
	}
	return nil
}

// Scan log ledger operations

func (s *SQLiteDatabase) AppendScanLog(record *guard.ScanRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO scan_logs (id, file_path, file_name, file_size, hash, verdict, safety_score, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.FilePath, record.FileName, record.FileSize, record.Hash,
		string(record.Verdict), record.Score, string(record.Source), toMillis(record.CreatedAt))
	if err != nil {
		return fmt.Errorf("appending scan log: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListScanLogs(limit int) ([]*guard.ScanRecord, error) {
	return s.queryScanLogs(
		`SELECT id, file_path, file_name, file_size, hash, verdict, safety_score, source, created_at
		 FROM scan_logs ORDER BY created_at DESC, id LIMIT ?`, limitArg(limit))
}

func (s *SQLiteDatabase) ListScanLogsByVerdict(verdict guard.Verdict, limit int) ([]*guard.ScanRecord, error) {
	return s.queryScanLogs(
		`SELECT id, file_path, file_name, file_size, hash, verdict, safety_score, source, created_at
		 FROM scan_logs WHERE verdict = ? ORDER BY created_at DESC, id LIMIT ?`,
		string(verdict), limitArg(limit))
}

func (s *SQLiteDatabase) queryScanLogs(query string, args ...any) ([]*guard.ScanRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying scan logs: %w", err)
	}
	defer rows.Close()

	var records []*guard.ScanRecord
	for rows.Next() {
		var r guard.ScanRecord
		var verdict, source string
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.FilePath, &r.FileName, &r.FileSize, &r.Hash,
			&verdict, &r.Score, &source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		r.Verdict = guard.Verdict(verdict)
		r.Source = guard.Source(source)
		r.CreatedAt = fromMillis(createdAt)
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scan logs: %w", err)
	}
	return records, nil
}

func (s *SQLiteDatabase) DeleteScanLog(id string) error {
	res, err := s.db.Exec(`DELETE FROM scan_logs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting scan log: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("scan log %s: %w", id, guard.ErrNotFound)
	}
	return nil
}

func (s *SQLiteDatabase) ClearScanLogs() error {
	if _, err := s.db.Exec(`DELETE FROM scan_logs`); err != nil {
		return fmt.Errorf("clearing scan logs: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) CountThreats() (int64, error) {
	row := s.db.QueryRow(
		`SELECT COUNT(*) FROM scan_logs WHERE verdict IN (?, ?)`,
		string(guard.VerdictMalicious), string(guard.VerdictSuspicious))
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting threats: %w", err)
	}
	return count, nil
}

// Rate limiter state operations

func (s *SQLiteDatabase) LoadRateLimitState(name string) (*guard.RateLimitState, error) {
	row := s.db.QueryRow(
		`SELECT day_key, day_count, month_key, month_count, last_granted_at
		 FROM rate_limit WHERE name = ?`, name)

	var state guard.RateLimitState
	var lastGranted int64
	err := row.Scan(&state.DayKey, &state.DayCount, &state.MonthKey, &state.MonthCount, &lastGranted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // never persisted
		}
		return nil, fmt.Errorf("loading rate limit state: %w", err)
	}
	if lastGranted > 0 {
		state.LastGrantedAt = fromMillis(lastGranted)
	}
	return &state, nil
}

func (s *SQLiteDatabase) SaveRateLimitState(name string, state *guard.RateLimitState) error {
	var lastGranted int64
	if !state.LastGrantedAt.IsZero() {
		lastGranted = toMillis(state.LastGrantedAt)
	}
	_, err := s.db.Exec(
		`INSERT INTO rate_limit (name, day_key, day_count, month_key, month_count, last_granted_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   day_key = excluded.day_key,
		   day_count = excluded.day_count,
		   month_key = excluded.month_key,
		   month_count = excluded.month_count,
		   last_granted_at = excluded.last_granted_at`,
		name, state.DayKey, state.DayCount, state.MonthKey, state.MonthCount, lastGranted)
	if err != nil {
		return fmt.Errorf("saving rate limit state: %w", err)
	}
	return nil
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

// limitArg converts the interface's "<= 0 means all" contract to SQLite's
// negative-limit convention.
func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
