// Package sqlite provides a SQLite implementation of the conflictkit
// ConflictStore.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"
	stdSync "sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/c0deZ3R0/go-conflict-kit/conflictkit"
	conflictErrors "github.com/c0deZ3R0/go-conflict-kit/errors"
	"github.com/c0deZ3R0/go-conflict-kit/logging"
)

// Operation constants for consistent error reporting
const (
	opFindOrCreate = conflictErrors.OpFindOrCreate
	opGet          = conflictErrors.OpGet
	opList         = conflictErrors.OpList
	opUpdate       = conflictErrors.OpUpdate
)

// ErrStoreClosed is returned for operations on a closed store.
var ErrStoreClosed = errors.New("store is closed")

// Config holds configuration options for the SQLiteConflictStore.
//
// Production-ready defaults are applied by DefaultConfig() including:
//   - WAL mode enabled for better concurrency
//   - Connection pool with 25 max open, 5 max idle connections
//   - Connection lifetimes of 1 hour max, 5 minutes max idle
type Config struct {
	// DataSourceName is the connection string for the SQLite database.
	// Example: "file:conflicts.db?_journal_mode=WAL"
	DataSourceName string

	// EnableWAL enables Write-Ahead Logging mode for better concurrency.
	// When true, automatically appends "?_journal_mode=WAL" to DataSourceName.
	EnableWAL bool

	// Logger is an optional logger for internal operations and errors.
	// If nil, logging is disabled (logs to io.Discard).
	Logger *log.Logger

	// Connection pool settings for production workloads.
	MaxOpenConns    int           // Default: 25
	MaxIdleConns    int           // Default: 5
	ConnMaxLifetime time.Duration // Default: 1h
	ConnMaxIdleTime time.Duration // Default: 5m
}

// setDefaults applies default values to the config
func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.EnableWAL {
		if !strings.Contains(c.DataSourceName, "_journal_mode=") {
			c.DataSourceName += "?_journal_mode=WAL"
		}
	}
}

// DefaultConfig returns a Config with production-ready defaults.
func DefaultConfig(dataSourceName string) *Config {
	config := &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
	config.setDefaults()
	return config
}

// NewWithDataSource is a convenience constructor
func NewWithDataSource(dataSourceName string) (*SQLiteConflictStore, error) {
	return New(DefaultConfig(dataSourceName))
}

// SQLiteConflictStore implements conflictkit.ConflictStore on SQLite. The
// at-most-one-pending invariant is enforced by a partial unique index over
// the key tuple, so concurrent detections for the same resource pair can
// never both insert.
type SQLiteConflictStore struct {
	db     *sql.DB
	mu     stdSync.RWMutex
	closed bool
	logger *log.Logger
}

// Compile-time check to ensure SQLiteConflictStore satisfies the interface
var _ conflictkit.ConflictStore = (*SQLiteConflictStore)(nil)

// New creates a new SQLiteConflictStore from a Config.
func New(config *Config) (*SQLiteConflictStore, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	config.setDefaults()

	if config.DataSourceName == "" {
		return nil, fmt.Errorf("DataSourceName is required")
	}

	logger := logging.WithComponent(logging.Component("sqlite-store"))
	logger.InfoContext(context.Background(), "Opening SQLite database",
		slog.String("data_source", config.DataSourceName),
		slog.Bool("wal_enabled", config.EnableWAL),
	)

	db, err := sql.Open("sqlite3", config.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	store := &SQLiteConflictStore{
		db:     db,
		logger: config.Logger,
	}

	if err := store.setupSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup database schema: %w", err)
	}

	logger.InfoContext(context.Background(), "SQLite ConflictStore initialized")
	return store, nil
}

// setupSchema creates the conflicts table and indexes if they don't exist.
// The partial unique index over (domain, resource_type, resource_id_a,
// resource_id_b) WHERE status='pending' is what makes FindOrCreate atomic.
func (s *SQLiteConflictStore) setupSchema() error {
	query := `
    CREATE TABLE IF NOT EXISTS conflicts (
        id                TEXT PRIMARY KEY,
        domain            TEXT NOT NULL,
        resource_type     TEXT NOT NULL,
        resource_id_a     TEXT NOT NULL,
        resource_id_b     TEXT NOT NULL,
        conflict_type     TEXT NOT NULL,
        severity          TEXT NOT NULL,
        status            TEXT NOT NULL,
        fields            TEXT,
        side_a_data       TEXT,
        side_b_data       TEXT,
        auto_attempted    INTEGER NOT NULL DEFAULT 0,
        auto_strategy     TEXT NOT NULL DEFAULT '',
        auto_successful   INTEGER NOT NULL DEFAULT 0,
        resolution        TEXT NOT NULL DEFAULT '',
        resolved_by       TEXT NOT NULL DEFAULT '',
        resolved_at       TIMESTAMP,
        notes             TEXT NOT NULL DEFAULT '',
        version_history   TEXT NOT NULL,
        created_at        TIMESTAMP NOT NULL
    );
    CREATE UNIQUE INDEX IF NOT EXISTS idx_conflicts_pending
        ON conflicts (domain, resource_type, resource_id_a, resource_id_b)
        WHERE status = 'pending';
    CREATE INDEX IF NOT EXISTS idx_conflicts_domain_status ON conflicts (domain, status);
    `
	_, err := s.db.Exec(query)
	return err
}

const conflictColumns = `id, domain, resource_type, resource_id_a, resource_id_b,
    conflict_type, severity, status, fields, side_a_data, side_b_data,
    auto_attempted, auto_strategy, auto_successful,
    resolution, resolved_by, resolved_at, notes, version_history, created_at`

// FindOrCreate performs the atomic check-then-create inside a transaction.
// A concurrent insert losing the race against the partial unique index is
// retried as a plain lookup.
func (s *SQLiteConflictStore) FindOrCreate(ctx context.Context, candidate *conflictkit.Conflict) (*conflictkit.Conflict, bool, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, false, ErrStoreClosed
	}
	s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, conflictErrors.WrapOpComponent(err, opFindOrCreate, "storage/sqlite")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	existing, err := s.selectPending(ctx, tx, candidate.Key())
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, conflictErrors.WrapOpComponent(err, opFindOrCreate, "storage/sqlite")
	}
	if existing != nil {
		if err = tx.Commit(); err != nil {
			return nil, false, conflictErrors.WrapOpComponent(err, opFindOrCreate, "storage/sqlite")
		}
		return existing, false, nil
	}

	err = s.insert(ctx, tx, candidate)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			// Lost the race: another detection inserted first.
			tx.Rollback()
			err = nil
			got, lookupErr := s.findPending(ctx, candidate.Key())
			if lookupErr != nil {
				return nil, false, conflictErrors.WrapOpComponent(lookupErr, opFindOrCreate, "storage/sqlite")
			}
			return got, false, nil
		}
		return nil, false, conflictErrors.WrapOpComponent(err, opFindOrCreate, "storage/sqlite")
	}

	if err = tx.Commit(); err != nil {
		return nil, false, conflictErrors.WrapOpComponent(err, opFindOrCreate, "storage/sqlite")
	}
	return candidate.Clone(), true, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *SQLiteConflictStore) selectPending(ctx context.Context, q querier, key conflictkit.Key) (*conflictkit.Conflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM conflicts
        WHERE domain = ? AND resource_type = ? AND resource_id_a = ? AND resource_id_b = ? AND status = 'pending'`
	row := q.QueryRowContext(ctx, query, key.Domain, string(key.ResourceType), key.ResourceIDA, key.ResourceIDB)
	c, err := scanConflict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SQLiteConflictStore) findPending(ctx context.Context, key conflictkit.Key) (*conflictkit.Conflict, error) {
	c, err := s.selectPending(ctx, s.db, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, conflictkit.ErrConflictNotFound
	}
	return c, err
}

func (s *SQLiteConflictStore) insert(ctx context.Context, tx *sql.Tx, c *conflictkit.Conflict) error {
	fieldsJSON, historyJSON, err := marshalRecord(c)
	if err != nil {
		return err
	}

	query := `INSERT INTO conflicts (` + conflictColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		c.ID, c.Domain, string(c.ResourceType), c.ResourceIDA, c.ResourceIDB,
		string(c.ConflictType), string(c.Severity), string(c.Status),
		fieldsJSON, nullableJSON(c.SideAData), nullableJSON(c.SideBData),
		boolToInt(c.AutoResolutionAttempted), string(c.AutoResolutionStrategy), boolToInt(c.AutoResolutionSuccessful),
		c.Resolution, c.ResolvedBy, c.ResolvedAt, c.Notes, historyJSON, c.CreatedAt,
	)
	return err
}

// Get returns a conflict by domain and id.
func (s *SQLiteConflictStore) Get(ctx context.Context, domain, id string) (*conflictkit.Conflict, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	s.mu.RUnlock()

	query := `SELECT ` + conflictColumns + ` FROM conflicts WHERE domain = ? AND id = ?`
	c, err := scanConflict(s.db.QueryRowContext(ctx, query, domain, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, conflictkit.ErrConflictNotFound
	}
	if err != nil {
		return nil, conflictErrors.WrapOpComponent(err, opGet, "storage/sqlite")
	}
	return c, nil
}

// ListPending returns the domain's pending conflicts, oldest first.
func (s *SQLiteConflictStore) ListPending(ctx context.Context, domain string) ([]*conflictkit.Conflict, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	s.mu.RUnlock()

	query := `SELECT ` + conflictColumns + ` FROM conflicts
        WHERE domain = ? AND status = 'pending' ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, domain)
	if err != nil {
		return nil, conflictErrors.WrapOpComponent(err, opList, "storage/sqlite")
	}
	defer rows.Close()

	var out []*conflictkit.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, conflictErrors.WrapOpComponent(err, opList, "storage/sqlite")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, conflictErrors.WrapOpComponent(err, opList, "storage/sqlite")
	}
	return out, nil
}

// Update persists a mutation. The WHERE status='pending' guard makes the
// terminal check race-free: a second finalizer finds zero affected rows.
func (s *SQLiteConflictStore) Update(ctx context.Context, c *conflictkit.Conflict) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	fieldsJSON, historyJSON, err := marshalRecord(c)
	if err != nil {
		return conflictErrors.WrapOpComponent(err, opUpdate, "storage/sqlite")
	}

	query := `UPDATE conflicts SET
        status = ?, fields = ?, auto_attempted = ?, auto_strategy = ?, auto_successful = ?,
        resolution = ?, resolved_by = ?, resolved_at = ?, notes = ?, version_history = ?
        WHERE id = ? AND status = 'pending'`
	result, err := s.db.ExecContext(ctx, query,
		string(c.Status), fieldsJSON,
		boolToInt(c.AutoResolutionAttempted), string(c.AutoResolutionStrategy), boolToInt(c.AutoResolutionSuccessful),
		c.Resolution, c.ResolvedBy, c.ResolvedAt, c.Notes, historyJSON,
		c.ID,
	)
	if err != nil {
		return conflictErrors.WrapOpComponent(err, opUpdate, "storage/sqlite")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return conflictErrors.WrapOpComponent(err, opUpdate, "storage/sqlite")
	}
	if affected == 0 {
		// Distinguish a missing record from a terminal one.
		var status string
		err := s.db.QueryRowContext(ctx, `SELECT status FROM conflicts WHERE id = ?`, c.ID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return conflictkit.ErrConflictNotFound
		}
		if err != nil {
			return conflictErrors.WrapOpComponent(err, opUpdate, "storage/sqlite")
		}
		return conflictErrors.NewAlreadyFinalized(opUpdate, c.ID, status)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteConflictStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// Stats returns database statistics for monitoring
func (s *SQLiteConflictStore) Stats() sql.DBStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return sql.DBStats{}
	}

	return s.db.Stats()
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConflict(row rowScanner) (*conflictkit.Conflict, error) {
	var (
		c             conflictkit.Conflict
		resourceType  string
		conflictType  string
		severity      string
		status        string
		strategy      string
		fields        sql.NullString
		sideA, sideB  sql.NullString
		attempted     int
		successful    int
		resolvedAt    sql.NullTime
		history       string
	)

	err := row.Scan(
		&c.ID, &c.Domain, &resourceType, &c.ResourceIDA, &c.ResourceIDB,
		&conflictType, &severity, &status, &fields, &sideA, &sideB,
		&attempted, &strategy, &successful,
		&c.Resolution, &c.ResolvedBy, &resolvedAt, &c.Notes, &history, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ResourceType = conflictkit.ResourceType(resourceType)
	c.ConflictType = conflictkit.ConflictType(conflictType)
	c.Severity = conflictkit.Severity(severity)
	c.Status = conflictkit.Status(status)
	c.AutoResolutionAttempted = attempted != 0
	c.AutoResolutionStrategy = conflictkit.Strategy(strategy)
	c.AutoResolutionSuccessful = successful != 0

	if fields.Valid && fields.String != "" {
		if err := json.Unmarshal([]byte(fields.String), &c.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields: %w", err)
		}
	}
	if sideA.Valid && sideA.String != "" {
		c.SideAData = json.RawMessage(sideA.String)
	}
	if sideB.Valid && sideB.String != "" {
		c.SideBData = json.RawMessage(sideB.String)
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		c.ResolvedAt = &t
	}
	if err := json.Unmarshal([]byte(history), &c.VersionHistory); err != nil {
		return nil, fmt.Errorf("failed to decode version history: %w", err)
	}

	return &c, nil
}

func marshalRecord(c *conflictkit.Conflict) (fieldsJSON, historyJSON string, err error) {
	fb, err := json.Marshal(c.Fields)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode fields: %w", err)
	}
	hb, err := json.Marshal(c.VersionHistory)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode version history: %w", err)
	}
	return string(fb), string(hb), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullableJSON converts an optional raw snapshot into a driver value.
func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
