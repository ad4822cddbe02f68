package rulesmith

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"
)

// SQLiteStoreConfig configures the SQLite rule store.
type SQLiteStoreConfig struct {
	// Path to the SQLite database file
	Path string

	// CacheSize is the SQLite page cache size in KB (default: 2000 = 2MB)
	CacheSize int

	// JournalMode sets the SQLite journal mode (WAL, DELETE, TRUNCATE, etc.)
	JournalMode string

	// BusyTimeout is the timeout for acquiring locks in milliseconds
	BusyTimeout int

	// MaxConnections is the max number of database connections
	MaxConnections int
}

// DefaultSQLiteStoreConfig returns default configuration.
func DefaultSQLiteStoreConfig() SQLiteStoreConfig {
	return SQLiteStoreConfig{
		Path:           "rulesmith.db",
		CacheSize:      2000,
		JournalMode:    "WAL",
		BusyTimeout:    5000,
		MaxConnections: 10,
	}
}

// SQLiteStore keeps the rule catalog in a SQLite database, one row per
// rule plus one row per contributing sample, so the catalog can be
// queried with standard SQLite tools.
type SQLiteStore struct {
	db     *sql.DB
	config SQLiteStoreConfig
	mu     sync.RWMutex
	closed bool

	// Prepared statements for common operations
	insertStmt *sql.Stmt
	selectStmt *sql.Stmt
	deleteStmt *sql.Stmt
	sampleStmt *sql.Stmt
}

// NewSQLiteStore creates a SQLite-backed rule store.
func NewSQLiteStore(config SQLiteStoreConfig) (*SQLiteStore, error) {
	if config.Path == "" {
		config.Path = "rulesmith.db"
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 2000
	}
	if config.JournalMode == "" {
		config.JournalMode = "WAL"
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5000
	}
	if config.MaxConnections <= 0 {
		config.MaxConnections = 10
	}

	dsn := fmt.Sprintf("%s?_cache_size=%d&_journal_mode=%s&_busy_timeout=%d",
		config.Path, config.CacheSize, config.JournalMode, config.BusyTimeout)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, newStoreError(StoreErrorTypeWrite, "open", config.Path, err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetMaxIdleConns(config.MaxConnections / 2)

	store := &SQLiteStore{
		db:     db,
		config: config,
	}

	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, newStoreError(StoreErrorTypeWrite, "init schema", config.Path, err)
	}
	if err := store.prepareStatements(); err != nil {
		_ = db.Close()
		return nil, newStoreError(StoreErrorTypeWrite, "prepare", config.Path, err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS rules (
			name TEXT PRIMARY KEY,
			cluster_type TEXT NOT NULL,
			cluster_id INTEGER NOT NULL,
			source BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS rule_samples (
			rule_name TEXT NOT NULL,
			position INTEGER NOT NULL,
			filename TEXT NOT NULL,
			digest TEXT,
			PRIMARY KEY (rule_name, position)
		);

		CREATE INDEX IF NOT EXISTS idx_rules_cluster
			ON rules(cluster_type, cluster_id);
		CREATE INDEX IF NOT EXISTS idx_samples_filename
			ON rule_samples(filename);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error
	if s.insertStmt, err = s.db.Prepare(
		`INSERT OR REPLACE INTO rules (name, cluster_type, cluster_id, source, created_at)
		 VALUES (?, ?, ?, ?, ?)`); err != nil {
		return err
	}
	if s.selectStmt, err = s.db.Prepare(
		`SELECT source FROM rules WHERE name = ?`); err != nil {
		return err
	}
	if s.deleteStmt, err = s.db.Prepare(
		`DELETE FROM rules WHERE name = ?`); err != nil {
		return err
	}
	if s.sampleStmt, err = s.db.Prepare(
		`INSERT OR REPLACE INTO rule_samples (rule_name, position, filename, digest)
		 VALUES (?, ?, ?, ?)`); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) Put(ctx context.Context, rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return newStoreError(StoreErrorTypeClosed, "put", rule.Name, ErrStoreClosed)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return newStoreError(StoreErrorTypeWrite, "put", rule.Name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.StmtContext(ctx, s.insertStmt).ExecContext(ctx,
		rule.Name, rule.ClusterType, rule.ClusterID, rule.Render(), time.Now().Unix()); err != nil {
		return newStoreError(StoreErrorTypeWrite, "put", rule.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM rule_samples WHERE rule_name = ?`, rule.Name); err != nil {
		return newStoreError(StoreErrorTypeWrite, "put", rule.Name, err)
	}

	pos := 0
	for _, m := range rule.Meta {
		if !strings.HasPrefix(m.Key, "sample") {
			continue
		}
		digest := ""
		hashKey := "hash" + strings.TrimPrefix(m.Key, "sample")
		for _, h := range rule.Meta {
			if h.Key == hashKey {
				digest = h.Value
				break
			}
		}
		if _, err := tx.StmtContext(ctx, s.sampleStmt).ExecContext(ctx,
			rule.Name, pos, m.Value, digest); err != nil {
			return newStoreError(StoreErrorTypeWrite, "put", rule.Name, err)
		}
		pos++
	}

	if err := tx.Commit(); err != nil {
		return newStoreError(StoreErrorTypeWrite, "put", rule.Name, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, newStoreError(StoreErrorTypeClosed, "get", name, ErrStoreClosed)
	}

	var source []byte
	err := s.selectStmt.QueryRowContext(ctx, name).Scan(&source)
	if err == sql.ErrNoRows {
		return nil, newStoreError(StoreErrorTypeNotFound, "get", name, ErrNotFound)
	}
	if err != nil {
		return nil, newStoreError(StoreErrorTypeRead, "get", name, err)
	}
	return source, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, newStoreError(StoreErrorTypeClosed, "list", "", ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM rules ORDER BY name`)
	if err != nil {
		return nil, newStoreError(StoreErrorTypeRead, "list", "", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, newStoreError(StoreErrorTypeRead, "list", "", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, newStoreError(StoreErrorTypeRead, "list", "", err)
	}
	return names, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return newStoreError(StoreErrorTypeClosed, "delete", name, ErrStoreClosed)
	}

	res, err := s.deleteStmt.ExecContext(ctx, name)
	if err != nil {
		return newStoreError(StoreErrorTypeWrite, "delete", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return newStoreError(StoreErrorTypeNotFound, "delete", name, ErrNotFound)
	}
	_, _ = s.db.ExecContext(ctx, `DELETE FROM rule_samples WHERE rule_name = ?`, name)
	return nil
}

// SamplesFor returns the filenames recorded for a rule, in metadata order.
func (s *SQLiteStore) SamplesFor(ctx context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, newStoreError(StoreErrorTypeClosed, "samples", name, ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT filename FROM rule_samples WHERE rule_name = ? ORDER BY position`, name)
	if err != nil {
		return nil, newStoreError(StoreErrorTypeRead, "samples", name, err)
	}
	defer func() { _ = rows.Close() }()

	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, newStoreError(StoreErrorTypeRead, "samples", name, err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	for _, stmt := range []*sql.Stmt{s.insertStmt, s.selectStmt, s.deleteStmt, s.sampleStmt} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	return s.db.Close()
}
