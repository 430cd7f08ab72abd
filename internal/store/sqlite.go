package store

import (
	"context"
	"database/sql"
	_ "embed"
	stderrors "errors"
	"fmt"

	gocid "github.com/ipfs/go-cid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"

	"github.com/systemshift/memex-vcs/internal/dag"
)

//go:embed schema.sql
var schemaSQL string

// SQLite keeps elements in a single table of a SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite creates or opens the database at path.
//
// The database is configured with WAL mode, NORMAL synchronous mode and a
// 5-second busy timeout, on a single connection.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to connect to database: %w", err), db.Close())
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, multierr.Append(fmt.Errorf("failed to execute %q: %w", pragma, err), db.Close())
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to apply schema: %w", err), db.Close())
	}
	return &SQLite{db: db}, nil
}

// Load implements Store.
func (s *SQLite) Load(ctx context.Context, key gocid.Cid) (*dag.Element, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT envelope FROM elements WHERE key = ?`, key.Bytes()).Scan(&data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, fmt.Errorf("query element %s: %w", key, err)
	}
	return dag.UnmarshalElement(key, data)
}

// Store implements Store. The batch is written in one transaction.
func (s *SQLite) Store(ctx context.Context, elements []*dag.Element) (err error) {
	if err := verifyAll(elements); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO elements (key, envelope) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range elements {
		data, err := dag.MarshalElement(e)
		if err != nil {
			return fmt.Errorf("encode element %s: %w", e.Key, err)
		}
		if _, err := stmt.ExecContext(ctx, e.Key.Bytes(), data); err != nil {
			return fmt.Errorf("insert element %s: %w", e.Key, err)
		}
	}
	return tx.Commit()
}

// Has implements Store.
func (s *SQLite) Has(ctx context.Context, key gocid.Cid) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM elements WHERE key = ?`, key.Bytes()).Scan(&one)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query element %s: %w", key, err)
	}
	return true, nil
}

// Close implements Store.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
