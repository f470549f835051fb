package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/studyhub/internal/database"
)

// Schema creates the table the SQL driver uses.
const Schema = `CREATE TABLE IF NOT EXISTS kv_entry (
	k          VARCHAR(255) NOT NULL PRIMARY KEY,
	v          MEDIUMBLOB   NOT NULL,
	updated_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`

const (
	qGet    = `SELECT v FROM kv_entry WHERE k = ?`
	qLock   = `SELECT v FROM kv_entry WHERE k = ? FOR UPDATE`
	qPut    = `INSERT INTO kv_entry (k, v) VALUES (?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)`
	qDelete = `DELETE FROM kv_entry WHERE k = ?`
	qScan   = `SELECT k, v FROM kv_entry WHERE k LIKE ? ESCAPE '\\' ORDER BY k`
	qClear  = `DELETE FROM kv_entry WHERE k LIKE ? ESCAPE '\\'`
	qPurge  = `DELETE FROM kv_entry`
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SQL is the shared-table driver.
type SQL struct {
	db *sqlx.DB
}

// OpenSQL connects with the mysql driver and ensures the table exists.
func OpenSQL(dsn string) (*SQL, error) {
	db, err := database.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("localstore: open mysql: %w", err)
	}
	s := NewSQL(db)
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQL wraps an existing pool.
func NewSQL(db *sqlx.DB) *SQL { return &SQL{db: db} }

// EnsureSchema creates kv_entry when missing.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("localstore: create kv_entry: %w", err)
	}
	return nil
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.GetContext(ctx, &v, qGet, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *SQL) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, qPut, key, value)
	return err
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, qDelete, key)
	return err
}

// Update locks the row for the duration of fn.
func (s *SQL) Update(ctx context.Context, key string, fn UpdateFunc) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	var old []byte
	exists := true
	if err := tx.GetContext(ctx, &old, qLock, key); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		exists = false
	}

	next, err := fn(old, exists)
	if err != nil {
		return err
	}
	switch {
	case next == nil && exists:
		_, err = tx.ExecContext(ctx, qDelete, key)
	case next != nil:
		_, err = tx.ExecContext(ctx, qPut, key, next)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQL) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := s.db.QueryxContext(ctx, qScan, likeEscaper.Replace(prefix)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQL) Clear(ctx context.Context, prefix string) error {
	if prefix == "" {
		_, err := s.db.ExecContext(ctx, qPurge)
		return err
	}
	_, err := s.db.ExecContext(ctx, qClear, likeEscaper.Replace(prefix)+"%")
	return err
}

func (s *SQL) Close() error { return s.db.Close() }
