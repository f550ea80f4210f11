package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/jask/cloudanchors/internal/shortcode"
)

// ShortCodeRepo is the sqlite-backed shortcode.Store.
type ShortCodeRepo struct {
	db      *sql.DB
	maxCode shortcode.Code
}

var _ shortcode.Store = (*ShortCodeRepo)(nil)

// NewShortCodeRepo returns a repo that never allocates above maxCode.
// A zero maxCode means unbounded.
func NewShortCodeRepo(db *sql.DB, maxCode shortcode.Code) *ShortCodeRepo {
	return &ShortCodeRepo{db: db, maxCode: maxCode}
}

// EnsureCounter creates the allocation counter starting at initial. It is a
// no-op once the counter exists.
func (r *ShortCodeRepo) EnsureCounter(ctx context.Context, initial shortcode.Code) error {
	if !initial.Valid() {
		return fmt.Errorf("initial code %d: %w", initial, shortcode.ErrInvalidCode)
	}
	_, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO short_code_counter(id, next_code) VALUES (1, ?)`, int64(initial))
	return err
}

// Allocate bumps the counter inside a transaction and skips codes that were
// bound out of band. The counter only moves when a code is handed out.
func (r *ShortCodeRepo) Allocate(ctx context.Context) (shortcode.Code, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	for {
		res, err := tx.ExecContext(ctx, `UPDATE short_code_counter SET next_code = next_code + 1 WHERE id = 1`)
		if err != nil {
			return 0, unavailable(err)
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return 0, fmt.Errorf("%w: allocation counter not initialised", shortcode.ErrUnavailable)
		}
		var next int64
		if err := tx.QueryRowContext(ctx, `SELECT next_code - 1 FROM short_code_counter WHERE id = 1`).Scan(&next); err != nil {
			return 0, unavailable(err)
		}
		code := shortcode.Code(next)
		if r.maxCode > 0 && code > r.maxCode {
			return 0, shortcode.ErrExhausted
		}
		var taken int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM short_codes WHERE code = ?`, next).Scan(&taken); err != nil {
			return 0, unavailable(err)
		}
		if taken > 0 {
			continue
		}
		if err := tx.Commit(); err != nil {
			return 0, unavailable(err)
		}
		return code, nil
	}
}

// Put binds code to anchorID. Existing records are never overwritten.
func (r *ShortCodeRepo) Put(ctx context.Context, code shortcode.Code, anchorID string) error {
	if !code.Valid() {
		return fmt.Errorf("put %d: %w", code, shortcode.ErrInvalidCode)
	}
	if strings.TrimSpace(anchorID) == "" {
		return fmt.Errorf("put %d: empty anchor id", code)
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO short_codes(code, anchor_id, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)`, int64(code), anchorID)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("put %d: %w", code, shortcode.ErrAlreadyExists)
		}
		return unavailable(err)
	}
	return nil
}

func (r *ShortCodeRepo) Lookup(ctx context.Context, code shortcode.Code) (string, error) {
	rec, err := r.Get(ctx, code)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", fmt.Errorf("lookup %d: %w", code, shortcode.ErrNotFound)
	}
	return rec.AnchorID, nil
}

// Get returns the record for code, or nil when none exists.
func (r *ShortCodeRepo) Get(ctx context.Context, code shortcode.Code) (*shortcode.Record, error) {
	if !code.Valid() {
		return nil, fmt.Errorf("lookup %d: %w", code, shortcode.ErrInvalidCode)
	}
	row := r.db.QueryRowContext(ctx, `SELECT code, anchor_id, created_at FROM short_codes WHERE code = ?`, int64(code))
	rec, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, unavailable(err)
	}
	return &rec, nil
}

// Recent lists the newest records first.
func (r *ShortCodeRepo) Recent(ctx context.Context, limit int) ([]shortcode.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `SELECT code, anchor_id, created_at FROM short_codes ORDER BY created_at DESC, code DESC LIMIT ?`, limit)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()
	var out []shortcode.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (shortcode.Record, error) {
	var rec shortcode.Record
	var code int64
	if err := row.Scan(&code, &rec.AnchorID, &rec.CreatedAt); err != nil {
		return shortcode.Record{}, err
	}
	rec.Code = shortcode.Code(code)
	return rec, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", shortcode.ErrUnavailable, err)
}
