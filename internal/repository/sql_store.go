package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phamhoa2416/ticket-booking/internal/database"
	"github.com/phamhoa2416/ticket-booking/internal/model"
)

// SQLStore implements Store on database/sql for every supported dialect.
type SQLStore struct {
	db      *sql.DB
	dialect database.Dialect
	now     func() time.Time
}

func NewSQLStore(db *sql.DB, dialect database.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SQLStore) Acquire(ctx context.Context) (Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &sqlSession{conn: conn, dialect: s.dialect, now: s.now}, nil
}

type sqlSession struct {
	conn     *sql.Conn
	dialect  database.Dialect
	now      func() time.Time
	readOnly bool
}

func (s *sqlSession) SetReadOnly(ctx context.Context, readOnly bool) error {
	if _, err := s.conn.ExecContext(ctx, s.dialect.SessionMode(readOnly)); err != nil {
		return err
	}
	s.readOnly = readOnly
	return nil
}

func (s *sqlSession) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx, dialect: s.dialect, now: s.now}, nil
}

func (s *sqlSession) Release() error {
	if s.readOnly {
		// never hand a read-only connection back to the pool
		_ = s.conn.Raw(func(any) error { return driver.ErrBadConn })
	}
	return s.conn.Close()
}

type sqlTx struct {
	tx      *sql.Tx
	dialect database.Dialect
	now     func() time.Time
}

func (t *sqlTx) Users() UserRepository           { return &UserRepo{t} }
func (t *sqlTx) Customers() CustomerRepository   { return &CustomerRepo{t} }
func (t *sqlTx) Organizers() OrganizerRepository { return &OrganizerRepo{t} }
func (t *sqlTx) Events() EventRepository         { return &EventRepo{t} }
func (t *sqlTx) Tickets() TicketRepository       { return &TicketRepo{t} }

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

func (t *sqlTx) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.Rebind(q), args...)
}

func (t *sqlTx) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.Rebind(q), args...)
}

func (t *sqlTx) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.Rebind(q), args...)
}

func (t *sqlTx) delete(ctx context.Context, table string, id uuid.UUID) (bool, error) {
	res, err := t.exec(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// assignments accumulates the SET clause of a partial update.
type assignments struct {
	cols []string
	args []any
}

func (a *assignments) set(col string, v any) {
	a.cols = append(a.cols, col+" = ?")
	a.args = append(a.args, v)
}

// updateVersioned applies a to the row only while its version still equals
// expected, bumping the version in the same statement. On a miss it reloads
// the row to tell a stale version from a missing record.
func (t *sqlTx) updateVersioned(ctx context.Context, table string, id uuid.UUID, expected int64,
	a assignments, reload func() (model.Record, error)) error {
	a.set("updated_at", t.now())
	q := fmt.Sprintf("UPDATE %s SET %s, version = version + 1 WHERE id = ? AND version = ?",
		table, strings.Join(a.cols, ", "))
	args := append(a.args, id, expected)
	res, err := t.exec(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	cur, err := reload()
	if err != nil {
		return err
	}
	if err := model.CheckRecordVersion(cur, expected); err != nil {
		return err
	}
	return fmt.Errorf("update %s %s: no rows affected", table, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAll[T any](rows *sql.Rows, scan func(scanner) (*T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
