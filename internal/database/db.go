package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Dialect names a supported driver; its value is the database/sql driver name.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case MySQL, Postgres, SQLite:
		return d, nil
	case "sqlite":
		return SQLite, nil
	case "postgresql":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", s)
}

// Options describes one database connection.
type Options struct {
	Dialect  Dialect
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	// Path is the database file for SQLite.
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN builds the driver-specific data source name.
func (o Options) DSN() string {
	switch o.Dialect {
	case Postgres:
		auth := o.User
		if o.Password != "" {
			auth = fmt.Sprintf("%s:%s", o.User, o.Password)
		}
		return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=disable", auth, o.Host, o.Port, o.Name)
	case SQLite:
		return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", o.Path)
	default:
		auth := o.User
		if o.Password != "" {
			auth = fmt.Sprintf("%s:%s", o.User, o.Password)
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			auth, o.Host, o.Port, o.Name)
	}
}

// Open connects and verifies the connection.
func Open(o Options) (*sql.DB, error) {
	if o.Dialect == "" {
		o.Dialect = MySQL
	}
	db, err := sql.Open(string(o.Dialect), o.DSN())
	if err != nil {
		return nil, err
	}

	// Pool settings
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 25
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = o.MaxOpenConns
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 30 * time.Minute
	}
	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(o.MaxIdleConns)
	db.SetConnMaxLifetime(o.ConnMaxLifetime)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Rebind rewrites '?' placeholders into the dialect's form. Queries in this
// module never contain a literal '?'.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SessionMode returns the statement that switches the current connection
// between read-only and read-write.
func (d Dialect) SessionMode(readOnly bool) string {
	switch d {
	case Postgres:
		if readOnly {
			return "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY"
		}
		return "SET SESSION CHARACTERISTICS AS TRANSACTION READ WRITE"
	case SQLite:
		if readOnly {
			return "PRAGMA query_only = ON"
		}
		return "PRAGMA query_only = OFF"
	default:
		if readOnly {
			return "SET SESSION TRANSACTION READ ONLY"
		}
		return "SET SESSION TRANSACTION READ WRITE"
	}
}

// IsUniqueViolation reports whether err is the driver's duplicate-key error.
func IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
