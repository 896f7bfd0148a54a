// Package database handles relational persistence for documents, jobs and
// the records around them.
//
// Go Pattern: We use the `sqlx` package which extends Go's standard `database/sql`
// with convenient features like scanning rows into structs. Unlike an ORM,
// you write raw SQL, which gives you full control.
//
// Two drivers are supported: PostgreSQL (lib/pq) for deployments and SQLite
// (mattn/go-sqlite3) for single-node installs and tests. Every query is
// written once with `?` placeholders and passed through Rebind, and IDs and
// timestamps are generated in Go, so the same SQL text serves both.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // PostgreSQL driver; also used to inspect error codes
	"github.com/mattn/go-sqlite3"
)

// Supported driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

var (
	// ErrNotFound is returned when a row does not exist or belongs to another owner.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("already exists")
)

// DB wraps the sqlx database connection with our application-specific methods.
// Go Pattern: Embedding (*sqlx.DB) gives us all of sqlx's methods automatically,
// plus we can add our own. This is Go's version of inheritance: composition.
type DB struct {
	*sqlx.DB
	driver string
}

// New opens a connection pool for the given driver and verifies it with a ping.
func New(driver, databaseURL string) (*DB, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		databaseURL = sqliteDSN(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	// sqlx.Connect both opens the connection and pings the database
	db, err := sqlx.Connect(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY
		// and keeps per-connection pragmas (foreign keys) in effect.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(2 * time.Minute)
		db.SetConnMaxIdleTime(30 * time.Second)
	}

	return &DB{DB: db, driver: driver}, nil
}

// Driver returns the driver name the pool was opened with.
func (db *DB) Driver() string {
	return db.driver
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// sqliteDSN turns a plain path into a DSN with foreign keys enabled.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// newID returns a fresh row identifier.
func newID() string {
	return uuid.New().String()
}

// now returns the current time truncated to microseconds, the precision
// postgres stores, so values round-trip identically on both drivers.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// notFound maps sql.ErrNoRows to ErrNotFound and wraps anything else.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// isUniqueViolation reports whether err is a unique-constraint failure on either driver.
func isUniqueViolation(err error) bool {
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

// expectOne turns a zero-row UPDATE/DELETE into ErrNotFound.
func expectOne(res sql.Result, what string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// PageBounds normalizes page/per_page the way every list endpoint does.
func PageBounds(page, perPage int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage, (page - 1) * perPage
}
