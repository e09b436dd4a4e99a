package sqldb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iudanet/passprotect/internal/models"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// querier is satisfied by *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dialect captures what differs between the SQL engines.
type dialect struct {
	describe      func(ctx context.Context, q querier) ([]models.ColumnInfo, error)
	readOnly      func(ctx context.Context, conn *sql.Conn, fn func(q querier) error) error
	driverName    string
	lower         string
	gooseDialect  string
	migrationsDir string
	numbered      bool
}

var dialects = map[string]*dialect{
	DriverSQLite: {
		driverName:    "sqlite",
		lower:         sqliteLower,
		gooseDialect:  "sqlite3",
		migrationsDir: "migrations/sqlite",
		describe:      describeSQLite,
		readOnly:      readOnlySQLite,
	},
	DriverPostgres: {
		driverName:    "pgx",
		lower:         "LOWER",
		gooseDialect:  "postgres",
		migrationsDir: "migrations/postgres",
		numbered:      true,
		describe:      describePostgres,
		readOnly:      readOnlyPostgres,
	},
}

func lookupDialect(driver string) (*dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

// rebind rewrites ? placeholders into $1, $2, ... for numbered dialects.
// Queries built here never carry a literal question mark.
func (d *dialect) rebind(query string) string {
	if !d.numbered {
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

// isUniqueViolation reports whether err is a unique constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// readOnlySQLite switches the connection to query_only for the duration of fn.
func readOnlySQLite(ctx context.Context, conn *sql.Conn, fn func(q querier) error) error {
	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON;"); err != nil {
		return fmt.Errorf("failed to enable query_only: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA query_only = OFF;"); err != nil {
			discardConn(conn)
		}
	}()

	return fn(conn)
}

// discardConn closes conn instead of returning it to the pool.
func discardConn(conn *sql.Conn) {
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
}

// readOnlyPostgres runs fn inside a READ ONLY transaction that is always rolled back.
func readOnlyPostgres(ctx context.Context, conn *sql.Conn, fn func(q querier) error) error {
	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}

func describeSQLite(ctx context.Context, q querier) ([]models.ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, `PRAGMA table_info("passprotect")`)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table: %w", err)
	}
	defer rows.Close()

	var columns []models.ColumnInfo
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, models.ColumnInfo{
			Name:     name,
			Type:     typ,
			Default:  dflt.String,
			Nullable: notNull == 0 && pk == 0,
			Primary:  pk > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	return columns, nil
}

func describePostgres(ctx context.Context, q querier) ([]models.ColumnInfo, error) {
	query := `
		SELECT c.column_name, c.data_type, COALESCE(c.column_default, ''), c.is_nullable = 'YES',
			EXISTS (
				SELECT 1
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage k
					ON k.constraint_name = tc.constraint_name AND k.table_name = tc.table_name
				WHERE tc.table_name = c.table_name
					AND tc.constraint_type = 'PRIMARY KEY'
					AND k.column_name = c.column_name
			)
		FROM information_schema.columns c
		WHERE c.table_name = 'passprotect' AND c.table_schema = current_schema()
		ORDER BY c.ordinal_position
	`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table: %w", err)
	}
	defer rows.Close()

	var columns []models.ColumnInfo
	for rows.Next() {
		var c models.ColumnInfo
		if err := rows.Scan(&c.Name, &c.Type, &c.Default, &c.Nullable, &c.Primary); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	return columns, nil
}
