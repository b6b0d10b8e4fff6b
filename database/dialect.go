package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// sqlitePragmas are applied to every new sqlite connection through the DSN,
// so they hold for each pooled connection and not only the first one.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"synchronous(NORMAL)",
	"busy_timeout(5000)",
	"temp_store(MEMORY)",
}

// dialect captures what differs between the supported databases.
type dialect struct {
	name       string
	driverName string
	numbered   bool // $1, $2 placeholders instead of ?
	types      *strings.Replacer
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite, "sqlite3":
		return dialect{
			name:       DriverSQLite,
			driverName: "sqlite",
			types: strings.NewReplacer(
				"{{id}}", "TEXT",
				"{{str}}", "TEXT",
				"{{text}}", "TEXT",
				"{{blob}}", "BLOB",
				"{{ts}}", "DATETIME",
				"{{int}}", "INTEGER",
				"{{bigint}}", "INTEGER",
			),
		}, nil
	case DriverMySQL, "mariadb":
		return dialect{
			name:       DriverMySQL,
			driverName: "mysql",
			types: strings.NewReplacer(
				"{{id}}", "VARCHAR(26)",
				"{{str}}", "VARCHAR(255)",
				"{{text}}", "TEXT",
				"{{blob}}", "MEDIUMBLOB",
				"{{ts}}", "DATETIME(6)",
				"{{int}}", "INT",
				"{{bigint}}", "BIGINT",
			),
		}, nil
	case DriverPostgres, "postgresql", "pgx":
		return dialect{
			name:       DriverPostgres,
			driverName: "pgx",
			numbered:   true,
			types: strings.NewReplacer(
				"{{id}}", "VARCHAR(26)",
				"{{str}}", "VARCHAR(255)",
				"{{text}}", "TEXT",
				"{{blob}}", "BYTEA",
				"{{ts}}", "TIMESTAMPTZ",
				"{{int}}", "INTEGER",
				"{{bigint}}", "BIGINT",
			),
		}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// ddl expands the column type placeholders of a schema statement.
func (d dialect) ddl(stmt string) string {
	return d.types.Replace(stmt)
}

// rebind rewrites ? placeholders as $n for dialects that need it.
// Queries in this package never contain a literal question mark.
func (d dialect) rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
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

// prepareDSN turns the configured DSN into what the driver expects.
func (d dialect) prepareDSN(dsn string) (string, error) {
	if strings.TrimSpace(dsn) == "" {
		return "", fmt.Errorf("empty DSN for driver %s", d.name)
	}
	switch d.name {
	case DriverSQLite:
		if strings.Contains(dsn, "_pragma=") {
			return dsn, nil
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		var b strings.Builder
		if !strings.HasPrefix(dsn, "file:") {
			b.WriteString("file:")
		}
		b.WriteString(dsn)
		for _, p := range sqlitePragmas {
			b.WriteString(sep)
			b.WriteString("_pragma=")
			b.WriteString(p)
			sep = "&"
		}
		return b.String(), nil
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", err
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		return cfg.FormatDSN(), nil
	case DriverPostgres:
		if _, err := pgconn.ParseConfig(dsn); err != nil {
			return "", err
		}
		return dsn, nil
	}
	return dsn, nil
}

// redact returns dsn with credentials removed, for logs.
func redact(d dialect, dsn string) string {
	switch d.name {
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "mysql://(unparseable)"
		}
		cfg.Passwd = ""
		return cfg.FormatDSN()
	case DriverPostgres:
		cfg, err := pgconn.ParseConfig(dsn)
		if err != nil {
			return "postgres://(unparseable)"
		}
		return fmt.Sprintf("postgres://%s@%s:%d/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)
	default:
		return dsn
	}
}
