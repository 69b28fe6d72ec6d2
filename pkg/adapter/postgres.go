package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dbrevel/queryplane/internal/apperrors"
	"github.com/dbrevel/queryplane/pkg/model"
)

// querier is the subset of *sql.DB the Postgres adapter depends on, kept as
// an interface so tests can substitute a fake without a live database —
// mirrors the teacher's habit of driving everything off database/sql rather
// than a vendor-specific client type.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PingContext(ctx context.Context) error
	Close() error
}

// Postgres is the relational adapter (spec.md §4.2), grounded on
// postgres.py's introspect_schema/execute/health_check and on
// rezakhademix-zorm's database/sql + pgx/v5/stdlib pool-construction idiom.
type Postgres struct {
	db   querier
	name string

	schemaOnce sync.Once
	schema     model.DatabaseSchema
	schemaErr  error
}

// OpenPostgres opens a pooled connection using the pgx stdlib driver,
// applying the teacher's exact SetMaxIdleConns/SetMaxOpenConns/
// SetConnMaxLifetime configuration idiom (server/server.go's sql.Open call).
func OpenPostgres(dsn string, cfg PoolConfig) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, apperrors.New(apperrors.ConnectionLost, "adapter.OpenPostgres", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdle)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.New(apperrors.ConnectionLost, "adapter.OpenPostgres", err)
	}

	return newPostgresWithQuerier(db), nil
}

func newPostgresWithQuerier(q querier) *Postgres {
	return &Postgres{db: q, name: model.AdapterPostgres}
}

func (p *Postgres) Name() string { return p.name }

// schemaQuery joins information_schema.tables/columns with the primary- and
// foreign-key constraint views, matching postgres.py's single introspection
// query rather than N+1 per-table round trips.
const schemaQuery = `
SELECT
	t.table_name,
	c.column_name,
	c.data_type,
	c.is_nullable,
	COALESCE(pk.is_primary, false) AS is_primary,
	fk.foreign_table AS foreign_key
FROM information_schema.tables t
JOIN information_schema.columns c ON c.table_name = t.table_name AND c.table_schema = t.table_schema
LEFT JOIN (
	SELECT kcu.table_name, kcu.column_name, true AS is_primary
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
	WHERE tc.constraint_type = 'PRIMARY KEY'
) pk ON pk.table_name = t.table_name AND pk.column_name = c.column_name
LEFT JOIN (
	SELECT kcu.table_name, kcu.column_name, ccu.table_name || '.' || ccu.column_name AS foreign_table
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
	JOIN information_schema.constraint_column_usage ccu
		ON ccu.constraint_name = tc.constraint_name
	WHERE tc.constraint_type = 'FOREIGN KEY'
) fk ON fk.table_name = t.table_name AND fk.column_name = c.column_name
WHERE t.table_schema = 'public'
ORDER BY t.table_name, c.ordinal_position
`

// IntrospectSchema introspects and caches the schema exactly once per
// adapter instance, per invariant 8.
func (p *Postgres) IntrospectSchema(ctx context.Context) (model.DatabaseSchema, error) {
	p.schemaOnce.Do(func() {
		p.schema, p.schemaErr = p.introspect(ctx)
	})
	return p.schema, p.schemaErr
}

func (p *Postgres) introspect(ctx context.Context) (model.DatabaseSchema, error) {
	rows, err := p.db.QueryContext(ctx, schemaQuery)
	if err != nil {
		return model.DatabaseSchema{}, apperrors.New(apperrors.SchemaIntrospectionError, "adapter.Postgres.IntrospectSchema", err)
	}
	defer rows.Close()

	tables := make(map[string]model.TableSchema)
	order := make([]string, 0)

	for rows.Next() {
		var (
			tableName, columnName, dataType, isNullable string
			isPrimary                                   bool
			foreignKey                                  sql.NullString
		)
		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable, &isPrimary, &foreignKey); err != nil {
			return model.DatabaseSchema{}, apperrors.New(apperrors.SchemaIntrospectionError, "adapter.Postgres.IntrospectSchema", err)
		}

		t, ok := tables[tableName]
		if !ok {
			order = append(order, tableName)
			t = model.TableSchema{Name: tableName}
		}
		t.Columns = append(t.Columns, model.ColumnSchema{
			Name:       columnName,
			Type:       dataType,
			Nullable:   strings.EqualFold(isNullable, "YES"),
			IsPrimary:  isPrimary,
			ForeignKey: foreignKey.String,
		})
		tables[tableName] = t
	}
	if err := rows.Err(); err != nil {
		return model.DatabaseSchema{}, apperrors.New(apperrors.SchemaIntrospectionError, "adapter.Postgres.IntrospectSchema", err)
	}

	for _, name := range order {
		t := tables[name]
		count, err := p.rowCount(ctx, name)
		if err != nil {
			// A single table's row-count failure does not abort introspection
			// of the rest of the catalog, matching postgres.py's per-table
			// try/except around the count query.
			log.Printf("[adapter.postgres] row count failed for table=%s: %v", name, err)
			count = 0
		}
		t.RowCount = &count
		tables[name] = t
	}

	return model.DatabaseSchema{
		Kind:   model.KindRelational,
		Name:   p.name,
		Tables: tables,
	}, nil
}

func (p *Postgres) rowCount(ctx context.Context, table string) (int64, error) {
	// Double-quote escaping matches postgres.py's
	// table_name.replace('"', '""') identifier quoting.
	escaped := strings.ReplaceAll(table, `"`, `""`)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, escaped)

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, err
		}
	}
	return count, rows.Err()
}

// Execute runs a parameterized SQL query, appending a LIMIT clause when the
// caller's query doesn't already declare one, matching postgres.py's
// execute(query, params, max_rows) behavior.
func (p *Postgres) Execute(ctx context.Context, query model.DatabaseQuery, maxRows int) ([]model.Record, error) {
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}

	sqlText := query.SQL
	if !strings.Contains(strings.ToUpper(sqlText), "LIMIT") {
		sqlText = fmt.Sprintf("%s LIMIT %d", sqlText, maxRows)
	}

	rows, err := p.db.QueryContext(ctx, sqlText, query.Parameters...)
	if err != nil {
		return nil, apperrors.New(apperrors.ConnectionLost, "adapter.Postgres.Execute", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, apperrors.New(apperrors.ConnectionLost, "adapter.Postgres.Execute", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, apperrors.New(apperrors.ConnectionLost, "adapter.Postgres.Execute", err)
	}

	var records []model.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperrors.New(apperrors.ConnectionLost, "adapter.Postgres.Execute", err)
		}

		rec := make(model.Record, len(cols))
		for i, col := range cols {
			rec[col] = convertDatabaseValue(values[i], colTypes[i])
		}
		records = append(records, rec)

		if len(records) >= maxRows {
			log.Printf("[adapter.postgres] WARN row cap %d reached for query", maxRows)
			break
		}
	}
	return records, rows.Err()
}

// convertDatabaseValue converts a scanned value the way the teacher's
// server.convertDatabaseValue does: []byte is stringified so integer and
// decimal types don't lose precision when passed through any later JSON
// encoding step.
func convertDatabaseValue(val any, colType *sql.ColumnType) any {
	// Every []byte column - numeric or text - is stringified so integer and
	// decimal types don't lose precision passing through a later JSON
	// encode. colType is not consulted.
	if b, ok := val.([]byte); ok {
		return string(b)
	}
	return val
}

// healthCheckIntervals is the fixed linear 0.5s/1.0s/1.5s backoff schedule
// before each of the three liveness retries (spec.md §4.2), distinct from the
// exponential policy pkg/retry implements elsewhere.
var healthCheckIntervals = []time.Duration{500 * time.Millisecond, time.Second, 1500 * time.Millisecond}

// HealthCheck pings the database (PingContext), retrying up to 3 times with
// a linear 0.5s/1.0s/1.5s backoff, matching spec.md §4.2's liveness contract.
func (p *Postgres) HealthCheck(ctx context.Context) Health {
	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= len(healthCheckIntervals); attempt++ {
		lastErr = p.db.PingContext(ctx)
		if lastErr == nil {
			return Health{OK: true, Latency: time.Since(start)}
		}
		if attempt == len(healthCheckIntervals) {
			break
		}
		select {
		case <-ctx.Done():
			return Health{OK: false, Latency: time.Since(start), Err: ctx.Err()}
		case <-time.After(healthCheckIntervals[attempt]):
		}
	}
	return Health{OK: false, Latency: time.Since(start), Err: lastErr}
}

func (p *Postgres) Close(ctx context.Context) error {
	return p.db.Close()
}
