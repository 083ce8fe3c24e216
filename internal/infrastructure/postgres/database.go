package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var dbTracer = otel.Tracer("budgetbridge.db")

type DB struct {
	*sql.DB
}

// PoolConfig bounds the connection pool. Zero fields keep the defaults.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (p PoolConfig) withDefaults() PoolConfig {
	if p.MaxOpenConns == 0 {
		p.MaxOpenConns = 10
	}
	if p.MaxIdleConns == 0 {
		p.MaxIdleConns = 2
	}
	if p.ConnMaxLifetime == 0 {
		p.ConnMaxLifetime = 5 * time.Minute
	}
	return p
}

// New opens the pool and verifies the connection within ctx.
func New(ctx context.Context, connStr string, pool PoolConfig) (*DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pool = pool.withDefaults()
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// QueryContext runs a traced query.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span := startSpan(ctx, query)
	defer span.End()

	rows, err := db.DB.QueryContext(ctx, query, args...)
	fail(span, err)
	return rows, err
}

// row keeps the span open until Scan, where sql.Row reports its error.
type row struct {
	*sql.Row
	span trace.Span
}

func (r *row) Scan(dest ...any) error {
	err := r.Row.Scan(dest...)
	if r.span != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			fail(r.span, err)
		}
		r.span.End()
		r.span = nil
	}
	return err
}

// QueryRowContext runs a traced single-row query; the span ends in Scan.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *row {
	ctx, span := startSpan(ctx, query)
	return &row{Row: db.DB.QueryRowContext(ctx, query, args...), span: span}
}

// ExecContext runs a traced statement.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span := startSpan(ctx, query)
	defer span.End()

	result, err := db.DB.ExecContext(ctx, query, args...)
	fail(span, err)
	return result, err
}

// BeginTx starts a transaction under a "db.tx" span. Statements run on the
// returned *sql.Tx are not traced individually.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	ctx, span := dbTracer.Start(ctx, "db.tx", trace.WithAttributes(dbSystem))
	defer span.End()

	tx, err := db.DB.BeginTx(ctx, opts)
	fail(span, err)
	return tx, err
}

var dbSystem = attribute.String("db.system", "postgresql")

// startSpan names the span "<VERB> <table>". Every query here binds values
// through $N placeholders, so the statement text is recorded as is.
func startSpan(ctx context.Context, query string) (context.Context, trace.Span) {
	query = strings.Join(strings.Fields(query), " ")
	verb, table := describe(query)
	name := verb
	if table != "" {
		name += " " + table
	}
	return dbTracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		dbSystem,
		attribute.String("db.operation", verb),
		attribute.String("db.sql.table", table),
		attribute.String("db.statement", query),
	))
}

func fail(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// describe returns the statement verb and the first table it names.
func describe(query string) (verb, table string) {
	words := strings.Fields(query)
	if len(words) == 0 {
		return "", ""
	}
	verb = strings.ToUpper(words[0])

	var marker string
	switch verb {
	case "SELECT", "DELETE":
		marker = "FROM"
	case "INSERT":
		marker = "INTO"
	case "UPDATE":
		return verb, tableName(words, 1)
	default:
		return verb, ""
	}
	for i, w := range words {
		if strings.EqualFold(w, marker) {
			return verb, tableName(words, i+1)
		}
	}
	return verb, ""
}

func tableName(words []string, i int) string {
	if i >= len(words) {
		return ""
	}
	return strings.TrimFunc(words[i], func(r rune) bool {
		return r == '(' || r == ',' || r == ';'
	})
}
