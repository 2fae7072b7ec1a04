// Package postgres provides a PostgreSQL audit store for delegations.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/AshkanYarmoradi/go-herald/adapters"
)

// Ensure interface compliance at compile time
var (
	_ adapters.AuditStore    = (*AuditStore)(nil)
	_ adapters.HealthChecker = (*AuditStore)(nil)
)

// identifierPattern matches unquoted PostgreSQL identifiers.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// AuditStore is a PostgreSQL implementation of adapters.AuditStore.
type AuditStore struct {
	db     *sql.DB
	schema string
	table  string
	owned  bool
	closed bool
}

// AuditStoreOption configures an AuditStore
type AuditStoreOption func(*AuditStore)

// WithSchema sets the PostgreSQL schema for the audit table.
func WithSchema(schema string) AuditStoreOption {
	return func(s *AuditStore) {
		s.schema = schema
	}
}

// WithTable sets the audit table name.
func WithTable(table string) AuditStoreOption {
	return func(s *AuditStore) {
		s.table = table
	}
}

// WithMaxConnections sets the maximum number of open connections.
func WithMaxConnections(n int) AuditStoreOption {
	return func(s *AuditStore) {
		s.db.SetMaxOpenConns(n)
	}
}

// WithConnectionMaxLifetime sets the maximum connection lifetime.
func WithConnectionMaxLifetime(d time.Duration) AuditStoreOption {
	return func(s *AuditStore) {
		s.db.SetConnMaxLifetime(d)
	}
}

// Open connects to PostgreSQL through the pgx driver. The returned store owns
// the connection and closes it on Close.
func Open(connStr string, opts ...AuditStoreOption) (*AuditStore, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("herald/postgres: failed to open database: %w", err)
	}

	s := NewAuditStore(db, opts...)
	s.owned = true
	return s, nil
}

// NewAuditStore creates an AuditStore on an existing connection.
func NewAuditStore(db *sql.DB, opts ...AuditStoreOption) *AuditStore {
	s := &AuditStore{
		db:     db,
		schema: "public",
		table:  "herald_delegations",
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// validateIdentifier checks if a name is a valid PostgreSQL identifier.
func validateIdentifier(name, kind string) error {
	if name == "" {
		return fmt.Errorf("herald/postgres: %s name cannot be empty", kind)
	}
	if len(name) > 63 {
		return fmt.Errorf("herald/postgres: %s name exceeds 63 characters", kind)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("herald/postgres: %s name contains invalid characters", kind)
	}
	return nil
}

// fullTableName returns the fully qualified and quoted table name.
func (s *AuditStore) fullTableName() string {
	return pq.QuoteIdentifier(s.schema) + "." + pq.QuoteIdentifier(s.table)
}

// Initialize creates the schema and audit table if they don't exist.
func (s *AuditStore) Initialize(ctx context.Context) error {
	if err := validateIdentifier(s.schema, "schema"); err != nil {
		return err
	}
	if err := validateIdentifier(s.table, "table"); err != nil {
		return err
	}

	tableQ := s.fullTableName()
	query := `
		CREATE SCHEMA IF NOT EXISTS ` + pq.QuoteIdentifier(s.schema) + `;

		CREATE TABLE IF NOT EXISTS ` + tableQ + ` (
			position       BIGSERIAL PRIMARY KEY,
			id             VARCHAR(255) NOT NULL UNIQUE,
			event_name     VARCHAR(500) NOT NULL,
			command_type   VARCHAR(500) NOT NULL,
			command_id     VARCHAR(255),
			correlation_id VARCHAR(255),
			causation_id   VARCHAR(255),
			success        BOOLEAN NOT NULL,
			error          TEXT,
			duration_ns    BIGINT NOT NULL,
			started_at     TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS ` + pq.QuoteIdentifier("idx_"+s.table+"_correlation") + ` ON ` + tableQ + ` (correlation_id);
		CREATE INDEX IF NOT EXISTS ` + pq.QuoteIdentifier("idx_"+s.table+"_started_at") + ` ON ` + tableQ + ` (started_at);
	`

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("herald/postgres: failed to create audit table: %w", err)
	}
	return nil
}

// Record inserts one audit record. Records with an existing ID are ignored.
func (s *AuditStore) Record(ctx context.Context, record *adapters.AuditRecord) error {
	if s.closed {
		return adapters.ErrAdapterClosed
	}
	if err := record.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO ` + s.fullTableName() + ` (
			id, event_name, command_type, command_id, correlation_id, causation_id,
			success, error, duration_ns, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.EventName,
		record.CommandType,
		nullable(record.CommandID),
		nullable(record.CorrelationID),
		nullable(record.CausationID),
		record.Success,
		nullable(record.Error),
		int64(record.Duration),
		record.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("herald/postgres: failed to record delegation: %w", err)
	}
	return nil
}

// Query returns matching records ordered by start time, oldest first.
func (s *AuditStore) Query(ctx context.Context, filter adapters.AuditFilter) ([]*adapters.AuditRecord, error) {
	if s.closed {
		return nil, adapters.ErrAdapterClosed
	}

	where, args := buildWhere(filter)
	args = append(args, adapters.DefaultLimit(filter.Limit, adapters.DefaultAuditLimit))

	query := `
		SELECT id, event_name, command_type,
			COALESCE(command_id, ''), COALESCE(correlation_id, ''), COALESCE(causation_id, ''),
			success, COALESCE(error, ''), duration_ns, started_at
		FROM ` + s.fullTableName() + where + `
		ORDER BY started_at, position
		LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("herald/postgres: failed to query delegations: %w", err)
	}
	defer rows.Close()

	result := make([]*adapters.AuditRecord, 0)
	for rows.Next() {
		var (
			r        adapters.AuditRecord
			duration int64
		)
		if err := rows.Scan(
			&r.ID, &r.EventName, &r.CommandType,
			&r.CommandID, &r.CorrelationID, &r.CausationID,
			&r.Success, &r.Error, &duration, &r.StartedAt,
		); err != nil {
			return nil, fmt.Errorf("herald/postgres: failed to scan delegation: %w", err)
		}
		r.Duration = time.Duration(duration)
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("herald/postgres: failed to read delegations: %w", err)
	}
	return result, nil
}

// Count returns the number of matching records.
func (s *AuditStore) Count(ctx context.Context, filter adapters.AuditFilter) (int64, error) {
	if s.closed {
		return 0, adapters.ErrAdapterClosed
	}

	where, args := buildWhere(filter)
	query := `SELECT COUNT(*) FROM ` + s.fullTableName() + where

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("herald/postgres: failed to count delegations: %w", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (s *AuditStore) Ping(ctx context.Context) error {
	if s.closed {
		return adapters.ErrAdapterClosed
	}
	return s.db.PingContext(ctx)
}

// Close marks the store closed and closes the connection if the store opened it.
func (s *AuditStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.owned {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database connection.
func (s *AuditStore) DB() *sql.DB {
	return s.db
}

// Schema returns the schema name.
func (s *AuditStore) Schema() string {
	return s.schema
}

// Table returns the table name.
func (s *AuditStore) Table() string {
	return s.table
}

// buildWhere turns a filter into a WHERE clause with positional arguments.
func buildWhere(filter adapters.AuditFilter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.CorrelationID != "" {
		args = append(args, filter.CorrelationID)
		conditions = append(conditions, "correlation_id = $"+strconv.Itoa(len(args)))
	}
	if filter.EventName != "" {
		args = append(args, filter.EventName)
		conditions = append(conditions, "event_name = $"+strconv.Itoa(len(args)))
	}
	if filter.FailedOnly {
		conditions = append(conditions, "success = false")
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
