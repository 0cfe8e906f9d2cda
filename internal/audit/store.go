package audit

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Store provides durable storage for the audit trail.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect audit database: %w", err)
	}

	// SQLite only supports one writer at a time; a single connection
	// avoids SQLITE_BUSY on concurrent appends.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// Append durably inserts an entry. The caller must surface a failure, not
// suppress it: the engine commits a state change only after its audit
// entry has been appended. Duplicate ids are ignored (idempotent append).
func (s *Store) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("append audit entry: missing id")
	}
	if e.Action == "" || e.Level == "" {
		return fmt.Errorf("append audit entry %s: missing action or level", e.ID)
	}

	beforeJSON, err := marshalSnapshot(e.Before)
	if err != nil {
		return fmt.Errorf("append audit entry %s: before snapshot: %w", e.ID, err)
	}
	afterJSON, err := marshalSnapshot(e.After)
	if err != nil {
		return fmt.Errorf("append audit entry %s: after snapshot: %w", e.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries
		(id, order_id, order_number, action, level, description,
		 before_data, after_data, performed_by, performed_by_name,
		 financial_impact, seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		e.OrderID,
		e.OrderNumber,
		string(e.Action),
		string(e.Level),
		e.Description,
		beforeJSON,
		afterJSON,
		e.PerformedBy,
		e.PerformedByName,
		e.FinancialImpact,
		e.Seq,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append audit entry %s: %w", e.ID, err)
	}
	return nil
}

// Query returns entries matching the filter, newest first. The free-text
// search is applied after the structured filters.
func (s *Store) Query(ctx context.Context, f Filter) ([]Entry, error) {
	query := `
		SELECT id, order_id, order_number, action, level, description,
		       before_data, after_data, performed_by, performed_by_name,
		       financial_impact, seq, created_at
		FROM audit_entries
		WHERE 1=1`
	var args []any

	if f.OrderID != "" {
		query += " AND order_id = ?"
		args = append(args, f.OrderID)
	}
	if f.Action != "" {
		query += " AND action = ?"
		args = append(args, string(f.Action))
	}
	if f.Level != "" {
		query += " AND level = ?"
		args = append(args, string(f.Level))
	}
	if f.UserID != "" {
		query += " AND performed_by = ?"
		args = append(args, f.UserID)
	}
	if !f.From.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, f.From.UTC().Format(time.RFC3339Nano))
	}
	if !f.To.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, f.To.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY created_at DESC, seq DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if f.Search != "" && !matchesSearch(e, f.Search) {
			continue
		}
		entries = append(entries, e)
		if f.Limit > 0 && len(entries) == f.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

// Analytics computes aggregate counts over the given window on demand.
// Zero times mean an unbounded window edge.
func (s *Store) Analytics(ctx context.Context, from, to time.Time) (*Analytics, error) {
	where := " WHERE 1=1"
	var args []any
	if !from.IsZero() {
		where += " AND created_at >= ?"
		args = append(args, from.UTC().Format(time.RFC3339Nano))
	}
	if !to.IsZero() {
		where += " AND created_at <= ?"
		args = append(args, to.UTC().Format(time.RFC3339Nano))
	}

	a := &Analytics{
		ByAction: make(map[Action]int),
		ByUser:   make(map[string]int),
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN level = 'error' OR level = 'critical' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN level = 'warning' THEN 1 ELSE 0 END), 0)
		FROM audit_entries`+where, args...)
	if err := row.Scan(&a.TotalOperations, &a.ErrorCount, &a.WarningCount); err != nil {
		return nil, fmt.Errorf("audit analytics totals: %w", err)
	}

	if err := s.groupCounts(ctx, "action", where, args, func(key string, n int) {
		a.ByAction[Action(key)] = n
	}); err != nil {
		return nil, err
	}
	if err := s.groupCounts(ctx, "performed_by", where, args, func(key string, n int) {
		a.ByUser[key] = n
	}); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) groupCounts(ctx context.Context, column, where string, args []any, add func(string, int)) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM audit_entries"+where+" GROUP BY "+column, args...)
	if err != nil {
		return fmt.Errorf("audit analytics by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		add(key, n)
	}
	return rows.Err()
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e          Entry
		action     string
		level      string
		beforeJSON sql.NullString
		afterJSON  sql.NullString
		impact     sql.NullFloat64
		createdAt  string
	)
	if err := rows.Scan(
		&e.ID, &e.OrderID, &e.OrderNumber, &action, &level, &e.Description,
		&beforeJSON, &afterJSON, &e.PerformedBy, &e.PerformedByName,
		&impact, &e.Seq, &createdAt,
	); err != nil {
		return Entry{}, fmt.Errorf("scan audit entry: %w", err)
	}
	e.Action = Action(action)
	e.Level = Level(level)

	if beforeJSON.Valid && beforeJSON.String != "" {
		if err := json.Unmarshal([]byte(beforeJSON.String), &e.Before); err != nil {
			return Entry{}, fmt.Errorf("decode before snapshot of %s: %w", e.ID, err)
		}
	}
	if afterJSON.Valid && afterJSON.String != "" {
		if err := json.Unmarshal([]byte(afterJSON.String), &e.After); err != nil {
			return Entry{}, fmt.Errorf("decode after snapshot of %s: %w", e.ID, err)
		}
	}
	if impact.Valid {
		v := impact.Float64
		e.FinancialImpact = &v
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse timestamp of %s: %w", e.ID, err)
	}
	e.Timestamp = ts
	return e, nil
}

func marshalSnapshot(snap map[string]any) (any, error) {
	if snap == nil {
		return nil, nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
