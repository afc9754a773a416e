package analyst

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/raglab/raglab/internal/pkg/errors"
)

// sqliteTimeLayout stores timestamps as fixed-width UTC text so that
// lexicographic ordering matches chronological ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStorage persists analyses in a SQLite database. The file may
// be shared with the execution store; each uses its own table.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at path and ensures
// the schema exists. Use ":memory:" for an ephemeral database.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStorage{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStorage) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS analyses (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			response TEXT NOT NULL,
			duration_ms REAL,
			created_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create analyses table: %w", err)
	}

	_, err = s.db.Exec("CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at)")
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Insert durably appends an analysis.
func (s *SQLiteStorage) Insert(ctx context.Context, a *Analysis) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, question, response, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		a.ID, a.Question, a.Response, a.DurationMs,
		a.CreatedAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return errors.StoreError("failed to insert analysis", err)
	}

	return nil
}

// Get returns the analysis with the given id.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*Analysis, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, question, response, duration_ms, created_at FROM analyses WHERE id = ?", id)

	a, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError("analysis")
	}
	if err != nil {
		return nil, errors.StoreError("failed to get analysis", err)
	}

	return a, nil
}

// List returns analyses matching the filter, ordered by created_at
// descending, plus the total match count before pagination.
func (s *SQLiteStorage) List(ctx context.Context, f Filter) ([]*Analysis, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM analyses"+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.StoreError("failed to count analyses", err)
	}

	query := "SELECT id, question, response, duration_ms, created_at FROM analyses" +
		where + " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
		if f.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", f.Offset)
		}
	} else if f.Offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.StoreError("failed to list analyses", err)
	}
	defer rows.Close()

	var analyses []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, errors.StoreError("failed to scan analysis", err)
		}
		analyses = append(analyses, a)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, errors.StoreError("failed to iterate analyses", err)
	}

	return analyses, total, nil
}

// Delete removes the analysis with the given id.
func (s *SQLiteStorage) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM analyses WHERE id = ?", id)
	if err != nil {
		return errors.StoreError("failed to delete analysis", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return errors.StoreError("failed to count deleted rows", err)
	}
	if count == 0 {
		return errors.NotFoundError("analysis")
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// buildWhere translates a Filter into a WHERE clause. Date bounds are inclusive.
func buildWhere(f Filter) (string, []any) {
	var conditions []string
	var args []any

	if f.From != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, f.From.UTC().Format(sqliteTimeLayout))
	}

	if f.To != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, f.To.UTC().Format(sqliteTimeLayout))
	}

	if len(conditions) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (*Analysis, error) {
	var a Analysis
	var createdAt string

	if err := row.Scan(&a.ID, &a.Question, &a.Response, &a.DurationMs, &createdAt); err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		a.CreatedAt = t
	}

	return &a, nil
}
