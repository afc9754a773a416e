package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/raglab/raglab/internal/pkg/errors"
)

// sqliteTimeLayout stores timestamps as fixed-width UTC text so that
// lexicographic ordering matches chronological ordering. RFC3339Nano
// would trim trailing fractional zeros and break ORDER BY within the
// same second.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStorage persists executions in a SQLite database.
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
		CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			technique TEXT NOT NULL,
			answer TEXT,
			sources TEXT,
			latency_ms REAL,
			input_tokens INTEGER,
			output_tokens INTEGER,
			total_tokens INTEGER,
			cost_usd REAL,
			chunks_retrieved INTEGER,
			chunks_used INTEGER,
			faithfulness REAL,
			answer_relevancy REAL,
			context_precision REAL,
			context_recall REAL,
			created_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create executions table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_executions_technique ON executions(technique)",
		"CREATE INDEX IF NOT EXISTS idx_executions_created ON executions(created_at)",
	}
	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Insert durably appends an execution.
func (s *SQLiteStorage) Insert(ctx context.Context, e *Execution) error {
	sources, err := json.Marshal(e.Sources)
	if err != nil {
		return errors.StoreError("failed to marshal sources", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO executions (
			id, query, technique, answer, sources,
			latency_ms, input_tokens, output_tokens, total_tokens, cost_usd,
			chunks_retrieved, chunks_used,
			faithfulness, answer_relevancy, context_precision, context_recall,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.Query, e.Technique, e.Answer, string(sources),
		nullFloat(e.Metrics.LatencyMs), nullInt(e.Metrics.InputTokens),
		nullInt(e.Metrics.OutputTokens), nullInt(e.Metrics.TotalTokens),
		nullFloat(e.Metrics.CostUSD),
		nullInt(e.Metrics.ChunksRetrieved), nullInt(e.Metrics.ChunksUsed),
		nullFloat(e.Metrics.Faithfulness), nullFloat(e.Metrics.AnswerRelevancy),
		nullFloat(e.Metrics.ContextPrecision), nullFloat(e.Metrics.ContextRecall),
		e.CreatedAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return errors.StoreError("failed to insert execution", err)
	}

	return nil
}

// Get returns the execution with the given id.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*Execution, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" FROM executions WHERE id = ?", id)

	e, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError("execution")
	}
	if err != nil {
		return nil, errors.StoreError("failed to get execution", err)
	}

	return e, nil
}

// List returns executions matching the filter, ordered by created_at descending.
func (s *SQLiteStorage) List(ctx context.Context, f Filter) ([]*Execution, error) {
	where, args := buildWhere(f)

	query := selectColumns + " FROM executions" + where + " ORDER BY created_at DESC, id DESC"
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
		return nil, errors.StoreError("failed to list executions", err)
	}
	defer rows.Close()

	var executions []*Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, errors.StoreError("failed to scan execution", err)
		}
		executions = append(executions, e)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.StoreError("failed to iterate executions", err)
	}

	return executions, nil
}

// Delete removes executions matching the filter and returns the count deleted.
func (s *SQLiteStorage) Delete(ctx context.Context, f Filter) (int64, error) {
	where, args := buildWhere(f)

	result, err := s.db.ExecContext(ctx, "DELETE FROM executions"+where, args...)
	if err != nil {
		return 0, errors.StoreError("failed to delete executions", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, errors.StoreError("failed to count deleted rows", err)
	}

	return count, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

const selectColumns = `SELECT
	id, query, technique, answer, sources,
	latency_ms, input_tokens, output_tokens, total_tokens, cost_usd,
	chunks_retrieved, chunks_used,
	faithfulness, answer_relevancy, context_precision, context_recall,
	created_at`

// buildWhere translates a Filter into a WHERE clause. Date bounds are inclusive.
func buildWhere(f Filter) (string, []any) {
	var conditions []string
	var args []any

	if len(f.Techniques) > 0 {
		placeholders := make([]string, len(f.Techniques))
		for i, t := range f.Techniques {
			placeholders[i] = "?"
			args = append(args, t)
		}
		conditions = append(conditions, "technique IN ("+strings.Join(placeholders, ", ")+")")
	}

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

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(row scanner) (*Execution, error) {
	var e Execution
	var sources string
	var createdAt string
	var latencyMs, costUSD, faithfulness, answerRelevancy, contextPrecision, contextRecall sql.NullFloat64
	var inputTokens, outputTokens, totalTokens, chunksRetrieved, chunksUsed sql.NullInt64

	err := row.Scan(
		&e.ID, &e.Query, &e.Technique, &e.Answer, &sources,
		&latencyMs, &inputTokens, &outputTokens, &totalTokens, &costUSD,
		&chunksRetrieved, &chunksUsed,
		&faithfulness, &answerRelevancy, &contextPrecision, &contextRecall,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if sources != "" {
		if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
			// A malformed source list degrades to "no sources", never
			// fails the whole read
			e.Sources = nil
		}
	}

	// RFC3339Nano parsing accepts the fixed-width fractional form
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		e.CreatedAt = t
	}

	e.Metrics = Metrics{
		LatencyMs:        fromNullFloat(latencyMs),
		InputTokens:      fromNullInt(inputTokens),
		OutputTokens:     fromNullInt(outputTokens),
		TotalTokens:      fromNullInt(totalTokens),
		CostUSD:          fromNullFloat(costUSD),
		ChunksRetrieved:  fromNullInt(chunksRetrieved),
		ChunksUsed:       fromNullInt(chunksUsed),
		Faithfulness:     fromNullFloat(faithfulness),
		AnswerRelevancy:  fromNullFloat(answerRelevancy),
		ContextPrecision: fromNullFloat(contextPrecision),
		ContextRecall:    fromNullFloat(contextRecall),
	}

	return &e, nil
}

// Null conversion helpers preserve the null-vs-zero distinction across
// the SQL boundary.

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func fromNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func fromNullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
