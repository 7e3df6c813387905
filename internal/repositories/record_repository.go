package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"backend/internal/models"
)

// MultipleRowsError is returned when an identity matched more than one row.
// The statement has been rolled back.
type MultipleRowsError struct {
	Affected int64
}

func (e *MultipleRowsError) Error() string {
	return fmt.Sprintf("statement matched %d rows, expected at most 1", e.Affected)
}

// RecordRepository generates DML for tables known only at runtime. Table and
// column names must already be confirmed against the catalog; they are
// quoted here again and values always travel as bound parameters.
type RecordRepository struct {
	db     DBTX
	schema string
}

func NewRecordRepository(db DBTX, schema string) *RecordRepository {
	return &RecordRepository{db: db, schema: schema}
}

// SelectPage fetches up to limit rows after offset, ordered by orderBy.
func (r *RecordRepository) SelectPage(ctx context.Context, table string, columns, orderBy []string, limit, offset int) ([]models.Row, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoteAll(columns), ", "), qualified(r.schema, table))
	if len(orderBy) > 0 {
		query += " ORDER BY " + strings.Join(quoteAll(orderBy), ", ")
	}
	query += " LIMIT $1 OFFSET $2"

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

// Insert adds one row and returns it as stored, including generated values.
func (r *RecordRepository) Insert(ctx context.Context, table string, columns []string, values []any, returning []string) (models.Row, error) {
	var query string
	if len(columns) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", qualified(r.schema, table))
	} else {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			qualified(r.schema, table),
			strings.Join(quoteAll(columns), ", "),
			placeholders(1, len(columns)),
		)
	}
	query += " RETURNING " + strings.Join(quoteAll(returning), ", ")

	rows, err := r.db.Query(ctx, query, values...)
	if err != nil {
		return nil, err
	}
	inserted, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(inserted) != 1 {
		return nil, fmt.Errorf("insert returned %d rows", len(inserted))
	}
	return inserted[0], nil
}

// Update sets columns on the single row whose keyColumn equals key and
// returns the number of rows affected (0 or 1).
func (r *RecordRepository) Update(ctx context.Context, table string, columns []string, values []any, keyColumn string, key any) (int64, error) {
	assignments := make([]string, len(columns))
	for i, c := range quoteAll(columns) {
		assignments[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		qualified(r.schema, table),
		strings.Join(assignments, ", "),
		pgx.Identifier{keyColumn}.Sanitize(),
		len(columns)+1,
	)

	args := append(append([]any{}, values...), key)
	return r.execSingleRow(ctx, query, args...)
}

// Delete removes the single row whose keyColumn equals key.
func (r *RecordRepository) Delete(ctx context.Context, table, keyColumn string, key any) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		qualified(r.schema, table),
		pgx.Identifier{keyColumn}.Sanitize(),
	)
	return r.execSingleRow(ctx, query, key)
}

// execSingleRow runs a statement in a transaction and commits only if it
// touched at most one row.
func (r *RecordRepository) execSingleRow(ctx context.Context, query string, args ...any) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	affected := tag.RowsAffected()
	if affected > 1 {
		return affected, &MultipleRowsError{Affected: affected}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return affected, nil
}

func placeholders(start, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(ph, ", ")
}
