package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"backend/internal/apperrors"
	"backend/internal/config"
	"backend/internal/models"
	"backend/internal/repositories"
)

// RecordStore executes generated DML against a confirmed table.
type RecordStore interface {
	SelectPage(ctx context.Context, table string, columns, orderBy []string, limit, offset int) ([]models.Row, error)
	Insert(ctx context.Context, table string, columns []string, values []any, returning []string) (models.Row, error)
	Update(ctx context.Context, table string, columns []string, values []any, keyColumn string, key any) (int64, error)
	Delete(ctx context.Context, table, keyColumn string, key any) (int64, error)
}

// SchemaReader is the part of SchemaService the record service depends on.
type SchemaReader interface {
	DescribeTable(ctx context.Context, name string) (*models.TableSchema, error)
	CountRows(ctx context.Context, name string) (models.RowCount, error)
}

// WriteOptions carries caller consent for writes that address rows through a
// guessed identity.
type WriteOptions struct {
	AcknowledgeGuessedIdentity bool
}

type RecordService struct {
	schemas SchemaReader
	records RecordStore
	cfg     config.TablesConfig
	log     *zap.SugaredLogger
}

func NewRecordService(schemas SchemaReader, records RecordStore, cfg config.TablesConfig, log *zap.SugaredLogger) *RecordService {
	return &RecordService{
		schemas: schemas,
		records: records,
		cfg:     cfg,
		log:     log,
	}
}

// FetchPage returns one page of rows ordered by the table's identity. Pages
// past the end come back empty with the real total.
func (s *RecordService) FetchPage(ctx context.Context, table string, page, limit int) (*models.RecordPage, error) {
	if page < 1 {
		return nil, apperrors.NewInvalidRequest("page must be at least 1")
	}
	if limit < 1 {
		return nil, apperrors.NewInvalidRequest("limit must be at least 1")
	}
	if limit > s.cfg.MaxPageLimit {
		limit = s.cfg.MaxPageLimit
	}

	schema, err := s.schemas.DescribeTable(ctx, table)
	if err != nil {
		return nil, err
	}

	count, err := s.schemas.CountRows(ctx, table)
	if err != nil {
		return nil, err
	}
	if !count.Known {
		return s.fetchUncounted(ctx, schema, page, limit)
	}

	pagination := models.NewPagination(page, limit, count.Total, count.Approximate)
	rows := []models.Row{}
	if pagination.InRange() {
		rows, err = s.selectPage(ctx, schema, limit, pagination.Offset())
		if err != nil {
			return nil, err
		}
	}

	return &models.RecordPage{
		TableName:  table,
		Rows:       rows,
		Pagination: pagination,
	}, nil
}

// fetchUncounted serves a page when neither a count nor an estimate is
// available. The total is a lower bound: the rows seen so far, plus one when
// a further row exists so the next page stays reachable.
func (s *RecordService) fetchUncounted(ctx context.Context, schema *models.TableSchema, page, limit int) (*models.RecordPage, error) {
	offset := (page - 1) * limit
	rows, err := s.selectPage(ctx, schema, limit+1, offset)
	if err != nil {
		return nil, err
	}

	total := int64(offset + len(rows))
	if len(rows) > limit {
		rows = rows[:limit]
	} else if len(rows) == 0 && page > 1 {
		total = 0
	}
	s.log.Warnw("row count unavailable, reporting a lower bound", "table", schema.TableName, "page", page, "total", total)

	return &models.RecordPage{
		TableName:  schema.TableName,
		Rows:       rows,
		Pagination: models.NewPagination(page, limit, total, true),
	}, nil
}

func (s *RecordService) selectPage(ctx context.Context, schema *models.TableSchema, limit, offset int) ([]models.Row, error) {
	return withReadRetry(ctx, s.cfg.ReadRetries, s.log, func(ctx context.Context) ([]models.Row, error) {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
		return s.records.SelectPage(ctx, schema.TableName, schema.ColumnNames(), pageOrder(schema), limit, offset)
	})
}

// unorderedTypes have no default btree operator class, so they cannot
// appear in ORDER BY. Arrays of them are listed by element type.
var unorderedTypes = map[string]bool{
	"json": true, "xml": true, "point": true, "line": true, "lseg": true,
	"box": true, "path": true, "polygon": true, "circle": true,
}

// pageOrder returns the identity columns a page is sorted by, leaving out
// any whose type cannot be ordered.
func pageOrder(schema *models.TableSchema) []string {
	order := make([]string, 0, len(schema.Identity.Columns))
	for _, name := range schema.Identity.Columns {
		if col, ok := schema.Column(name); ok && unorderedTypes[strings.TrimPrefix(col.UDTName, "_")] {
			continue
		}
		order = append(order, name)
	}
	return order
}

// Insert validates fields against the live schema and adds one row.
func (s *RecordService) Insert(ctx context.Context, table string, fields map[string]any, opts WriteOptions) (*models.InsertResult, error) {
	schema, err := s.schemas.DescribeTable(ctx, table)
	if err != nil {
		return nil, err
	}

	columns, values, err := prepareFields(schema, fields, true)
	if err != nil {
		return nil, err
	}
	if err := s.checkIdentity(schema, opts); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	record, err := s.records.Insert(ctx, table, columns, values, schema.ColumnNames())
	if err != nil {
		return nil, s.storeError("insert", table, err)
	}

	identity := models.IdentityValue{
		Column: schema.Identity.Column,
		Source: schema.Identity.Source,
		Value:  record[schema.Identity.Column],
	}
	s.log.Infow("row inserted", "table", table, "identity", identity.Value.Text(), "source", identity.Source)

	return &models.InsertResult{Identity: identity, Record: record}, nil
}

// Update sets fields on the single row addressed by identity.
func (s *RecordService) Update(ctx context.Context, table, identity string, fields map[string]any, opts WriteOptions) (*models.MutationResult, error) {
	schema, err := s.schemas.DescribeTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, apperrors.NewInvalidRequest("no fields to update")
	}

	columns, values, err := prepareFields(schema, fields, false)
	if err != nil {
		return nil, err
	}
	key, err := identityKey(schema, identity)
	if err != nil {
		return nil, err
	}
	if err := s.checkIdentity(schema, opts); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, apperrors.NewInvalidRequest("no fields to update")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	affected, err := s.records.Update(ctx, table, columns, values, schema.Identity.Column, key)
	if err != nil {
		return nil, s.mutationError("update", schema, identity, err)
	}
	if affected == 0 {
		return nil, apperrors.NewRecordNotFound(table, identity)
	}

	s.log.Infow("row updated", "table", table, "identity", identity, "columns", columns)
	return mutationResult(schema, identity, affected), nil
}

// Delete removes the single row addressed by identity.
func (s *RecordService) Delete(ctx context.Context, table, identity string, opts WriteOptions) (*models.MutationResult, error) {
	schema, err := s.schemas.DescribeTable(ctx, table)
	if err != nil {
		return nil, err
	}

	key, err := identityKey(schema, identity)
	if err != nil {
		return nil, err
	}
	if err := s.checkIdentity(schema, opts); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	affected, err := s.records.Delete(ctx, table, schema.Identity.Column, key)
	if err != nil {
		return nil, s.mutationError("delete", schema, identity, err)
	}
	if affected == 0 {
		return nil, apperrors.NewRecordNotFound(table, identity)
	}

	s.log.Infow("row deleted", "table", table, "identity", identity)
	return mutationResult(schema, identity, affected), nil
}

func mutationResult(schema *models.TableSchema, identity string, affected int64) *models.MutationResult {
	return &models.MutationResult{
		Identity: models.IdentityValue{
			Column: schema.Identity.Column,
			Source: schema.Identity.Source,
			Value:  models.String(identity),
		},
		RowsAffected: affected,
	}
}

func (s *RecordService) mutationError(op string, schema *models.TableSchema, identity string, err error) error {
	var multi *repositories.MultipleRowsError
	if errors.As(err, &multi) {
		s.log.Warnw("mutation rolled back, identity is not unique",
			"op", op,
			"table", schema.TableName,
			"column", schema.Identity.Column,
			"affected", multi.Affected,
		)
		return apperrors.NewAmbiguousIdentity(schema.TableName, schema.Identity.Column,
			fmt.Sprintf("%d rows have %s = %q; nothing was changed", multi.Affected, schema.Identity.Column, identity))
	}
	return s.storeError(op, schema.TableName, err)
}

func (s *RecordService) storeError(op, table string, err error) error {
	err = apperrors.FromStore(err)
	if apperrors.KindOf(err) == apperrors.Internal {
		s.log.Errorw("store rejected statement", "op", op, "table", table, "error", err)
	} else {
		s.log.Infow("store rejected statement", "op", op, "table", table, "kind", apperrors.KindOf(err), "error", err)
	}
	return err
}

// prepareFields validates a field map against the schema and returns the
// columns and coerced values to write, in schema order. Checks run in a
// fixed order so the first error reported is deterministic.
func prepareFields(schema *models.TableSchema, fields map[string]any, forInsert bool) ([]string, []any, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, ok := schema.Column(k); !ok {
			return nil, nil, apperrors.NewUnknownColumn(schema.TableName, k)
		}
	}
	for _, k := range keys {
		if col, _ := schema.Column(k); col.ReadOnly {
			return nil, nil, apperrors.NewInvalidFieldType(k, fields[k], "column is generated")
		}
	}

	var (
		columns []string
		values  []any
		missing string
	)
	for i := range schema.Columns {
		col := &schema.Columns[i]
		raw, ok := fields[col.Name]
		if !ok || isBlobPlaceholder(raw) {
			continue
		}

		if raw == nil || (raw == "" && !isTextual(col)) {
			if col.Nullable {
				columns = append(columns, col.Name)
				values = append(values, nil)
			} else if !forInsert && missing == "" {
				missing = col.Name
			}
			continue
		}

		v, err := coerceValue(col, raw)
		if err != nil {
			return nil, nil, err
		}
		columns = append(columns, col.Name)
		values = append(values, v)
	}

	if missing != "" {
		return nil, nil, apperrors.NewMissingRequiredField(schema.TableName, missing)
	}
	if forInsert {
		if err := checkRequired(schema, columns); err != nil {
			return nil, nil, err
		}
	}
	return columns, values, nil
}

func checkRequired(schema *models.TableSchema, supplied []string) error {
	present := make(map[string]struct{}, len(supplied))
	for _, c := range supplied {
		present[c] = struct{}{}
	}
	for _, col := range schema.Columns {
		if col.Nullable || col.DefaultValue != nil || col.IsAutoGenerated {
			continue
		}
		if _, ok := present[col.Name]; !ok {
			return apperrors.NewMissingRequiredField(schema.TableName, col.Name)
		}
	}
	return nil
}

// identityKey coerces the raw identity from the URL toward the identity
// column's type so a malformed value fails before the store sees it.
func identityKey(schema *models.TableSchema, identity string) (any, error) {
	if identity == "" {
		return nil, apperrors.NewInvalidRequest("identity value is required")
	}
	col, ok := schema.Column(schema.Identity.Column)
	if !ok {
		return nil, apperrors.NewInvalidRequest(fmt.Sprintf("table %q has no columns", schema.TableName))
	}
	return coerceValue(col, identity)
}

// checkIdentity refuses writes through an ambiguous identity unless the
// caller acknowledged it.
func (s *RecordService) checkIdentity(schema *models.TableSchema, opts WriteOptions) error {
	id := schema.Identity
	if !id.Ambiguous() {
		return nil
	}
	if opts.AcknowledgeGuessedIdentity {
		s.log.Warnw("write through acknowledged guessed identity",
			"table", schema.TableName, "column", id.Column, "source", id.Source, "columns", id.Columns)
		return nil
	}

	reason := "table has no primary key and no id column, so the first column is used"
	if id.Composite() {
		reason = fmt.Sprintf("primary key spans %s, only the first is used", strings.Join(id.Columns, ", "))
	}
	return apperrors.NewAmbiguousIdentity(schema.TableName, id.Column,
		reason+"; retry with acknowledgeGuessedIdentity to proceed")
}
