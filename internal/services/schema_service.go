package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"backend/internal/apperrors"
	"backend/internal/config"
	"backend/internal/models"
	"backend/internal/repositories"
)

// CatalogStore is the read side of the store's catalog.
type CatalogStore interface {
	GetTables(ctx context.Context) ([]repositories.TableStat, error)
	TableExists(ctx context.Context, name string) (bool, error)
	EstimateRows(ctx context.Context, table string) (int64, error)
	CountRows(ctx context.Context, table string) (int64, error)
	GetColumns(ctx context.Context, table string) ([]models.ColumnDescriptor, error)
}

type SchemaService struct {
	catalog CatalogStore
	cache   repositories.SchemaCache
	cfg     config.TablesConfig
	log     *zap.SugaredLogger
}

// NewSchemaService creates a new SchemaService. A nil cache disables caching.
func NewSchemaService(catalog CatalogStore, cache repositories.SchemaCache, cfg config.TablesConfig, log *zap.SugaredLogger) *SchemaService {
	if cache == nil {
		cache = repositories.NoopSchemaCache{}
	}
	return &SchemaService{
		catalog: catalog,
		cache:   cache,
		cfg:     cfg,
		log:     log,
	}
}

// ListTables returns every base table with its row count. Small tables are
// counted exactly and in parallel; large ones report the planner estimate.
func (s *SchemaService) ListTables(ctx context.Context) ([]models.TableCatalogEntry, error) {
	stats, err := withReadRetry(ctx, s.cfg.ReadRetries, s.log, s.catalog.GetTables)
	if err != nil {
		return nil, err
	}

	entries := make([]models.TableCatalogEntry, len(stats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.CountConcurrency)
	for i, stat := range stats {
		g.Go(func() error {
			count, err := s.count(gctx, stat.Name, stat.Estimate)
			if err != nil {
				return err
			}
			entries[i] = catalogEntry(stat.Name, count)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.FromStore(err)
	}

	return entries, nil
}

func catalogEntry(name string, count models.RowCount) models.TableCatalogEntry {
	entry := models.TableCatalogEntry{Name: name, RowCountApproximate: count.Approximate}
	if count.Known {
		total := count.Total
		entry.RowCount = &total
	}
	return entry
}

// DescribeTable returns the columns and resolved identity of a table. The
// table's existence is checked against the live catalog on every call.
func (s *SchemaService) DescribeTable(ctx context.Context, name string) (*models.TableSchema, error) {
	if err := s.requireTable(ctx, name); err != nil {
		return nil, err
	}

	columns, hit, err := s.cache.Get(ctx, name)
	if err != nil {
		s.log.Warnw("schema cache read failed", "table", name, "error", err)
	}
	if !hit {
		columns, err = withReadRetry(ctx, s.cfg.ReadRetries, s.log, func(ctx context.Context) ([]models.ColumnDescriptor, error) {
			return s.catalog.GetColumns(ctx, name)
		})
		if err != nil {
			return nil, err
		}
		// no visible columns means the table vanished or is not readable
		if len(columns) == 0 {
			return nil, apperrors.NewUnknownTable(name)
		}
		if err := s.cache.Set(ctx, name, columns); err != nil {
			s.log.Warnw("schema cache write failed", "table", name, "error", err)
		}
	}

	schema := &models.TableSchema{TableName: name, Columns: columns}
	if err := checkUniqueColumns(schema); err != nil {
		return nil, err
	}
	schema.Identity = ResolveKey(schema)
	return schema, nil
}

func checkUniqueColumns(schema *models.TableSchema) error {
	seen := make(map[string]struct{}, len(schema.Columns))
	for _, c := range schema.Columns {
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("table %q reports column %q twice", schema.TableName, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

// CountRows counts one table using the same strategy as ListTables. Known is
// false when neither an exact count nor an estimate could be obtained.
func (s *SchemaService) CountRows(ctx context.Context, name string) (models.RowCount, error) {
	if err := s.requireTable(ctx, name); err != nil {
		return models.RowCount{}, err
	}

	estimate, err := withReadRetry(ctx, s.cfg.ReadRetries, s.log, func(ctx context.Context) (int64, error) {
		return s.catalog.EstimateRows(ctx, name)
	})
	if err != nil {
		return models.RowCount{}, err
	}
	return s.count(ctx, name, estimate)
}

// count applies the row-count strategy. estimate is -1 when the planner has
// no statistics. Only cancellation of ctx itself is returned as an error.
func (s *SchemaService) count(ctx context.Context, table string, estimate int64) (models.RowCount, error) {
	if estimate >= s.cfg.ExactCountThreshold {
		return models.RowCount{Total: estimate, Known: true, Approximate: true}, nil
	}

	countCtx, cancel := context.WithTimeout(ctx, s.cfg.CountTimeout)
	defer cancel()

	n, err := s.catalog.CountRows(countCtx, table)
	if err == nil {
		return models.RowCount{Total: n, Known: true}, nil
	}
	if ctx.Err() != nil {
		return models.RowCount{}, ctx.Err()
	}

	s.log.Warnw("exact row count failed, falling back to estimate",
		"table", table,
		"estimate", estimate,
		"error", err,
	)
	if estimate >= 0 {
		return models.RowCount{Total: estimate, Known: true, Approximate: true}, nil
	}
	return models.RowCount{}, nil
}

func (s *SchemaService) requireTable(ctx context.Context, name string) error {
	if name == "" {
		return apperrors.NewUnknownTable(name)
	}
	exists, err := withReadRetry(ctx, s.cfg.ReadRetries, s.log, func(ctx context.Context) (bool, error) {
		return s.catalog.TableExists(ctx, name)
	})
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.NewUnknownTable(name)
	}
	return nil
}
