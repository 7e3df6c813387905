package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"backend/internal/config"
	"backend/internal/models"
	"backend/internal/repositories"
)

func testTablesConfig() config.TablesConfig {
	return config.TablesConfig{
		DefaultPageLimit:    25,
		MaxPageLimit:        200,
		ExactCountThreshold: 1000,
		CountTimeout:        time.Second,
		QueryTimeout:        time.Second,
		ReadRetries:         0,
		CountConcurrency:    2,
	}
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

// outreachCatalog returns column sets modeled on the site's own tables.
func outreachCatalog() map[string][]models.ColumnDescriptor {
	return map[string][]models.ColumnDescriptor{
		"campaigns": {
			{Name: "id", Type: "bigint", UDTName: "int8", KeyRole: models.KeyRolePrimary, IsAutoGenerated: true, Position: 1},
			{Name: "title", Type: "character varying", UDTName: "varchar", KeyRole: models.KeyRoleNone, MaxLength: intPtr(20), Position: 2},
			{Name: "status", Type: "campaign_status_t", UDTName: "campaign_status_t", KeyRole: models.KeyRoleNone,
				DefaultValue: strPtr("'draft'::campaign_status_t"), EnumValues: []string{"draft", "active", "closed"}, Position: 3},
			{Name: "goal", Type: "numeric", UDTName: "numeric", Nullable: true, KeyRole: models.KeyRoleNone, Position: 4},
			{Name: "starts_on", Type: "date", UDTName: "date", Nullable: true, KeyRole: models.KeyRoleNone, Position: 5},
			{Name: "active", Type: "boolean", UDTName: "bool", KeyRole: models.KeyRoleNone, DefaultValue: strPtr("true"), Position: 6},
			{Name: "slug_upper", Type: "text", UDTName: "text", Nullable: true, KeyRole: models.KeyRoleNone,
				IsAutoGenerated: true, ReadOnly: true, Position: 7},
		},
		"audit_log": {
			{Name: "event", Type: "text", UDTName: "text", KeyRole: models.KeyRoleNone, Position: 1},
			{Name: "at", Type: "timestamp with time zone", UDTName: "timestamptz", Nullable: true, KeyRole: models.KeyRoleNone, Position: 2},
		},
		"campaign_registrations": {
			{Name: "campaign_id", Type: "bigint", UDTName: "int8", KeyRole: models.KeyRolePrimary, Position: 1},
			{Name: "email", Type: "text", UDTName: "text", KeyRole: models.KeyRolePrimary, Position: 2},
			{Name: "name", Type: "text", UDTName: "text", Nullable: true, KeyRole: models.KeyRoleNone, Position: 3},
		},
		"volunteers": {
			{Name: "code", Type: "text", UDTName: "text", KeyRole: models.KeyRoleUnique, Position: 1},
			{Name: "id", Type: "integer", UDTName: "int4", KeyRole: models.KeyRoleNone, Position: 2},
		},
	}
}

type fakeCatalog struct {
	mu          sync.Mutex
	tables      map[string][]models.ColumnDescriptor
	estimates   map[string]int64
	counts      map[string]int64
	countErrs   map[string]error
	existsErrs  []error
	columnCalls int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		tables:    outreachCatalog(),
		estimates: map[string]int64{},
		counts:    map[string]int64{},
		countErrs: map[string]error{},
	}
}

func (f *fakeCatalog) GetTables(context.Context) ([]repositories.TableStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.tables))
	for name := range f.tables {
		names = append(names, name)
	}
	sort.Strings(names)

	stats := make([]repositories.TableStat, 0, len(names))
	for _, name := range names {
		stats = append(stats, repositories.TableStat{Name: name, Estimate: f.estimate(name)})
	}
	return stats, nil
}

func (f *fakeCatalog) estimate(name string) int64 {
	if e, ok := f.estimates[name]; ok {
		return e
	}
	return -1
}

func (f *fakeCatalog) TableExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.existsErrs) > 0 {
		err := f.existsErrs[0]
		f.existsErrs = f.existsErrs[1:]
		if err != nil {
			return false, err
		}
	}
	_, ok := f.tables[name]
	return ok, nil
}

func (f *fakeCatalog) EstimateRows(_ context.Context, table string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.estimate(table), nil
}

func (f *fakeCatalog) CountRows(_ context.Context, table string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.countErrs[table]; err != nil {
		return 0, err
	}
	return f.counts[table], nil
}

func (f *fakeCatalog) GetColumns(_ context.Context, table string) ([]models.ColumnDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.columnCalls++
	cols := f.tables[table]
	out := make([]models.ColumnDescriptor, len(cols))
	copy(out, cols)
	return out, nil
}

func (f *fakeCatalog) drop(table string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tables, table)
}

type memorySchemaCache struct {
	mu      sync.Mutex
	entries map[string][]models.ColumnDescriptor
}

func (c *memorySchemaCache) Get(_ context.Context, table string) ([]models.ColumnDescriptor, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cols, ok := c.entries[table]
	return cols, ok, nil
}

func (c *memorySchemaCache) Set(_ context.Context, table string, cols []models.ColumnDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string][]models.ColumnDescriptor{}
	}
	c.entries[table] = cols
	return nil
}

type fakeRecords struct {
	rows     []models.Row
	inserted models.Row
	affected int64
	err      error

	calls     []string
	columns   []string
	values    []any
	orderBy   []string
	keyColumn string
	key       any
	limit     int
	offset    int
}

func (f *fakeRecords) SelectPage(_ context.Context, _ string, columns, orderBy []string, limit, offset int) ([]models.Row, error) {
	f.calls = append(f.calls, "select")
	f.columns, f.orderBy, f.limit, f.offset = columns, orderBy, limit, offset
	if f.err != nil {
		return nil, f.err
	}
	end := min(offset+limit, len(f.rows))
	if offset >= end {
		return []models.Row{}, nil
	}
	return f.rows[offset:end], nil
}

func (f *fakeRecords) Insert(_ context.Context, _ string, columns []string, values []any, _ []string) (models.Row, error) {
	f.calls = append(f.calls, "insert")
	f.columns, f.values = columns, values
	if f.err != nil {
		return nil, f.err
	}
	return f.inserted, nil
}

func (f *fakeRecords) Update(_ context.Context, _ string, columns []string, values []any, keyColumn string, key any) (int64, error) {
	f.calls = append(f.calls, "update")
	f.columns, f.values, f.keyColumn, f.key = columns, values, keyColumn, key
	return f.affected, f.err
}

func (f *fakeRecords) Delete(_ context.Context, _ string, keyColumn string, key any) (int64, error) {
	f.calls = append(f.calls, "delete")
	f.keyColumn, f.key = keyColumn, key
	return f.affected, f.err
}

func newTestServices(t *testing.T) (*fakeCatalog, *fakeRecords, *RecordService) {
	t.Helper()
	catalog := newFakeCatalog()
	records := &fakeRecords{}
	log := zap.NewNop().Sugar()
	schemas := NewSchemaService(catalog, nil, testTablesConfig(), log)
	return catalog, records, NewRecordService(schemas, records, testTablesConfig(), log)
}
