package explorer

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend/internal/apperrors"
	"backend/internal/models"
	"backend/internal/services"
)

// memoryAPI keeps one table of rows keyed by an integer id.
type memoryAPI struct {
	mu       sync.Mutex
	schema   *models.TableSchema
	rows     []models.Row
	nextID   int
	fetchErr error
	writeErr error
	fetches  []int
	opts     []services.WriteOptions

	// block, when set, holds Insert until it is closed.
	block chan struct{}
}

func newMemoryAPI(n int) *memoryAPI {
	api := &memoryAPI{
		schema: &models.TableSchema{
			TableName: "tutorials",
			Columns: []models.ColumnDescriptor{
				{Name: "id", Type: "integer", KeyRole: models.KeyRolePrimary, IsAutoGenerated: true},
				{Name: "title", Type: "text"},
				{Name: "search", Type: "tsvector", ReadOnly: true, Nullable: true},
			},
			Identity: models.Identity{Column: "id", Source: models.IdentityFromPrimaryKey, Columns: []string{"id"}},
		},
	}
	for i := 0; i < n; i++ {
		api.add("Tutorial " + strconv.Itoa(i+1))
	}
	return api
}

func (m *memoryAPI) add(title string) models.Row {
	m.nextID++
	row := models.Row{
		"id":    models.Number(json.Number(strconv.Itoa(m.nextID))),
		"title": models.String(title),
	}
	m.rows = append(m.rows, row)
	return row
}

func (m *memoryAPI) ListTables(context.Context) ([]models.TableCatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.rows))
	return []models.TableCatalogEntry{{Name: m.schema.TableName, RowCount: &n}}, nil
}

func (m *memoryAPI) DescribeTable(_ context.Context, name string) (*models.TableSchema, error) {
	if name != m.schema.TableName {
		return nil, apperrors.NewUnknownTable(name)
	}
	return m.schema, nil
}

func (m *memoryAPI) FetchPage(_ context.Context, _ string, page, limit int) (*models.RecordPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fetches = append(m.fetches, page)
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	p := models.NewPagination(page, limit, int64(len(m.rows)), false)
	rows := []models.Row{}
	if p.InRange() {
		end := min(p.Offset()+limit, len(m.rows))
		rows = append(rows, m.rows[p.Offset():end]...)
	}
	return &models.RecordPage{TableName: m.schema.TableName, Rows: rows, Pagination: p}, nil
}

func (m *memoryAPI) Insert(_ context.Context, _ string, fields map[string]any, opts services.WriteOptions) (*models.InsertResult, error) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opts = append(m.opts, opts)
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	if _, ok := fields["search"]; ok {
		return nil, apperrors.NewInvalidFieldType("search", fields["search"], "column is generated")
	}
	title, _ := fields["title"].(string)
	row := m.add(title)
	return &models.InsertResult{Record: row}, nil
}

func (m *memoryAPI) Update(_ context.Context, _ string, identity string, fields map[string]any, opts services.WriteOptions) (*models.MutationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opts = append(m.opts, opts)
	for _, row := range m.rows {
		if row["id"].Text() == identity {
			row["title"] = models.String(fields["title"].(string))
			return &models.MutationResult{RowsAffected: 1}, nil
		}
	}
	return nil, apperrors.NewRecordNotFound(m.schema.TableName, identity)
}

func (m *memoryAPI) Delete(_ context.Context, _ string, identity string, opts services.WriteOptions) (*models.MutationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opts = append(m.opts, opts)
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	for i, row := range m.rows {
		if row["id"].Text() == identity {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return &models.MutationResult{RowsAffected: 1}, nil
		}
	}
	return nil, apperrors.NewRecordNotFound(m.schema.TableName, identity)
}

func TestSelectTableLoadsFirstPage(t *testing.T) {
	api := newMemoryAPI(12)
	e := New(api)

	tables, err := e.Tables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, int64(12), *tables[0].RowCount)

	st, err := e.SelectTable(context.Background(), State{Limit: 5}, "tutorials")
	require.NoError(t, err)
	assert.Equal(t, PhasePageLoaded, st.Phase)
	assert.Equal(t, 1, st.PageNo)
	assert.Len(t, st.Page.Rows, 5)
	assert.Equal(t, 3, st.Page.Pagination.TotalPages)
	assert.NotNil(t, st.Schema)
	assert.Empty(t, st.IdentityWarning())
}

func TestSelectUnknownTableStaysSelected(t *testing.T) {
	e := New(newMemoryAPI(1))

	st, err := e.SelectTable(context.Background(), State{}, "nope")
	require.Error(t, err)
	assert.Equal(t, PhaseTableSelected, st.Phase)
	assert.Equal(t, apperrors.UnknownTable, apperrors.KindOf(st.Err))
}

func TestNavigation(t *testing.T) {
	ctx := context.Background()
	e := New(newMemoryAPI(12))

	st, err := e.SelectTable(ctx, State{Limit: 5}, "tutorials")
	require.NoError(t, err)

	assert.False(t, st.CanPrevious())
	_, err = e.Previous(ctx, st)
	assert.ErrorIs(t, err, ErrNavigationDisabled)

	st, err = e.Next(ctx, st)
	require.NoError(t, err)
	st, err = e.Next(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 3, st.PageNo)
	assert.Len(t, st.Page.Rows, 2)
	assert.False(t, st.CanNext())

	_, err = e.Next(ctx, st)
	assert.ErrorIs(t, err, ErrNavigationDisabled)
	_, err = e.GoToPage(ctx, st, 9)
	assert.ErrorIs(t, err, ErrNavigationDisabled)

	st, err = e.Previous(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 2, st.PageNo)
}

func TestFetchFailureKeepsSchema(t *testing.T) {
	ctx := context.Background()
	api := newMemoryAPI(12)
	e := New(api)

	st, err := e.SelectTable(ctx, State{Limit: 5}, "tutorials")
	require.NoError(t, err)

	api.fetchErr = apperrors.NewStoreUnavailable("store is unreachable", nil)
	st, err = e.Next(ctx, st)
	require.Error(t, err)
	assert.Equal(t, PhaseTableSelected, st.Phase)
	assert.NotNil(t, st.Schema)
	assert.Equal(t, "tutorials", st.Table)
	assert.Equal(t, apperrors.StoreUnavailable, apperrors.KindOf(st.Err))

	api.fetchErr = nil
	st, err = e.GoToPage(ctx, st, 2)
	require.NoError(t, err)
	assert.Equal(t, PhasePageLoaded, st.Phase)
	assert.Nil(t, st.Err)
}

func TestSubmitRefetchesCurrentPage(t *testing.T) {
	ctx := context.Background()
	api := newMemoryAPI(10)
	e := New(api)

	st, err := e.SelectTable(ctx, State{Limit: 5}, "tutorials")
	require.NoError(t, err)
	st, err = e.Next(ctx, st)
	require.NoError(t, err)

	st, err = e.BeginAdd(st)
	require.NoError(t, err)
	assert.Equal(t, PhaseAddingRecord, st.Phase)

	api.fetches = nil
	st, err = e.Submit(ctx, st, map[string]any{"title": "New tutorial", "search": "ignored"})
	require.NoError(t, err)
	assert.Equal(t, PhasePageLoaded, st.Phase)
	assert.Equal(t, []int{2}, api.fetches, "the current page is fetched again")
	assert.Equal(t, 3, st.Page.Pagination.TotalPages)

	st, err = e.Next(ctx, st)
	require.NoError(t, err)
	require.Len(t, st.Page.Rows, 1)
	assert.Equal(t, "New tutorial", st.Page.Rows[0]["title"].Text())
}

func TestEditFlow(t *testing.T) {
	ctx := context.Background()
	api := newMemoryAPI(3)
	e := New(api)

	st, err := e.SelectTable(ctx, State{}, "tutorials")
	require.NoError(t, err)

	st, err = e.BeginEdit(st, st.Page.Rows[1])
	require.NoError(t, err)
	assert.Equal(t, PhaseEditingRecord, st.Phase)

	st, err = e.Submit(ctx, st, map[string]any{"title": "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, PhasePageLoaded, st.Phase)
	assert.Equal(t, "Renamed", st.Page.Rows[1]["title"].Text())
	assert.Nil(t, st.Editing)
}

func TestSubmitFailureKeepsFormOpen(t *testing.T) {
	ctx := context.Background()
	api := newMemoryAPI(3)
	e := New(api)

	st, err := e.SelectTable(ctx, State{}, "tutorials")
	require.NoError(t, err)
	st, err = e.BeginAdd(st)
	require.NoError(t, err)

	api.writeErr = apperrors.NewMissingRequiredField("tutorials", "title")
	st, err = e.Submit(ctx, st, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, PhaseAddingRecord, st.Phase)
	assert.Equal(t, apperrors.MissingRequiredField, apperrors.KindOf(st.Err))

	st = e.Cancel(st)
	assert.Equal(t, PhasePageLoaded, st.Phase)
	assert.Nil(t, st.Err)
}

func TestDeleteLastRowMovesToNewLastPage(t *testing.T) {
	ctx := context.Background()
	api := newMemoryAPI(11)
	e := New(api)

	st, err := e.SelectTable(ctx, State{Limit: 5}, "tutorials")
	require.NoError(t, err)
	st, err = e.GoToPage(ctx, st, 3)
	require.NoError(t, err)
	require.Len(t, st.Page.Rows, 1)

	st, err = e.DeleteRow(ctx, st, st.Page.Rows[0])
	require.NoError(t, err)
	assert.Equal(t, 2, st.PageNo)
	assert.Len(t, st.Page.Rows, 5)
	assert.Equal(t, 2, st.Page.Pagination.TotalPages)
}

func TestDeleteConstraintViolationIsSurfaced(t *testing.T) {
	ctx := context.Background()
	api := newMemoryAPI(2)
	e := New(api)

	st, err := e.SelectTable(ctx, State{}, "tutorials")
	require.NoError(t, err)

	api.writeErr = apperrors.NewConstraintViolation(`update or delete on table "tutorials" violates foreign key constraint`, "", nil)
	st, err = e.DeleteRow(ctx, st, st.Page.Rows[0])
	require.Error(t, err)
	assert.Equal(t, PhasePageLoaded, st.Phase)
	assert.Len(t, st.Page.Rows, 2)
	assert.Equal(t, apperrors.ConstraintViolation, apperrors.KindOf(st.Err))
}

func TestSubmitInFlightIsRejected(t *testing.T) {
	ctx := context.Background()
	api := newMemoryAPI(1)
	e := New(api)

	st, err := e.SelectTable(ctx, State{}, "tutorials")
	require.NoError(t, err)
	st, err = e.BeginAdd(st)
	require.NoError(t, err)

	api.block = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := e.Submit(ctx, st, map[string]any{"title": "first"})
		done <- err
	}()

	require.Eventually(t, func() bool { return e.inFlight.Load() }, time.Second, 5*time.Millisecond)
	_, err = e.Submit(ctx, st, map[string]any{"title": "second"})
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	close(api.block)
	assert.NoError(t, <-done)
}

func TestGuessedIdentityNeedsAcknowledgement(t *testing.T) {
	ctx := context.Background()
	api := newMemoryAPI(1)
	api.schema.Identity = models.Identity{Column: "title", Source: models.IdentityFromFirstCol, Columns: []string{"title"}}
	e := New(api)

	st, err := e.SelectTable(ctx, State{}, "tutorials")
	require.NoError(t, err)
	assert.Contains(t, st.IdentityWarning(), "no primary key")

	st = e.AcknowledgeIdentity(st)
	st, err = e.BeginAdd(st)
	require.NoError(t, err)
	_, err = e.Submit(ctx, st, map[string]any{"title": "x"})
	require.NoError(t, err)
	assert.Equal(t, []services.WriteOptions{{AcknowledgeGuessedIdentity: true}}, api.opts)
}

func TestTransitionsOutOfOrder(t *testing.T) {
	e := New(newMemoryAPI(1))

	_, err := e.BeginAdd(State{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = e.Submit(context.Background(), State{Phase: PhasePageLoaded}, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = e.GoToPage(context.Background(), State{}, 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
