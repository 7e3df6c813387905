// Package explorer drives the admin table explorer: pick a table, load its
// schema and first page, then add, edit or delete rows, re-reading the
// current page from the server after every change.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"backend/internal/models"
	"backend/internal/services"
)

var (
	ErrNavigationDisabled = errors.New("explorer: no page in that direction")
	ErrSubmitInFlight     = errors.New("explorer: a submission is already in flight")
	ErrInvalidTransition  = errors.New("explorer: action not allowed in the current phase")
	ErrNoIdentity         = errors.New("explorer: row has no identity value")
)

const DefaultLimit = 25

// API is what the explorer needs from the table engine, either in process
// (Local) or over HTTP (Client).
type API interface {
	ListTables(ctx context.Context) ([]models.TableCatalogEntry, error)
	DescribeTable(ctx context.Context, name string) (*models.TableSchema, error)
	FetchPage(ctx context.Context, table string, page, limit int) (*models.RecordPage, error)
	Insert(ctx context.Context, table string, fields map[string]any, opts services.WriteOptions) (*models.InsertResult, error)
	Update(ctx context.Context, table, identity string, fields map[string]any, opts services.WriteOptions) (*models.MutationResult, error)
	Delete(ctx context.Context, table, identity string, opts services.WriteOptions) (*models.MutationResult, error)
}

// Local serves the API from in-process services.
type Local struct {
	*services.SchemaService
	*services.RecordService
}

type Explorer struct {
	api      API
	inFlight atomic.Bool
}

func New(api API) *Explorer {
	return &Explorer{api: api}
}

// Tables lists the catalog. It does not change any State.
func (e *Explorer) Tables(ctx context.Context) ([]models.TableCatalogEntry, error) {
	return e.api.ListTables(ctx)
}

// SelectTable opens name from any phase and loads its schema and first page.
func (e *Explorer) SelectTable(ctx context.Context, st State, name string) (State, error) {
	limit := st.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	next := State{
		Phase:  PhaseTableSelected,
		Table:  name,
		PageNo: 1,
		Limit:  limit,
	}

	schema, err := e.api.DescribeTable(ctx, name)
	if err != nil {
		next.Err = err
		return next, err
	}
	next.Phase = PhaseSchemaLoaded
	next.Schema = schema

	return e.fetch(ctx, next, 1)
}

// GoToPage loads page of the selected table. From TableSelected it doubles
// as a retry after a failed fetch.
func (e *Explorer) GoToPage(ctx context.Context, st State, page int) (State, error) {
	if st.Schema == nil || st.Phase == PhaseEditingRecord || st.Phase == PhaseAddingRecord {
		return st, ErrInvalidTransition
	}
	if page < 1 || (st.Page != nil && page > st.Page.Pagination.TotalPages) {
		return st, ErrNavigationDisabled
	}
	return e.fetch(ctx, st, page)
}

func (e *Explorer) Next(ctx context.Context, st State) (State, error) {
	if !st.CanNext() {
		return st, ErrNavigationDisabled
	}
	return e.GoToPage(ctx, st, st.PageNo+1)
}

func (e *Explorer) Previous(ctx context.Context, st State) (State, error) {
	if !st.CanPrevious() {
		return st, ErrNavigationDisabled
	}
	return e.GoToPage(ctx, st, st.PageNo-1)
}

// AcknowledgeIdentity records that the admin accepted IdentityWarning.
func (e *Explorer) AcknowledgeIdentity(st State) State {
	st.IdentityAcknowledged = true
	return st
}

func (e *Explorer) BeginAdd(st State) (State, error) {
	if st.Phase != PhasePageLoaded {
		return st, ErrInvalidTransition
	}
	st.Phase = PhaseAddingRecord
	st.Editing = nil
	st.Err = nil
	return st, nil
}

func (e *Explorer) BeginEdit(st State, row models.Row) (State, error) {
	if st.Phase != PhasePageLoaded {
		return st, ErrInvalidTransition
	}
	if _, ok := st.identityOf(row); !ok {
		return st, ErrNoIdentity
	}
	st.Phase = PhaseEditingRecord
	st.Editing = row
	st.Err = nil
	return st, nil
}

// Cancel closes an open form without touching the server.
func (e *Explorer) Cancel(st State) State {
	if st.Phase == PhaseEditingRecord || st.Phase == PhaseAddingRecord {
		st.Phase = PhasePageLoaded
		st.Editing = nil
		st.Err = nil
	}
	return st
}

// Submit sends the open form as an insert or update and then re-reads the
// current page. On failure the form stays open with Err set.
func (e *Explorer) Submit(ctx context.Context, st State, fields map[string]any) (State, error) {
	if st.Phase != PhaseEditingRecord && st.Phase != PhaseAddingRecord {
		return st, ErrInvalidTransition
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return st, ErrSubmitInFlight
	}
	defer e.inFlight.Store(false)

	fields = writableFields(st.Schema, fields)
	opts := services.WriteOptions{AcknowledgeGuessedIdentity: st.IdentityAcknowledged}

	var err error
	if st.Phase == PhaseAddingRecord {
		_, err = e.api.Insert(ctx, st.Table, fields, opts)
	} else {
		identity, ok := st.identityOf(st.Editing)
		if !ok {
			err = ErrNoIdentity
		} else {
			_, err = e.api.Update(ctx, st.Table, identity, fields, opts)
		}
	}
	if err != nil {
		st.Err = err
		return st, err
	}

	st.Phase = PhasePageLoaded
	st.Editing = nil
	return e.refresh(ctx, st)
}

// DeleteRow deletes row and then re-reads the current page.
func (e *Explorer) DeleteRow(ctx context.Context, st State, row models.Row) (State, error) {
	if st.Phase != PhasePageLoaded {
		return st, ErrInvalidTransition
	}
	identity, ok := st.identityOf(row)
	if !ok {
		return st, ErrNoIdentity
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return st, ErrSubmitInFlight
	}
	defer e.inFlight.Store(false)

	opts := services.WriteOptions{AcknowledgeGuessedIdentity: st.IdentityAcknowledged}
	if _, err := e.api.Delete(ctx, st.Table, identity, opts); err != nil {
		st.Err = err
		return st, err
	}
	return e.refresh(ctx, st)
}

// refresh re-reads the current page. If a delete emptied the last page the
// new last page is loaded instead.
func (e *Explorer) refresh(ctx context.Context, st State) (State, error) {
	next, err := e.fetch(ctx, st, st.PageNo)
	if err != nil {
		return next, err
	}
	p := next.Page.Pagination
	if len(next.Page.Rows) == 0 && next.PageNo > p.TotalPages {
		return e.fetch(ctx, next, p.TotalPages)
	}
	return next, nil
}

// fetch loads one page. A failure lands in TableSelected with the schema
// kept, so the admin can retry without reselecting the table.
func (e *Explorer) fetch(ctx context.Context, st State, page int) (State, error) {
	result, err := e.api.FetchPage(ctx, st.Table, page, st.Limit)
	if err != nil {
		st.Phase = PhaseTableSelected
		st.Page = nil
		st.Editing = nil
		st.Err = fmt.Errorf("loading page %d of %s: %w", page, st.Table, err)
		return st, st.Err
	}

	st.Phase = PhasePageLoaded
	st.Page = result
	st.PageNo = result.Pagination.Page
	st.Limit = result.Pagination.Limit
	st.Editing = nil
	st.Err = nil
	return st, nil
}

// writableFields drops generated columns, which the server would reject.
func writableFields(schema *models.TableSchema, fields map[string]any) map[string]any {
	if schema == nil {
		return fields
	}
	out := make(map[string]any, len(fields))
	for name, v := range fields {
		if col, ok := schema.Column(name); ok && col.ReadOnly {
			continue
		}
		out[name] = v
	}
	return out
}
