package explorer

import (
	"fmt"

	"backend/internal/models"
)

// Phase is where the admin is in the explore flow.
type Phase string

const (
	PhaseIdle          Phase = "Idle"
	PhaseTableSelected Phase = "TableSelected"
	PhaseSchemaLoaded  Phase = "SchemaLoaded"
	PhasePageLoaded    Phase = "PageLoaded"
	PhaseEditingRecord Phase = "EditingRecord"
	PhaseAddingRecord  Phase = "AddingRecord"
)

// State is the whole client-side view of one explore session. Transitions
// take a State and return the next one; nothing is kept on the Explorer.
type State struct {
	Phase  Phase
	Table  string
	Schema *models.TableSchema
	Page   *models.RecordPage
	PageNo int
	Limit  int

	// Editing is the row open in the edit form.
	Editing models.Row
	// IdentityAcknowledged is set once the admin accepted a guessed identity
	// for this table.
	IdentityAcknowledged bool

	Err error
}

func (s State) CanPrevious() bool {
	return s.Page != nil && s.PageNo > 1
}

func (s State) CanNext() bool {
	return s.Page != nil && s.PageNo < s.Page.Pagination.TotalPages
}

// IdentityWarning describes why edits and deletes on this table might hit
// the wrong row. Empty when the identity is a declared single-column key.
func (s State) IdentityWarning() string {
	if s.Schema == nil {
		return ""
	}
	id := s.Schema.Identity
	switch {
	case id.Source == models.IdentityFromFirstCol:
		return fmt.Sprintf("%s has no primary key; rows are addressed by its first column %q, which may not be unique", s.Table, id.Column)
	case id.Composite():
		return fmt.Sprintf("%s has a composite primary key; rows are addressed by %q alone", s.Table, id.Column)
	case id.Source == models.IdentityFromIDColumn:
		return fmt.Sprintf("%s declares no primary key; rows are addressed by its %q column", s.Table, id.Column)
	}
	return ""
}

// identityOf returns the identity value of row as URL text.
func (s State) identityOf(row models.Row) (string, bool) {
	if s.Schema == nil {
		return "", false
	}
	v, ok := row[s.Schema.Identity.Column]
	if !ok || v.IsNull() || v.Kind == models.KindBlob {
		return "", false
	}
	return v.Text(), true
}
