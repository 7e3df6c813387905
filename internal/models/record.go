package models

// Row maps column name to converted value. Keys are always columns of the
// table's current schema.
type Row map[string]Value

type Pagination struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	Approximate bool  `json:"approximate"`
}

// NewPagination derives totalPages; an empty table still has one page.
func NewPagination(page, limit int, total int64, approximate bool) Pagination {
	totalPages := 1
	if total > 0 && limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		Approximate: approximate,
	}
}

// Offset is the number of rows skipped before this page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// InRange reports whether the page can hold rows.
func (p Pagination) InRange() bool {
	return p.Total > 0 && p.Page <= p.TotalPages
}

type RecordPage struct {
	TableName  string     `json:"tableName"`
	Rows       []Row      `json:"rows"`
	Pagination Pagination `json:"pagination"`
}

// IdentityValue names the row a mutation addressed.
type IdentityValue struct {
	Column string         `json:"column"`
	Source IdentitySource `json:"source"`
	Value  Value          `json:"value"`
}

type InsertResult struct {
	Identity IdentityValue `json:"identity"`
	Record   Row           `json:"record"`
}

type MutationResult struct {
	Identity     IdentityValue `json:"identity"`
	RowsAffected int64         `json:"rowsAffected"`
}
