package services

import "backend/internal/models"

const conventionalIDColumn = "id"

// ResolveKey picks the column that addresses a single row: the declared
// primary key, else a column named "id", else the first column. Callers
// must look at Identity.Source before trusting the result for writes.
func ResolveKey(schema *models.TableSchema) models.Identity {
	if pks := schema.PrimaryKeyColumns(); len(pks) > 0 {
		return models.Identity{
			Column:  pks[0],
			Source:  models.IdentityFromPrimaryKey,
			Columns: pks,
		}
	}

	if _, ok := schema.Column(conventionalIDColumn); ok {
		return models.Identity{
			Column:  conventionalIDColumn,
			Source:  models.IdentityFromIDColumn,
			Columns: []string{conventionalIDColumn},
		}
	}

	if len(schema.Columns) == 0 {
		return models.Identity{Source: models.IdentityFromFirstCol}
	}
	first := schema.Columns[0].Name
	return models.Identity{
		Column:  first,
		Source:  models.IdentityFromFirstCol,
		Columns: []string{first},
	}
}
