package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"backend/internal/models"
)

func TestResolveKey(t *testing.T) {
	tables := outreachCatalog()

	tests := []struct {
		name      string
		table     string
		want      models.Identity
		guessed   bool
		ambiguous bool
	}{
		{
			name:  "declared primary key",
			table: "campaigns",
			want:  models.Identity{Column: "id", Source: models.IdentityFromPrimaryKey, Columns: []string{"id"}},
		},
		{
			name:      "composite primary key",
			table:     "campaign_registrations",
			want:      models.Identity{Column: "campaign_id", Source: models.IdentityFromPrimaryKey, Columns: []string{"campaign_id", "email"}},
			ambiguous: true,
		},
		{
			name:    "id column without declared key",
			table:   "volunteers",
			want:    models.Identity{Column: "id", Source: models.IdentityFromIDColumn, Columns: []string{"id"}},
			guessed: true,
		},
		{
			name:      "first column fallback",
			table:     "audit_log",
			want:      models.Identity{Column: "event", Source: models.IdentityFromFirstCol, Columns: []string{"event"}},
			guessed:   true,
			ambiguous: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveKey(&models.TableSchema{TableName: tt.table, Columns: tables[tt.table]})
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.guessed, got.Guessed())
			assert.Equal(t, tt.ambiguous, got.Ambiguous())
		})
	}
}

func TestResolveKeyIgnoresUniqueColumns(t *testing.T) {
	schema := &models.TableSchema{
		TableName: "team_members",
		Columns: []models.ColumnDescriptor{
			{Name: "email", Type: "text", KeyRole: models.KeyRoleUnique},
			{Name: "full_name", Type: "text", KeyRole: models.KeyRoleNone},
		},
	}

	got := ResolveKey(schema)
	assert.Equal(t, "email", got.Column)
	assert.Equal(t, models.IdentityFromFirstCol, got.Source)
}
