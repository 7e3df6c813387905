package repositories

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend/internal/database"
	"backend/internal/models"
	"backend/internal/testsupport"
)

func newMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pool := testsupport.StartPostgres(t)
	require.NoError(t, database.RunMigrations(context.Background(), pool, testsupport.Logger(t)))
	return pool
}

func columnByName(t *testing.T, cols []models.ColumnDescriptor, name string) models.ColumnDescriptor {
	t.Helper()
	for _, c := range cols {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("column %q not found", name)
	return models.ColumnDescriptor{}
}

func TestSchemaRepository(t *testing.T) {
	pool := newMigratedPool(t)
	repo := NewSchemaRepository(pool, "public")
	ctx := context.Background()

	t.Run("lists base tables", func(t *testing.T) {
		tables, err := repo.GetTables(ctx)
		require.NoError(t, err)

		var names []string
		for _, tbl := range tables {
			names = append(names, tbl.Name)
		}
		assert.Equal(t, []string{
			"campaign_registrations", "campaigns", "consultation_requests", "donations", "resources",
			"team_members", "testimonies", "trainings", "tutorials", "volunteers",
		}, names)
	})

	t.Run("membership is exact", func(t *testing.T) {
		for name, want := range map[string]bool{
			"campaigns":   true,
			"Campaigns":   false,
			"pg_class":    false,
			"campaigns; ": false,
			"":            false,
		} {
			got, err := repo.TableExists(ctx, name)
			require.NoError(t, err)
			assert.Equal(t, want, got, name)
		}
	})

	t.Run("describes campaigns", func(t *testing.T) {
		cols, err := repo.GetColumns(ctx, "campaigns")
		require.NoError(t, err)
		require.Len(t, cols, 10)
		assert.Equal(t, "id", cols[0].Name)
		assert.Equal(t, 1, cols[0].Position)

		id := columnByName(t, cols, "id")
		assert.Equal(t, models.KeyRolePrimary, id.KeyRole)
		assert.True(t, id.IsAutoGenerated)
		assert.False(t, id.ReadOnly)
		assert.False(t, id.Nullable)

		slug := columnByName(t, cols, "slug")
		assert.Equal(t, models.KeyRoleUnique, slug.KeyRole)

		title := columnByName(t, cols, "title")
		require.NotNil(t, title.MaxLength)
		assert.Equal(t, 200, *title.MaxLength)
		assert.Equal(t, "character varying", title.Type)

		status := columnByName(t, cols, "status")
		assert.Equal(t, "campaign_status_t", status.Type)
		assert.Equal(t, []string{"draft", "open", "closed", "archived"}, status.EnumValues)
		require.NotNil(t, status.DefaultValue)
		assert.Contains(t, *status.DefaultValue, "draft")

		description := columnByName(t, cols, "description")
		assert.True(t, description.Nullable)
		assert.Nil(t, description.DefaultValue)
		assert.Equal(t, models.KeyRoleNone, description.KeyRole)
	})

	t.Run("multi-column unique is not a key role", func(t *testing.T) {
		cols, err := repo.GetColumns(ctx, "campaign_registrations")
		require.NoError(t, err)
		assert.Equal(t, models.KeyRoleNone, columnByName(t, cols, "campaign_id").KeyRole)
		assert.Equal(t, models.KeyRoleNone, columnByName(t, cols, "email").KeyRole)
	})

	t.Run("generated always identity is read-only", func(t *testing.T) {
		cols, err := repo.GetColumns(ctx, "consultation_requests")
		require.NoError(t, err)
		id := columnByName(t, cols, "id")
		assert.True(t, id.ReadOnly)
		assert.True(t, id.IsAutoGenerated)
	})

	t.Run("serial is auto-generated but writable", func(t *testing.T) {
		cols, err := repo.GetColumns(ctx, "tutorials")
		require.NoError(t, err)
		id := columnByName(t, cols, "id")
		assert.True(t, id.IsAutoGenerated)
		assert.False(t, id.ReadOnly)
	})

	t.Run("unknown table has no columns", func(t *testing.T) {
		cols, err := repo.GetColumns(ctx, "nope")
		require.NoError(t, err)
		assert.Empty(t, cols)
	})

	t.Run("counts and estimates", func(t *testing.T) {
		_, err := pool.Exec(ctx, `INSERT INTO tutorials (title, body) VALUES ('a', 'x'), ('b', 'y'), ('c', 'z')`)
		require.NoError(t, err)

		count, err := repo.CountRows(ctx, "tutorials")
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)

		_, err = pool.Exec(ctx, `ANALYZE tutorials`)
		require.NoError(t, err)
		estimate, err := repo.EstimateRows(ctx, "tutorials")
		require.NoError(t, err)
		assert.Equal(t, int64(3), estimate)

		estimate, err = repo.EstimateRows(ctx, "nope")
		require.NoError(t, err)
		assert.Equal(t, int64(-1), estimate)
	})

	t.Run("enum labels are scoped to the type's schema", func(t *testing.T) {
		for _, stmt := range []string{
			`CREATE SCHEMA archive`,
			`CREATE TYPE archive.campaign_status_t AS ENUM ('retired', 'purged')`,
			`CREATE TABLE campaign_history (
				id SERIAL PRIMARY KEY,
				previous archive.campaign_status_t,
				latest campaign_status_t
			)`,
		} {
			_, err := pool.Exec(ctx, stmt)
			require.NoError(t, err)
		}

		cols, err := repo.GetColumns(ctx, "campaign_history")
		require.NoError(t, err)
		assert.Equal(t, []string{"retired", "purged"}, columnByName(t, cols, "previous").EnumValues)
		assert.Equal(t, []string{"draft", "open", "closed", "archived"}, columnByName(t, cols, "latest").EnumValues)
		assert.Empty(t, columnByName(t, cols, "id").EnumValues)
	})
}
