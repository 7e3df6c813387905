package repositories

import (
	"context"
	"fmt"
	"strings"

	"backend/internal/models"
)

type SchemaRepository struct {
	db     DBTX
	schema string
}

func NewSchemaRepository(db DBTX, schema string) *SchemaRepository {
	return &SchemaRepository{db: db, schema: schema}
}

// TableStat is a catalog table with the planner's row estimate (-1 if the
// table has never been analyzed).
type TableStat struct {
	Name     string
	Estimate int64
}

// GetTables returns all base tables in the schema with their row estimates.
func (r *SchemaRepository) GetTables(ctx context.Context) ([]TableStat, error) {
	query := `
		SELECT t.table_name::text, COALESCE(c.reltuples::bigint, -1)
		FROM information_schema.tables t
		LEFT JOIN pg_catalog.pg_namespace n ON n.nspname = t.table_schema
		LEFT JOIN pg_catalog.pg_class c ON c.relnamespace = n.oid AND c.relname = t.table_name
		WHERE t.table_schema = $1
		AND t.table_type = 'BASE TABLE'
		ORDER BY t.table_name
	`

	rows, err := r.db.Query(ctx, query, r.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []TableStat
	for rows.Next() {
		var t TableStat
		if err := rows.Scan(&t.Name, &t.Estimate); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tables, nil
}

// TableExists reports whether name is a base table of the schema, matched
// exactly as stored.
func (r *SchemaRepository) TableExists(ctx context.Context, name string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2 AND table_type = 'BASE TABLE'
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, r.schema, name).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// EstimateRows returns pg_class.reltuples for the table, or -1 when unknown.
func (r *SchemaRepository) EstimateRows(ctx context.Context, table string) (int64, error) {
	query := `
		SELECT COALESCE(MAX(c.reltuples)::bigint, -1)
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2
	`

	var estimate int64
	if err := r.db.QueryRow(ctx, query, r.schema, table).Scan(&estimate); err != nil {
		return 0, err
	}
	return estimate, nil
}

// CountRows runs an exact count. table must already be a confirmed member
// of the catalog; the caller bounds the call with a context deadline.
func (r *SchemaRepository) CountRows(ctx context.Context, table string) (int64, error) {
	query := fmt.Sprintf("SELECT count(*) FROM %s", qualified(r.schema, table))

	var count int64
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// GetColumns returns the column descriptors of a table in ordinal order,
// with key roles and enum labels filled in.
func (r *SchemaRepository) GetColumns(ctx context.Context, table string) ([]models.ColumnDescriptor, error) {
	query := `
		SELECT column_name::text, data_type::text, udt_schema::text, udt_name::text, is_nullable::text,
			column_default::text, is_identity::text, COALESCE(identity_generation::text, ''),
			is_generated::text, character_maximum_length::int, ordinal_position::int
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := r.db.Query(ctx, query, r.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		columns   []models.ColumnDescriptor
		udtTypes  []typeName
		enumTypes []typeName
	)
	for rows.Next() {
		var (
			col                                 models.ColumnDescriptor
			dataType, udtSchema, nullable       string
			isIdentity, generation, isGenerated string
			maxLength                           *int
		)
		if err := rows.Scan(&col.Name, &dataType, &udtSchema, &col.UDTName, &nullable, &col.DefaultValue,
			&isIdentity, &generation, &isGenerated, &maxLength, &col.Position); err != nil {
			return nil, err
		}

		col.Type = dataType
		if dataType == "USER-DEFINED" {
			col.Type = col.UDTName
			enumTypes = append(enumTypes, typeName{schema: udtSchema, name: col.UDTName})
		}
		udtTypes = append(udtTypes, typeName{schema: udtSchema, name: col.UDTName})
		col.Nullable = nullable == "YES"
		col.MaxLength = maxLength
		col.KeyRole = models.KeyRoleNone
		col.IsAutoGenerated = isIdentity == "YES" || isGenerated == "ALWAYS" ||
			(col.DefaultValue != nil && strings.HasPrefix(*col.DefaultValue, "nextval("))
		col.ReadOnly = generation == "ALWAYS" || isGenerated == "ALWAYS"
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	roles, err := r.getKeyRoles(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get key roles for %s: %w", table, err)
	}

	labels, err := r.getEnumLabels(ctx, enumTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to get enum labels for %s: %w", table, err)
	}

	for i := range columns {
		if role, ok := roles[columns[i].Name]; ok {
			columns[i].KeyRole = role
		}
		if values, ok := labels[udtTypes[i]]; ok {
			columns[i].EnumValues = values
		}
	}

	return columns, nil
}

// getKeyRoles maps column name to its key role. A primary key member is
// always primary; unique applies only to single-column unique constraints.
func (r *SchemaRepository) getKeyRoles(ctx context.Context, table string) (map[string]models.KeyRole, error) {
	query := `
		SELECT tc.constraint_name::text, tc.constraint_type::text, kcu.column_name::text
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.table_schema = $1
			AND tc.table_name = $2
			AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`

	rows, err := r.db.Query(ctx, query, r.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uniqueMembers := make(map[string][]string)
	roles := make(map[string]models.KeyRole)
	for rows.Next() {
		var name, kind, column string
		if err := rows.Scan(&name, &kind, &column); err != nil {
			return nil, err
		}
		if kind == "PRIMARY KEY" {
			roles[column] = models.KeyRolePrimary
			continue
		}
		uniqueMembers[name] = append(uniqueMembers[name], column)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, members := range uniqueMembers {
		if len(members) != 1 {
			continue
		}
		if _, isPrimary := roles[members[0]]; !isPrimary {
			roles[members[0]] = models.KeyRoleUnique
		}
	}

	return roles, nil
}

// typeName is a schema-qualified type; enums of the same name may live in
// several schemas.
type typeName struct {
	schema string
	name   string
}

func (r *SchemaRepository) getEnumLabels(ctx context.Context, types []typeName) (map[typeName][]string, error) {
	labels := make(map[typeName][]string)
	if len(types) == 0 {
		return labels, nil
	}

	schemas := make([]string, len(types))
	names := make([]string, len(types))
	for i, t := range types {
		schemas[i], names[i] = t.schema, t.name
	}

	query := `
		SELECT n.nspname::text, t.typname::text, e.enumlabel::text
		FROM pg_catalog.pg_type t
		JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
		JOIN pg_catalog.pg_enum e ON e.enumtypid = t.oid
		WHERE (n.nspname::text, t.typname::text) IN (
			SELECT * FROM unnest($1::text[], $2::text[])
		)
		ORDER BY n.nspname, t.typname, e.enumsortorder
	`

	rows, err := r.db.Query(ctx, query, schemas, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t typeName
		var label string
		if err := rows.Scan(&t.schema, &t.name, &label); err != nil {
			return nil, err
		}
		labels[t] = append(labels[t], label)
	}

	return labels, rows.Err()
}
