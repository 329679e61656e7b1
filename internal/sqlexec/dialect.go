// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import "askbank/cli/internal/dsn"

// Dialect selects the catalog queries for a database family.
type Dialect string

const (
	MySQL      Dialect = "mysql"
	PostgreSQL Dialect = "postgresql"
)

// DialectFor maps a parsed DSN type to a dialect. Unknown types fall back to MySQL.
func DialectFor(t dsn.DBType) Dialect {
	if t == dsn.DBTypePostgreSQL {
		return PostgreSQL
	}
	return MySQL
}

// DisplayName is the human name used in prompts.
func (d Dialect) DisplayName() string {
	if d == PostgreSQL {
		return "PostgreSQL"
	}
	return "MySQL"
}

type catalogQueries struct {
	tables  string
	columns string
	fks     string
}

var queries = map[Dialect]catalogQueries{
	MySQL: {
		tables: `
		SELECT TABLE_NAME, COALESCE(TABLE_COMMENT, ''), COALESCE(TABLE_ROWS, 0)
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`,
		columns: `
		SELECT COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT,
		       COALESCE(COLUMN_COMMENT, ''), COALESCE(COLUMN_KEY, '')
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`,
		fks: `
		SELECT TABLE_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = DATABASE() AND REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY TABLE_NAME, ORDINAL_POSITION`,
	},
	PostgreSQL: {
		tables: `
		SELECT t.table_name, COALESCE(obj_description(c.oid, 'pg_class'), ''), COALESCE(c.reltuples, 0)::bigint
		FROM information_schema.tables t
		LEFT JOIN pg_class c ON c.relname = t.table_name AND c.relnamespace = to_regnamespace(t.table_schema)
		WHERE t.table_schema = current_schema() AND t.table_type = 'BASE TABLE'
		ORDER BY t.table_name`,
		columns: `
		SELECT c.column_name, c.data_type, c.udt_name, c.is_nullable, c.column_default, '',
		       CASE WHEN EXISTS (
		           SELECT 1
		           FROM information_schema.table_constraints tc
		           JOIN information_schema.key_column_usage kc
		             ON tc.constraint_name = kc.constraint_name AND tc.table_schema = kc.table_schema
		           WHERE tc.constraint_type = 'PRIMARY KEY'
		             AND kc.table_schema = c.table_schema AND kc.table_name = c.table_name
		             AND kc.column_name = c.column_name
		       ) THEN 'PRI' ELSE '' END
		FROM information_schema.columns c
		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position`,
		fks: `
		SELECT kcu.table_name, kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = current_schema()
		ORDER BY kcu.table_name, kcu.ordinal_position`,
	},
}
