// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	apperrors "askbank/cli/internal/errors"
	"askbank/cli/internal/logging"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// DefaultSchemaTables is how many tables SchemaText describes when no limit is given.
const DefaultSchemaTables = 10

// TableInfo describes one base table.
type TableInfo struct {
	Name    string `json:"name"`
	Comment string `json:"comment,omitempty"`
	// Rows is the catalog's approximate row count.
	Rows int64 `json:"rows"`
}

// Column describes one table column.
type Column struct {
	Name       string  `json:"name"`
	DataType   string  `json:"data_type"`
	ColumnType string  `json:"column_type"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"default,omitempty"`
	Comment    string  `json:"comment,omitempty"`
	// Key is the catalog key marker: PRI, UNI, MUL or empty.
	Key string `json:"key,omitempty"`
}

// IsPrimaryKey reports whether the column is part of the primary key.
func (c Column) IsPrimaryKey() bool { return c.Key == "PRI" }

// ForeignKey is one column-level reference.
type ForeignKey struct {
	Table     string `json:"table"`
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

func (fk ForeignKey) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", fk.Table, fk.Column, fk.RefTable, fk.RefColumn)
}

// Inspector reads table metadata from INFORMATION_SCHEMA and caches it.
type Inspector struct {
	db      *sql.DB
	dialect Dialect
	cache   *cache.Cache
	logger  *zap.Logger
}

// NewInspector creates an Inspector. Metadata is cached for ttl (5 minutes when zero).
func NewInspector(db *sql.DB, dialect Dialect, ttl time.Duration, logger *zap.Logger) *Inspector {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Inspector{
		db:      db,
		dialect: dialect,
		cache:   cache.New(ttl, 2*ttl),
		logger:  logging.OrNop(logger),
	}
}

// Dialect returns the inspector's dialect.
func (si *Inspector) Dialect() Dialect { return si.dialect }

// Ping checks that the database answers.
func (si *Inspector) Ping(ctx context.Context) error {
	if err := si.db.PingContext(ctx); err != nil {
		return apperrors.Wrap(apperrors.DatabaseUnavailable, "ping database", err)
	}
	return nil
}

// ClearCache drops all cached metadata.
func (si *Inspector) ClearCache() {
	si.cache.Flush()
}

// ListTables returns the base tables of the connected schema.
func (si *Inspector) ListTables(ctx context.Context) ([]TableInfo, error) {
	if v, ok := si.cache.Get("tables"); ok {
		return v.([]TableInfo), nil
	}

	rows, err := si.db.QueryContext(ctx, queries[si.dialect].tables)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.DatabaseUnavailable, "list tables", err)
	}
	defer rows.Close()

	var tables []TableInfo
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Name, &t.Comment, &t.Rows); err != nil {
			return nil, apperrors.Wrap(apperrors.DatabaseUnavailable, "scan table", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.DatabaseUnavailable, "list tables", err)
	}

	si.cache.SetDefault("tables", tables)
	si.logger.Debug("loaded table list", zap.Int("tables", len(tables)))
	return tables, nil
}

// TableNames returns just the names from ListTables.
func (si *Inspector) TableNames(ctx context.Context) ([]string, error) {
	tables, err := si.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names, nil
}

// HasTable reports whether name is a base table (case-insensitive).
func (si *Inspector) HasTable(ctx context.Context, name string) (bool, error) {
	names, err := si.TableNames(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true, nil
		}
	}
	return false, nil
}

// Columns returns the columns of table in ordinal order.
func (si *Inspector) Columns(ctx context.Context, table string) ([]Column, error) {
	key := "columns:" + table
	if v, ok := si.cache.Get(key); ok {
		return v.([]Column), nil
	}

	rows, err := si.db.QueryContext(ctx, queries[si.dialect].columns, table)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.DatabaseUnavailable, "list columns of "+table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			c        Column
			nullable string
			def      sql.NullString
		)
		if err := rows.Scan(&c.Name, &c.DataType, &c.ColumnType, &nullable, &def, &c.Comment, &c.Key); err != nil {
			return nil, apperrors.Wrap(apperrors.DatabaseUnavailable, "scan column", err)
		}
		c.Nullable = strings.EqualFold(nullable, "YES")
		if def.Valid {
			d := def.String
			c.Default = &d
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.DatabaseUnavailable, "list columns of "+table, err)
	}

	si.cache.SetDefault(key, cols)
	return cols, nil
}

// Relationships returns every foreign key in the connected schema.
func (si *Inspector) Relationships(ctx context.Context) ([]ForeignKey, error) {
	if v, ok := si.cache.Get("fks"); ok {
		return v.([]ForeignKey), nil
	}

	rows, err := si.db.QueryContext(ctx, queries[si.dialect].fks)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.DatabaseUnavailable, "list foreign keys", err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Table, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, apperrors.Wrap(apperrors.DatabaseUnavailable, "scan foreign key", err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.DatabaseUnavailable, "list foreign keys", err)
	}

	si.cache.SetDefault("fks", fks)
	return fks, nil
}

// SchemaText renders up to limit tables (DefaultSchemaTables when limit <= 0)
// with their columns and the foreign keys between them, for use in prompts.
func (si *Inspector) SchemaText(ctx context.Context, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultSchemaTables
	}
	key := fmt.Sprintf("schema:%d", limit)
	if v, ok := si.cache.Get(key); ok {
		return v.(string), nil
	}

	tables, err := si.ListTables(ctx)
	if err != nil {
		return "", err
	}
	if len(tables) > limit {
		tables = tables[:limit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "数据库类型: %s\n", si.dialect.DisplayName())
	included := make(map[string]bool, len(tables))
	for _, t := range tables {
		included[t.Name] = true
		cols, err := si.Columns(ctx, t.Name)
		if err != nil {
			return "", err
		}
		b.WriteString("\n表 ")
		b.WriteString(t.Name)
		if t.Comment != "" {
			b.WriteString(" (" + t.Comment + ")")
		}
		b.WriteString(":\n")
		for _, c := range cols {
			b.WriteString("  - " + c.Name + " " + c.ColumnType)
			if c.IsPrimaryKey() {
				b.WriteString(" PRIMARY KEY")
			}
			if !c.Nullable {
				b.WriteString(" NOT NULL")
			}
			if c.Comment != "" {
				b.WriteString(" -- " + c.Comment)
			}
			b.WriteString("\n")
		}
	}

	fks, err := si.Relationships(ctx)
	if err != nil {
		// Schema text is still useful without relationships.
		si.logger.Warn("foreign keys unavailable", zap.Error(err))
		fks = nil
	}
	var lines []string
	for _, fk := range fks {
		if included[fk.Table] && included[fk.RefTable] {
			lines = append(lines, "  - "+fk.String())
		}
	}
	if len(lines) > 0 {
		b.WriteString("\n外键关系:\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}

	text := b.String()
	si.cache.SetDefault(key, text)
	return text, nil
}
