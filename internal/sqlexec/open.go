// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"context"
	"database/sql"
	"time"

	"askbank/cli/internal/dsn"
	apperrors "askbank/cli/internal/errors"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open parses rawDSN, opens a pooled handle with the matching driver and
// pings it. The returned dialect drives catalog queries.
func Open(ctx context.Context, rawDSN string) (*sql.DB, Dialect, error) {
	info, err := dsn.ParseInfo(rawDSN)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.ConfigInvalid, "parse DSN", err)
	}
	normalized, err := dsn.Parse(rawDSN)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.ConfigInvalid, "parse DSN", err)
	}

	db, err := sql.Open(info.Type.DriverName(), normalized)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.DatabaseUnavailable, "open database", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, "", apperrors.Wrap(apperrors.DatabaseUnavailable, "connect to database", err)
	}
	return db, DialectFor(info.Type), nil
}
