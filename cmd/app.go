// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"askbank/cli/internal/agent"
	"askbank/cli/internal/config"
	"askbank/cli/internal/dsn"
	apperrors "askbank/cli/internal/errors"
	"askbank/cli/internal/intent"
	"askbank/cli/internal/keychain"
	"askbank/cli/internal/llm"
	"askbank/cli/internal/logging"
	"askbank/cli/internal/metadata"
	"askbank/cli/internal/progress"
	"askbank/cli/internal/segmentation"
	"askbank/cli/internal/session"
	"askbank/cli/internal/sqlexec"
	"askbank/cli/internal/text2sql"
	"askbank/cli/internal/xdg"

	"go.uber.org/zap"
)

const schemaCacheTTL = 5 * time.Minute

// app holds everything a command needs once the database and model are wired.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	dsn    string

	db        *sql.DB
	dbErr     error
	inspector *sqlexec.Inspector
	executor  *sqlexec.Executor
	client    *llm.Client

	sessions     *session.Manager
	text2sql     *text2sql.Pipeline
	segmentation *segmentation.Pipeline
	assets       *metadata.AssetUnderstanding
	recommender  *metadata.Recommender
	manager      *agent.Manager
}

// appOptions tunes bootstrap for one command.
type appOptions struct {
	// Observer receives pipeline progress. Nil disables it.
	Observer progress.Observer
	// Persist selects the badger session store regardless of config.
	Persist bool
}

// newLogger builds the process logger from flags and config.
func newLogger(cfg config.Config) *zap.Logger {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	opts := logging.Options{Level: level, Stderr: verbose}
	if dir, err := xdg.StateDir(); err == nil {
		opts.File = filepath.Join(dir, "askbank.log")
	}
	l, err := logging.NewLogger(opts)
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// resolveDSN returns the DSN from env/config, then the keychain, then the
// individual DB_* settings.
func resolveDSN(cfg config.Config) string {
	if strings.TrimSpace(cfg.DB.DSN) != "" {
		return strings.TrimSpace(cfg.DB.DSN)
	}
	if km, err := keychain.GetManager(); err == nil {
		if stored, err := km.LoadDBDSN(); err == nil && strings.TrimSpace(stored) != "" {
			return strings.TrimSpace(stored)
		}
	}
	return dsn.FromParts(cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Database, cfg.DB.Charset)
}

// resolveAPIKey returns the model API key from env/config or the keychain.
func resolveAPIKey(cfg config.Config) string {
	if cfg.LLM.APIKey != "" {
		return cfg.LLM.APIKey
	}
	if km, err := keychain.GetManager(); err == nil {
		if key, err := km.LoadAPIKey(); err == nil {
			return strings.TrimSpace(key)
		}
	}
	return ""
}

// newApp loads config, connects to the database and builds the pipelines.
// Neither a missing model nor an unreachable database is fatal: the
// pipelines report them as unavailable on every request.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ConfigInvalid, "load config", err)
	}
	logger := newLogger(cfg)
	a := &app{cfg: cfg, logger: logger, dsn: resolveDSN(cfg)}

	var (
		querier text2sql.Querier
		schema  text2sql.SchemaSource
	)
	db, dialect, err := sqlexec.Open(ctx, a.dsn)
	if err != nil {
		logger.Warn("database unavailable", logging.MaskedString("dsn", a.dsn), zap.Error(err))
		a.dbErr = err
	} else {
		a.db = db
		a.inspector = sqlexec.NewInspector(db, dialect, schemaCacheTTL, logger)
		a.executor = sqlexec.NewExecutor(db, sqlexec.ExecOptions{
			MaxRows: cfg.SQL.MaxRows,
			Timeout: cfg.SQL.Timeout(),
			Logger:  logger,
		})
		querier, schema = a.executor, a.inspector
	}

	a.client = llm.NewClient(nil, llm.WithLogger(logger), llm.WithModelName(cfg.LLM.Model))
	m, err := llm.NewChatModel(ctx, llm.Config{
		APIKey:      resolveAPIKey(cfg),
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.LLM.Timeout(),
		Temperature: 0,
	})
	if err != nil {
		logger.Warn("chat model unavailable", zap.Error(err))
	} else {
		a.client = llm.NewClient(m,
			llm.WithLogger(logger),
			llm.WithModelName(cfg.LLM.Model),
			llm.WithBackoff(cfg.Pipeline.ProviderBackoff()))
	}

	store, err := openStore(cfg, opts.Persist)
	if err != nil {
		a.close()
		return nil, err
	}
	a.sessions = session.NewManager(store, logger)

	a.text2sql, err = text2sql.New(ctx, a.client, querier, schema, text2sql.Options{
		MaxEmptyRetries: cfg.Pipeline.MaxEmptyRetries,
		MaxErrorRetries: cfg.Pipeline.MaxErrorRetries,
		SchemaTables:    cfg.Pipeline.SchemaTables,
		Dialect:         dialect,
		ModelName:       cfg.LLM.Model,
		DBLabel:         text2sql.DBLabel(logging.Mask(a.dsn)),
		Observer:        opts.Observer,
		Logger:          logger,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.segmentation, err = segmentation.New(ctx, a.client, a.text2sql, querier, segmentation.Options{
		Observer: opts.Observer,
		Logger:   logger,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	if a.inspector != nil {
		a.assets = metadata.NewAssetUnderstanding(a.inspector, logger)
		a.recommender = metadata.NewRecommender(a.assets)
	}
	a.manager = agent.NewManager(agent.Deps{
		Sessions:       a.sessions,
		Parser:         intent.NewParser(a.client, logger),
		Text2SQL:       a.text2sql,
		Segmentation:   a.segmentation,
		Assets:         a.assets,
		Recommender:    a.recommender,
		Tables:         a.tables(),
		DB:             a.pinger(),
		DBError:        a.dbErr,
		ModelName:      cfg.LLM.Model,
		ModelAvailable: a.client.Available(),
		Logger:         logger,
	})
	return a, nil
}

func openStore(cfg config.Config, persist bool) (session.Store, error) {
	if !persist && !strings.EqualFold(cfg.Session.Store, "badger") {
		return session.NewMemoryStore(), nil
	}
	dir, err := xdg.SessionsDir()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ConfigInvalid, "resolve sessions dir", err)
	}
	store, err := session.OpenBadger(dir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "open session store", err)
	}
	return store, nil
}

// requireDB returns a database_unavailable error when newApp could not
// connect.
func (a *app) requireDB() error {
	if a.inspector != nil {
		return nil
	}
	if a.dbErr != nil {
		return apperrors.Wrap(apperrors.DatabaseUnavailable, text2sql.DatabaseUnavailableMessage, a.dbErr)
	}
	return apperrors.New(apperrors.DatabaseUnavailable, text2sql.DatabaseUnavailableMessage)
}

// tables and pinger return untyped nils without a database so interface
// nil checks downstream hold.
func (a *app) tables() agent.TableLister {
	if a.inspector == nil {
		return nil
	}
	return a.inspector
}

func (a *app) pinger() agent.Pinger {
	if a.inspector == nil {
		return nil
	}
	return a.inspector
}

func (a *app) close() {
	if a.sessions != nil {
		_ = a.sessions.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.logger.Sync()
}
