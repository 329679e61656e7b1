// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package text2sql turns a natural-language question into a validated,
// executed and explained SQL query. The stages run as an eino compose graph:
//
//	enhance -> generate -> validate -> refine -> validate_refined -> execute -> explain
//
// execute loops back to generate on empty results and detours through
// correct on database errors, both with bounded counters.
package text2sql

import (
	"context"
	"fmt"
	"strings"

	apperrors "askbank/cli/internal/errors"
	"askbank/cli/internal/llm"
	"askbank/cli/internal/logging"
	"askbank/cli/internal/progress"
	"askbank/cli/internal/session"
	"askbank/cli/internal/sqlexec"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"
)

const (
	nodeEnhance         = progress.StageEnhance
	nodeGenerate        = progress.StageGenerate
	nodeValidate        = progress.StageValidate
	nodeRefine          = progress.StageRefine
	nodeValidateRefined = progress.StageValidateRefined
	nodeExecute         = progress.StageExecute
	nodeCorrect         = progress.StageCorrect
	nodeExplain         = progress.StageExplain
	nodeFail            = "fail"
)

// Defaults for Options.
const (
	DefaultMaxEmptyRetries = 2
	DefaultMaxErrorRetries = 4
	DefaultTopK            = 100
	maxRunSteps            = 200
)

// Querier runs a read-only statement.
type Querier interface {
	Query(ctx context.Context, stmt string) (*sqlexec.Result, error)
}

// SchemaSource renders the schema description used in prompts.
type SchemaSource interface {
	SchemaText(ctx context.Context, limit int) (string, error)
}

// Options tunes the pipeline.
type Options struct {
	MaxEmptyRetries int
	MaxErrorRetries int
	// SchemaTables caps how many tables the schema text describes.
	SchemaTables int
	TopK         int
	Dialect      sqlexec.Dialect
	// ModelName and DBLabel are reported in Response.Metadata.
	ModelName string
	DBLabel   string
	Observer  progress.Observer
	Logger    *zap.Logger
}

// Pipeline is a compiled text2sql graph. It is safe for concurrent use;
// every Run gets its own State.
type Pipeline struct {
	llm    *llm.Client
	db     Querier
	schema SchemaSource
	opts   Options
	logger *zap.Logger
	runner compose.Runnable[*State, *State]
}

// Request is one question.
type Request struct {
	Question  string
	SessionID string
	History   []session.Turn
	Entities  *Entities
	// TargetSQL asks generation to mirror this statement's structure.
	TargetSQL string
	Observer  progress.Observer
}

// DatabaseUnavailableMessage is the error of every Run without a database.
const DatabaseUnavailableMessage = "数据库未连接，无法执行查询"

// New compiles the graph. A nil db or schema is allowed; every Run then
// fails with a database_unavailable response.
func New(ctx context.Context, client *llm.Client, db Querier, schema SchemaSource, opts Options) (*Pipeline, error) {
	if client == nil {
		client = llm.NewClient(nil)
	}
	if opts.MaxEmptyRetries <= 0 {
		opts.MaxEmptyRetries = DefaultMaxEmptyRetries
	}
	if opts.MaxErrorRetries <= 0 {
		opts.MaxErrorRetries = DefaultMaxErrorRetries
	}
	if opts.SchemaTables <= 0 {
		opts.SchemaTables = sqlexec.DefaultSchemaTables
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Dialect == "" {
		opts.Dialect = sqlexec.MySQL
	}

	p := &Pipeline{llm: client, db: db, schema: schema, opts: opts, logger: logging.OrNop(opts.Logger)}
	runner, err := p.compile(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "compile text2sql graph", err)
	}
	p.runner = runner
	return p, nil
}

func (p *Pipeline) compile(ctx context.Context) (compose.Runnable[*State, *State], error) {
	g := compose.NewGraph[*State, *State]()

	nodes := []struct {
		name string
		fn   func(context.Context, *State) (*State, error)
	}{
		{nodeEnhance, p.enhance},
		{nodeGenerate, p.generate},
		{nodeValidate, p.validateInitial},
		{nodeRefine, p.refine},
		{nodeValidateRefined, p.validateRefined},
		{nodeExecute, p.execute},
		{nodeCorrect, p.correct},
		{nodeExplain, p.explain},
		{nodeFail, p.failNode},
	}
	for _, n := range nodes {
		if err := g.AddLambdaNode(n.name, compose.InvokableLambda(p.traced(n.name, n.fn))); err != nil {
			return nil, err
		}
	}

	edges := [][2]string{
		{compose.START, nodeEnhance},
		{nodeEnhance, nodeGenerate},
		{nodeRefine, nodeValidateRefined},
		{nodeExplain, compose.END},
		{nodeFail, compose.END},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, err
		}
	}

	branches := []struct {
		from string
		to   []string
	}{
		{nodeGenerate, []string{nodeValidate, nodeFail}},
		{nodeValidate, []string{nodeRefine, nodeFail}},
		{nodeValidateRefined, []string{nodeExecute, nodeFail}},
		{nodeExecute, []string{nodeExplain, nodeGenerate, nodeCorrect, nodeFail}},
		{nodeCorrect, []string{nodeExplain, nodeGenerate, nodeFail}},
	}
	for _, b := range branches {
		ends := make(map[string]bool, len(b.to))
		for _, to := range b.to {
			ends[to] = true
		}
		if err := g.AddBranch(b.from, compose.NewGraphBranch(route, ends)); err != nil {
			return nil, err
		}
	}

	return g.Compile(ctx, compose.WithGraphName("text2sql"), compose.WithMaxRunSteps(maxRunSteps))
}

// route sends the state wherever the node that produced it decided.
func route(_ context.Context, s *State) (string, error) {
	if s.next == "" {
		return "", fmt.Errorf("node left no route")
	}
	return s.next, nil
}

// traced wraps a node with progress events.
func (p *Pipeline) traced(name string, fn func(context.Context, *State) (*State, error)) func(context.Context, *State) (*State, error) {
	return func(ctx context.Context, s *State) (*State, error) {
		if name != nodeFail {
			progress.Emit(s.obs, progress.Event{Type: progress.EventStageStarted, Pipeline: "text2sql", Stage: name})
		}
		s.next = ""
		out, err := fn(ctx, s)
		if err != nil {
			return nil, err
		}
		switch {
		case name == nodeFail:
		case out.failed:
			progress.Emit(s.obs, progress.Event{Type: progress.EventStageFailed, Pipeline: "text2sql", Stage: name, Message: out.Error})
		default:
			progress.Emit(s.obs, progress.Event{Type: progress.EventStageDone, Pipeline: "text2sql", Stage: name})
		}
		return out, nil
	}
}

// Run answers one question. It never returns an error; failures come back
// as a Response with Success false.
func (p *Pipeline) Run(ctx context.Context, req Request) *Response {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "default"
	}
	if strings.TrimSpace(req.Question) == "" {
		return &Response{Success: false, Error: "查询不能为空", SessionID: sessionID}
	}
	if !p.Available() {
		return &Response{
			Success:   false,
			Question:  req.Question,
			Error:     DatabaseUnavailableMessage,
			ErrorKind: string(apperrors.DatabaseUnavailable),
			SessionID: sessionID,
		}
	}

	s := &State{
		OriginalQuery: req.Question,
		Entities:      req.Entities,
		History:       req.History,
		SessionID:     sessionID,
		TargetSQL:     req.TargetSQL,
		obs:           progress.Tee(p.opts.Observer, req.Observer),
	}

	p.logger.Info("text2sql request", zap.String("session_id", sessionID), zap.String("question", req.Question))
	out, err := p.runner.Invoke(ctx, s)
	if err != nil {
		p.logger.Error("text2sql graph failed", zap.Error(err))
		s.Success = false
		if s.Error == "" {
			s.Error = "查询处理失败: " + err.Error()
		}
		return p.response(s)
	}
	return p.response(out)
}

// Available reports whether a database is wired.
func (p *Pipeline) Available() bool { return p.db != nil && p.schema != nil }

// Options returns the effective options.
func (p *Pipeline) Options() Options { return p.opts }
