// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package segmentation selects a target customer group and a complementary
// control group, runs both through text2sql and explains the comparison.
//
//	analyze -> target -> control -> explain
package segmentation

import (
	"context"
	"fmt"
	"strings"

	apperrors "askbank/cli/internal/errors"
	"askbank/cli/internal/llm"
	"askbank/cli/internal/logging"
	"askbank/cli/internal/progress"
	"askbank/cli/internal/session"
	"askbank/cli/internal/text2sql"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"
)

const (
	nodeAnalyze = progress.StageAnalyze
	nodeTarget  = progress.StageTarget
	nodeControl = progress.StageControl
	nodeExplain = progress.StageExplain
	nodeFail    = "fail"

	pipelineName = "segmentation"
	maxRunSteps  = 20
)

// SQLRunner answers a question with SQL. *text2sql.Pipeline satisfies it.
type SQLRunner interface {
	Run(ctx context.Context, req text2sql.Request) *text2sql.Response
}

// Options tunes the pipeline.
type Options struct {
	Observer progress.Observer
	Logger   *zap.Logger
}

// Pipeline is a compiled segmentation graph, safe for concurrent use.
type Pipeline struct {
	llm    *llm.Client
	sql    SQLRunner
	db     text2sql.Querier
	opts   Options
	logger *zap.Logger
	runner compose.Runnable[*State, *State]
}

// Request is one segmentation question.
type Request struct {
	Question  string
	SessionID string
	History   []session.Turn
	Observer  progress.Observer
}

// Response is the outcome of a segmentation request.
type Response struct {
	Success     bool      `json:"success"`
	Question    string    `json:"question"`
	Analysis    *Analysis `json:"analysis,omitempty"`
	Target      *Group    `json:"target,omitempty"`
	Control     *Group    `json:"control,omitempty"`
	Explanation string    `json:"explanation,omitempty"`
	SessionID   string    `json:"session_id"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
}

// New compiles the graph. db executes fallback and corrected SQL; when it is
// nil every Run fails with a database_unavailable response.
func New(ctx context.Context, client *llm.Client, runner SQLRunner, db text2sql.Querier, opts Options) (*Pipeline, error) {
	if runner == nil {
		return nil, apperrors.New(apperrors.DatabaseUnavailable, "segmentation needs the text2sql pipeline")
	}
	if client == nil {
		client = llm.NewClient(nil)
	}
	p := &Pipeline{llm: client, sql: runner, db: db, opts: opts, logger: logging.OrNop(opts.Logger)}
	r, err := p.compile(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "compile segmentation graph", err)
	}
	p.runner = r
	return p, nil
}

func (p *Pipeline) compile(ctx context.Context) (compose.Runnable[*State, *State], error) {
	g := compose.NewGraph[*State, *State]()

	for name, fn := range map[string]func(context.Context, *State) (*State, error){
		nodeAnalyze: p.analyze,
		nodeTarget:  p.target,
		nodeControl: p.control,
		nodeExplain: p.explain,
		nodeFail:    p.failNode,
	} {
		if err := g.AddLambdaNode(name, compose.InvokableLambda(p.traced(name, fn))); err != nil {
			return nil, err
		}
	}

	for _, e := range [][2]string{
		{compose.START, nodeAnalyze},
		{nodeControl, nodeExplain},
		{nodeExplain, compose.END},
		{nodeFail, compose.END},
	} {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, err
		}
	}

	if err := g.AddBranch(nodeAnalyze, compose.NewGraphBranch(route, map[string]bool{nodeTarget: true, nodeFail: true})); err != nil {
		return nil, err
	}
	if err := g.AddBranch(nodeTarget, compose.NewGraphBranch(route, map[string]bool{nodeControl: true, nodeFail: true})); err != nil {
		return nil, err
	}

	return g.Compile(ctx, compose.WithGraphName(pipelineName), compose.WithMaxRunSteps(maxRunSteps))
}

func route(_ context.Context, s *State) (string, error) {
	if s.next == "" {
		return "", fmt.Errorf("node left no route")
	}
	return s.next, nil
}

func (p *Pipeline) traced(name string, fn func(context.Context, *State) (*State, error)) func(context.Context, *State) (*State, error) {
	return func(ctx context.Context, s *State) (*State, error) {
		if name != nodeFail {
			progress.Emit(s.obs, progress.Event{Type: progress.EventStageStarted, Pipeline: pipelineName, Stage: name})
		}
		s.next = ""
		out, err := fn(ctx, s)
		if err != nil {
			return nil, err
		}
		switch {
		case name == nodeFail:
		case out.failed:
			progress.Emit(s.obs, progress.Event{Type: progress.EventStageFailed, Pipeline: pipelineName, Stage: name, Message: out.Error})
		default:
			progress.Emit(s.obs, progress.Event{Type: progress.EventStageDone, Pipeline: pipelineName, Stage: name})
		}
		return out, nil
	}
}

// Run answers one segmentation question. Failures come back as a Response
// with Success false.
func (p *Pipeline) Run(ctx context.Context, req Request) *Response {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "default"
	}
	if strings.TrimSpace(req.Question) == "" {
		return &Response{Question: req.Question, SessionID: sessionID, Error: "查询不能为空"}
	}
	if p.db == nil {
		return &Response{
			Question:  req.Question,
			SessionID: sessionID,
			Error:     text2sql.DatabaseUnavailableMessage,
			ErrorKind: string(apperrors.DatabaseUnavailable),
		}
	}

	s := &State{
		OriginalQuery: req.Question,
		History:       req.History,
		SessionID:     sessionID,
		obs:           progress.Tee(p.opts.Observer, req.Observer),
	}

	p.logger.Info("segmentation request", zap.String("session_id", sessionID), zap.String("question", req.Question))
	out, err := p.runner.Invoke(ctx, s)
	if err != nil {
		p.logger.Error("segmentation graph failed", zap.Error(err))
		out = s
		out.Success = false
		if out.Error == "" {
			out.Error = "处理查询时发生异常: " + err.Error()
		}
	}
	return &Response{
		Success:     out.Success,
		Question:    req.Question,
		Analysis:    out.Analysis,
		Target:      out.Target,
		Control:     out.Control,
		Explanation: out.Explanation,
		SessionID:   sessionID,
		Error:       out.Error,
	}
}
