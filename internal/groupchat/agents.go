// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package groupchat

import (
	"context"
	"fmt"

	"askbank/cli/internal/intent"
	"askbank/cli/internal/segmentation"
	"askbank/cli/internal/text2sql"
)

// Participant names.
const (
	CoordinatorName  = "coordinator"
	Text2SQLName     = intent.RouteText2SQL
	SegmentationName = intent.RouteSegmentation
)

// Coordinator classifies the question, hands it off, and terminates once
// the chosen agent has answered.
type Coordinator struct {
	Classifier intent.QueryClassifier
}

func (Coordinator) Name() string { return CoordinatorName }

func (c Coordinator) Reply(_ context.Context, in Turn) (Message, error) {
	route, answered := handoff(in.Transcript)
	switch {
	case route == "":
		to := c.Classifier.Classify(in.Question)
		return Message{To: to, Content: fmt.Sprintf("转交给%s处理: %s", to, in.Question)}, nil
	case answered:
		return Message{Content: Terminate}, nil
	}
	return Message{}, nil
}

// handoff returns the current hand-off target and whether it has answered.
func handoff(transcript []Message) (route string, answered bool) {
	for _, m := range transcript {
		switch {
		case m.To != "":
			route, answered = m.To, false
		case route != "" && m.Name == route:
			answered = true
		}
	}
	return route, answered
}

// addressed reports whether name holds an unanswered hand-off.
func addressed(name string, transcript []Message) bool {
	route, answered := handoff(transcript)
	return route == name && !answered
}

// QueryRunner is satisfied by *text2sql.Pipeline.
type QueryRunner interface {
	Run(ctx context.Context, req text2sql.Request) *text2sql.Response
}

// SegmentRunner is satisfied by *segmentation.Pipeline.
type SegmentRunner interface {
	Run(ctx context.Context, req segmentation.Request) *segmentation.Response
}

// Text2SQLAgent answers data questions handed to it.
type Text2SQLAgent struct {
	Runner QueryRunner
}

func (Text2SQLAgent) Name() string { return Text2SQLName }

func (a Text2SQLAgent) Reply(ctx context.Context, in Turn) (Message, error) {
	if !addressed(Text2SQLName, in.Transcript) {
		return Message{}, nil
	}
	if a.Runner == nil {
		return Message{Content: "SQL查询处理器未初始化"}, nil
	}
	resp := a.Runner.Run(ctx, text2sql.Request{Question: in.Question, SessionID: in.SessionID, History: in.History})
	if !resp.Success {
		return Message{Content: "SQL查询处理失败: " + resp.Error}, nil
	}
	content := resp.Explanation
	if resp.SQLQuery != "" {
		content = fmt.Sprintf("%s\n\nSQL: %s", content, resp.SQLQuery)
	}
	return Message{Content: content, Success: true}, nil
}

// SegmentationAgent answers customer segmentation questions handed to it.
type SegmentationAgent struct {
	Runner SegmentRunner
}

func (SegmentationAgent) Name() string { return SegmentationName }

func (a SegmentationAgent) Reply(ctx context.Context, in Turn) (Message, error) {
	if !addressed(SegmentationName, in.Transcript) {
		return Message{}, nil
	}
	if a.Runner == nil {
		return Message{Content: "客户细分处理器未初始化"}, nil
	}
	resp := a.Runner.Run(ctx, segmentation.Request{Question: in.Question, SessionID: in.SessionID, History: in.History})
	if !resp.Success {
		return Message{Content: "客户细分分析失败: " + resp.Error}, nil
	}
	explanation := resp.Explanation
	if explanation == "" {
		explanation = "客户细分分析完成"
	}
	return Message{Content: explanation, Success: true}, nil
}

// NewTeam returns the coordinator, text2sql, segmentation round.
func NewTeam(sql QueryRunner, seg SegmentRunner) []Participant {
	return []Participant{Coordinator{}, Text2SQLAgent{Runner: sql}, SegmentationAgent{Runner: seg}}
}
