// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package groupchat

import (
	"context"
	"errors"
	"testing"

	"askbank/cli/internal/segmentation"
	"askbank/cli/internal/text2sql"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/golang/glog.(*loggingT).flushDaemon"))
}

type sqlRunner struct {
	calls int
	fail  bool
}

func (r *sqlRunner) Run(_ context.Context, req text2sql.Request) *text2sql.Response {
	r.calls++
	if r.fail {
		return &text2sql.Response{Success: false, Error: "SQL执行失败"}
	}
	return &text2sql.Response{Success: true, SQLQuery: "SELECT COUNT(*) FROM customer_info;", Explanation: "共有100位客户。"}
}

type segRunner struct {
	calls int
}

func (r *segRunner) Run(_ context.Context, req segmentation.Request) *segmentation.Response {
	r.calls++
	return &segmentation.Response{Success: true, Explanation: "高价值客户存款更多。"}
}

func names(ms []Message) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name
	}
	return out
}

func TestTextQuestionGoesToText2SQL(t *testing.T) {
	sql, seg := &sqlRunner{}, &segRunner{}
	res := New(NewTeam(sql, seg), 0, nil).Run(context.Background(), Request{Question: "查询客户总数"})

	assert.True(t, res.Success)
	assert.Equal(t, Text2SQLName, res.Route)
	assert.Contains(t, res.Answer, "共有100位客户。")
	assert.Contains(t, res.Answer, "SELECT COUNT(*)")
	assert.Equal(t, 1, sql.calls)
	assert.Zero(t, seg.calls)
	assert.Equal(t, []string{"user", CoordinatorName, Text2SQLName, CoordinatorName}, names(res.Transcript))
	assert.Equal(t, Terminate, res.Transcript[3].Content)
	assert.Equal(t, 3, res.Rounds)
}

func TestSegmentationQuestion(t *testing.T) {
	sql, seg := &sqlRunner{}, &segRunner{}
	res := New(NewTeam(sql, seg), 0, nil).Run(context.Background(), Request{Question: "对比高价值客户和普通客户"})

	assert.True(t, res.Success)
	assert.Equal(t, SegmentationName, res.Route)
	assert.Equal(t, "高价值客户存款更多。", res.Answer)
	assert.Zero(t, sql.calls)
	assert.Equal(t, 1, seg.calls)
}

func TestAgentFailure(t *testing.T) {
	res := New(NewTeam(&sqlRunner{fail: true}, nil), 0, nil).Run(context.Background(), Request{Question: "查询客户总数"})
	assert.False(t, res.Success)
	assert.Equal(t, "SQL查询处理失败: SQL执行失败", res.Error)
}

func TestMissingRunner(t *testing.T) {
	res := New(NewTeam(nil, nil), 0, nil).Run(context.Background(), Request{Question: "分析客群特征"})
	assert.False(t, res.Success)
	assert.Equal(t, "客户细分处理器未初始化", res.Error)
}

func TestEmptyQueueEndsChat(t *testing.T) {
	// Nobody can answer a hand-off to an agent that is not in the team.
	res := New([]Participant{Coordinator{}}, 0, nil).Run(context.Background(), Request{Question: "查询客户总数"})
	assert.False(t, res.Success)
	assert.Equal(t, "未获取到响应", res.Error)
	assert.Equal(t, 1, res.Rounds)
}

type chatty struct{ name string }

func (c chatty) Name() string { return c.name }

func (c chatty) Reply(context.Context, Turn) (Message, error) {
	return Message{Content: "还在思考"}, nil
}

func TestMaxRoundBoundsChat(t *testing.T) {
	res := New([]Participant{chatty{"a"}, chatty{"b"}}, 5, nil).Run(context.Background(), Request{Question: "hi"})
	assert.Equal(t, 5, res.Rounds)
	assert.Len(t, res.Transcript, 6)
	assert.False(t, res.Success)

	res = New([]Participant{chatty{"a"}}, 0, nil).Run(context.Background(), Request{Question: "hi"})
	assert.Equal(t, DefaultMaxRound, res.Rounds)
}

type broken struct{}

func (broken) Name() string { return "broken" }

func (broken) Reply(context.Context, Turn) (Message, error) {
	return Message{}, errors.New("boom")
}

func TestParticipantErrorAndEmptyQuestion(t *testing.T) {
	res := New([]Participant{broken{}}, 0, nil).Run(context.Background(), Request{Question: "hi"})
	assert.Equal(t, "处理查询失败: boom", res.Error)

	res = New(NewTeam(nil, nil), 0, nil).Run(context.Background(), Request{Question: "  "})
	assert.Equal(t, "查询不能为空", res.Error)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := New(NewTeam(&sqlRunner{}, nil), 0, nil).Run(ctx, Request{Question: "查询客户总数"})
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "context canceled")
}
