// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package text2sql

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	apperrors "askbank/cli/internal/errors"
	"askbank/cli/internal/intent"
	"askbank/cli/internal/llm"
	"askbank/cli/internal/llm/llmtest"
	"askbank/cli/internal/progress"
	"askbank/cli/internal/session"
	"askbank/cli/internal/sqlexec"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/golang/glog.(*loggingT).flushDaemon"))
}

const schemaText = "数据库类型: MySQL\n\n表 customer_info (客户信息):\n  - id int PRIMARY KEY NOT NULL\n  - name varchar(64) -- 姓名"

type staticSchema struct{ err error }

func (s staticSchema) SchemaText(context.Context, int) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return schemaText, nil
}

type fakeDB struct {
	mu     sync.Mutex
	calls  []string
	script func(call int, stmt string) (*sqlexec.Result, error)
}

func (f *fakeDB) Query(_ context.Context, stmt string) (*sqlexec.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, stmt)
	n := len(f.calls)
	f.mu.Unlock()
	return f.script(n, stmt)
}

func (f *fakeDB) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func result(cols []string, rows ...[]any) *sqlexec.Result {
	if rows == nil {
		rows = [][]any{}
	}
	return &sqlexec.Result{Columns: cols, Rows: rows, RowCount: len(rows)}
}

func countDB() *fakeDB {
	return &fakeDB{script: func(int, string) (*sqlexec.Result, error) {
		return result([]string{"total"}, []any{int64(100)}), nil
	}}
}

func execErr(msg string) error {
	return apperrors.Wrap(apperrors.ExecutionFailed, "execute query", errors.New(msg))
}

// Needles that identify each prompt.
const (
	pGenerate  = "SQL查询生成助手"
	pEmpty     = "上一次返回空结果"
	pValidate  = "SQL语法验证专家"
	pRefine    = "SQL优化专家"
	pCorrect   = "SQL纠错专家"
	pExplain   = "提供自然语言的回答"
	pRewrite   = "重新改写当前问题"
	countQuery = "SELECT COUNT(*) AS total FROM customer_info"
)

func happyModel() *llmtest.ScriptedModel {
	return llmtest.New().
		On(pValidate, `{"valid": true, "error": null}`).
		On(pGenerate, "```sql\n"+countQuery+";\n```").
		On(pRefine, countQuery).
		On(pExplain, "共有100位客户。")
}

func newPipeline(t *testing.T, m *llmtest.ScriptedModel, db Querier, opts Options) *Pipeline {
	t.Helper()
	var client *llm.Client
	if m != nil {
		client = llm.NewClient(m, llm.WithBackoff(0))
	}
	p, err := New(context.Background(), client, db, staticSchema{}, opts)
	require.NoError(t, err)
	return p
}

func TestRunCountQuery(t *testing.T) {
	db := countDB()
	p := newPipeline(t, happyModel(), db, Options{ModelName: "qwen-plus", DBLabel: DBLabel("mysql://u:p@db:3306/mysql2")})

	resp := p.Run(context.Background(), Request{Question: "查询客户总数", SessionID: "s1"})

	require.True(t, resp.Success, resp.Error)
	assert.True(t, strings.HasPrefix(resp.SQLQuery, "SELECT"))
	assert.Equal(t, countQuery, resp.SQLQuery)
	assert.Equal(t, countQuery+";", resp.InitialSQL)
	assert.Equal(t, "共有100位客户。", resp.Explanation)
	assert.Equal(t, 1, resp.RowCount)
	assert.Equal(t, 0, resp.RetryCount)
	assert.Equal(t, 0, resp.EmptyRetryCount)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, []map[string]any{{"total": int64(100)}}, resp.ExecutionResult.Data)
	assert.Equal(t, "[(100)]", resp.ExecutionResult.RawResult)
	assert.Equal(t, &Metadata{Model: "qwen-plus", DB: "db:3306/mysql2"}, resp.Metadata)
	assert.Equal(t, 1, db.callCount())
}

func TestRunCorrectsFailedSQL(t *testing.T) {
	// Refinement introduces a bad column; correction fixes it.
	m := llmtest.New().
		On(pValidate, `{"valid": true}`).
		On(pGenerate, countQuery).
		On(pRefine, "SELECT COUNT(cust_cnt) FROM customer_info").
		On(pCorrect, "```sql\n"+countQuery+"\n```").
		On(pExplain, "共有100位客户。")

	db := &fakeDB{script: func(_ int, stmt string) (*sqlexec.Result, error) {
		if strings.Contains(stmt, "cust_cnt") {
			return nil, execErr("Error 1054 (42S22): Unknown column 'cust_cnt' in 'field list'")
		}
		return result([]string{"total"}, []any{int64(100)}), nil
	}}
	state := progress.NewState()
	p := newPipeline(t, m, db, Options{})

	resp := p.Run(context.Background(), Request{Question: "查询客户总数", Observer: state.Observer()})

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, 1, resp.RetryCount)
	assert.Equal(t, countQuery, resp.ExecutionResult.CorrectedSQL)
	assert.Equal(t, countQuery, resp.SQLQuery)
	assert.Equal(t, 2, db.callCount())
	// The raw driver message reaches the correction prompt.
	assert.Equal(t, 1, m.CallsContaining("Unknown column 'cust_cnt' in 'field list'"))

	assert.Equal(t, []string{
		progress.StageEnhance, progress.StageGenerate, progress.StageValidate, progress.StageRefine,
		progress.StageValidateRefined, progress.StageExecute, progress.StageCorrect, progress.StageExplain,
	}, state.Stages())
	assert.Equal(t, 1, state.RetryCount("error"))
	assert.False(t, state.HasFailures())
}

func TestRunEmptyResultRetriesAreBounded(t *testing.T) {
	m := llmtest.New().
		On(pValidate, `{"valid": true}`).
		On(pEmpty, "SELECT name FROM customer_info WHERE name LIKE '%王%'").
		On(pGenerate, "SELECT name FROM customer_info WHERE name = '王五'").
		On(pRefine, "SELECT name FROM customer_info WHERE name = '王五'").
		On(pExplain, "没有找到相关数据。")
	db := &fakeDB{script: func(int, string) (*sqlexec.Result, error) {
		return result([]string{"name"}), nil
	}}
	p := newPipeline(t, m, db, Options{})

	resp := p.Run(context.Background(), Request{Question: "查询叫王五的客户"})

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, DefaultMaxEmptyRetries, resp.EmptyRetryCount)
	assert.Equal(t, 0, resp.RetryCount)
	assert.Equal(t, 0, resp.RowCount)
	assert.Equal(t, 3, db.callCount())
	assert.Equal(t, 2, m.CallsContaining(pEmpty))
	assert.Equal(t, 1, m.CallsContaining("查询结果为空。原始结果"))
	assert.Equal(t, "没有找到相关数据。", resp.Explanation)
}

func TestRunErrorRetriesAreBounded(t *testing.T) {
	m := llmtest.New().
		On(pValidate, "no opinion").
		On(pGenerate, "SELECT id FROM customer_info").
		On(pRefine, "SELECT bad_col FROM customer_info").
		On(pCorrect, "SELECT id FROM customer_info WHERE id < 0").
		On(pExplain, "没有数据")
	db := &fakeDB{script: func(_ int, stmt string) (*sqlexec.Result, error) {
		if strings.Contains(stmt, "bad_col") {
			return nil, execErr("Error 1054: Unknown column 'bad_col'")
		}
		return result([]string{"id"}), nil
	}}
	// A generous empty budget lets the error counter reach its own bound.
	p := newPipeline(t, m, db, Options{MaxEmptyRetries: 10})

	resp := p.Run(context.Background(), Request{Question: "查询客户"})

	assert.False(t, resp.Success)
	assert.Equal(t, DefaultMaxErrorRetries, resp.RetryCount)
	assert.Equal(t, 4, resp.EmptyRetryCount)
	assert.Contains(t, resp.Error, "SQL执行失败")
	assert.Equal(t, 4, m.CallsContaining(pCorrect))
}

func TestRunCountersStayWithinDefaults(t *testing.T) {
	m := llmtest.New().
		On(pValidate, `{"valid": true}`).
		On(pGenerate, "SELECT id FROM customer_info").
		On(pRefine, "SELECT bad_col FROM customer_info").
		On(pCorrect, "SELECT id FROM customer_info WHERE id < 0").
		On(pExplain, "没有数据")
	db := &fakeDB{script: func(_ int, stmt string) (*sqlexec.Result, error) {
		if strings.Contains(stmt, "bad_col") {
			return nil, execErr("Error 1054: Unknown column 'bad_col'")
		}
		return result([]string{"id"}), nil
	}}
	p := newPipeline(t, m, db, Options{})

	resp := p.Run(context.Background(), Request{Question: "查询客户"})

	require.True(t, resp.Success, resp.Error)
	assert.LessOrEqual(t, resp.RetryCount, DefaultMaxErrorRetries)
	assert.LessOrEqual(t, resp.EmptyRetryCount, DefaultMaxEmptyRetries)
	assert.Equal(t, 3, resp.RetryCount)
	assert.Equal(t, 2, resp.EmptyRetryCount)
}

func TestRunFailedCorrectionFails(t *testing.T) {
	m := llmtest.New().
		On(pValidate, `{"valid": true}`).
		On(pGenerate, "SELECT x FROM customer_info").
		On(pRefine, "SELECT x FROM customer_info").
		On(pCorrect, "SELECT y FROM customer_info")
	db := &fakeDB{script: func(int, string) (*sqlexec.Result, error) {
		return nil, execErr("Error 1054: Unknown column")
	}}
	p := newPipeline(t, m, db, Options{})

	resp := p.Run(context.Background(), Request{Question: "查询客户"})

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "纠正后的SQL执行失败")
	assert.Equal(t, 0, resp.RetryCount)
	assert.Equal(t, "SELECT x FROM customer_info", resp.SQLQuery)
}

func TestRunRejectsUnsafeSQL(t *testing.T) {
	m := llmtest.New().On(pGenerate, "DELETE FROM customer_info")
	db := countDB()
	state := progress.NewState()
	p := newPipeline(t, m, db, Options{Observer: state.Observer()})

	resp := p.Run(context.Background(), Request{Question: "删除所有客户"})

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "只支持SELECT、SHOW、DESCRIBE查询")
	assert.Equal(t, 0, db.callCount())
	assert.Equal(t, 0, m.CallsContaining(pValidate))
	assert.Equal(t, progress.StatusFailed, state.StatusOf(progress.StageValidate))
}

func TestModelValidation(t *testing.T) {
	t.Run("invalid verdict fails", func(t *testing.T) {
		m := llmtest.New().
			On(pValidate, `{"valid": false, "error": "字段cust_cnt不存在"}`).
			On(pGenerate, "SELECT cust_cnt FROM customer_info")
		resp := newPipeline(t, m, countDB(), Options{}).Run(context.Background(), Request{Question: "查询客户总数"})
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "字段cust_cnt不存在")
	})

	t.Run("unparseable verdict falls back", func(t *testing.T) {
		m := llmtest.New().
			On(pValidate, "看起来没问题").
			On(pGenerate, countQuery).
			On(pRefine, countQuery).
			On(pExplain, "共有100位客户。")
		resp := newPipeline(t, m, countDB(), Options{}).Run(context.Background(), Request{Question: "查询客户总数"})
		assert.True(t, resp.Success, resp.Error)
	})
}

func TestExplanationFailureDegrades(t *testing.T) {
	m := llmtest.New().
		On(pValidate, `{"valid": true}`).
		On(pGenerate, countQuery).
		On(pRefine, countQuery).
		OnReplies(pExplain, llmtest.Reply{Err: errors.New("invalid request: content filtered")})

	resp := newPipeline(t, m, countDB(), Options{}).Run(context.Background(), Request{Question: "查询客户总数"})

	require.True(t, resp.Success, resp.Error)
	assert.True(t, strings.HasPrefix(resp.Explanation, explanationFallback), resp.Explanation)
	assert.Contains(t, resp.Explanation, "content filtered")
}

func TestRefinementFailureKeepsInitialSQL(t *testing.T) {
	m := llmtest.New().
		On(pValidate, `{"valid": true}`).
		On(pGenerate, countQuery).
		OnReplies(pRefine, llmtest.Reply{Err: errors.New("invalid request")}).
		On(pExplain, "ok")

	resp := newPipeline(t, m, countDB(), Options{}).Run(context.Background(), Request{Question: "查询客户总数"})

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, countQuery, resp.SQLQuery)
}

func TestEnhanceUsesHistoryAndEntities(t *testing.T) {
	m := llmtest.New().
		On(pRewrite, "年龄在四十岁以上且逾期的客户的名字").
		On(pValidate, `{"valid": true}`).
		On(pGenerate, countQuery).
		On(pRefine, countQuery).
		On(pExplain, "ok")
	history := []session.Turn{
		{Role: session.RoleUser, Content: "年龄在四十岁以上的客户有多少逾期的"},
		{Role: session.RoleAssistant, Content: "共有4人"},
		{Role: session.RoleUser, Content: "给出这四人的名字"},
	}
	entities := &Entities{OrderBy: []intent.OrderBy{{Field: "id", Direction: "desc"}}}

	resp := newPipeline(t, m, countDB(), Options{}).Run(context.Background(), Request{
		Question: "给出这四人的名字",
		History:  history,
		Entities: entities,
	})

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, 1, m.CallsContaining(pRewrite))
	assert.Equal(t, 1, m.CallsContaining("历史问题 1: 年龄在四十岁以上的客户有多少逾期的"))
	assert.Equal(t, 1, m.CallsContaining("当前问题：年龄在四十岁以上且逾期的客户的名字 请按id降序排序"))
}

func TestTargetSQLIsMirrored(t *testing.T) {
	m := happyModel()
	resp := newPipeline(t, m, countDB(), Options{}).Run(context.Background(), Request{
		Question:  "查询非高净值客户",
		TargetSQL: "SELECT id FROM customer_info WHERE balance >= 1000000",
	})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, 1, m.CallsContaining("参考SQL（请严格仿照其结构生成对照组SQL）"))
}

func TestRunWithoutModel(t *testing.T) {
	p := newPipeline(t, nil, countDB(), Options{})
	resp := p.Run(context.Background(), Request{Question: "查询客户总数"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "SQL生成失败")
}

func TestRunSchemaFailure(t *testing.T) {
	p, err := New(context.Background(), llm.NewClient(happyModel()), countDB(), staticSchema{err: errors.New("connection refused")}, Options{})
	require.NoError(t, err)
	resp := p.Run(context.Background(), Request{Question: "查询客户总数"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "获取表结构失败")
}

func TestRunEmptyQuestion(t *testing.T) {
	resp := newPipeline(t, happyModel(), countDB(), Options{}).Run(context.Background(), Request{Question: "  "})
	assert.False(t, resp.Success)
	assert.Equal(t, "查询不能为空", resp.Error)
	assert.Equal(t, "default", resp.SessionID)
}

func TestRunAgainstSQLMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(countQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(int64(100)))

	exec := sqlexec.NewExecutor(db, sqlexec.ExecOptions{})
	p := newPipeline(t, happyModel(), exec, Options{})

	resp := p.Run(context.Background(), Request{Question: "查询客户总数"})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, 1, resp.RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLabel(t *testing.T) {
	assert.Equal(t, "h:3306/db", DBLabel("mysql://u:p@ss@h:3306/db"))
	assert.Equal(t, "unknown", DBLabel("/tmp/x.db"))
}

func TestRunWithoutDatabase(t *testing.T) {
	m := happyModel()
	p, err := New(context.Background(), llm.NewClient(m, llm.WithBackoff(0)), nil, nil, Options{})
	require.NoError(t, err)
	assert.False(t, p.Available())

	resp := p.Run(context.Background(), Request{Question: "查询客户总数", SessionID: "s1"})
	assert.False(t, resp.Success)
	assert.Equal(t, DatabaseUnavailableMessage, resp.Error)
	assert.Equal(t, string(apperrors.DatabaseUnavailable), resp.ErrorKind)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, 0, m.CallCount())
}

func TestGeneratedSQLAfterWideRunes(t *testing.T) {
	// ɐ upper-cases to a three-byte rune, which used to shift the cut point.
	m := llmtest.New().
		On(pValidate, `{"valid": true, "error": null}`).
		On(pGenerate, strings.Repeat("ɐ", 8)+" "+countQuery).
		On(pRefine, countQuery).
		On(pExplain, "共有100位客户。")

	resp := newPipeline(t, m, countDB(), Options{}).Run(context.Background(), Request{Question: "查询客户总数"})

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, countQuery, resp.InitialSQL)
}

func TestValidateWithoutSchemaUsesReadOnlyCheck(t *testing.T) {
	m := llmtest.New().On(pValidate, `{"valid": false, "error": "字段不存在"}`)
	p, err := New(context.Background(), llm.NewClient(m, llm.WithBackoff(0)), countDB(),
		staticSchema{err: errors.New("connection refused")}, Options{})
	require.NoError(t, err)

	v := p.validate(context.Background(), &State{}, countQuery)
	assert.True(t, v.Valid)
	assert.Equal(t, 0, m.CallsContaining(pValidate))
}
