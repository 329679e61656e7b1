// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"askbank/cli/internal/agent"
	"askbank/cli/internal/metadata"
	"askbank/cli/internal/segmentation"
	"askbank/cli/internal/sqlexec"
	"askbank/cli/internal/text2sql"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/golang/glog.(*loggingT).flushDaemon"))
}

type fakeQuery struct{}

func (fakeQuery) Run(_ context.Context, req text2sql.Request) *text2sql.Response {
	return &text2sql.Response{Success: true, Question: req.Question, SQLQuery: "SELECT COUNT(*) FROM customer_info;", Explanation: "共有100位客户。"}
}

type fakeSegment struct{}

func (fakeSegment) Run(_ context.Context, req segmentation.Request) *segmentation.Response {
	return &segmentation.Response{Success: true, Question: req.Question, SessionID: req.SessionID, Explanation: "对比完成"}
}

type fakeCatalog struct{}

func (fakeCatalog) TableNames(context.Context) ([]string, error) {
	return []string{"customer_info"}, nil
}

func (fakeCatalog) Columns(_ context.Context, table string) ([]sqlexec.Column, error) {
	if table != "customer_info" {
		return nil, nil
	}
	return []sqlexec.Column{{Name: "id", DataType: "int", Key: "PRI"}, {Name: "cust_name", DataType: "varchar"}}, nil
}

func (fakeCatalog) Relationships(context.Context) ([]sqlexec.ForeignKey, error) { return nil, nil }

func (fakeCatalog) Ping(context.Context) error { return nil }

func newServer(t *testing.T) *Server {
	t.Helper()
	cat := fakeCatalog{}
	assets := metadata.NewAssetUnderstanding(cat, nil)
	m := agent.NewManager(agent.Deps{
		Text2SQL:     fakeQuery{},
		Segmentation: fakeSegment{},
		Assets:       assets,
		Recommender:  metadata.NewRecommender(assets),
		Tables:       cat,
		DB:           cat,
		ModelName:    "qwen-plus",
	})
	return New(Deps{Manager: m, Segmentation: fakeSegment{}, Tables: cat, Assets: assets})
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func TestHealth(t *testing.T) {
	w, body := do(t, newServer(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestQueryAndHistory(t *testing.T) {
	s := newServer(t)

	w, body := do(t, s, http.MethodPost, "/api/query", `{"query":"查询客户总数","session_id":"web-1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "web-1", body["session_id"])
	query, ok := body["query"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "共有100位客户。", query["explanation"])

	w, body = do(t, s, http.MethodGet, "/api/sessions/web-1/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	history, ok := body["history"].([]any)
	require.True(t, ok)
	assert.Len(t, history, 2)

	w, _ = do(t, s, http.MethodDelete, "/api/sessions/web-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	_, body = do(t, s, http.MethodGet, "/api/sessions/web-1/history", "")
	assert.Empty(t, body["history"])
}

func TestQueryValidation(t *testing.T) {
	s := newServer(t)

	w, body := do(t, s, http.MethodPost, "/api/query", `{"query":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "查询不能为空", body["error"])

	w, _ = do(t, s, http.MethodPost, "/api/query", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSegment(t *testing.T) {
	w, body := do(t, newServer(t), http.MethodPost, "/api/segment", `{"query":"对比高价值客户和普通客户"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "对比完成", body["explanation"])
	assert.Equal(t, agent.DefaultSessionID, body["session_id"])
}

func TestTables(t *testing.T) {
	s := newServer(t)

	w, body := do(t, s, http.MethodGet, "/api/tables", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"customer_info"}, body["tables"])

	w, body = do(t, s, http.MethodGet, "/api/tables/customer_info", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "customer_info", body["table_name"])

	w, _ = do(t, s, http.MethodGet, "/api/tables/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatus(t *testing.T) {
	w, body := do(t, newServer(t), http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "running", body["state"])
	db, ok := body["database"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, db["connected"])
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, newServer(t).Run(ctx, "127.0.0.1:0"))
}
