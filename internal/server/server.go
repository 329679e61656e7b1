// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package server exposes the agent manager over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"askbank/cli/internal/agent"
	apperrors "askbank/cli/internal/errors"
	"askbank/cli/internal/httperrors"
	"askbank/cli/internal/logging"
	"askbank/cli/internal/metadata"
	"askbank/cli/internal/segmentation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Deps wires the HTTP handlers.
type Deps struct {
	Manager      *agent.Manager
	Segmentation agent.SegmentRunner
	Tables       agent.TableLister
	Assets       *metadata.AssetUnderstanding
	Logger       *zap.Logger
}

// Server is the HTTP API.
type Server struct {
	deps   Deps
	engine *gin.Engine
	logger *zap.Logger
}

// New builds the router.
func New(deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{deps: deps, engine: gin.New(), logger: logging.OrNop(deps.Logger)}
	s.engine.Use(gin.Recovery(), s.accessLog)

	s.engine.GET("/health", s.health)
	api := s.engine.Group("/api")
	api.POST("/query", s.query)
	api.POST("/segment", s.segment)
	api.GET("/sessions/:id/history", s.history)
	api.DELETE("/sessions/:id", s.clearSession)
	api.GET("/tables", s.tables)
	api.GET("/tables/:name", s.table)
	api.GET("/status", s.status)
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("http request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("elapsed", time.Since(start)))
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

func (s *Server) bind(c *gin.Context) (queryRequest, bool) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "请求格式错误"})
		return req, false
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "查询不能为空"})
		return req, false
	}
	return req, true
}

func (s *Server) fail(c *gin.Context, err error) {
	c.JSON(httperrors.StatusCode(err), gin.H{"success": false, "error": logging.PresentFailure(err)})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) query(c *gin.Context) {
	req, ok := s.bind(c)
	if !ok {
		return
	}
	resp, err := s.deps.Manager.Process(c.Request.Context(), req.SessionID, req.Query)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) segment(c *gin.Context) {
	req, ok := s.bind(c)
	if !ok {
		return
	}
	if s.deps.Segmentation == nil {
		s.fail(c, apperrors.New(apperrors.DatabaseUnavailable, "客户细分处理器未初始化"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = agent.DefaultSessionID
	}
	resp := s.deps.Segmentation.Run(c.Request.Context(), segmentation.Request{Question: req.Query, SessionID: req.SessionID})
	c.JSON(http.StatusOK, resp)
}

func (s *Server) history(c *gin.Context) {
	id := c.Param("id")
	entries, err := s.deps.Manager.History(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "history": entries})
}

func (s *Server) clearSession(c *gin.Context) {
	id := c.Param("id")
	if err := s.deps.Manager.Clear(id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session_id": id})
}

func (s *Server) tables(c *gin.Context) {
	if s.deps.Tables == nil {
		s.fail(c, apperrors.New(apperrors.DatabaseUnavailable, "未配置数据库"))
		return
	}
	names, err := s.deps.Tables.TableNames(c.Request.Context())
	if err != nil {
		s.fail(c, apperrors.Wrap(apperrors.DatabaseUnavailable, "获取表列表失败", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": names, "count": len(names)})
}

func (s *Server) table(c *gin.Context) {
	if s.deps.Assets == nil {
		s.fail(c, apperrors.New(apperrors.DatabaseUnavailable, "未配置数据库"))
		return
	}
	a, err := s.deps.Assets.AnalyzeTable(c.Request.Context(), c.Param("name"))
	if errors.Is(err, metadata.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Manager.Status(c.Request.Context()))
}
