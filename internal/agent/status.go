// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package agent

import (
	"context"

	"askbank/cli/internal/logging"

	"golang.org/x/sync/errgroup"
)

// Status describes the running system.
type Status struct {
	State          string   `json:"state"`
	Sessions       int      `json:"sessions"`
	CurrentSession string   `json:"current_session,omitempty"`
	Agents         []string `json:"agents"`
	Database       DBStatus `json:"database"`
	Model          Model    `json:"model"`
}

// DBStatus reports database reachability.
type DBStatus struct {
	Connected bool   `json:"connected"`
	Tables    int    `json:"tables"`
	Error     string `json:"error,omitempty"`
}

// Model reports the configured chat model.
type Model struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Status probes the database and reports manager state.
func (m *Manager) Status(ctx context.Context) Status {
	st := Status{
		State:          "running",
		Sessions:       m.deps.Sessions.Count(),
		CurrentSession: m.deps.Sessions.Current(),
		Agents:         m.Agents(),
		Model:          Model{Name: m.deps.ModelName, Available: m.deps.ModelAvailable},
	}
	if m.deps.DB == nil {
		st.Database.Error = "未配置数据库"
		if m.deps.DBError != nil {
			st.Database.Error = "数据库未连接: " + logging.PresentFailure(m.deps.DBError)
		}
		return st
	}

	var tables int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.deps.DB.Ping(gctx) })
	if m.deps.Tables != nil {
		g.Go(func() error {
			names, err := m.deps.Tables.TableNames(gctx)
			tables = len(names)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		st.Database.Error = logging.PresentFailure(err)
		return st
	}
	st.Database.Connected = true
	st.Database.Tables = tables
	return st
}
