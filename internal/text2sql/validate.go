// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package text2sql

import (
	"context"
	"fmt"

	"askbank/cli/internal/llm"
	"askbank/cli/internal/prompts"
	"askbank/cli/internal/sqlguard"

	"go.uber.org/zap"
)

type modelVerdict struct {
	Valid *bool `json:"valid"`
	Error any   `json:"error"`
}

// validate runs the read-only check, then asks the model. Model failures
// and malformed replies fall back to the read-only verdict.
func (p *Pipeline) validate(ctx context.Context, s *State, stmt string) sqlguard.Verdict {
	basic := sqlguard.Check(stmt)
	if !basic.Valid || !p.llm.Available() {
		return basic
	}

	info, err := p.tableInfo(ctx, s)
	if err != nil {
		p.logger.Info("schema unavailable for model validation, using read-only check", zap.Error(err))
		return basic
	}
	reply, err := p.llm.Complete(ctx, prompts.CategoryCommon, prompts.SQLValidation, map[string]any{
		"table_info": info,
		"sql":        stmt,
	})
	if err != nil {
		p.logger.Info("model validation unavailable, using read-only check", zap.Error(err))
		return basic
	}

	var mv modelVerdict
	if err := llm.DecodeJSON(reply, &mv); err != nil || mv.Valid == nil {
		p.logger.Info("model validation reply unusable, using read-only check")
		return basic
	}
	if *mv.Valid {
		return sqlguard.Verdict{Valid: true, Message: "模型验证通过"}
	}
	msg := "模型判定SQL无效"
	if mv.Error != nil {
		if text := fmt.Sprint(mv.Error); text != "" {
			msg = text
		}
	}
	return sqlguard.Verdict{Valid: false, Error: msg}
}
