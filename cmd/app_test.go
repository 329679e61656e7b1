// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "askbank/cli/internal/errors"
	"askbank/cli/internal/sqlexec"
)

func TestAppWithoutDatabase(t *testing.T) {
	refused := errors.New("dial tcp 127.0.0.1:3306: connect: connection refused")
	a := &app{dbErr: refused}

	assert.Nil(t, a.tables())
	assert.Nil(t, a.pinger())

	err := a.requireDB()
	assert.True(t, apperrors.IsKind(err, apperrors.DatabaseUnavailable))
	assert.ErrorIs(t, err, refused)
}

func TestAppWithoutConfiguredDatabase(t *testing.T) {
	err := (&app{}).requireDB()
	assert.True(t, apperrors.IsKind(err, apperrors.DatabaseUnavailable))
}

func TestAppWithDatabase(t *testing.T) {
	a := &app{inspector: &sqlexec.Inspector{}}

	assert.NoError(t, a.requireDB())
	assert.NotNil(t, a.tables())
	assert.NotNil(t, a.pinger())
}
