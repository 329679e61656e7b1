// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package keychain

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerWithArrayKeyring(t *testing.T) {
	m := NewWithRing(keyring.NewArrayKeyring(nil))

	_, err := m.LoadAPIKey()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.SaveAPIKey("sk-test"))
	require.NoError(t, m.SaveDBDSN("mysql://root:pw@localhost/mysql2"))

	key, err := m.LoadAPIKey()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", key)

	require.NoError(t, m.ClearAPIKey())
	_, err = m.LoadAPIKey()
	assert.ErrorIs(t, err, ErrNotFound)

	dsn, err := m.LoadDBDSN()
	require.NoError(t, err)
	assert.Equal(t, "mysql://root:pw@localhost/mysql2", dsn)

	require.NoError(t, m.ClearAll())
	_, err = m.LoadDBDSN()
	assert.ErrorIs(t, err, ErrNotFound)
}
