// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	b, err := OpenBadgerInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return map[string]Store{"memory": NewMemoryStore(), "badger": b}
}

func TestHistoryKeepsOrder(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			m := NewManager(store, nil)
			require.NoError(t, m.Append("s1", RoleUser, "查询客户总数", nil))
			require.NoError(t, m.Append("s1", RoleAssistant, "共有100位客户", map[string]any{"sql_query": "SELECT COUNT(*) FROM customer"}))
			require.NoError(t, m.Append("s1", RoleUser, "其中女性有多少", nil))

			h, err := m.History("s1")
			require.NoError(t, err)
			require.Len(t, h, 3)

			var users []string
			for _, e := range h {
				if e.Role == RoleUser {
					users = append(users, e.Content)
				}
			}
			assert.Equal(t, []string{"查询客户总数", "其中女性有多少"}, users)
			assert.Equal(t, "SELECT COUNT(*) FROM customer", h[1].Metadata["sql_query"])
		})
	}
}

func TestCreateAndCurrent(t *testing.T) {
	m := NewManager(nil, nil)

	id, err := m.Create("", "alice")
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, id, m.Current())

	c, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "alice", c.UserID)

	_, err = m.Create("fixed", "")
	require.NoError(t, err)
	assert.Equal(t, "fixed", m.Current())
	assert.Equal(t, 2, m.Count())
}

func TestGetCreatesOnFirstReference(t *testing.T) {
	m := NewManager(nil, nil)
	assert.False(t, m.Exists("new"))
	c, err := m.Get("new")
	require.NoError(t, err)
	assert.Empty(t, c.History)
	assert.True(t, m.Exists("new"))
}

func TestClearAndDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			m := NewManager(store, nil)
			assert.ErrorIs(t, m.Clear("missing"), ErrNotFound)

			require.NoError(t, m.Append("s", RoleUser, "hi", nil))
			require.NoError(t, m.SetIntent("s", "data_count"))
			require.NoError(t, m.UpdateCache("s", Cache{LastQuery: "hi"}))
			require.NoError(t, m.Clear("s"))

			c, err := m.Get("s")
			require.NoError(t, err)
			assert.Empty(t, c.History)
			assert.Equal(t, "data_count", c.CurrentIntent)
			assert.Equal(t, "hi", c.Cache.LastQuery)

			require.NoError(t, m.Delete("s"))
			assert.False(t, m.Exists("s"))
		})
	}
}

func TestCopiesAreIndependent(t *testing.T) {
	m := NewManager(nil, nil)
	require.NoError(t, m.Append("s", RoleUser, "one", nil))

	h, err := m.History("s")
	require.NoError(t, err)
	h[0].Content = "mutated"

	h2, err := m.History("s")
	require.NoError(t, err)
	assert.Equal(t, "one", h2[0].Content)
}

func TestConcurrentAppend(t *testing.T) {
	m := NewManager(nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Append("s", RoleUser, fmt.Sprint(i), nil)
		}(i)
	}
	wg.Wait()

	h, err := m.History("s")
	require.NoError(t, err)
	assert.Len(t, h, 20)
}

func TestTurns(t *testing.T) {
	c := &ConversationContext{History: []Entry{{Role: RoleUser, Content: "a", Metadata: map[string]any{"x": 1}}}}
	assert.Equal(t, []Turn{{Role: RoleUser, Content: "a"}}, c.Turns())
}

func TestLastUserTurns(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "x"},
		{Role: RoleUser, Content: "b"},
		{Role: RoleUser, Content: "c"},
		{Role: RoleUser, Content: "d"},
	}
	assert.Equal(t, []string{"b", "c", "d"}, LastUserTurns(turns, 3))
	assert.Nil(t, LastUserTurns(nil, 3))
}
