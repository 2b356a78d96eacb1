package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhwani/internal/kv"
)

func fixedNow() time.Time {
	return time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)
}

func TestConversationRetention(t *testing.T) {
	c := NewConversation(kv.NewMemory(), fixedNow)

	var want []string
	for i := 0; i < 60; i++ {
		text := fmt.Sprintf("msg %d", i)
		_, err := c.Append(RoleUser, text)
		require.NoError(t, err)
		if i >= 10 {
			want = append(want, text)
		}
	}

	var got []string
	for _, m := range c.All() {
		got = append(got, m.Text)
	}
	require.Len(t, got, HistoryLimit)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestConversationAppendVisibleImmediately(t *testing.T) {
	c := NewConversation(kv.NewMemory(), fixedNow)

	msg, err := c.Append(RoleAssistant, "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, fixedNow(), msg.Timestamp)

	all := c.All()
	require.Len(t, all, 1)
	assert.Equal(t, msg.ID, all[0].ID)
	assert.Equal(t, RoleAssistant, all[0].Role)
}

func TestConversationIDsUnique(t *testing.T) {
	c := NewConversation(kv.NewMemory(), fixedNow)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		m, err := c.Append(RoleUser, "x")
		require.NoError(t, err)
		require.False(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
	}
}

func TestConversationCorruptBlobIsEmpty(t *testing.T) {
	db := kv.NewMemory()
	require.NoError(t, db.Set(KeyChat, []byte("{not json")))
	c := NewConversation(db, fixedNow)

	assert.Empty(t, c.All())

	_, err := c.Append(RoleUser, "after corruption")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestConversationClear(t *testing.T) {
	c := NewConversation(kv.NewMemory(), fixedNow)
	_, _ = c.Append(RoleUser, "a")
	_, _ = c.Append(RoleAssistant, "b")

	require.NoError(t, c.Clear())
	assert.Empty(t, c.All())
}

type failingKV struct{ kv.Store }

func (failingKV) Set(string, []byte) error { return fmt.Errorf("disk full") }

func TestConversationPersistFailureReturnsError(t *testing.T) {
	c := NewConversation(failingKV{kv.NewMemory()}, fixedNow)
	_, err := c.Append(RoleUser, "lost")
	assert.ErrorContains(t, err, "disk full")
}
