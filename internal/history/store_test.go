package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreAppendAndQuery(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, content := range []string{"first", "second", "third"} {
		require.NoError(t, store.Append(Message{
			ChannelID:  "42",
			Sender:     "1234567890abcdef1234567890abcdef",
			SenderName: "Alex",
			Content:    content,
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.Append(Message{
		ChannelID: "99",
		Sender:    "abcdefabcdefabcdefabcdefabcdef12",
		Content:   "other channel",
		Timestamp: base,
	}))

	msgs, err := store.MessagesBefore("42", base.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	// Newest first.
	assert.Equal(t, "third", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, "first", msgs[2].Content)
	assert.Equal(t, base.Add(2*time.Minute), msgs[0].Timestamp)
	assert.Equal(t, "Alex", msgs[0].SenderName)
}

func TestStoreMessagesBeforeCutoff(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(Message{
			ChannelID: "42",
			Sender:    "s",
			Content:   "msg",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	// Strictly older than the cutoff.
	msgs, err := store.MessagesBefore("42", base.Add(2*time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	// Limit caps the page size.
	msgs, err = store.MessagesBefore("42", base.Add(time.Hour), 3)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)

	// Non-positive limits fall back to the default page size.
	msgs, err = store.MessagesBefore("42", base.Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 5)
}

func TestStoreChannels(t *testing.T) {
	store := openTestStore(t)

	channels, err := store.Channels()
	require.NoError(t, err)
	assert.Empty(t, channels)

	now := time.Now()
	for _, id := range []string{"7", "42", "42", "99"} {
		require.NoError(t, store.Append(Message{
			ChannelID: id, Sender: "s", Content: "c", Timestamp: now,
		}))
	}

	channels, err = store.Channels()
	require.NoError(t, err)
	assert.Equal(t, []string{"42", "7", "99"}, channels)
}
