package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatdesk/chatdesk/internal/domain"
	"github.com/chatdesk/chatdesk/internal/logging"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent", "json")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NotNil(t, db.SQL())
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	// Running migrate again should be a no-op
	err := db.migrate()
	require.NoError(t, err)

	var count int
	err = db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"conversations", "messages", "knowledge_snippets", "knowledge_fts", "ai_settings"}
	for _, table := range tables {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

// --- Conversation store tests ---

func TestConversations_Upsert_CreatesOnce(t *testing.T) {
	db := testDB(t)
	cs := NewConversationStore(db)
	ctx := context.Background()

	c1, err := cs.Upsert(ctx, domain.ChannelWhatsApp, "15551234", "Alice")
	require.NoError(t, err)
	require.NotEmpty(t, c1.ID)
	assert.True(t, c1.AIEnabled)

	c2, err := cs.Upsert(ctx, domain.ChannelWhatsApp, "15551234", "")
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)
	assert.Equal(t, "Alice", c2.ContactName, "empty name must not erase the stored one")

	var count int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM conversations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestConversations_Upsert_DistinctPerChannel(t *testing.T) {
	db := testDB(t)
	cs := NewConversationStore(db)
	ctx := context.Background()

	c1, err := cs.Upsert(ctx, domain.ChannelWhatsApp, "15551234", "Alice")
	require.NoError(t, err)
	c2, err := cs.Upsert(ctx, domain.ChannelInstagram, "15551234", "Alice")
	require.NoError(t, err)
	assert.NotEqual(t, c1.ID, c2.ID)
}

func TestConversations_Upsert_ConcurrentFirstContact(t *testing.T) {
	db := testDB(t)
	cs := NewConversationStore(db)
	ctx := context.Background()

	const workers = 8
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := cs.Upsert(ctx, domain.ChannelWhatsApp, "brand-new", "New Contact")
			if assert.NoError(t, err) {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}

	var count int
	require.NoError(t, db.sql.QueryRow(
		"SELECT COUNT(*) FROM conversations WHERE contact_id = 'brand-new'").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestConversations_SetAIEnabled(t *testing.T) {
	db := testDB(t)
	cs := NewConversationStore(db)
	ctx := context.Background()

	conv, err := cs.Upsert(ctx, domain.ChannelWhatsApp, "15551234", "Alice")
	require.NoError(t, err)

	require.NoError(t, cs.SetAIEnabled(ctx, conv.ID, false))
	got, err := cs.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.False(t, got.AIEnabled)

	assert.ErrorIs(t, cs.SetAIEnabled(ctx, "no-such-id", true), ErrNotFound)
}

func TestMessages_AppendAndRoundTrip(t *testing.T) {
	db := testDB(t)
	cs := NewConversationStore(db)
	ctx := context.Background()

	conv, err := cs.Upsert(ctx, domain.ChannelWhatsApp, "15551234", "Alice")
	require.NoError(t, err)

	msg := domain.Message{
		ConversationID: conv.ID,
		Content:        "What are your business hours?",
		Status:         domain.StatusReceived,
		SenderName:     "Alice",
		SenderID:       "15551234",
	}
	require.NoError(t, cs.Append(ctx, &msg))
	require.NotEmpty(t, msg.ID)

	got, err := cs.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.Content, got.Content)
	assert.Equal(t, msg.SenderName, got.SenderName)
	assert.Equal(t, msg.SenderID, got.SenderID)
	assert.Equal(t, domain.StatusReceived, got.Status)
}

func TestMessages_OrderPreserved(t *testing.T) {
	db := testDB(t)
	cs := NewConversationStore(db)
	ctx := context.Background()

	conv, err := cs.Upsert(ctx, domain.ChannelWhatsApp, "15551234", "Alice")
	require.NoError(t, err)

	// Same-second inserts must keep arrival order via the seq tiebreaker.
	now := time.Now().UTC().Truncate(time.Second)
	for _, content := range []string{"first", "second", "third"} {
		msg := domain.Message{
			ConversationID: conv.ID,
			Content:        content,
			Status:         domain.StatusReceived,
			CreatedAt:      now,
		}
		require.NoError(t, cs.Append(ctx, &msg))
	}

	msgs, err := cs.Messages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, "third", msgs[2].Content)
}

func TestMessages_HistoryWindow(t *testing.T) {
	db := testDB(t)
	cs := NewConversationStore(db)
	ctx := context.Background()

	conv, err := cs.Upsert(ctx, domain.ChannelWhatsApp, "15551234", "Alice")
	require.NoError(t, err)

	now := time.Now().UTC()
	stale := domain.Message{
		ConversationID: conv.ID, Content: "old", Status: domain.StatusReceived,
		CreatedAt: now.Add(-10 * time.Hour),
	}
	require.NoError(t, cs.Append(ctx, &stale))

	for i, content := range []string{"a", "b", "c", "d"} {
		msg := domain.Message{
			ConversationID: conv.ID, Content: content, Status: domain.StatusReceived,
			CreatedAt: now.Add(time.Duration(i-4) * time.Minute),
		}
		require.NoError(t, cs.Append(ctx, &msg))
	}

	// Window excludes the stale row; limit keeps the most recent 3,
	// returned oldest first.
	history, err := cs.History(ctx, conv.ID, 3, now.Add(-2*time.Hour))
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "b", history[0].Content)
	assert.Equal(t, "d", history[2].Content)
}

func TestMessages_AppendBumpsConversation(t *testing.T) {
	db := testDB(t)
	cs := NewConversationStore(db)
	ctx := context.Background()

	conv, err := cs.Upsert(ctx, domain.ChannelWhatsApp, "15551234", "Alice")
	require.NoError(t, err)

	msg := domain.Message{
		ConversationID: conv.ID, Content: "hi", Status: domain.StatusReceived,
		CreatedAt: time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, cs.Append(ctx, &msg))

	got, err := cs.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(conv.UpdatedAt))
}
