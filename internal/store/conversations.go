package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/chatdesk/chatdesk/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ConversationStore is the durable record of conversations and messages.
// It is the pipeline's single source of truth and idempotency boundary.
type ConversationStore struct {
	db *DB
}

// NewConversationStore creates a conversation store using the given database.
func NewConversationStore(db *DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// Upsert finds or creates the conversation for (channel, contactID) in a
// single atomic statement, so two concurrent first-contact messages from
// the same address cannot create two rows. A non-empty contactName
// refreshes the stored display name; the updated_at timestamp is bumped
// either way.
func (s *ConversationStore) Upsert(ctx context.Context, channel domain.ChannelID, contactID, contactName string) (*domain.Conversation, error) {
	now := nowUTC()

	row := s.db.sql.QueryRowContext(ctx, `
		INSERT INTO conversations (id, channel, contact_id, contact_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (channel, contact_id) DO UPDATE SET
			contact_name = CASE WHEN excluded.contact_name != '' THEN excluded.contact_name ELSE contact_name END,
			updated_at   = excluded.updated_at
		RETURNING id, channel, contact_id, contact_name, ai_enabled, created_at, updated_at`,
		uuid.New().String(), channel, contactID, contactName, now, now,
	)

	conv, err := scanConversation(row)
	if err != nil {
		return nil, domain.PersistenceError("upsert conversation", err)
	}
	return conv, nil
}

// Get returns a conversation by id, or ErrNotFound.
func (s *ConversationStore) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	row := s.db.sql.QueryRowContext(ctx, `
		SELECT id, channel, contact_id, contact_name, ai_enabled, created_at, updated_at
		FROM conversations WHERE id = ?`, id)

	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, domain.PersistenceError("get conversation", err)
	}
	return conv, nil
}

// List returns all conversations, most recently updated first.
func (s *ConversationStore) List(ctx context.Context) ([]domain.Conversation, error) {
	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT id, channel, contact_id, contact_name, ai_enabled, created_at, updated_at
		FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, domain.PersistenceError("list conversations", err)
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, domain.PersistenceError("list conversations", err)
		}
		out = append(out, *conv)
	}
	return out, rows.Err()
}

// SetAIEnabled toggles the automated-reply flag on a conversation.
func (s *ConversationStore) SetAIEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.sql.ExecContext(ctx,
		"UPDATE conversations SET ai_enabled = ?, updated_at = ? WHERE id = ?",
		boolToInt(enabled), nowUTC(), id)
	if err != nil {
		return domain.PersistenceError("set ai_enabled", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Append stores a new immutable message row and bumps the owning
// conversation's updated_at, in one transaction. Missing ID and
// CreatedAt fields are filled in.
func (s *ConversationStore) Append(ctx context.Context, msg *domain.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return domain.PersistenceError("append message", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, content, status, sender_name, sender_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Content, msg.Status,
		msg.SenderName, msg.SenderID, formatTime(msg.CreatedAt))
	if err != nil {
		return domain.PersistenceError("append message", err)
	}
	msg.Seq, _ = res.LastInsertId()

	if _, err := tx.ExecContext(ctx,
		"UPDATE conversations SET updated_at = ? WHERE id = ?",
		formatTime(msg.CreatedAt), msg.ConversationID); err != nil {
		return domain.PersistenceError("append message", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.PersistenceError("append message", err)
	}
	return nil
}

// Messages returns all messages of a conversation in arrival order.
func (s *ConversationStore) Messages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	return s.queryMessages(ctx, `
		SELECT seq, id, conversation_id, content, status, sender_name, sender_id, created_at
		FROM messages WHERE conversation_id = ? ORDER BY seq`, conversationID)
}

// GetMessage returns a single message by id, or ErrNotFound.
func (s *ConversationStore) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	msgs, err := s.queryMessages(ctx, `
		SELECT seq, id, conversation_id, content, status, sender_name, sender_id, created_at
		FROM messages WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	return &msgs[0], nil
}

// History returns up to limit of the most recent messages in the
// conversation created at or after since, oldest first. This is the
// window the context composer consumes.
func (s *ConversationStore) History(ctx context.Context, conversationID string, limit int, since time.Time) ([]domain.Message, error) {
	msgs, err := s.queryMessages(ctx, `
		SELECT seq, id, conversation_id, content, status, sender_name, sender_id, created_at
		FROM messages
		WHERE conversation_id = ? AND created_at >= ?
		ORDER BY seq DESC LIMIT ?`,
		conversationID, formatTime(since), limit)
	if err != nil {
		return nil, err
	}
	// Reverse into oldest-first order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *ConversationStore) queryMessages(ctx context.Context, query string, args ...any) ([]domain.Message, error) {
	rows, err := s.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.PersistenceError("query messages", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		var createdAt string
		if err := rows.Scan(&m.Seq, &m.ID, &m.ConversationID, &m.Content,
			&m.Status, &m.SenderName, &m.SenderID, &createdAt); err != nil {
			return nil, domain.PersistenceError("scan message", err)
		}
		m.CreatedAt = parseTime(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	var c domain.Conversation
	var aiEnabled int
	var createdAt, updatedAt string
	if err := row.Scan(&c.ID, &c.Channel, &c.ContactID, &c.ContactName,
		&aiEnabled, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.AIEnabled = aiEnabled != 0
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// formatTime renders a timestamp in the sortable UTC format used by all
// date columns.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.DateTime)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.DateTime, s)
	return t
}

func nowUTC() string {
	return formatTime(time.Now())
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
