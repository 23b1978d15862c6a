// ABOUTME: Message operations: append-only creation, newest-first pagination
// ABOUTME: Read cursors advance monotonically and drive unread counts

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// defaultMessagePageSize is used when callers pass a non-positive limit.
const defaultMessagePageSize = 20

const selectMessageColumns = `
	SELECT id, conversation_id, sender_id, body, attachment_url, delivery_status, created_at
	FROM messages
`

// CreateMessage appends a message and returns the stored row for broadcasting.
// The id and created_at are server-assigned.
func (s *SQLiteStore) CreateMessage(ctx context.Context, params CreateMessageParams) (*Message, error) {
	status := params.DeliveryStatus
	if status == "" {
		status = DeliveryStatusSent
	}

	var attachment sql.NullString
	if params.AttachmentURL != nil {
		attachment = sql.NullString{String: *params.AttachmentURL, Valid: true}
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, body, attachment_url, delivery_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, params.ConversationID, params.SenderID, params.Body, attachment, status, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("fetching message id: %w", err)
	}

	msg := &Message{
		ID:             id,
		ConversationID: params.ConversationID,
		SenderID:       params.SenderID,
		Body:           params.Body,
		AttachmentURL:  params.AttachmentURL,
		DeliveryStatus: status,
		CreatedAt:      now,
	}

	s.logger.Debug("created message", "id", id, "conversation", params.ConversationID, "sender", params.SenderID)
	return msg, nil
}

// ListMessages paginates a conversation's messages newest-first.
// A non-positive limit falls back to 20; a negative offset to 0.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID int64, limit, offset int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultMessagePageSize
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, selectMessageColumns+`
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		msg, err := scanMessageRow(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return messages, nil
}

// UpdateReadCursor advances a user's read cursor for a conversation.
// Non-positive ids are a no-op. The cursor never moves backwards: the upsert
// keeps MAX(existing, new).
func (s *SQLiteStore) UpdateReadCursor(ctx context.Context, conversationID, userID, lastReadMessageID int64) error {
	if lastReadMessageID <= 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_read_state (conversation_id, user_id, last_read_message_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id, user_id)
		DO UPDATE SET
			last_read_message_id = MAX(last_read_message_id, excluded.last_read_message_id),
			updated_at = excluded.updated_at
	`, conversationID, userID, lastReadMessageID, formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("updating read cursor: %w", err)
	}
	return nil
}

// fetchLatestMessage grabs the newest message for previews and unread counts.
// Returns nil without error when the conversation has no messages.
func (s *SQLiteStore) fetchLatestMessage(ctx context.Context, conversationID int64) (*MessageSummary, error) {
	row := s.db.QueryRowContext(ctx, selectMessageColumns+`
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, conversationID)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &MessageSummary{
		ID:        msg.ID,
		SenderID:  msg.SenderID,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt,
	}, nil
}

// countUnreadMessages computes unread totals from the stored read cursor.
func (s *SQLiteStore) countUnreadMessages(ctx context.Context, conversationID, userID int64, lastMessage *MessageSummary) (int, error) {
	if lastMessage == nil {
		return 0, nil
	}

	var lastReadID sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT last_read_message_id
		FROM conversation_read_state
		WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID).Scan(&lastReadID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("fetching read cursor: %w", err)
	}

	if lastReadID.Valid && lastReadID.Int64 >= lastMessage.ID {
		return 0, nil
	}

	threshold := int64(0)
	if lastReadID.Valid {
		threshold = lastReadID.Int64
	}

	var count int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(1)
		FROM messages
		WHERE conversation_id = ? AND id > ?
	`, conversationID, threshold).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}

	return count, nil
}

// scanMessage reads a single message row.
func scanMessage(row *sql.Row) (*Message, error) {
	var msg Message
	var attachment sql.NullString
	var createdAtStr string

	err := row.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Body, &attachment, &msg.DeliveryStatus, &createdAtStr)
	if err != nil {
		return nil, err
	}

	if attachment.Valid {
		msg.AttachmentURL = &attachment.String
	}
	msg.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// scanMessageRow reads a message from a multi-row result set.
func scanMessageRow(rows *sql.Rows) (*Message, error) {
	var msg Message
	var attachment sql.NullString
	var createdAtStr string

	if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Body, &attachment, &msg.DeliveryStatus, &createdAtStr); err != nil {
		return nil, fmt.Errorf("scanning message row: %w", err)
	}

	if attachment.Valid {
		msg.AttachmentURL = &attachment.String
	}
	var err error
	msg.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
