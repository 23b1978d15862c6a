// ABOUTME: Conversation operations: creation, membership checks, hydrated listing
// ABOUTME: ListConversationsForUser builds viewer-specific summaries concurrently

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// hydrateConcurrency caps how many summaries are built in parallel. Each
// hydration runs a handful of point queries; WAL keeps readers concurrent.
const hydrateConcurrency = 4

const selectConversationByEventID = `
	SELECT id, title, created_by, event_id, created_at
	FROM conversations
	WHERE event_id = ?
`

const selectConversationByID = `
	SELECT id, title, created_by, event_id, created_at
	FROM conversations
	WHERE id = ?
`

// CreateConversation inserts a conversation and its member rows in one
// transaction. The creator is always enrolled with the owner role; duplicate
// member ids collapse to a single row.
func (s *SQLiteStore) CreateConversation(ctx context.Context, title *string, createdBy int64, memberIDs []int64, eventID *int64) (*Conversation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning conversation tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var nullableTitle sql.NullString
	if title != nil {
		nullableTitle = sql.NullString{String: *title, Valid: true}
	}
	var nullableEventID sql.NullInt64
	if eventID != nil {
		nullableEventID = sql.NullInt64{Int64: *eventID, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (title, created_by, event_id, created_at)
		VALUES (?, ?, ?, ?)
	`, nullableTitle, createdBy, nullableEventID, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("inserting conversation: %w", err)
	}

	convoID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("fetching conversation id: %w", err)
	}

	seen := make(map[int64]struct{}, len(memberIDs)+1)
	members := make([]int64, 0, len(memberIDs)+1)
	for _, id := range append([]int64{createdBy}, memberIDs...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}

	for _, memberID := range members {
		role := RoleMember
		if memberID == createdBy {
			role = RoleOwner
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO conversation_members (conversation_id, user_id, role, joined_at)
			VALUES (?, ?, ?, ?)
		`, convoID, memberID, role, formatTime(now)); err != nil {
			return nil, fmt.Errorf("inserting conversation member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing conversation: %w", err)
	}

	convo := &Conversation{ID: convoID, CreatedBy: createdBy, CreatedAt: now}
	if nullableTitle.Valid {
		value := nullableTitle.String
		convo.Title = &value
	}
	if nullableEventID.Valid {
		value := nullableEventID.Int64
		convo.EventID = &value
	}

	s.logger.Debug("created conversation", "id", convoID, "creator", createdBy, "members", len(members))
	return convo, nil
}

// GetConversationByEventID retrieves the event-group conversation for an event.
// Returns ErrConversationNotFound if the event has no conversation.
func (s *SQLiteStore) GetConversationByEventID(ctx context.Context, eventID int64) (*Conversation, error) {
	return scanConversation(s.db.QueryRowContext(ctx, selectConversationByEventID, eventID))
}

// GetConversationSummary hydrates one conversation for a viewer. Returns
// ErrConversationNotFound for unknown ids.
func (s *SQLiteStore) GetConversationSummary(ctx context.Context, conversationID, viewerID int64) (*ConversationSummary, error) {
	convo, err := scanConversation(s.db.QueryRowContext(ctx, selectConversationByID, conversationID))
	if err != nil {
		return nil, err
	}

	summary, err := s.hydrateConversationSummary(ctx, *convo, viewerID)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// IsMember reports whether the user belongs to the conversation. Side-effect
// free; the send path calls this on every message.
func (s *SQLiteStore) IsMember(ctx context.Context, conversationID, userID int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1
		FROM conversation_members
		WHERE conversation_id = ? AND user_id = ?
		LIMIT 1
	`, conversationID, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking conversation membership: %w", err)
	}
	return true, nil
}

// ListConversationsForUser returns the user's conversations newest-first,
// each hydrated with members, participants, newest message, unread count,
// and event metadata.
func (s *SQLiteStore) ListConversationsForUser(ctx context.Context, userID int64) ([]ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.created_by, c.event_id, c.created_at
		FROM conversations c
		JOIN conversation_members cm ON cm.conversation_id = c.id
		WHERE cm.user_id = ?
		ORDER BY c.created_at DESC, c.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		convo, err := scanConversationRow(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *convo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}

	summaries := make([]ConversationSummary, len(conversations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hydrateConcurrency)
	for i, convo := range conversations {
		g.Go(func() error {
			summary, err := s.hydrateConversationSummary(gctx, convo, userID)
			if err != nil {
				return err
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// hydrateConversationSummary enriches a conversation with participant info
// and unread counts for the viewer.
func (s *SQLiteStore) hydrateConversationSummary(ctx context.Context, convo Conversation, viewerID int64) (ConversationSummary, error) {
	participants, memberIDs, err := s.fetchConversationParticipants(ctx, convo.ID)
	if err != nil {
		return ConversationSummary{}, err
	}

	lastMessage, err := s.fetchLatestMessage(ctx, convo.ID)
	if err != nil {
		return ConversationSummary{}, err
	}

	unreadCount, err := s.countUnreadMessages(ctx, convo.ID, viewerID, lastMessage)
	if err != nil {
		return ConversationSummary{}, err
	}

	var eventMeta *ConversationEventMeta
	if convo.EventID != nil {
		evt, err := s.GetEventByID(ctx, *convo.EventID)
		if err != nil && !errors.Is(err, ErrEventNotFound) {
			return ConversationSummary{}, err
		}
		if err == nil {
			eventMeta = &ConversationEventMeta{
				ID:        evt.ID,
				Title:     evt.Title,
				Location:  evt.Location,
				Time:      evt.Time,
				DateLabel: evt.DateLabel,
			}
		}
	}

	return ConversationSummary{
		Conversation: convo,
		MemberIDs:    memberIDs,
		Participants: participants,
		LastMessage:  lastMessage,
		UnreadCount:  unreadCount,
		Event:        eventMeta,
	}, nil
}

// fetchConversationParticipants returns members in join order plus their ids.
func (s *SQLiteStore) fetchConversationParticipants(ctx context.Context, conversationID int64) ([]ConversationParticipant, []int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cm.user_id, u.name
		FROM conversation_members cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.conversation_id = ?
		ORDER BY cm.joined_at ASC, cm.user_id ASC
	`, conversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing conversation participants: %w", err)
	}
	defer rows.Close()

	var participants []ConversationParticipant
	var memberIDs []int64
	for rows.Next() {
		var participant ConversationParticipant
		if err := rows.Scan(&participant.ID, &participant.Name); err != nil {
			return nil, nil, fmt.Errorf("scanning conversation participant: %w", err)
		}
		participants = append(participants, participant)
		memberIDs = append(memberIDs, participant.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating conversation participants: %w", err)
	}

	return participants, memberIDs, nil
}

// scanConversation reads a single conversation row.
func scanConversation(row *sql.Row) (*Conversation, error) {
	var convo Conversation
	var title sql.NullString
	var eventID sql.NullInt64
	var createdAtStr string

	err := row.Scan(&convo.ID, &title, &convo.CreatedBy, &eventID, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	applyConversationNullables(&convo, title, eventID)
	convo.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	return &convo, nil
}

// scanConversationRow reads a conversation from a multi-row result set.
func scanConversationRow(rows *sql.Rows) (*Conversation, error) {
	var convo Conversation
	var title sql.NullString
	var eventID sql.NullInt64
	var createdAtStr string

	if err := rows.Scan(&convo.ID, &title, &convo.CreatedBy, &eventID, &createdAtStr); err != nil {
		return nil, fmt.Errorf("scanning conversation row: %w", err)
	}

	applyConversationNullables(&convo, title, eventID)
	var err error
	convo.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	return &convo, nil
}

func applyConversationNullables(convo *Conversation, title sql.NullString, eventID sql.NullInt64) {
	if title.Valid {
		value := title.String
		convo.Title = &value
	}
	if eventID.Valid {
		value := eventID.Int64
		convo.EventID = &value
	}
}
