// ABOUTME: Event operations: create with implicit event-group conversation, lookup, delete
// ABOUTME: Event deletion cascades to the conversation, members, messages, cursors, requests

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const selectEventByID = `
	SELECT e.id, e.host_user_id, e.title, e.location, e.time, e.date_label,
	       e.description, e.gender, e.min_age, e.max_age, e.created_at,
	       u.name AS host_name
	FROM events e
	JOIN users u ON u.id = e.host_user_id
	WHERE e.id = ?
`

// CreateEvent publishes an event. The event row, its event-group conversation,
// and the host's owner membership are inserted in one transaction.
func (s *SQLiteStore) CreateEvent(ctx context.Context, params CreateEventParams) (*Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning event tx: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now().UTC())

	res, err := tx.ExecContext(ctx, `
		INSERT INTO events (host_user_id, title, location, time, date_label, description, gender, min_age, max_age, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, params.HostUserID, params.Title, params.Location, params.Time, params.DateLabel,
		params.Description, params.Gender, params.MinAge, params.MaxAge, now)
	if err != nil {
		return nil, fmt.Errorf("inserting event: %w", err)
	}

	eventID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("fetching event id: %w", err)
	}

	title := sql.NullString{String: params.Title, Valid: strings.TrimSpace(params.Title) != ""}
	convoRes, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (title, created_by, event_id, created_at)
		VALUES (?, ?, ?, ?)
	`, title, params.HostUserID, eventID, now)
	if err != nil {
		return nil, fmt.Errorf("inserting event conversation: %w", err)
	}

	convoID, err := convoRes.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("fetching event conversation id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO conversation_members (conversation_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)
	`, convoID, params.HostUserID, RoleOwner, now); err != nil {
		return nil, fmt.Errorf("enrolling event host: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing event: %w", err)
	}

	s.logger.Debug("created event", "id", eventID, "host", params.HostUserID, "conversation", convoID)
	return s.GetEventByID(ctx, eventID)
}

// GetEventByID retrieves an event with its host name.
// Returns ErrEventNotFound if the event doesn't exist.
func (s *SQLiteStore) GetEventByID(ctx context.Context, id int64) (*Event, error) {
	var evt Event
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, selectEventByID, id).Scan(
		&evt.ID,
		&evt.HostUserID,
		&evt.Title,
		&evt.Location,
		&evt.Time,
		&evt.DateLabel,
		&evt.Description,
		&evt.Gender,
		&evt.MinAge,
		&evt.MaxAge,
		&createdAtStr,
		&evt.HostName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying event: %w", err)
	}

	evt.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	return &evt, nil
}

// DeleteEvent removes an event. Foreign keys cascade the delete to the
// event-group conversation and everything scoped under it.
func (s *SQLiteStore) DeleteEvent(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrEventNotFound
	}

	s.logger.Debug("deleted event", "id", id)
	return nil
}
