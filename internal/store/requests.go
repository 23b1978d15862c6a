// ABOUTME: Join request lifecycle for event groups: create, approve, deny
// ABOUTME: Membership changes ride the same transactions as the decisions

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const selectJoinRequestByID = `
	SELECT id, event_id, user_id, status, created_at, decided_at, decided_by
	FROM conversation_join_requests
	WHERE id = ?
`

// CreateJoinRequest records a pending request for a non-member to join an
// event group. Hosts and existing members get ErrAlreadyConversationMember;
// a second pending request for the same pair gets ErrJoinRequestExists.
func (s *SQLiteStore) CreateJoinRequest(ctx context.Context, eventID, userID int64) (*JoinRequest, error) {
	event, err := s.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.HostUserID == userID {
		return nil, ErrAlreadyConversationMember
	}

	conversation, err := s.GetConversationByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	isMember, err := s.IsMember(ctx, conversation.ID, userID)
	if err != nil {
		return nil, err
	}
	if isMember {
		return nil, ErrAlreadyConversationMember
	}

	var existingID int64
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM conversation_join_requests
		WHERE event_id = ? AND user_id = ? AND status = ?
	`, eventID, userID, JoinRequestPending).Scan(&existingID)
	if err == nil {
		return nil, ErrJoinRequestExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checking pending join request: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_join_requests (event_id, user_id, status, created_at)
		VALUES (?, ?, ?, ?)
	`, eventID, userID, JoinRequestPending, formatTime(time.Now().UTC()))
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrJoinRequestExists
		}
		return nil, fmt.Errorf("inserting join request: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("fetching join request id: %w", err)
	}

	s.logger.Debug("created join request", "id", id, "event", eventID, "user", userID)
	return s.fetchJoinRequestByID(ctx, id)
}

// ApproveJoinRequest marks a pending request approved and adds the requester
// to the event group, atomically. Only the event host may approve; a
// requester who already belongs to the group gets ErrAlreadyConversationMember.
func (s *SQLiteStore) ApproveJoinRequest(ctx context.Context, eventID, requesterID, approverID int64) (*JoinRequest, error) {
	event, err := s.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.HostUserID != approverID {
		return nil, ErrNotEventHost
	}

	conversation, err := s.GetConversationByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	isMember, err := s.IsMember(ctx, conversation.ID, requesterID)
	if err != nil {
		return nil, err
	}
	if isMember {
		return nil, ErrAlreadyConversationMember
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var requestID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM conversation_join_requests
		WHERE event_id = ? AND user_id = ? AND status = ?
	`, eventID, requesterID, JoinRequestPending).Scan(&requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJoinRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching pending join request: %w", err)
	}

	now := formatTime(time.Now().UTC())
	_, err = tx.ExecContext(ctx, `
		UPDATE conversation_join_requests
		SET status = ?, decided_at = ?, decided_by = ?
		WHERE id = ?
	`, JoinRequestApproved, now, approverID, requestID)
	if err != nil {
		return nil, fmt.Errorf("approving join request: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO conversation_members (conversation_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)
	`, conversation.ID, requesterID, RoleMember, now)
	if err != nil {
		return nil, fmt.Errorf("adding approved member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing approval: %w", err)
	}

	s.logger.Debug("approved join request", "id", requestID, "event", eventID, "user", requesterID)
	return s.fetchJoinRequestByID(ctx, requestID)
}

// DenyJoinRequest marks a pending request denied. Only the event host may
// deny. A denied requester may request again later.
func (s *SQLiteStore) DenyJoinRequest(ctx context.Context, eventID, requesterID, approverID int64) (*JoinRequest, error) {
	event, err := s.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.HostUserID != approverID {
		return nil, ErrNotEventHost
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var requestID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM conversation_join_requests
		WHERE event_id = ? AND user_id = ? AND status = ?
	`, eventID, requesterID, JoinRequestPending).Scan(&requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJoinRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching pending join request: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE conversation_join_requests
		SET status = ?, decided_at = ?, decided_by = ?
		WHERE id = ?
	`, JoinRequestDenied, formatTime(time.Now().UTC()), approverID, requestID)
	if err != nil {
		return nil, fmt.Errorf("denying join request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing denial: %w", err)
	}

	s.logger.Debug("denied join request", "id", requestID, "event", eventID, "user", requesterID)
	return s.fetchJoinRequestByID(ctx, requestID)
}

// ListPendingJoinRequests returns pending requests for an event, oldest
// first, joined with requester names for the host's moderation view.
func (s *SQLiteStore) ListPendingJoinRequests(ctx context.Context, eventID int64) ([]PendingJoinRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.event_id, r.user_id, r.status, r.created_at, r.decided_at, r.decided_by, u.name
		FROM conversation_join_requests r
		JOIN users u ON u.id = r.user_id
		WHERE r.event_id = ? AND r.status = ?
		ORDER BY r.created_at ASC, r.id ASC
	`, eventID, JoinRequestPending)
	if err != nil {
		return nil, fmt.Errorf("listing pending join requests: %w", err)
	}
	defer rows.Close()

	var pending []PendingJoinRequest
	for rows.Next() {
		var req PendingJoinRequest
		var createdAtStr string
		var decidedAtStr sql.NullString
		var decidedBy sql.NullInt64

		if err := rows.Scan(&req.ID, &req.EventID, &req.UserID, &req.Status, &createdAtStr, &decidedAtStr, &decidedBy, &req.UserName); err != nil {
			return nil, fmt.Errorf("scanning join request row: %w", err)
		}
		if err := applyJoinRequestNullables(&req.JoinRequest, createdAtStr, decidedAtStr, decidedBy); err != nil {
			return nil, err
		}
		pending = append(pending, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating join request rows: %w", err)
	}

	return pending, nil
}

// RemoveEventMember drops a member from an event group and clears their read
// cursor. The host can never be removed; removing a non-member fails with
// ErrNotConversationMember.
func (s *SQLiteStore) RemoveEventMember(ctx context.Context, eventID, userID int64) error {
	event, err := s.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.HostUserID == userID {
		return ErrCannotRemoveHost
	}

	conversation, err := s.GetConversationByEventID(ctx, eventID)
	if err != nil {
		return err
	}

	isMember, err := s.IsMember(ctx, conversation.ID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrNotConversationMember
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM conversation_members
		WHERE conversation_id = ? AND user_id = ?
	`, conversation.ID, userID)
	if err != nil {
		return fmt.Errorf("removing conversation member: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM conversation_read_state
		WHERE conversation_id = ? AND user_id = ?
	`, conversation.ID, userID)
	if err != nil {
		return fmt.Errorf("clearing read cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing removal: %w", err)
	}

	s.logger.Debug("removed event member", "event", eventID, "user", userID)
	return nil
}

// fetchJoinRequestByID loads one request, decided fields included.
func (s *SQLiteStore) fetchJoinRequestByID(ctx context.Context, id int64) (*JoinRequest, error) {
	row := s.db.QueryRowContext(ctx, selectJoinRequestByID, id)

	var req JoinRequest
	var createdAtStr string
	var decidedAtStr sql.NullString
	var decidedBy sql.NullInt64

	err := row.Scan(&req.ID, &req.EventID, &req.UserID, &req.Status, &createdAtStr, &decidedAtStr, &decidedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJoinRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching join request: %w", err)
	}

	if err := applyJoinRequestNullables(&req, createdAtStr, decidedAtStr, decidedBy); err != nil {
		return nil, err
	}
	return &req, nil
}

func applyJoinRequestNullables(req *JoinRequest, createdAtStr string, decidedAtStr sql.NullString, decidedBy sql.NullInt64) error {
	var err error
	req.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return err
	}
	if decidedAtStr.Valid {
		decidedAt, err := parseTime(decidedAtStr.String)
		if err != nil {
			return err
		}
		req.DecidedAt = &decidedAt
	}
	if decidedBy.Valid {
		req.DecidedBy = &decidedBy.Int64
	}
	return nil
}
