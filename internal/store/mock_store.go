// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests of upper layers to run without SQLite

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type mockMember struct {
	role     string
	joinedAt time.Time
	seq      int
}

// MockStore is an in-memory Store implementation for testing. Methods mirror
// the SQLite semantics, including sentinel errors and ordering.
type MockStore struct {
	mu sync.RWMutex

	nextUserID    int64
	nextEventID   int64
	nextConvoID   int64
	nextMessageID int64
	nextRequestID int64
	nextMemberSeq int

	users         map[int64]*User
	usersByEmail  map[string]int64
	passwords     map[int64]string
	events        map[int64]*Event
	conversations map[int64]*Conversation
	convoByEvent  map[int64]int64
	members       map[int64]map[int64]mockMember
	messages      map[int64][]Message
	readCursors   map[int64]map[int64]int64
	joinRequests  map[int64]*JoinRequest
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:         make(map[int64]*User),
		usersByEmail:  make(map[string]int64),
		passwords:     make(map[int64]string),
		events:        make(map[int64]*Event),
		conversations: make(map[int64]*Conversation),
		convoByEvent:  make(map[int64]int64),
		members:       make(map[int64]map[int64]mockMember),
		messages:      make(map[int64][]Message),
		readCursors:   make(map[int64]map[int64]int64),
		joinRequests:  make(map[int64]*JoinRequest),
	}
}

// CreateUser stores a new account. Passwords are kept in a side map and
// compared directly; the mock never hashes.
func (m *MockStore) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.usersByEmail[params.Email]; exists {
		return nil, ErrEmailExists
	}

	m.nextUserID++
	user := &User{
		ID:        m.nextUserID,
		Name:      params.Name,
		Email:     params.Email,
		CreatedAt: time.Now().UTC(),
	}
	m.users[user.ID] = user
	m.usersByEmail[params.Email] = user.ID
	m.passwords[user.ID] = params.Password

	result := *user
	return &result, nil
}

// GetUserByID retrieves a user by id.
func (m *MockStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	result := *user
	return &result, nil
}

// ListUsers returns all users except excludeID, ordered by name.
func (m *MockStore) ListUsers(ctx context.Context, excludeID int64) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var users []User
	for _, user := range m.users {
		if user.ID == excludeID {
			continue
		}
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

// AuthenticateUser checks email and password against the stored pair.
func (m *MockStore) AuthenticateUser(ctx context.Context, email, password string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.usersByEmail[email]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if m.passwords[id] != password {
		return nil, ErrInvalidCredentials
	}
	result := *m.users[id]
	return &result, nil
}

// CreateEvent stores an event, its group conversation, and the host's owner
// membership, mirroring the SQLite transaction.
func (m *MockStore) CreateEvent(ctx context.Context, params CreateEventParams) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	host, ok := m.users[params.HostUserID]
	if !ok {
		return nil, ErrUserNotFound
	}

	m.nextEventID++
	event := &Event{
		ID:          m.nextEventID,
		HostUserID:  params.HostUserID,
		HostName:    host.Name,
		Title:       params.Title,
		Location:    params.Location,
		Time:        params.Time,
		DateLabel:   params.DateLabel,
		Description: params.Description,
		Gender:      params.Gender,
		MinAge:      params.MinAge,
		MaxAge:      params.MaxAge,
		CreatedAt:   time.Now().UTC(),
	}
	m.events[event.ID] = event

	m.nextConvoID++
	eventID := event.ID
	convo := &Conversation{
		ID:        m.nextConvoID,
		CreatedBy: params.HostUserID,
		EventID:   &eventID,
		CreatedAt: time.Now().UTC(),
	}
	if trimmed := strings.TrimSpace(params.Title); trimmed != "" {
		convo.Title = &trimmed
	}
	m.conversations[convo.ID] = convo
	m.convoByEvent[event.ID] = convo.ID
	m.addMemberLocked(convo.ID, params.HostUserID, RoleOwner)

	result := *event
	return &result, nil
}

// GetEventByID retrieves an event by id.
func (m *MockStore) GetEventByID(ctx context.Context, id int64) (*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	event, ok := m.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	result := *event
	return &result, nil
}

// DeleteEvent removes an event and cascades to its conversation, messages,
// cursors, and join requests.
func (m *MockStore) DeleteEvent(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[id]; !ok {
		return ErrEventNotFound
	}
	delete(m.events, id)

	if convoID, ok := m.convoByEvent[id]; ok {
		delete(m.convoByEvent, id)
		delete(m.conversations, convoID)
		delete(m.members, convoID)
		delete(m.messages, convoID)
		delete(m.readCursors, convoID)
	}
	for reqID, req := range m.joinRequests {
		if req.EventID == id {
			delete(m.joinRequests, reqID)
		}
	}
	return nil
}

// CreateConversation stores a conversation with deduplicated members. The
// creator always joins with the owner role.
func (m *MockStore) CreateConversation(ctx context.Context, title *string, createdBy int64, memberIDs []int64, eventID *int64) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextConvoID++
	convo := &Conversation{
		ID:        m.nextConvoID,
		Title:     title,
		CreatedBy: createdBy,
		EventID:   eventID,
		CreatedAt: time.Now().UTC(),
	}
	m.conversations[convo.ID] = convo
	if eventID != nil {
		m.convoByEvent[*eventID] = convo.ID
	}

	m.addMemberLocked(convo.ID, createdBy, RoleOwner)
	for _, id := range memberIDs {
		if id == createdBy {
			continue
		}
		m.addMemberLocked(convo.ID, id, RoleMember)
	}

	result := *convo
	return &result, nil
}

// GetConversationByEventID retrieves an event's group conversation.
func (m *MockStore) GetConversationByEventID(ctx context.Context, eventID int64) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	convoID, ok := m.convoByEvent[eventID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	result := *m.conversations[convoID]
	return &result, nil
}

// GetConversationSummary hydrates one conversation for a viewer.
func (m *MockStore) GetConversationSummary(ctx context.Context, conversationID, viewerID int64) (*ConversationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.conversations[conversationID]; !ok {
		return nil, ErrConversationNotFound
	}
	summary := m.summarizeLocked(conversationID, viewerID)
	return &summary, nil
}

// IsMember reports current membership from the stored rows.
func (m *MockStore) IsMember(ctx context.Context, conversationID, userID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.members[conversationID][userID]
	return ok, nil
}

// ListConversationsForUser returns hydrated summaries, newest conversation
// first, matching the SQLite ordering.
func (m *MockStore) ListConversationsForUser(ctx context.Context, userID int64) ([]ConversationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var summaries []ConversationSummary
	for convoID, members := range m.members {
		if _, ok := members[userID]; !ok {
			continue
		}
		summaries = append(summaries, m.summarizeLocked(convoID, userID))
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
		}
		return summaries[i].ID > summaries[j].ID
	})
	return summaries, nil
}

// CreateMessage appends a message with a server-assigned id.
func (m *MockStore) CreateMessage(ctx context.Context, params CreateMessageParams) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := params.DeliveryStatus
	if status == "" {
		status = DeliveryStatusSent
	}

	m.nextMessageID++
	msg := Message{
		ID:             m.nextMessageID,
		ConversationID: params.ConversationID,
		SenderID:       params.SenderID,
		Body:           params.Body,
		AttachmentURL:  params.AttachmentURL,
		DeliveryStatus: status,
		CreatedAt:      time.Now().UTC(),
	}
	m.messages[params.ConversationID] = append(m.messages[params.ConversationID], msg)

	result := msg
	return &result, nil
}

// ListMessages paginates newest-first with the SQLite defaults.
func (m *MockStore) ListMessages(ctx context.Context, conversationID int64, limit, offset int) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = defaultMessagePageSize
	}
	if offset < 0 {
		offset = 0
	}

	stored := m.messages[conversationID]
	var result []Message
	for i := len(stored) - 1 - offset; i >= 0 && len(result) < limit; i-- {
		result = append(result, stored[i])
	}
	return result, nil
}

// UpdateReadCursor advances a cursor, never backwards.
func (m *MockStore) UpdateReadCursor(ctx context.Context, conversationID, userID, lastReadMessageID int64) error {
	if lastReadMessageID <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cursors, ok := m.readCursors[conversationID]
	if !ok {
		cursors = make(map[int64]int64)
		m.readCursors[conversationID] = cursors
	}
	if lastReadMessageID > cursors[userID] {
		cursors[userID] = lastReadMessageID
	}
	return nil
}

// CreateJoinRequest mirrors the SQLite checks: hosts and members are
// rejected, and only one pending request per pair is allowed.
func (m *MockStore) CreateJoinRequest(ctx context.Context, eventID, userID int64) (*JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	if event.HostUserID == userID {
		return nil, ErrAlreadyConversationMember
	}

	convoID, ok := m.convoByEvent[eventID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	if _, isMember := m.members[convoID][userID]; isMember {
		return nil, ErrAlreadyConversationMember
	}
	if m.findPendingLocked(eventID, userID) != nil {
		return nil, ErrJoinRequestExists
	}

	m.nextRequestID++
	req := &JoinRequest{
		ID:        m.nextRequestID,
		EventID:   eventID,
		UserID:    userID,
		Status:    JoinRequestPending,
		CreatedAt: time.Now().UTC(),
	}
	m.joinRequests[req.ID] = req

	result := *req
	return &result, nil
}

// ApproveJoinRequest marks the pending request approved and adds the member.
// A requester who already belongs to the group gets ErrAlreadyConversationMember.
func (m *MockStore) ApproveJoinRequest(ctx context.Context, eventID, requesterID, approverID int64) (*JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	if event.HostUserID != approverID {
		return nil, ErrNotEventHost
	}

	convoID, ok := m.convoByEvent[eventID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	if _, isMember := m.members[convoID][requesterID]; isMember {
		return nil, ErrAlreadyConversationMember
	}

	req := m.findPendingLocked(eventID, requesterID)
	if req == nil {
		return nil, ErrJoinRequestNotFound
	}

	now := time.Now().UTC()
	req.Status = JoinRequestApproved
	req.DecidedAt = &now
	req.DecidedBy = &approverID

	m.addMemberLocked(convoID, requesterID, RoleMember)

	result := *req
	return &result, nil
}

// DenyJoinRequest marks the pending request denied.
func (m *MockStore) DenyJoinRequest(ctx context.Context, eventID, requesterID, approverID int64) (*JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	if event.HostUserID != approverID {
		return nil, ErrNotEventHost
	}

	req := m.findPendingLocked(eventID, requesterID)
	if req == nil {
		return nil, ErrJoinRequestNotFound
	}

	now := time.Now().UTC()
	req.Status = JoinRequestDenied
	req.DecidedAt = &now
	req.DecidedBy = &approverID

	result := *req
	return &result, nil
}

// ListPendingJoinRequests returns pending requests oldest first with names.
func (m *MockStore) ListPendingJoinRequests(ctx context.Context, eventID int64) ([]PendingJoinRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pending []PendingJoinRequest
	for _, req := range m.joinRequests {
		if req.EventID != eventID || req.Status != JoinRequestPending {
			continue
		}
		entry := PendingJoinRequest{JoinRequest: *req}
		if user, ok := m.users[req.UserID]; ok {
			entry.UserName = user.Name
		}
		pending = append(pending, entry)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending, nil
}

// RemoveEventMember drops a member and their cursor. Hosts cannot be removed.
func (m *MockStore) RemoveEventMember(ctx context.Context, eventID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	if event.HostUserID == userID {
		return ErrCannotRemoveHost
	}

	convoID, ok := m.convoByEvent[eventID]
	if !ok {
		return ErrConversationNotFound
	}
	if _, isMember := m.members[convoID][userID]; !isMember {
		return ErrNotConversationMember
	}

	delete(m.members[convoID], userID)
	if cursors, ok := m.readCursors[convoID]; ok {
		delete(cursors, userID)
	}
	return nil
}

// Counts reports table sizes.
func (m *MockStore) Counts(ctx context.Context) (Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var messageCount int64
	for _, msgs := range m.messages {
		messageCount += int64(len(msgs))
	}
	return Counts{
		Users:         int64(len(m.users)),
		Events:        int64(len(m.events)),
		Conversations: int64(len(m.conversations)),
		Messages:      messageCount,
		JoinRequests:  int64(len(m.joinRequests)),
	}, nil
}

// Ping always succeeds.
func (m *MockStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *MockStore) Close() error { return nil }

func (m *MockStore) addMemberLocked(conversationID, userID int64, role string) {
	members, ok := m.members[conversationID]
	if !ok {
		members = make(map[int64]mockMember)
		m.members[conversationID] = members
	}
	m.nextMemberSeq++
	members[userID] = mockMember{role: role, joinedAt: time.Now().UTC(), seq: m.nextMemberSeq}
}

func (m *MockStore) findPendingLocked(eventID, userID int64) *JoinRequest {
	for _, req := range m.joinRequests {
		if req.EventID == eventID && req.UserID == userID && req.Status == JoinRequestPending {
			return req
		}
	}
	return nil
}

func (m *MockStore) summarizeLocked(conversationID, viewerID int64) ConversationSummary {
	summary := ConversationSummary{Conversation: *m.conversations[conversationID]}

	type seqMember struct {
		id  int64
		seq int
	}
	var ordered []seqMember
	for id, member := range m.members[conversationID] {
		ordered = append(ordered, seqMember{id: id, seq: member.seq})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })

	for _, member := range ordered {
		summary.MemberIDs = append(summary.MemberIDs, member.id)
		participant := ConversationParticipant{ID: member.id}
		if user, ok := m.users[member.id]; ok {
			participant.Name = user.Name
		}
		summary.Participants = append(summary.Participants, participant)
	}

	if msgs := m.messages[conversationID]; len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		summary.LastMessage = &MessageSummary{
			ID:        last.ID,
			SenderID:  last.SenderID,
			Body:      last.Body,
			CreatedAt: last.CreatedAt,
		}
		cursor := m.readCursors[conversationID][viewerID]
		for _, msg := range msgs {
			if msg.ID > cursor {
				summary.UnreadCount++
			}
		}
	}

	if summary.EventID != nil {
		if event, ok := m.events[*summary.EventID]; ok {
			summary.Event = &ConversationEventMeta{
				ID:        event.ID,
				Title:     event.Title,
				Location:  event.Location,
				Time:      event.Time,
				DateLabel: event.DateLabel,
			}
		}
	}
	return summary
}

var _ Store = (*MockStore)(nil)
