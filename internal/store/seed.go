// ABOUTME: TOML fixture loader for demo and test data
// ABOUTME: Resolves users by email and events by title, then seeds via store methods

package store

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed seed/demo.toml
var demoFixtureTOML []byte

// SeedFixture describes a dataset to load into an empty database. Users are
// referenced by email, events by title, so fixtures stay free of row ids.
type SeedFixture struct {
	Users         []SeedUser         `toml:"users"`
	Events        []SeedEvent        `toml:"events"`
	Conversations []SeedConversation `toml:"conversations"`
	EventChats    []SeedEventChat    `toml:"event_chats"`
}

// SeedUser creates an account. The password is hashed on insert.
type SeedUser struct {
	Name     string `toml:"name"`
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

// SeedEvent creates an event, which brings its group conversation with it.
type SeedEvent struct {
	Host        string `toml:"host"`
	Title       string `toml:"title"`
	Location    string `toml:"location"`
	Time        string `toml:"time"`
	DateLabel   string `toml:"date_label"`
	Description string `toml:"description"`
	Gender      string `toml:"gender"`
	MinAge      int    `toml:"min_age"`
	MaxAge      int    `toml:"max_age"`
}

// SeedMessage is one message inside a seeded conversation.
type SeedMessage struct {
	Sender string `toml:"sender"`
	Body   string `toml:"body"`
}

// SeedConversation creates a direct or named-group conversation. An empty
// title means direct. Members listed in read_by get their cursor set to the
// newest seeded message.
type SeedConversation struct {
	Title    string        `toml:"title"`
	Members  []string      `toml:"members"`
	Messages []SeedMessage `toml:"messages"`
	ReadBy   []string      `toml:"read_by"`
}

// SeedEventChat adds members and messages to an event's group conversation.
// The host is already a member; list only the extras.
type SeedEventChat struct {
	Event    string        `toml:"event"`
	Members  []string      `toml:"members"`
	Messages []SeedMessage `toml:"messages"`
	ReadBy   []string      `toml:"read_by"`
}

// ParseSeedFixture decodes a TOML fixture.
func ParseSeedFixture(data []byte) (*SeedFixture, error) {
	var fixture SeedFixture
	if _, err := toml.Decode(string(data), &fixture); err != nil {
		return nil, fmt.Errorf("parsing seed fixture: %w", err)
	}
	return &fixture, nil
}

// DemoFixture returns the embedded demo dataset.
func DemoFixture() (*SeedFixture, error) {
	return ParseSeedFixture(demoFixtureTOML)
}

// EnsureDemoData seeds the embedded demo fixture into an empty database.
// Databases that already have users are left alone.
func (s *SQLiteStore) EnsureDemoData(ctx context.Context) error {
	counts, err := s.Counts(ctx)
	if err != nil {
		return err
	}
	if counts.Users > 0 {
		s.logger.Debug("database already has users, skipping demo seed")
		return nil
	}

	fixture, err := DemoFixture()
	if err != nil {
		return err
	}
	return s.Seed(ctx, fixture)
}

// Seed loads a fixture into the database. It does not check for prior data;
// callers wanting idempotence should use EnsureDemoData or check Counts first.
func (s *SQLiteStore) Seed(ctx context.Context, fixture *SeedFixture) error {
	usersByEmail := make(map[string]*User, len(fixture.Users))
	for _, su := range fixture.Users {
		user, err := s.CreateUser(ctx, CreateUserParams{
			Name:     su.Name,
			Email:    su.Email,
			Password: su.Password,
		})
		if err != nil {
			return fmt.Errorf("seeding user %q: %w", su.Email, err)
		}
		usersByEmail[su.Email] = user
	}

	resolveUser := func(email string) (*User, error) {
		if user, ok := usersByEmail[email]; ok {
			return user, nil
		}
		return nil, fmt.Errorf("seed fixture references unknown user %q", email)
	}

	eventsByTitle := make(map[string]*Event, len(fixture.Events))
	for _, se := range fixture.Events {
		host, err := resolveUser(se.Host)
		if err != nil {
			return err
		}
		event, err := s.CreateEvent(ctx, CreateEventParams{
			HostUserID:  host.ID,
			Title:       se.Title,
			Location:    se.Location,
			Time:        se.Time,
			DateLabel:   se.DateLabel,
			Description: se.Description,
			Gender:      se.Gender,
			MinAge:      se.MinAge,
			MaxAge:      se.MaxAge,
		})
		if err != nil {
			return fmt.Errorf("seeding event %q: %w", se.Title, err)
		}
		eventsByTitle[se.Title] = event
	}

	for _, sc := range fixture.Conversations {
		if len(sc.Members) == 0 {
			return fmt.Errorf("seed conversation %q has no members", sc.Title)
		}
		memberIDs := make([]int64, 0, len(sc.Members))
		for _, email := range sc.Members {
			user, err := resolveUser(email)
			if err != nil {
				return err
			}
			memberIDs = append(memberIDs, user.ID)
		}

		var title *string
		if trimmed := strings.TrimSpace(sc.Title); trimmed != "" {
			title = &trimmed
		}

		convo, err := s.CreateConversation(ctx, title, memberIDs[0], memberIDs, nil)
		if err != nil {
			return fmt.Errorf("seeding conversation %q: %w", sc.Title, err)
		}

		if err := s.seedMessages(ctx, convo.ID, sc.Messages, sc.ReadBy, usersByEmail); err != nil {
			return fmt.Errorf("seeding conversation %q: %w", sc.Title, err)
		}
	}

	for _, ec := range fixture.EventChats {
		event, ok := eventsByTitle[ec.Event]
		if !ok {
			return fmt.Errorf("seed fixture references unknown event %q", ec.Event)
		}
		convo, err := s.GetConversationByEventID(ctx, event.ID)
		if err != nil {
			return fmt.Errorf("seeding event chat %q: %w", ec.Event, err)
		}

		for _, email := range ec.Members {
			user, err := resolveUser(email)
			if err != nil {
				return err
			}
			if err := s.addConversationMember(ctx, convo.ID, user.ID, RoleMember); err != nil {
				return fmt.Errorf("seeding event chat %q member %q: %w", ec.Event, email, err)
			}
		}

		if err := s.seedMessages(ctx, convo.ID, ec.Messages, ec.ReadBy, usersByEmail); err != nil {
			return fmt.Errorf("seeding event chat %q: %w", ec.Event, err)
		}
	}

	s.logger.Info("seeded fixture",
		"users", len(fixture.Users),
		"events", len(fixture.Events),
		"conversations", len(fixture.Conversations),
		"event_chats", len(fixture.EventChats))
	return nil
}

// seedMessages posts messages in order and advances read cursors for the
// read_by members to the newest one.
func (s *SQLiteStore) seedMessages(ctx context.Context, conversationID int64, messages []SeedMessage, readBy []string, usersByEmail map[string]*User) error {
	var lastID int64
	for _, sm := range messages {
		sender, ok := usersByEmail[sm.Sender]
		if !ok {
			return fmt.Errorf("seed message references unknown user %q", sm.Sender)
		}
		msg, err := s.CreateMessage(ctx, CreateMessageParams{
			ConversationID: conversationID,
			SenderID:       sender.ID,
			Body:           sm.Body,
		})
		if err != nil {
			return fmt.Errorf("seeding message from %q: %w", sm.Sender, err)
		}
		lastID = msg.ID
	}

	if lastID == 0 {
		return nil
	}
	for _, email := range readBy {
		reader, ok := usersByEmail[email]
		if !ok {
			return fmt.Errorf("seed read_by references unknown user %q", email)
		}
		if err := s.UpdateReadCursor(ctx, conversationID, reader.ID, lastID); err != nil {
			return fmt.Errorf("seeding read cursor for %q: %w", email, err)
		}
	}
	return nil
}

// addConversationMember inserts a membership row, ignoring duplicates.
func (s *SQLiteStore) addConversationMember(ctx context.Context, conversationID, userID int64, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO conversation_members (conversation_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)
	`, conversationID, userID, role, formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("adding conversation member: %w", err)
	}
	return nil
}
