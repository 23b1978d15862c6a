// ABOUTME: User account operations: creation, lookup, directory listing
// ABOUTME: AuthenticateUser verifies bcrypt credentials with constant-time behavior

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash keeps bcrypt comparison time constant when the email is unknown,
// so login timing does not enumerate accounts.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// CreateUser inserts a new account with a bcrypt-hashed password.
// Returns ErrEmailExists when the email is already registered.
func (s *SQLiteStore) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (name, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, params.Name, params.Email, string(hash), formatTime(now))
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("fetching user id: %w", err)
	}

	s.logger.Debug("created user", "id", id, "email", params.Email)
	return &User{
		ID:           id,
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
	}, nil
}

// GetUserByID retrieves a user by id.
// Returns ErrUserNotFound if no such user exists.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE id = ?
	`

	var user User
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&createdAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns all accounts except excludeID, ordered by name. Pass 0 to
// list everyone. Password hashes are not included.
func (s *SQLiteStore) ListUsers(ctx context.Context, excludeID int64) ([]User, error) {
	query := `
		SELECT id, name, email, created_at
		FROM users
		WHERE id != ?
		ORDER BY name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, excludeID)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		var createdAtStr string
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		user.CreatedAt, err = parseTime(createdAtStr)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}
	return users, nil
}

// AuthenticateUser verifies an email/password pair.
// Returns ErrInvalidCredentials on unknown email or wrong password; the
// bcrypt comparison runs either way so both paths cost the same.
func (s *SQLiteStore) AuthenticateUser(ctx context.Context, email, password string) (*User, error) {
	query := `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE email = ?
	`

	var user User
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&createdAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	user.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
