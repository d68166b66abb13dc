// ABOUTME: Store interfaces and data types for admin persistence
// ABOUTME: Defines User, Session, and the interfaces for users, permissions, and model data

package store

import (
	"context"
	"errors"
	"time"

	"github.com/2389/csvexport/internal/auth"
	"github.com/2389/csvexport/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrUserNotFound is returned when an admin user doesn't exist.
var ErrUserNotFound = errors.New("admin user not found")

// ErrSessionNotFound is returned when a session doesn't exist or is expired.
var ErrSessionNotFound = errors.New("admin session not found")

// ErrUsernameExists is returned when trying to create a user with an existing username.
var ErrUsernameExists = errors.New("username already exists")

// User represents a person who can sign in to the admin.
type User struct {
	ID           string
	Username     string
	PasswordHash string // bcrypt hash
	DisplayName  string
	IsStaff      bool
	IsSuperuser  bool
	IsActive     bool
	CreatedAt    time.Time
}

// Session represents an authenticated admin session.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// UserStore defines persistence for admin users and sessions.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	CountUsers(ctx context.Context) (int, error)

	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) error
}

// PermissionStore defines persistence for per-user permission codes.
type PermissionStore interface {
	GrantPermission(ctx context.Context, userID, code string) error
	RevokePermission(ctx context.Context, userID, code string) error
	ListPermissions(ctx context.Context, userID string) ([]string, error)
	LoadPrincipal(ctx context.Context, userID string) (*auth.Principal, error)
}

// RecordStore reads rows of admin-registered models.
type RecordStore interface {
	DescribeTable(ctx context.Context, table string) ([]model.Field, error)
	Records(ctx context.Context, meta *model.Meta, ids []string) model.QuerySet
	ListRecords(ctx context.Context, meta *model.Meta, limit int) model.QuerySet
	CountRecords(ctx context.Context, meta *model.Meta) (int, error)
}

// Store combines every store capability.
type Store interface {
	UserStore
	PermissionStore
	RecordStore

	// Close releases any resources held by the store
	Close() error
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
