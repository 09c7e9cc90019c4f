// Package identity is the account store behind the auth procedures.  It
// owns password hashing, email uniqueness, verification tokens and session
// issuance; callers only see users, sessions and sentinel errors.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/storefront/internal/model"
	"github.com/iliyamo/storefront/internal/queue"
	"github.com/iliyamo/storefront/internal/repository"
	"github.com/iliyamo/storefront/internal/utils"
)

var (
	// ErrEmailExists is returned by Create when the email is taken.
	ErrEmailExists = repository.ErrEmailExists
	// ErrInvalidCredentials covers unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrNotVerified is returned by Login for accounts that never
	// confirmed their email.
	ErrNotVerified = errors.New("email not verified")
	// ErrInvalidToken is returned for unknown, used, expired or revoked
	// verification and refresh tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUserNotFound is returned by User for unknown ids.
	ErrUserNotFound = errors.New("user not found")
)

// Store is the contract the auth procedures are written against.
type Store interface {
	FindByEmail(ctx context.Context, email string) (model.User, bool, error)
	Create(ctx context.Context, email, password string) (model.User, error)
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, email, password string) (Session, error)
	Refresh(ctx context.Context, refreshToken string) (Session, error)
	Logout(ctx context.Context, refreshToken string) error
	User(ctx context.Context, id uint64) (model.User, error)
}

// Session is an issued access/refresh token pair.
type Session struct {
	User    model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// Users is the subset of the user repository the store needs.
type Users interface {
	Create(ctx context.Context, in repository.NewUser, cost int) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	VerifyByTokenHash(ctx context.Context, tokenHash string) (bool, error)
}

// Tokens is the subset of the refresh token repository the store needs.
type Tokens interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
}

// Options carries the token and hashing settings.
type Options struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
	// ServerURL is the public base URL used to build verification links.
	ServerURL string
}

// SQLStore implements Store over the MySQL repositories.
type SQLStore struct {
	users  Users
	tokens Tokens
	events queue.Publisher
	log    *logrus.Logger
	opts   Options
}

func NewSQLStore(users Users, tokens Tokens, events queue.Publisher, log *logrus.Logger, opts Options) *SQLStore {
	return &SQLStore{users: users, tokens: tokens, events: events, log: log, opts: opts}
}

// FindByEmail reports whether a user with email exists.
func (s *SQLStore) FindByEmail(ctx context.Context, email string) (model.User, bool, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, fmt.Errorf("find user by email: %w", err)
	}
	return u, true, nil
}

// Create stores an unverified "user" account and requests the
// verification mail.  A failed publish is logged; the account stays.
func (s *SQLStore) Create(ctx context.Context, email, password string) (model.User, error) {
	token, err := utils.NewOpaqueToken()
	if err != nil {
		return model.User{}, fmt.Errorf("verification token: %w", err)
	}
	u, err := s.users.Create(ctx, repository.NewUser{
		Email:                 email,
		Password:              password,
		Role:                  model.RoleUser,
		VerificationTokenHash: utils.HashToken(token),
	}, s.opts.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	ev := queue.VerificationRequestedEvent{
		UserID:      u.ID,
		Email:       u.Email,
		Token:       token,
		VerifyURL:   s.VerifyURL(token),
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.events.Publish(ctx, queue.QueueVerificationRequested, ev); err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Warn("verification event not published")
	}
	return u, nil
}

// VerifyURL is the page link mailed to the user.
func (s *SQLStore) VerifyURL(token string) string {
	return strings.TrimRight(s.opts.ServerURL, "/") + "/verify-email?token=" + url.QueryEscape(token)
}

// VerifyEmail marks the account holding token as verified.
func (s *SQLStore) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	ok, err := s.users.VerifyByTokenHash(ctx, utils.HashToken(token))
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	if !ok {
		return ErrInvalidToken
	}
	return nil
}

// Login checks the credentials and issues a session.
func (s *SQLStore) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		utils.BurnPasswordCheck(password)
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if err := utils.ComparePassword(u.PasswordHash, password); err != nil {
		if errors.Is(err, utils.ErrPasswordMismatch) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("compare password for user %d: %w", u.ID, err)
	}
	if !u.Verified {
		return Session{}, ErrNotVerified
	}
	return s.issue(ctx, u)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *SQLStore) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	raw := strings.TrimSpace(refreshToken)
	if raw == "" {
		return Session{}, ErrInvalidToken
	}
	hash := utils.HashToken(raw)
	userID, err := s.tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrInvalidToken
	}
	if err != nil {
		return Session{}, fmt.Errorf("validate refresh: %w", err)
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return Session{}, fmt.Errorf("revoke refresh: %w", err)
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrInvalidToken
	}
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	return s.issue(ctx, u)
}

// Logout revokes the refresh token.  Unknown tokens are not an error.
func (s *SQLStore) Logout(ctx context.Context, refreshToken string) error {
	raw := strings.TrimSpace(refreshToken)
	if raw == "" {
		return nil
	}
	if err := s.tokens.RevokeByHash(ctx, utils.HashToken(raw)); err != nil {
		return fmt.Errorf("revoke refresh: %w", err)
	}
	return nil
}

// User loads an account by id.
func (s *SQLStore) User(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func (s *SQLStore) issue(ctx context.Context, u model.User) (Session, error) {
	access, err := utils.NewAccessToken(s.opts.JWTSecret, u.ID, u.Email, u.Role, s.opts.AccessTTLMin)
	if err != nil {
		return Session{}, fmt.Errorf("issue access: %w", err)
	}
	refresh, err := utils.NewRefreshToken(s.opts.RefreshTTLDays)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh: %w", err)
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashToken(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, fmt.Errorf("save refresh: %w", err)
	}
	return Session{User: u, Access: access, Refresh: refresh}, nil
}
