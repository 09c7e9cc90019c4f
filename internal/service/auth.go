// Package service implements the remote procedures.  Every exported method
// returns either its output or an *rpc.Error; the HTTP layer only decodes
// inputs and encodes results.
package service

import (
	"context"
	"errors"

	"github.com/iliyamo/storefront/internal/identity"
	"github.com/iliyamo/storefront/internal/rpc"
	"github.com/iliyamo/storefront/internal/validator"
)

// AuthService implements the auth.* procedures over an identity store.
type AuthService struct {
	store identity.Store
}

func NewAuthService(store identity.Store) *AuthService { return &AuthService{store: store} }

// CreateAccount registers a new user.  An existing account with the same
// email yields Conflict, whether found by the lookup or by the unique index
// on insert.
func (s *AuthService) CreateAccount(ctx context.Context, in rpc.Credentials) (rpc.CreateAccountOutput, error) {
	creds := validator.Credentials{Email: in.Email, Password: in.Password}
	if err := validator.ValidateCredentials(&creds); err != nil {
		return rpc.CreateAccountOutput{}, invalidInput(err)
	}

	_, found, err := s.store.FindByEmail(ctx, creds.Email)
	if err != nil {
		return rpc.CreateAccountOutput{}, rpc.Internal(err)
	}
	if found {
		return rpc.CreateAccountOutput{}, rpc.Conflict("an account with this email already exists", nil)
	}

	if _, err := s.store.Create(ctx, creds.Email, creds.Password); err != nil {
		if errors.Is(err, identity.ErrEmailExists) {
			return rpc.CreateAccountOutput{}, rpc.Conflict("an account with this email already exists", err)
		}
		return rpc.CreateAccountOutput{}, rpc.Internal(err)
	}
	// the account is stored under the normalised address; the caller gets
	// back what they typed
	return rpc.CreateAccountOutput{Success: true, SendToEmail: in.Email}, nil
}

// VerifyEmail consumes a verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (rpc.SuccessOutput, error) {
	if err := s.store.VerifyEmail(ctx, token); err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			return rpc.SuccessOutput{}, rpc.Unauthorized("invalid or expired verification token", err)
		}
		return rpc.SuccessOutput{}, rpc.Internal(err)
	}
	return rpc.SuccessOutput{Success: true}, nil
}

// SignIn opens a session.  Malformed input is BadRequest with issues, like
// account creation.  Every later failure, including infrastructure errors,
// is reported as Unauthorized; the cause stays on the error for logging.
func (s *AuthService) SignIn(ctx context.Context, in rpc.Credentials) (identity.Session, error) {
	creds := validator.Credentials{Email: in.Email, Password: in.Password}
	if err := validator.ValidateCredentials(&creds); err != nil {
		return identity.Session{}, invalidInput(err)
	}
	sess, err := s.store.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		return identity.Session{}, rpc.Unauthorized("invalid email or password", err)
	}
	return sess, nil
}

// Refresh rotates the refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (identity.Session, error) {
	sess, err := s.store.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			return identity.Session{}, rpc.Unauthorized("invalid refresh token", err)
		}
		return identity.Session{}, rpc.Internal(err)
	}
	return sess, nil
}

// SignOut revokes the refresh token.
func (s *AuthService) SignOut(ctx context.Context, refreshToken string) (rpc.SuccessOutput, error) {
	if err := s.store.Logout(ctx, refreshToken); err != nil {
		return rpc.SuccessOutput{}, rpc.Internal(err)
	}
	return rpc.SuccessOutput{Success: true}, nil
}

// Me returns the authenticated account.
func (s *AuthService) Me(ctx context.Context, userID uint64) (rpc.MeOutput, error) {
	u, err := s.store.User(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return rpc.MeOutput{}, rpc.Unauthorized("", err)
		}
		return rpc.MeOutput{}, rpc.Internal(err)
	}
	return rpc.MeOutput{ID: u.ID, Email: u.Email, Role: u.Role}, nil
}

// invalidInput turns validator field errors into a BAD_REQUEST carrying
// one issue per field.
func invalidInput(err error) *rpc.Error {
	var fe validator.FieldErrors
	if !errors.As(err, &fe) {
		return rpc.BadRequest("", err)
	}
	e := rpc.BadRequest(fe.First(), err)
	for _, f := range fe {
		e.Issues = append(e.Issues, rpc.Issue{Field: f.Field, Message: f.Message})
	}
	return e
}
