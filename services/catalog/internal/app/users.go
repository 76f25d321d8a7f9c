package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"smartimmo/pkg/auth"
	"smartimmo/pkg/domain"
	"smartimmo/pkg/store"
)

var (
	// ErrInvalidCredentials does not say which of email or password was wrong.
	ErrInvalidCredentials = newError(ErrUnauthorized, "Invalid credentials")
	errEmailTaken         = newError(ErrConflict, "Email already registered")
	errNotAuthenticated   = newError(ErrUnauthorized, "Not authenticated")
	errInactiveUser       = newError(ErrUnauthorized, "Inactive user")
)

// SignUpInput is the data needed to register an account.
type SignUpInput struct {
	Email       string
	Password    string
	FullName    string
	PhoneNumber *string
}

// SignUp registers an active, non-superuser account.
func (a *App) SignUp(ctx context.Context, in SignUpInput) (domain.User, error) {
	return a.createUser(ctx, in, false)
}

func (a *App) createUser(ctx context.Context, in SignUpInput, superuser bool) (domain.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return domain.User{}, newError(ErrInvalidInput, "email: required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.User{}, newError(ErrInvalidInput, "email: invalid address")
	}
	if err := domain.CheckLength("email", email, domain.MaxEmailLen); err != nil {
		return domain.User{}, newError(ErrInvalidInput, err.Error())
	}
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		return domain.User{}, newError(ErrInvalidInput, "full_name: required")
	}
	if err := domain.CheckLength("full_name", fullName, domain.MaxNameLen); err != nil {
		return domain.User{}, newError(ErrInvalidInput, err.Error())
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return domain.User{}, newError(ErrInvalidInput, "password: "+err.Error())
	}
	if _, exists, err := a.store.GetUserByEmail(ctx, email); err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	} else if exists {
		return domain.User{}, errEmailTaken
	}
	passwordHash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	phone := in.PhoneNumber
	if phone != nil {
		trimmed := strings.TrimSpace(*phone)
		phone = &trimmed
		if trimmed == "" {
			phone = nil
		} else if err := domain.CheckLength("phone_number", trimmed, domain.MaxPhoneLen); err != nil {
			return domain.User{}, newError(ErrInvalidInput, err.Error())
		}
	}
	user, err := a.store.CreateUser(ctx, domain.User{
		Email:        email,
		FullName:     fullName,
		PhoneNumber:  phone,
		PasswordHash: passwordHash,
		IsActive:     true,
		IsSuperuser:  superuser,
	})
	if err != nil {
		// A concurrent signup can pass the lookup above; the unique index decides.
		if errors.Is(err, store.ErrDuplicate) {
			return domain.User{}, errEmailTaken
		}
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	user, ok, err := a.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !user.IsActive {
		return domain.User{}, "", errInactiveUser
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Logout revokes the session token.
func (a *App) Logout(token string) error {
	if err := a.sessions.DeleteSession(token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// UserFromToken resolves the acting user from a session token. Unknown,
// expired, revoked and inactive all yield ErrUnauthorized.
func (a *App) UserFromToken(ctx context.Context, token string) (domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return domain.User{}, errNotAuthenticated
	}
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, errNotAuthenticated
	}
	user, found, err := a.store.GetUserByID(ctx, uid)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !found {
		return domain.User{}, errNotAuthenticated
	}
	if !user.IsActive {
		return domain.User{}, errInactiveUser
	}
	return user, nil
}

// ListUsers returns all users, newest first.
func (a *App) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// DeleteAccount removes user with every listing they own and every favorite
// they hold, then revokes their sessions.
func (a *App) DeleteAccount(ctx context.Context, user domain.User) error {
	ok, err := a.store.DeleteUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if !ok {
		return newError(ErrNotFound, "User not found")
	}
	if revoker, ok := a.sessions.(store.UserSessionRevoker); ok {
		if err := revoker.RevokeUserSessions(user.ID, time.Now().UTC()); err != nil {
			return fmt.Errorf("revoke user sessions: %w", err)
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
