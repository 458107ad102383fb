package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/blog_auth/internal/logging"
	"github.com/Skotchmaster/blog_auth/internal/metrics"
	"github.com/Skotchmaster/blog_auth/internal/models"
	"github.com/Skotchmaster/blog_auth/internal/mykafka"
	"github.com/Skotchmaster/blog_auth/internal/repo"
	"github.com/Skotchmaster/blog_auth/internal/tokens"
)

type UserStore interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
}

// RefreshStore holds at most one live refresh token per user.
type RefreshStore interface {
	Put(ctx context.Context, ownerID uuid.UUID, token string) error
	FindByOwnerAndToken(ctx context.Context, ownerID uuid.UUID, token string) (*models.RefreshToken, error)
	Rotate(ctx context.Context, ownerID uuid.UUID, oldToken, newToken string) error
	DeleteByToken(ctx context.Context, token string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type TokenSigner interface {
	IssueAccess(subject string) (tokens.Issued, error)
	IssueRefresh(subject string) (tokens.Issued, error)
	Verify(token string, class tokens.Class) (string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev mykafka.Event) error
}

// AuthService drives the session lifecycle: register and login create a
// token pair, refresh rotates it, logout deletes the stored refresh token.
type AuthService struct {
	Users         UserStore
	RefreshTokens RefreshStore
	Hasher        PasswordHasher
	Tokens        TokenSigner

	// Optional.
	Events  EventPublisher
	Metrics *metrics.Metrics

	// UniformLoginErrors hides whether the username or the password was wrong.
	UniformLoginErrors bool
}

type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

func NewPublicUser(u *models.User) PublicUser {
	return PublicUser{
		ID:       u.ID.String(),
		Username: u.Username,
		Email:    u.Email,
		Name:     u.Name,
	}
}

type SessionResult struct {
	User    PublicUser
	Access  tokens.Issued
	Refresh tokens.Issued
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (res *SessionResult, err error) {
	defer s.observe("register", time.Now(), &err)
	l := logging.FromContext(ctx).With("svc", "auth.register", "username", in.Username)

	if err = validateRegister(in); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return nil, err
	}

	emailInUse, err := s.Users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot check email", "error", err)
		return nil, storeErr(err)
	}
	usernameInUse, err := s.Users.ExistsByUsername(ctx, in.Username)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot check username", "error", err)
		return nil, storeErr(err)
	}
	if emailInUse {
		l.Warn("register_error", "status", 409, "reason", MsgEmailInUse)
		return nil, conflictErr(MsgEmailInUse, nil)
	}
	if usernameInUse {
		l.Warn("register_error", "status", 409, "reason", MsgUsernameUnavailable)
		return nil, conflictErr(MsgUsernameUnavailable, nil)
	}

	pwHash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: pwHash,
	}
	if err = s.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// lost a race with a concurrent registration of the same identity
			msg := s.duplicateMessage(ctx, in.Email)
			l.Warn("register_error", "status", 409, "reason", msg, "error", err)
			return nil, conflictErr(msg, err)
		}
		l.Error("register_error", "status", 500, "reason", "cannot create user", "error", err)
		return nil, storeErr(err)
	}

	res, err = s.issueSession(ctx, user)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot issue session", "error", err)
		return nil, err
	}

	l.Info("register_successful", "user_id", user.ID.String())
	s.publish(ctx, mykafka.Event{Type: mykafka.EventUserRegistered, UserID: user.ID.String(), Username: user.Username})
	return res, nil
}

func (s *AuthService) duplicateMessage(ctx context.Context, email string) string {
	if inUse, err := s.Users.ExistsByEmail(ctx, email); err == nil && inUse {
		return MsgEmailInUse
	}
	return MsgUsernameUnavailable
}

func (s *AuthService) Login(ctx context.Context, username, password string) (res *SessionResult, err error) {
	defer s.observe("login", time.Now(), &err)
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	if err = validateLogin(username, password); err != nil {
		l.Warn("login_failed", "status", 400, "error", err)
		return nil, err
	}

	user, err := s.Users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("login_failed", "status", 401, "reason", MsgInvalidUsername)
			return nil, unauthorizedErr(s.loginMessage(MsgInvalidUsername), nil)
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, storeErr(err)
	}

	if !s.Hasher.Verify(password, user.PasswordHash) {
		l.Warn("login_failed", "status", 401, "reason", MsgInvalidPassword)
		return nil, unauthorizedErr(s.loginMessage(MsgInvalidPassword), nil)
	}

	res, err = s.issueSession(ctx, user)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot issue session", "error", err)
		return nil, err
	}

	l.Info("login_successful", "user_id", user.ID.String())
	s.publish(ctx, mykafka.Event{Type: mykafka.EventUserLoggedIn, UserID: user.ID.String(), Username: user.Username})
	return res, nil
}

func (s *AuthService) loginMessage(msg string) string {
	if s.UniformLoginErrors {
		return MsgInvalidCredentials
	}
	return msg
}

// Refresh accepts refreshToken only while it is the stored token of its
// owner, and replaces it with a new pair. A token is usable once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (res *SessionResult, err error) {
	defer s.observe("refresh", time.Now(), &err)
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	subject, err := s.Tokens.Verify(refreshToken, tokens.Refresh)
	if err != nil {
		l.Warn("refresh_rejected", "status", 401, "reason", "token verification failed", "error", err)
		return nil, unauthorizedErr(MsgUnauthorized, err)
	}
	ownerID, err := uuid.Parse(subject)
	if err != nil {
		l.Warn("refresh_rejected", "status", 401, "reason", "subject is not a user id", "error", err)
		return nil, unauthorizedErr(MsgUnauthorized, tokens.ErrMalformed)
	}
	l = l.With("user_id", subject)

	if _, err = s.RefreshTokens.FindByOwnerAndToken(ctx, ownerID, refreshToken); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("refresh_rejected", "status", 401, "reason", "token is not the stored one")
			return nil, unauthorizedErr(MsgUnauthorized, err)
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, storeErr(err)
	}

	user, err := s.Users.FindByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("refresh_rejected", "status", 401, "reason", "user no longer exists")
			return nil, unauthorizedErr(MsgUnauthorized, err)
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, storeErr(err)
	}

	access, refresh, err := s.issuePair(subject)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "cannot sign tokens", "error", err)
		return nil, err
	}

	if err = s.RefreshTokens.Rotate(ctx, ownerID, refreshToken, refresh.Token); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("refresh_rejected", "status", 401, "reason", "token rotated concurrently")
			return nil, unauthorizedErr(MsgUnauthorized, err)
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, storeErr(err)
	}

	l.Info("refresh_successful")
	s.publish(ctx, mykafka.Event{Type: mykafka.EventSessionRefreshed, UserID: subject, Username: user.Username})
	return &SessionResult{User: NewPublicUser(user), Access: access, Refresh: refresh}, nil
}

// LogOut deletes the stored record matching refreshToken. Holding the token
// is the authorization; unknown or already deleted tokens are not an error.
func (s *AuthService) LogOut(ctx context.Context, refreshToken string) (err error) {
	defer s.observe("logout", time.Now(), &err)
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	if refreshToken == "" {
		return nil
	}

	if err = s.RefreshTokens.DeleteByToken(ctx, refreshToken); err != nil {
		l.Error("logout_failed", "status", 500, "reason", "cannot revoke refreshToken", "error", err)
		return storeErr(err)
	}

	// the subject only labels the event; an expired token still logs out
	subject, _ := s.Tokens.Verify(refreshToken, tokens.Refresh)
	l.Info("logout_successful", "user_id", subject)
	s.publish(ctx, mykafka.Event{Type: mykafka.EventUserLoggedOut, UserID: subject})
	return nil
}

func (s *AuthService) issuePair(subject string) (tokens.Issued, tokens.Issued, error) {
	access, err := s.Tokens.IssueAccess(subject)
	if err != nil {
		return tokens.Issued{}, tokens.Issued{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.Tokens.IssueRefresh(subject)
	if err != nil {
		return tokens.Issued{}, tokens.Issued{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return access, refresh, nil
}

func (s *AuthService) issueSession(ctx context.Context, user *models.User) (*SessionResult, error) {
	access, refresh, err := s.issuePair(user.ID.String())
	if err != nil {
		return nil, err
	}
	if err := s.RefreshTokens.Put(ctx, user.ID, refresh.Token); err != nil {
		return nil, storeErr(err)
	}
	return &SessionResult{User: NewPublicUser(user), Access: access, Refresh: refresh}, nil
}

func (s *AuthService) publish(ctx context.Context, ev mykafka.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "type", ev.Type, "error", err)
	}
}

func (s *AuthService) observe(op string, start time.Time, errp *error) {
	s.Metrics.Observe(op, outcome(*errp), time.Since(start))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrValidation):
		return metrics.OutcomeValidation
	case errors.Is(err, ErrConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrUnauthorized):
		return metrics.OutcomeUnauthorized
	default:
		return metrics.OutcomeError
	}
}

// User returns the public view of the user with id, for handlers behind the
// auth middleware.
func (s *AuthService) User(ctx context.Context, id string) (*PublicUser, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, unauthorizedErr(MsgUnauthorized, err)
	}
	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, unauthorizedErr(MsgUnauthorized, err)
		}
		logging.FromContext(ctx).Error("user_lookup_failed", "status", 500, "user_id", id, "error", err)
		return nil, storeErr(err)
	}
	pub := NewPublicUser(user)
	return &pub, nil
}
