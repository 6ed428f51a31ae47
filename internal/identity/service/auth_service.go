package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"complaintrack/server/internal/audit"
	identitydomain "complaintrack/server/internal/identity/domain"
	"complaintrack/server/internal/security"
	sessiondomain "complaintrack/server/internal/session/domain"
)

// Sentinel errors for the auth service; handlers map them to HTTP statuses.
var (
	ErrUserExists         = errors.New("user already exists with this email or phone")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// AuthResult holds the outcome of Register or Login: the bearer token and the
// identity snapshot bound to the new session.
type AuthResult struct {
	Token    string
	Snapshot sessiondomain.Snapshot
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByEmailOrPhone(ctx context.Context, value string) (*identitydomain.User, error)
	Create(ctx context.Context, u *identitydomain.User) error
	NextPublicUserID(ctx context.Context) (int, error)
}

// SessionCreator is the session store surface needed by the auth service.
type SessionCreator interface {
	Create(ctx context.Context, snapshot sessiondomain.Snapshot) (string, error)
	Revoke(ctx context.Context, token string) error
}

// AuthService implements register, login, and logout, backing the session
// lifecycle of the portal.
type AuthService struct {
	users    UserRepo
	sessions SessionCreator
	hasher   *security.Hasher
	audit    audit.AuditLogger
}

// NewAuthService returns an AuthService with the given dependencies.
// auditLogger may be nil to disable audit.
func NewAuthService(users UserRepo, sessions SessionCreator, hasher *security.Hasher, auditLogger audit.AuditLogger) *AuthService {
	return &AuthService{users: users, sessions: sessions, hasher: hasher, audit: auditLogger}
}

// Register creates a user with the given details, opens a session, and returns
// the bearer token with the identity snapshot. Email and phone must both be
// unused; the public user id is assigned sequentially from 7000.
func (s *AuthService) Register(ctx context.Context, fullName, email, phone, password string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	if existing, err := s.users.GetByEmailOrPhone(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrUserExists
	}
	if existing, err := s.users.GetByEmailOrPhone(ctx, phone); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	publicID, err := s.users.NextPublicUserID(ctx)
	if err != nil {
		return nil, err
	}

	user := &identitydomain.User{
		UserID:       publicID,
		FullName:     fullName,
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		Role:         identitydomain.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	result, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, user.ID, "register", "auth", "")
	return result, nil
}

// Login verifies the password for the account matching emailOrPhone, opens a
// session, and returns the bearer token with the identity snapshot. An unknown
// account and a wrong password both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, emailOrPhone, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmailOrPhone(ctx, strings.TrimSpace(emailOrPhone))
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.logAudit(ctx, 0, "login_failure", "auth", emailOrPhone)
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.logAudit(ctx, user.ID, "login_failure", "auth", "")
		return nil, ErrInvalidCredentials
	}

	result, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, user.ID, "login", "auth", "")
	return result, nil
}

// Logout revokes the session bound to token. Unknown tokens are a no-op.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return err
	}
	s.logAudit(ctx, 0, "logout", "auth", "")
	return nil
}

func (s *AuthService) openSession(ctx context.Context, user *identitydomain.User) (*AuthResult, error) {
	snapshot := sessiondomain.Snapshot{
		ID:       user.ID,
		UserID:   user.UserID,
		FullName: user.FullName,
		Email:    user.Email,
		Phone:    user.Phone,
		Role:     user.Role,
	}
	token, err := s.sessions.Create(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Snapshot: snapshot}, nil
}

func (s *AuthService) logAudit(ctx context.Context, userID int, action, resource, metadata string) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, userID, action, resource, metadata)
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	return nil
}
