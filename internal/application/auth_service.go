package application

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
)

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AdminAccount is the single configured account.
type AdminAccount struct {
	Username     string
	PasswordHash string
}

// NewAdminAccount builds the account from configuration. A plaintext
// password is hashed when no hash is supplied.
func NewAdminAccount(username, passwordHash, password string, params Argon2idParams) (AdminAccount, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return AdminAccount{}, fmt.Errorf("admin account: username is required")
	}
	if passwordHash != "" {
		if err := ValidatePasswordHash(passwordHash); err != nil {
			return AdminAccount{}, fmt.Errorf("admin account: %w", err)
		}
		return AdminAccount{Username: username, PasswordHash: passwordHash}, nil
	}
	if password == "" {
		return AdminAccount{}, fmt.Errorf("admin account: a password or password hash is required")
	}
	hash, err := CreatePasswordHash(password, params)
	if err != nil {
		return AdminAccount{}, fmt.Errorf("admin account: %w", err)
	}
	return AdminAccount{Username: username, PasswordHash: hash}, nil
}

// sessionIssuer is the subset of SessionService used by AuthService.
type sessionIssuer interface {
	CreateSession(ctx context.Context, identity Identity, client ClientInfo) (Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// LoginParams is a login attempt.
type LoginParams struct {
	Username string
	Password string
	Client   ClientInfo
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Identity Identity
	Session  Session
}

// AuthService checks the admin credentials and opens or closes sessions.
type AuthService struct {
	admin          AdminAccount
	sessions       sessionIssuer
	verifyPassword PasswordVerifier
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the default logger.
func NewAuthService(admin AdminAccount, sessions sessionIssuer, verify PasswordVerifier) *AuthService {
	return NewAuthServiceWithLogger(admin, sessions, verify, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(admin AdminAccount, sessions sessionIssuer, verify PasswordVerifier, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	return &AuthService{
		admin:          admin,
		sessions:       sessions,
		verifyPassword: verify,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// CheckCredentials verifies a username/password pair against the admin account.
func (s *AuthService) CheckCredentials(ctx context.Context, username, password string) (Identity, error) {
	if s == nil || s.admin.PasswordHash == "" {
		return Identity{}, ErrInvalidCredentials
	}
	if username == "" || password == "" {
		return Identity{}, ErrInvalidCredentials
	}
	userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(s.admin.Username)) == 1
	passErr := s.verifyPassword(s.admin.PasswordHash, password)
	if !userMatch || passErr != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{UserID: TenantUserID, Username: s.admin.Username}, nil
}

// Login validates credentials and issues a new session.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (result LoginResult, err error) {
	logger := s.loggerWith(ctx, "Login", "username", params.Username, "client_ip", params.Client.ClientIP)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "authentication succeeded", "user_id", result.Identity.UserID)
	}()

	identity, err := s.CheckCredentials(ctx, strings.TrimSpace(params.Username), params.Password)
	if err != nil {
		return LoginResult{}, err
	}

	session, err := s.sessions.CreateSession(ctx, identity, params.Client)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Identity: identity, Session: session}, nil
}

// Logout revokes the session behind token, if any.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.DeleteSession(ctx, token)
}
