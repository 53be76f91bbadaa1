package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/saltyorg/ipldash/internal/config"
	"github.com/saltyorg/ipldash/internal/database"
)

const (
	// SessionDuration is how long sessions last unless auth.session_hours overrides it
	SessionDuration = 7 * 24 * time.Hour // 7 days
	// BcryptCost is the bcrypt cost factor
	BcryptCost = 12
	// MinPasswordLength applies unless auth.min_password_length overrides it
	MinPasswordLength = 8
	// MinUsernameLength is the shortest username accepted at registration
	MinUsernameLength = 3
	// MaxUsernameLength is the longest username accepted at registration
	MaxUsernameLength = 64
)

// Roles offered on the login form
const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)

var (
	// ErrValidation marks registration input the user has to correct
	ErrValidation = errors.New("validation failed")
	// ErrUnknownRole is returned for a role other than User or Admin
	ErrUnknownRole = errors.New("unknown role")
)

// ValidationError carries the message shown on the registration form
type ValidationError struct {
	Message string
	cause   error
}

func (e *ValidationError) Error() string { return e.Message }

// Unwrap exposes ErrValidation and the underlying cause, if any
func (e *ValidationError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrValidation, e.cause}
	}
	return []error{ErrValidation}
}

// Account is an authenticated identity
type Account struct {
	ID       int64
	Username string
	Role     string
}

// IsAdmin reports whether the account signed in as an administrator
func (a *Account) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// Session represents a login session
type Session struct {
	ID        string
	Username  string
	Role      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Account returns the identity the session belongs to
func (s *Session) Account() *Account {
	return &Account{Username: s.Username, Role: s.Role}
}

// Observer receives login and registration outcomes
type Observer interface {
	LoginAttempt(role, result string)
	Registration(result string)
}

type nopObserver struct{}

func (nopObserver) LoginAttempt(string, string) {}
func (nopObserver) Registration(string)         {}

// AuthService handles registration, login and sessions
type AuthService struct {
	db       *database.DB
	settings *config.Loader
	observer Observer
	now      func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(db *database.DB, observer Observer) *AuthService {
	if observer == nil {
		observer = nopObserver{}
	}
	return &AuthService{
		db:       db,
		settings: config.NewLoader(db),
		observer: observer,
		now:      time.Now,
	}
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a password against a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// dummyHash is compared against when the account does not exist so that
// unknown usernames take as long to reject as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("ipldash-no-such-account"), BcryptCost)

func (s *AuthService) minPasswordLength() int {
	return s.settings.Int("auth.min_password_length", MinPasswordLength)
}

func (s *AuthService) sessionDuration() time.Duration {
	d := s.settings.DurationHours("auth.session_hours", int(SessionDuration/time.Hour))
	if d <= 0 {
		return SessionDuration
	}
	return d
}

// RegistrationEnabled reports whether self-registration is open
func (s *AuthService) RegistrationEnabled() bool {
	return s.settings.BoolDefaultTrue("registration.enabled")
}

// Register validates the form fields and creates a user with a bcrypt hash.
// Failures the user can fix are returned as *ValidationError.
func (s *AuthService) Register(username, password, confirm string) (*Account, error) {
	account, err := s.register(username, password, confirm)
	switch {
	case err == nil:
		s.observer.Registration("ok")
	case errors.Is(err, ErrValidation):
		s.observer.Registration("rejected")
	default:
		s.observer.Registration("error")
	}
	return account, err
}

func (s *AuthService) register(username, password, confirm string) (*Account, error) {
	if !s.RegistrationEnabled() {
		return nil, &ValidationError{Message: "Registration is currently disabled."}
	}

	username = strings.TrimSpace(username)
	if username == "" || password == "" || confirm == "" {
		return nil, &ValidationError{Message: "Please enter username, password, and confirm password."}
	}
	if password != confirm {
		return nil, &ValidationError{Message: "Passwords do not match. Please re-enter."}
	}
	if n := utf8.RuneCountInString(username); n < MinUsernameLength || n > MaxUsernameLength {
		return nil, &ValidationError{
			Message: fmt.Sprintf("Username must be between %d and %d characters.", MinUsernameLength, MaxUsernameLength),
		}
	}
	if minLen := s.minPasswordLength(); utf8.RuneCountInString(password) < minLen {
		return nil, &ValidationError{Message: fmt.Sprintf("Password must be at least %d characters.", minLen)}
	}
	// bcrypt ignores everything past 72 bytes
	if len(password) > 72 {
		return nil, &ValidationError{Message: "Password must be at most 72 bytes."}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.db.CreateUser(username, hash)
	if errors.Is(err, database.ErrUsernameTaken) {
		return nil, &ValidationError{Message: "Username already exists. Please choose another.", cause: err}
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("username", user.Username).Msg("User registered")
	return &Account{ID: user.ID, Username: user.Username, Role: RoleUser}, nil
}

// Login checks the credentials against the users or admin table depending on
// role. It returns nil, nil when the username is unknown or the password is
// wrong; a non-nil error means the lookup itself failed.
func (s *AuthService) Login(role, username, password string) (*Account, error) {
	account, err := s.login(role, username, password)
	switch {
	case err != nil:
		s.observer.LoginAttempt(role, "error")
	case account == nil:
		s.observer.LoginAttempt(role, "rejected")
	default:
		s.observer.LoginAttempt(role, "ok")
	}
	return account, err
}

func (s *AuthService) login(role, username, password string) (*Account, error) {
	var (
		account *Account
		hash    string
	)

	switch role {
	case RoleUser:
		user, err := s.db.GetUserByUsername(username)
		if err != nil {
			return nil, err
		}
		if user != nil {
			account = &Account{ID: user.ID, Username: user.Username, Role: RoleUser}
			hash = user.PasswordHash
		}
	case RoleAdmin:
		admin, err := s.db.GetAdmin(username)
		if err != nil {
			return nil, err
		}
		if admin != nil {
			account = &Account{Username: admin.Username, Role: RoleAdmin}
			hash = admin.PasswordHash
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	if account == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, nil
	}
	if !CheckPassword(password, hash) {
		return nil, nil
	}
	return account, nil
}

// CreateAdmin creates an administrator or resets the password of an existing one
func (s *AuthService) CreateAdmin(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return &ValidationError{Message: "Admin username is required."}
	}
	if minLen := s.minPasswordLength(); utf8.RuneCountInString(password) < minLen {
		return &ValidationError{Message: fmt.Sprintf("Password must be at least %d characters.", minLen)}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.db.UpsertAdmin(username, hash); err != nil {
		return err
	}

	log.Info().Str("username", username).Msg("Administrator saved")
	return nil
}

// ListUsers returns every registered user account
func (s *AuthService) ListUsers() ([]*Account, error) {
	users, err := s.db.ListUsers()
	if err != nil {
		return nil, err
	}
	accounts := make([]*Account, 0, len(users))
	for _, u := range users {
		accounts = append(accounts, &Account{ID: u.ID, Username: u.Username, Role: RoleUser})
	}
	return accounts, nil
}

// CreateSession creates a new session for an authenticated account
func (s *AuthService) CreateSession(account *Account) (*Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(s.sessionDuration())
	record, err := s.db.CreateSession(sessionID, account.Username, account.Role, expiresAt)
	if err != nil {
		return nil, err
	}
	return sessionFromRecord(record), nil
}

// GetSession retrieves a session by ID. Missing and expired sessions return nil, nil.
func (s *AuthService) GetSession(sessionID string) (*Session, error) {
	record, err := s.db.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	// Check if expired
	if s.now().After(record.ExpiresAt) {
		if err := s.db.DeleteSession(sessionID); err != nil {
			return nil, fmt.Errorf("failed to delete expired session: %w", err)
		}
		return nil, nil
	}

	return sessionFromRecord(record), nil
}

// DeleteSession removes a session
func (s *AuthService) DeleteSession(sessionID string) error {
	return s.db.DeleteSession(sessionID)
}

// ExtendSession extends a session's expiration
func (s *AuthService) ExtendSession(sessionID string) error {
	return s.db.ExtendSession(sessionID, s.now().Add(s.sessionDuration()))
}

// CleanupExpiredSessions deletes sessions past their expiry and returns how many were removed
func (s *AuthService) CleanupExpiredSessions() (int64, error) {
	return s.db.DeleteExpiredSessions(s.now())
}

func sessionFromRecord(r *database.SessionRecord) *Session {
	return &Session{
		ID:        r.ID,
		Username:  r.Username,
		Role:      r.Role,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
}

// generateSessionID creates a cryptographically secure session ID
func generateSessionID() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
