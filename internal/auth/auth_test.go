package auth

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltyorg/ipldash/internal/database"
)

func newTestService(t *testing.T) (*AuthService, *database.DB) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	return NewAuthService(db, nil), db
}

type countingObserver struct {
	logins        map[string]int
	registrations map[string]int
}

func (o *countingObserver) LoginAttempt(role, result string) { o.logins[role+":"+result]++ }
func (o *countingObserver) Registration(result string)       { o.registrations[result]++ }

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name     string
		username string
		password string
		confirm  string
		message  string
	}{
		{"empty username", "", "password1", "password1", "Please enter username, password, and confirm password."},
		{"empty password", "alice", "", "password1", "Please enter username, password, and confirm password."},
		{"empty confirm", "alice", "password1", "", "Please enter username, password, and confirm password."},
		{"mismatch", "alice", "password1", "password2", "Passwords do not match. Please re-enter."},
		{"short username", "al", "password1", "password1", "Username must be between 3 and 64 characters."},
		{"short password", "alice", "short", "short", "Password must be at least 8 characters."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, err := svc.Register(tt.username, tt.password, tt.confirm)
			assert.Nil(t, account)
			require.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.message, verr.Message)
		})
	}

	users, err := svc.ListUsers()
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestRegister_StoresHashAndRejectsDuplicates(t *testing.T) {
	svc, db := newTestService(t)
	obs := &countingObserver{logins: map[string]int{}, registrations: map[string]int{}}
	svc.observer = obs

	account, err := svc.Register("alice", "correct horse", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Username)
	assert.Equal(t, RoleUser, account.Role)

	stored, err := db.GetUserByUsername("alice")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, "correct horse", stored.PasswordHash)
	assert.True(t, isBcryptHash(stored.PasswordHash))

	_, err = svc.Register("alice", "another pass", "another pass")
	require.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, database.ErrUsernameTaken)

	assert.Equal(t, 1, obs.registrations["ok"])
	assert.Equal(t, 1, obs.registrations["rejected"])
}

func TestRegister_MinPasswordLengthSetting(t *testing.T) {
	svc, db := newTestService(t)
	require.NoError(t, db.SetSetting("auth.min_password_length", "12"))

	_, err := svc.Register("bob", "elevenchars", "elevenchars")
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Password must be at least 12 characters.", err.Error())
}

func TestRegister_Disabled(t *testing.T) {
	svc, db := newTestService(t)
	require.NoError(t, db.SetSetting("registration.enabled", "false"))

	_, err := svc.Register("bob", "password1", "password1")
	require.ErrorIs(t, err, ErrValidation)
}

func TestLogin_PerRole(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register("alice", "user-password", "user-password")
	require.NoError(t, err)
	require.NoError(t, svc.CreateAdmin("root", "admin-password"))

	tests := []struct {
		name     string
		role     string
		username string
		password string
		wantOK   bool
	}{
		{"user ok", RoleUser, "alice", "user-password", true},
		{"user wrong password", RoleUser, "alice", "admin-password", false},
		{"user name is case sensitive", RoleUser, "Alice", "user-password", false},
		{"user cannot use admin role", RoleAdmin, "alice", "user-password", false},
		{"admin ok", RoleAdmin, "root", "admin-password", true},
		{"admin cannot use user role", RoleUser, "root", "admin-password", false},
		{"unknown user", RoleUser, "mallory", "whatever", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, err := svc.Login(tt.role, tt.username, tt.password)
			require.NoError(t, err)
			if !tt.wantOK {
				assert.Nil(t, account)
				return
			}
			require.NotNil(t, account)
			assert.Equal(t, tt.username, account.Username)
			assert.Equal(t, tt.role, account.Role)
		})
	}

	_, err = svc.Login("Superuser", "root", "admin-password")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestSessions(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Date(2022, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	session, err := svc.CreateSession(&Account{Username: "root", Role: RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, session.ID, 64)
	assert.True(t, session.ExpiresAt.Equal(now.Add(SessionDuration)))

	got, err := svc.GetSession(session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Account().IsAdmin())

	now = now.Add(6 * 24 * time.Hour)
	require.NoError(t, svc.ExtendSession(session.ID))

	now = now.Add(2 * 24 * time.Hour)
	got, err = svc.GetSession(session.ID)
	require.NoError(t, err)
	assert.NotNil(t, got, "extended session should still be valid")

	now = now.Add(8 * 24 * time.Hour)
	got, err = svc.GetSession(session.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "expired session should be gone")

	missing, err := svc.GetSession("does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCleanupExpiredSessions(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Date(2022, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.CreateSession(&Account{Username: "alice", Role: RoleUser})
	require.NoError(t, err)

	now = now.Add(SessionDuration + time.Minute)
	fresh, err := svc.CreateSession(&Account{Username: "bob", Role: RoleUser})
	require.NoError(t, err)

	removed, err := svc.CleanupExpiredSessions()
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	got, err := svc.GetSession(fresh.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestMigratePlaintextPasswords(t *testing.T) {
	svc, db := newTestService(t)

	legacy, err := db.CreateUser("legacy", "plain-secret")
	require.NoError(t, err)
	require.NoError(t, db.UpsertAdmin("boss", "admin-plain"))
	_, err = svc.Register("modern", "already-hashed", "already-hashed")
	require.NoError(t, err)

	migrated, failed, err := MigratePlaintextPasswords(db)
	require.NoError(t, err)
	assert.Equal(t, 2, migrated)
	assert.Zero(t, failed)

	stored, err := db.GetUserByUsername("legacy")
	require.NoError(t, err)
	assert.Equal(t, legacy.ID, stored.ID)
	assert.True(t, isBcryptHash(stored.PasswordHash))

	account, err := svc.Login(RoleUser, "legacy", "plain-secret")
	require.NoError(t, err)
	assert.NotNil(t, account)

	account, err = svc.Login(RoleAdmin, "boss", "admin-plain")
	require.NoError(t, err)
	assert.NotNil(t, account)

	migrated, _, err = MigratePlaintextPasswords(db)
	require.NoError(t, err)
	assert.Zero(t, migrated, "second run should find nothing to hash")
}
