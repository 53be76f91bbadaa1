package auth

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/ipldash/internal/database"
)

// isBcryptHash reports whether a stored password already looks like a bcrypt hash
func isBcryptHash(stored string) bool {
	if len(stored) != 60 {
		return false
	}
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}

// MigratePlaintextPasswords re-hashes every users/admin row whose password column
// still holds a plaintext value. Rows that fail are logged and left as they are.
func MigratePlaintextPasswords(db *database.DB) (int, int, error) {
	users, err := db.ListUsers()
	if err != nil {
		return 0, 0, err
	}
	admins, err := db.ListAdmins()
	if err != nil {
		return 0, 0, err
	}

	var migrated, failed int

	for _, user := range users {
		if isBcryptHash(user.PasswordHash) {
			continue
		}
		hash, err := HashPassword(user.PasswordHash)
		if err == nil {
			err = db.UpdateUserPassword(user.ID, hash)
		}
		if err != nil {
			failed++
			log.Warn().Int64("user_id", user.ID).Err(err).Msg("Failed to hash legacy user password")
			continue
		}
		migrated++
	}

	for _, admin := range admins {
		if isBcryptHash(admin.PasswordHash) {
			continue
		}
		hash, err := HashPassword(admin.PasswordHash)
		if err == nil {
			err = db.UpdateAdminPassword(admin.Username, hash)
		}
		if err != nil {
			failed++
			log.Warn().Str("admin", admin.Username).Err(err).Msg("Failed to hash legacy admin password")
			continue
		}
		migrated++
	}

	if migrated > 0 {
		log.Info().Int("count", migrated).Msg("Hashed legacy plaintext passwords")
	}
	if failed > 0 {
		log.Warn().Int("failed", failed).Msg("Some legacy passwords could not be hashed; they cannot be used to log in")
	}

	return migrated, failed, nil
}
