package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrUsernameTaken is returned when an account with the same username already exists
var ErrUsernameTaken = errors.New("username already taken")

// UserRecord is a row of the users table
type UserRecord struct {
	ID           int64  `db:"user_id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password"`
}

// AdminRecord is a row of the admin table
type AdminRecord struct {
	Username     string `db:"username"`
	PasswordHash string `db:"password"`
}

// CreateUser inserts a new user and returns it with its assigned ID.
func (db *DB) CreateUser(username, passwordHash string) (*UserRecord, error) {
	user := &UserRecord{Username: username, PasswordHash: passwordHash}
	err := db.queryRow(`
		INSERT INTO users (username, password)
		VALUES (?, ?)
		RETURNING user_id
	`, username, passwordHash).Scan(&user.ID)
	if isUniqueViolation(err) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username.
func (db *DB) GetUserByUsername(username string) (*UserRecord, error) {
	user := &UserRecord{}
	err := db.queryRow(`
		SELECT user_id, username, password
		FROM users WHERE username = ?
	`, username).Scan(&user.ID, &user.Username, &user.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers returns every registered user ordered by ID.
func (db *DB) ListUsers() ([]*UserRecord, error) {
	rows, err := db.query("SELECT user_id, username, password FROM users ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*UserRecord
	for rows.Next() {
		u := &UserRecord{}
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserPassword replaces the stored password hash of a user.
func (db *DB) UpdateUserPassword(userID int64, passwordHash string) error {
	if _, err := db.exec("UPDATE users SET password = ? WHERE user_id = ?", passwordHash, userID); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// GetAdmin retrieves an administrator by username.
func (db *DB) GetAdmin(username string) (*AdminRecord, error) {
	admin := &AdminRecord{}
	err := db.queryRow("SELECT username, password FROM admin WHERE username = ?", username).
		Scan(&admin.Username, &admin.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return admin, nil
}

// UpsertAdmin creates an administrator or replaces the password of an existing one.
func (db *DB) UpsertAdmin(username, passwordHash string) error {
	_, err := db.exec(`
		INSERT INTO admin (username, password) VALUES (?, ?)
		ON CONFLICT(username) DO UPDATE SET password = excluded.password
	`, username, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to save admin: %w", err)
	}
	return nil
}

// ListAdmins returns every administrator ordered by username.
func (db *DB) ListAdmins() ([]*AdminRecord, error) {
	rows, err := db.query("SELECT username, password FROM admin ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	var admins []*AdminRecord
	for rows.Next() {
		a := &AdminRecord{}
		if err := rows.Scan(&a.Username, &a.PasswordHash); err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

// UpdateAdminPassword replaces the stored password hash of an administrator.
func (db *DB) UpdateAdminPassword(username, passwordHash string) error {
	if _, err := db.exec("UPDATE admin SET password = ? WHERE username = ?", passwordHash, username); err != nil {
		return fmt.Errorf("failed to update admin password: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
