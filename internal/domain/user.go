package domain

import "errors"

var (
	// ErrUserAlreadyExists is returned when trying to create a user with an existing username.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrInvalidCredentials reports a rejected login. Unknown users and wrong passwords
	// are not told apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrStorageUnavailable is returned when the credential table cannot be read or written.
	// It must never be interpreted as a denied login or a taken username.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrEmptyUsername is returned when a credential operation receives an empty username.
	ErrEmptyUsername = errors.New("empty username")
	// ErrEmptyPassword is returned when a credential operation receives an empty password.
	ErrEmptyPassword = errors.New("empty password")
	// ErrPasswordTooLong is returned when a password exceeds what the hash function accepts.
	ErrPasswordTooLong = errors.New("password too long")
)

// User is a single row of the credential table. Records are immutable once created.
type User struct {
	Username     string // Login username, primary key
	PasswordHash []byte // bcrypt hash, salt embedded
	CreatedAt    int64  // Unix timestamp of account creation
}
