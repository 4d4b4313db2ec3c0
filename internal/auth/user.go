package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
)

// ErrInvalidCredentials is returned for an unknown user or wrong password
var ErrInvalidCredentials = errors.New("invalid username or password")

// AdminUsername is the operator account name
const AdminUsername = "admin"

// Role represents user access level
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReadOnly Role = "readonly"
)

// User represents authenticated user
type User struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin reports whether the user may change settings and inject faults
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// PasswordAuth authenticates the operator account against a configured password
type PasswordAuth struct {
	passwordHash [sha256.Size]byte
	enabled      bool
}

// NewPasswordAuth creates an authenticator. An empty password disables login.
func NewPasswordAuth(password string) *PasswordAuth {
	return &PasswordAuth{
		passwordHash: sha256.Sum256([]byte(password)),
		enabled:      password != "",
	}
}

// Authenticate verifies username and password
func (a *PasswordAuth) Authenticate(username, password string) (*User, error) {
	if !a.enabled || username != AdminUsername {
		return nil, ErrInvalidCredentials
	}
	hash := sha256.Sum256([]byte(password))
	if subtle.ConstantTimeCompare(hash[:], a.passwordHash[:]) != 1 {
		return nil, ErrInvalidCredentials
	}
	return &User{Username: username, Role: RoleAdmin}, nil
}
