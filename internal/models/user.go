package models

import "time"

// User represents an account of the login service.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose this to the client
	FirstName    string    `json:"nombre,omitempty"`
	LastName     string    `json:"apellidos,omitempty"`
	Phone        string    `json:"celular,omitempty"`
	Address      string    `json:"direccion,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewUser holds the fields accepted at registration.
type NewUser struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Address   string
}

// LegacyUser is an account of the legacy users service. Its password is an
// unsalted SHA-256 hex digest.
type LegacyUser struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
