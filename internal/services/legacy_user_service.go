package services

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"

	"github.com/isdelr/microservicios/internal/auth"
)

// LegacyUserService backs the legacy users service. It is INSECURE: passwords
// are stored as unsalted SHA-256 digests and compared directly.
type LegacyUserService struct {
	db *sql.DB
}

// NewLegacyUserService creates a new LegacyUserService.
func NewLegacyUserService(db *sql.DB) *LegacyUserService {
	return &LegacyUserService{db: db}
}

func legacyHash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Register stores a new legacy user.
func (s *LegacyUserService) Register(username, password string) error {
	if username == "" || password == "" {
		return auth.ErrMissingCredentials
	}
	_, err := s.db.Exec("INSERT INTO legacy_users(username, password) VALUES(?, ?)", username, legacyHash(password))
	if isUniqueViolation(err) {
		return ErrUserExists
	}
	return err
}

// Authenticate checks username and password against the stored digest.
func (s *LegacyUserService) Authenticate(username, password string) error {
	if username == "" || password == "" {
		return auth.ErrMissingCredentials
	}

	var stored string
	err := s.db.QueryRow("SELECT password FROM legacy_users WHERE username = ?", username).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ErrInvalidCredentials
		}
		return err
	}
	if stored != legacyHash(password) {
		return auth.ErrInvalidCredentials
	}
	return nil
}
