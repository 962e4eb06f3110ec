package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/isdelr/microservicios/internal/auth"
	"github.com/isdelr/microservicios/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	CreateUser(input models.NewUser) (models.User, error)
	GetUserByUsername(username string) (models.User, error)
	AuthenticateUser(username, password string) (models.User, error)
	ListUsers() ([]models.User, error)
}

// UserService provides business logic for user management.
type UserService struct {
	db *sql.DB
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

const userColumns = "id, username, email, password_hash, first_name, last_name, phone, address, created_at"

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var user models.User
	var email, firstName, lastName, phone, address sql.NullString
	err := row.Scan(&user.ID, &user.Username, &email, &user.PasswordHash, &firstName, &lastName, &phone, &address, &user.CreatedAt)
	if err != nil {
		return models.User{}, err
	}
	user.Email = email.String
	user.FirstName = firstName.String
	user.LastName = lastName.String
	user.Phone = phone.String
	user.Address = address.String
	return user, nil
}

// GetUserByUsername retrieves a user by username, ignoring case. The
// password hash is included.
func (s *UserService) GetUserByUsername(username string) (models.User, error) {
	row := s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE username = ? COLLATE NOCASE", username)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("user %s: %w", username, ErrNotFound)
		}
		return models.User{}, err
	}
	return user, nil
}

// CreateUser creates a new user, hashing their password.
func (s *UserService) CreateUser(input models.NewUser) (models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Username:     strings.TrimSpace(input.Username),
		Email:        strings.TrimSpace(input.Email),
		PasswordHash: string(hashedPassword),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		Address:      input.Address,
	}

	stmt, err := s.db.Prepare("INSERT INTO users(id, username, email, password_hash, first_name, last_name, phone, address) VALUES(?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return models.User{}, err
	}
	defer stmt.Close()

	_, err = stmt.Exec(user.ID, user.Username, nullable(user.Email), user.PasswordHash,
		nullable(user.FirstName), nullable(user.LastName), nullable(user.Phone), nullable(user.Address))
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrUserExists
		}
		return models.User{}, err
	}

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// AuthenticateUser verifies a user's credentials. Unknown users and wrong
// passwords both yield auth.ErrInvalidCredentials.
func (s *UserService) AuthenticateUser(username, password string) (models.User, error) {
	if username == "" || password == "" {
		return models.User{}, auth.ErrMissingCredentials
	}

	user, err := s.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.User{}, auth.ErrInvalidCredentials
		}
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, auth.ErrInvalidCredentials
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}

// ListUsers returns every user ordered by username, without password hashes.
func (s *UserService) ListUsers() ([]models.User, error) {
	rows, err := s.db.Query("SELECT " + userColumns + " FROM users ORDER BY username COLLATE NOCASE")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = ""
		users = append(users, user)
	}
	return users, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
