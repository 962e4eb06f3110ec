package services

import (
	"errors"
	"strings"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrUserExists             = errors.New("username or email already registered")
	ErrInvalidQuantity        = errors.New("quantity must be greater than zero")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrProductHasSales        = errors.New("product has recorded sales")
	ErrDuplicateInvoiceNumber = errors.New("invoice number already exists")
)

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
