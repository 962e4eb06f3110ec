package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/microservicios/internal/models"
	"github.com/shopspring/decimal"
)

// InvoiceServiceProvider defines the interface for billing services.
type InvoiceServiceProvider interface {
	ListInvoices() ([]models.Invoice, error)
	GetInvoice(id int64) (models.Invoice, error)
	CreateInvoice(invoice models.Invoice) (models.Invoice, error)
	UpdateInvoice(id int64, invoice models.Invoice) (models.Invoice, error)
	DeleteInvoice(id int64) error
}

// InvoiceService provides business logic for invoices.
type InvoiceService struct {
	db  *sql.DB
	now func() time.Time
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(db *sql.DB) *InvoiceService {
	return &InvoiceService{db: db, now: time.Now}
}

// NewInvoiceNumber generates a number of the form FAC-XXXXXXXX.
func NewInvoiceNumber() string {
	return "FAC-" + strings.ToUpper(uuid.New().String()[:8])
}

const invoiceColumns = "id, invoice_number, issued_at, customer_json, items_json, subtotal, taxes, total, status, payment_method"

func scanInvoice(row interface{ Scan(...any) error }) (models.Invoice, error) {
	var inv models.Invoice
	var customer, items, subtotal, taxes, total string
	var payment sql.NullString
	err := row.Scan(&inv.ID, &inv.Number, &inv.IssuedAt, &customer, &items, &subtotal, &taxes, &total, &inv.Status, &payment)
	if err != nil {
		return models.Invoice{}, err
	}

	inv.Customer = []byte(customer)
	inv.Items = []byte(items)
	if payment.Valid {
		inv.PaymentMethod = &payment.String
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&inv.Subtotal, subtotal}, {&inv.Taxes, taxes}, {&inv.Total, total}} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return models.Invoice{}, fmt.Errorf("invalid stored amount on invoice %d: %w", inv.ID, err)
		}
	}
	return inv, nil
}

// ListInvoices returns all invoices, newest first.
func (s *InvoiceService) ListInvoices() ([]models.Invoice, error) {
	rows, err := s.db.Query("SELECT " + invoiceColumns + " FROM invoices ORDER BY issued_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := []models.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// GetInvoice retrieves a single invoice by its ID.
func (s *InvoiceService) GetInvoice(id int64) (models.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRow("SELECT "+invoiceColumns+" FROM invoices WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Invoice{}, fmt.Errorf("invoice %d: %w", id, ErrNotFound)
		}
		return models.Invoice{}, err
	}
	return inv, nil
}

// CreateInvoice stores a new invoice. A missing number is generated and a
// missing status defaults to models.DefaultInvoiceStatus.
func (s *InvoiceService) CreateInvoice(inv models.Invoice) (models.Invoice, error) {
	if inv.Number == "" {
		inv.Number = NewInvoiceNumber()
	}
	if inv.Status == "" {
		inv.Status = models.DefaultInvoiceStatus
	}
	inv.IssuedAt = s.now().UTC()

	res, err := s.db.Exec("INSERT INTO invoices(invoice_number, issued_at, customer_json, items_json, subtotal, taxes, total, status, payment_method) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)",
		inv.Number, inv.IssuedAt, string(inv.Customer), string(inv.Items),
		inv.Subtotal.StringFixed(2), inv.Taxes.StringFixed(2), inv.Total.StringFixed(2),
		inv.Status, inv.PaymentMethod)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Invoice{}, ErrDuplicateInvoiceNumber
		}
		return models.Invoice{}, err
	}
	if inv.ID, err = res.LastInsertId(); err != nil {
		return models.Invoice{}, err
	}
	return s.GetInvoice(inv.ID)
}

// UpdateInvoice replaces every writable field of the invoice. The issue
// date is never changed.
func (s *InvoiceService) UpdateInvoice(id int64, inv models.Invoice) (models.Invoice, error) {
	if inv.Status == "" {
		inv.Status = models.DefaultInvoiceStatus
	}

	res, err := s.db.Exec("UPDATE invoices SET invoice_number = ?, customer_json = ?, items_json = ?, subtotal = ?, taxes = ?, total = ?, status = ?, payment_method = ? WHERE id = ?",
		inv.Number, string(inv.Customer), string(inv.Items),
		inv.Subtotal.StringFixed(2), inv.Taxes.StringFixed(2), inv.Total.StringFixed(2),
		inv.Status, inv.PaymentMethod, id)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Invoice{}, ErrDuplicateInvoiceNumber
		}
		return models.Invoice{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Invoice{}, err
	}
	if n == 0 {
		return models.Invoice{}, fmt.Errorf("invoice %d: %w", id, ErrNotFound)
	}
	return s.GetInvoice(id)
}

// DeleteInvoice removes an invoice.
func (s *InvoiceService) DeleteInvoice(id int64) error {
	res, err := s.db.Exec("DELETE FROM invoices WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("invoice %d: %w", id, ErrNotFound)
	}
	return nil
}
