package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultInvoiceStatus is the status of a newly issued invoice.
const DefaultInvoiceStatus = "pendiente"

// Invoice is a billing document. Customer and Items are free-form JSON.
type Invoice struct {
	ID            int64           `json:"id"`
	Number        string          `json:"numero_factura"`
	IssuedAt      time.Time       `json:"fecha_emision"`
	Customer      json.RawMessage `json:"cliente"`
	Items         json.RawMessage `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Taxes         decimal.Decimal `json:"impuestos"`
	Total         decimal.Decimal `json:"total"`
	Status        string          `json:"estado"`
	PaymentMethod *string         `json:"metodo_pago"`
}
