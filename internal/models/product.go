package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog item with its stock level.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

// ProductUpdate carries the fields of a partial update. Nil fields are left as they are.
type ProductUpdate struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int             `json:"quantity"`
}

// Sale records units of a product sold at a point in time.
type Sale struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	SaleDate  time.Time       `json:"sale_date"`
	Total     decimal.Decimal `json:"total_venta"`
}

// SaleReceipt is returned after a successful sale.
type SaleReceipt struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	SaleDate    time.Time `json:"sale_date"`
	Total       string    `json:"total_venta"`
}

// Page is one page of a paginated listing.
type Page struct {
	Total       int `json:"total"`
	Pages       int `json:"pages"`
	CurrentPage int `json:"current_page"`
}

// NewPage computes paging metadata for total items.
func NewPage(total, page, perPage int) Page {
	pages := 0
	if perPage > 0 {
		pages = total / perPage
		if total%perPage != 0 {
			pages++
		}
	}
	return Page{Total: total, Pages: pages, CurrentPage: page}
}
