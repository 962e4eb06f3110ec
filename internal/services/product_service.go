package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/isdelr/microservicios/internal/models"
	"github.com/shopspring/decimal"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 10
	MaxPerPage     = 100
	// maxPage keeps (page-1)*MaxPerPage well inside int64.
	maxPage = math.MaxInt32
)

// ProductServiceProvider defines the interface for catalog services.
type ProductServiceProvider interface {
	ListProducts(page, perPage int) ([]models.Product, models.Page, error)
	GetProduct(id int64) (models.Product, error)
	CreateProduct(product models.Product) (models.Product, error)
	UpdateProduct(id int64, update models.ProductUpdate) (models.Product, error)
	DeleteProduct(id int64) error
	SellProduct(ctx context.Context, id int64, quantity int) (models.SaleReceipt, int, error)
	ListSales(page, perPage int) ([]models.Sale, models.Page, error)
}

// ProductService provides business logic for products and sales.
type ProductService struct {
	db  *sql.DB
	now func() time.Time
}

// NewProductService creates a new ProductService.
func NewProductService(db *sql.DB) *ProductService {
	return &ProductService{db: db, now: time.Now}
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if page > maxPage {
		page = maxPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

func scanProduct(row interface{ Scan(...any) error }) (models.Product, error) {
	var p models.Product
	var description sql.NullString
	var price string
	if err := row.Scan(&p.ID, &p.Name, &description, &price, &p.Quantity); err != nil {
		return models.Product{}, err
	}
	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return models.Product{}, fmt.Errorf("invalid stored price for product %d: %w", p.ID, err)
	}
	p.Description = description.String
	p.Price = parsed
	return p, nil
}

// ListProducts returns one page of products ordered by id. A page past the
// end yields an empty list.
func (s *ProductService) ListProducts(page, perPage int) ([]models.Product, models.Page, error) {
	page, perPage = normalizePage(page, perPage)

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM products").Scan(&total); err != nil {
		return nil, models.Page{}, err
	}

	rows, err := s.db.Query("SELECT id, name, description, price, quantity FROM products ORDER BY id LIMIT ? OFFSET ?", perPage, (page-1)*perPage)
	if err != nil {
		return nil, models.Page{}, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, models.Page{}, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, models.Page{}, err
	}
	return products, models.NewPage(total, page, perPage), nil
}

// GetProduct retrieves a single product by its ID.
func (s *ProductService) GetProduct(id int64) (models.Product, error) {
	row := s.db.QueryRow("SELECT id, name, description, price, quantity FROM products WHERE id = ?", id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
		return models.Product{}, err
	}
	return p, nil
}

// CreateProduct inserts a product and returns it with its new ID.
func (s *ProductService) CreateProduct(product models.Product) (models.Product, error) {
	product.Price = product.Price.Round(2)
	res, err := s.db.Exec("INSERT INTO products(name, description, price, quantity) VALUES(?, ?, ?, ?)",
		product.Name, nullable(product.Description), product.Price.StringFixed(2), product.Quantity)
	if err != nil {
		return models.Product{}, err
	}
	product.ID, err = res.LastInsertId()
	if err != nil {
		return models.Product{}, err
	}
	return product, nil
}

// UpdateProduct applies the non-nil fields of update.
func (s *ProductService) UpdateProduct(id int64, update models.ProductUpdate) (models.Product, error) {
	product, err := s.GetProduct(id)
	if err != nil {
		return models.Product{}, err
	}

	if update.Name != nil {
		product.Name = *update.Name
	}
	if update.Description != nil {
		product.Description = *update.Description
	}
	if update.Price != nil {
		product.Price = update.Price.Round(2)
	}
	if update.Quantity != nil {
		product.Quantity = *update.Quantity
	}

	_, err = s.db.Exec("UPDATE products SET name = ?, description = ?, price = ?, quantity = ? WHERE id = ?",
		product.Name, nullable(product.Description), product.Price.StringFixed(2), product.Quantity, id)
	if err != nil {
		return models.Product{}, err
	}
	return product, nil
}

// DeleteProduct removes a product. Products referenced by sales cannot be
// removed and yield ErrProductHasSales.
func (s *ProductService) DeleteProduct(id int64) error {
	res, err := s.db.Exec("DELETE FROM products WHERE id = ?", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProductHasSales
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return nil
}

// SellProduct decrements stock and records the sale in one transaction. It
// returns the receipt and the remaining stock.
func (s *ProductService) SellProduct(ctx context.Context, id int64, quantity int) (models.SaleReceipt, int, error) {
	if quantity <= 0 {
		return models.SaleReceipt{}, 0, ErrInvalidQuantity
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.SaleReceipt{}, 0, err
	}
	defer tx.Rollback()

	product, err := scanProduct(tx.QueryRowContext(ctx, "SELECT id, name, description, price, quantity FROM products WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SaleReceipt{}, 0, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
		return models.SaleReceipt{}, 0, err
	}
	if product.Quantity < quantity {
		return models.SaleReceipt{}, 0, ErrInsufficientStock
	}

	// The stock condition is repeated so a concurrent sale cannot oversell.
	res, err := tx.ExecContext(ctx, "UPDATE products SET quantity = quantity - ? WHERE id = ? AND quantity >= ?", quantity, id, quantity)
	if err != nil {
		return models.SaleReceipt{}, 0, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.SaleReceipt{}, 0, err
	} else if n == 0 {
		return models.SaleReceipt{}, 0, ErrInsufficientStock
	}

	total := product.Price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	saleDate := s.now().UTC()

	res, err = tx.ExecContext(ctx, "INSERT INTO sales(product_id, quantity, sale_date, total) VALUES(?, ?, ?, ?)",
		id, quantity, saleDate, total.StringFixed(2))
	if err != nil {
		return models.SaleReceipt{}, 0, err
	}
	saleID, err := res.LastInsertId()
	if err != nil {
		return models.SaleReceipt{}, 0, err
	}

	if err := tx.Commit(); err != nil {
		return models.SaleReceipt{}, 0, fmt.Errorf("failed to commit sale: %w", err)
	}

	receipt := models.SaleReceipt{
		ID:          saleID,
		ProductID:   id,
		ProductName: product.Name,
		Quantity:    quantity,
		SaleDate:    saleDate,
		Total:       total.StringFixed(2),
	}
	return receipt, product.Quantity - quantity, nil
}

// ListSales returns one page of sales, newest first.
func (s *ProductService) ListSales(page, perPage int) ([]models.Sale, models.Page, error) {
	page, perPage = normalizePage(page, perPage)

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sales").Scan(&total); err != nil {
		return nil, models.Page{}, err
	}

	rows, err := s.db.Query("SELECT id, product_id, quantity, sale_date, total FROM sales ORDER BY sale_date DESC, id DESC LIMIT ? OFFSET ?", perPage, (page-1)*perPage)
	if err != nil {
		return nil, models.Page{}, err
	}
	defer rows.Close()

	sales := []models.Sale{}
	for rows.Next() {
		var sale models.Sale
		var totalStr string
		if err := rows.Scan(&sale.ID, &sale.ProductID, &sale.Quantity, &sale.SaleDate, &totalStr); err != nil {
			return nil, models.Page{}, err
		}
		if sale.Total, err = decimal.NewFromString(totalStr); err != nil {
			return nil, models.Page{}, fmt.Errorf("invalid stored total for sale %d: %w", sale.ID, err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, models.Page{}, err
	}
	return sales, models.NewPage(total, page, perPage), nil
}
