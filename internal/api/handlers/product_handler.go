package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/microservicios/internal/auth"
	"github.com/isdelr/microservicios/internal/events"
	"github.com/isdelr/microservicios/internal/models"
	"github.com/isdelr/microservicios/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ProductHandler handles HTTP requests for the product catalog and sales.
type ProductHandler struct {
	service services.ProductServiceProvider
	events  events.Publisher
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service services.ProductServiceProvider, publisher events.Publisher) *ProductHandler {
	return &ProductHandler{service: service, events: publisher}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// queryInt reads an integer query parameter, falling back to def when it is
// absent or not a number.
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

// GetAll handles GET /products.
func (h *ProductHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", services.DefaultPage)
	perPage := queryInt(r, "per_page", services.DefaultPerPage)

	products, meta, err := h.service.ListProducts(page, perPage)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list products")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve products")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"products":     products,
		"total":        meta.Total,
		"pages":        meta.Pages,
		"current_page": meta.CurrentPage,
	})
}

// Get handles GET /products/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	product, err := h.service.GetProduct(id)
	if err != nil {
		h.serviceError(w, err, id, "Failed to retrieve product")
		return
	}
	writeJSON(w, http.StatusOK, product)
}

type productPayload struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int             `json:"quantity"`
}

// validate returns a message per invalid field. required selects create
// semantics, where name, price and quantity must be present.
func (p productPayload) validate(required bool) map[string]string {
	errs := map[string]string{}
	if p.Name == nil {
		if required {
			errs["name"] = "Name is required"
		}
	} else if strings.TrimSpace(*p.Name) == "" {
		errs["name"] = "Name must not be empty"
	}
	if p.Price == nil {
		if required {
			errs["price"] = "Price is required"
		}
	} else if p.Price.IsNegative() {
		errs["price"] = "Price must not be negative"
	}
	if p.Quantity == nil {
		if required {
			errs["quantity"] = "Quantity is required"
		}
	} else if *p.Quantity < 0 {
		errs["quantity"] = "Quantity must not be negative"
	}
	return errs
}

// Create handles POST /products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload productPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := payload.validate(true); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	product := models.Product{
		Name:     strings.TrimSpace(*payload.Name),
		Price:    *payload.Price,
		Quantity: *payload.Quantity,
	}
	if payload.Description != nil {
		product.Description = *payload.Description
	}

	created, err := h.service.CreateProduct(product)
	if err != nil {
		log.Error().Err(err).Str("name", product.Name).Msg("Failed to create product")
		writeError(w, http.StatusInternalServerError, "Failed to create product")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update handles PUT /products/{id}. Only the fields present are changed.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	var payload productPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := payload.validate(false); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	updated, err := h.service.UpdateProduct(id, models.ProductUpdate{
		Name:        payload.Name,
		Description: payload.Description,
		Price:       payload.Price,
		Quantity:    payload.Quantity,
	})
	if err != nil {
		h.serviceError(w, err, id, "Failed to update product")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /products/{id}.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	if err := h.service.DeleteProduct(id); err != nil {
		h.serviceError(w, err, id, "Failed to delete product")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted"})
}

// Sell handles POST /products/sell/{id}.
func (h *ProductHandler) Sell(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	var payload struct {
		Quantity *int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	quantity := 1
	if payload.Quantity != nil {
		quantity = *payload.Quantity
	}

	receipt, remaining, err := h.service.SellProduct(r.Context(), id, quantity)
	if err != nil {
		h.serviceError(w, err, id, "Failed to register sale")
		return
	}

	seller, _ := auth.SubjectFromContext(r.Context())
	log.Info().Int64("product_id", id).Int("quantity", quantity).Str("user", seller).Msg("Sale registered")

	event := events.SaleEvent{
		SaleID:         receipt.ID,
		ProductID:      receipt.ProductID,
		ProductName:    receipt.ProductName,
		Quantity:       receipt.Quantity,
		SaleDate:       receipt.SaleDate,
		Total:          receipt.Total,
		RemainingStock: remaining,
		SoldBy:         seller,
	}
	if err := h.events.PublishSale(r.Context(), event); err != nil {
		log.Error().Err(err).Int64("sale_id", receipt.ID).Msg("Failed to publish sale event")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":         "Sale registered",
		"sale":            receipt,
		"remaining_stock": remaining,
	})
}

// GetSales handles GET /sales.
func (h *ProductHandler) GetSales(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", services.DefaultPage)
	perPage := queryInt(r, "per_page", services.DefaultPerPage)

	sales, meta, err := h.service.ListSales(page, perPage)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list sales")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve sales")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sales":        sales,
		"total":        meta.Total,
		"pages":        meta.Pages,
		"current_page": meta.CurrentPage,
	})
}

func (h *ProductHandler) serviceError(w http.ResponseWriter, err error, id int64, msg string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, services.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "Quantity must be greater than zero")
	case errors.Is(err, services.ErrInsufficientStock):
		writeError(w, http.StatusBadRequest, "Insufficient stock")
	case errors.Is(err, services.ErrProductHasSales):
		writeError(w, http.StatusConflict, "Product has recorded sales and cannot be deleted")
	default:
		log.Error().Err(err).Int64("product_id", id).Msg(msg)
		writeError(w, http.StatusInternalServerError, msg)
	}
}
