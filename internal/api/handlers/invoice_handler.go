package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/isdelr/microservicios/internal/models"
	"github.com/isdelr/microservicios/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const fieldRequired = "This field is required."

var maxAmount = decimal.New(1, 8) // decimal(10,2)

// InvoiceHandler exposes invoices as a REST collection.
type InvoiceHandler struct {
	service services.InvoiceServiceProvider
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(service services.InvoiceServiceProvider) *InvoiceHandler {
	return &InvoiceHandler{service: service}
}

type fieldErrors map[string][]string

func (e fieldErrors) add(field, msg string) {
	e[field] = append(e[field], msg)
}

type invoicePayload struct {
	Number        *string          `json:"numero_factura"`
	Customer      json.RawMessage  `json:"cliente"`
	Items         json.RawMessage  `json:"items"`
	Subtotal      *decimal.Decimal `json:"subtotal"`
	Taxes         *decimal.Decimal `json:"impuestos"`
	Total         *decimal.Decimal `json:"total"`
	Status        *string          `json:"estado"`
	PaymentMethod *string          `json:"metodo_pago"`
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func jsonKind(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

// validate checks field formats. With partial unset, every required field
// must be present.
func (p invoicePayload) validate(partial bool) fieldErrors {
	errs := fieldErrors{}

	if p.Number != nil {
		if n := strings.TrimSpace(*p.Number); n == "" && partial {
			errs.add("numero_factura", "This field may not be blank.")
		} else if len(n) > 50 {
			errs.add("numero_factura", "Ensure this field has no more than 50 characters.")
		}
	}

	if present(p.Customer) {
		if jsonKind(p.Customer) != '{' {
			errs.add("cliente", "Expected a JSON object.")
		}
	} else if !partial || p.Customer != nil {
		errs.add("cliente", fieldRequired)
	}

	if present(p.Items) {
		if jsonKind(p.Items) != '[' {
			errs.add("items", "Expected a JSON array.")
		}
	} else if !partial || p.Items != nil {
		errs.add("items", fieldRequired)
	}

	for field, amount := range map[string]*decimal.Decimal{"subtotal": p.Subtotal, "impuestos": p.Taxes, "total": p.Total} {
		switch {
		case amount == nil:
			if !partial {
				errs.add(field, fieldRequired)
			}
		case amount.Exponent() < -2 && !amount.Equal(amount.Round(2)):
			errs.add(field, "Ensure that there are no more than 2 decimal places.")
		case amount.Abs().GreaterThanOrEqual(maxAmount):
			errs.add(field, "Ensure that there are no more than 10 digits in total.")
		}
	}

	if p.Status != nil {
		if s := strings.TrimSpace(*p.Status); s == "" {
			errs.add("estado", "This field may not be blank.")
		} else if len(s) > 20 {
			errs.add("estado", "Ensure this field has no more than 20 characters.")
		}
	}
	if p.PaymentMethod != nil && len(*p.PaymentMethod) > 50 {
		errs.add("metodo_pago", "Ensure this field has no more than 50 characters.")
	}
	return errs
}

// apply copies the fields present in p onto inv.
func (p invoicePayload) apply(inv *models.Invoice) {
	if p.Number != nil {
		inv.Number = strings.TrimSpace(*p.Number)
	}
	if present(p.Customer) {
		inv.Customer = p.Customer
	}
	if present(p.Items) {
		inv.Items = p.Items
	}
	if p.Subtotal != nil {
		inv.Subtotal = *p.Subtotal
	}
	if p.Taxes != nil {
		inv.Taxes = *p.Taxes
	}
	if p.Total != nil {
		inv.Total = *p.Total
	}
	if p.Status != nil {
		inv.Status = strings.TrimSpace(*p.Status)
	}
	if p.PaymentMethod != nil {
		inv.PaymentMethod = p.PaymentMethod
	}
}

func decodeInvoice(w http.ResponseWriter, r *http.Request) (invoicePayload, bool) {
	var payload invoicePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error - " + err.Error()})
		return invoicePayload{}, false
	}
	return payload, true
}

// List handles GET /api/facturas/.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.ListInvoices()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list invoices")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve invoices")
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

// Create handles POST /api/facturas/.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeInvoice(w, r)
	if !ok {
		return
	}
	if errs := payload.validate(false); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	var inv models.Invoice
	payload.apply(&inv)

	created, err := h.service.CreateInvoice(inv)
	if err != nil {
		h.serviceError(w, err, 0, "Failed to create invoice")
		return
	}
	log.Info().Str("numero_factura", created.Number).Msg("Invoice created")
	writeJSON(w, http.StatusCreated, created)
}

// Retrieve handles GET /api/facturas/{id}/.
func (h *InvoiceHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeNotFound(w)
		return
	}
	inv, err := h.service.GetInvoice(id)
	if err != nil {
		h.serviceError(w, err, id, "Failed to retrieve invoice")
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// Replace handles PUT /api/facturas/{id}/. An omitted numero_factura keeps
// the current one.
func (h *InvoiceHandler) Replace(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// PartialUpdate handles PATCH /api/facturas/{id}/.
func (h *InvoiceHandler) PartialUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *InvoiceHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	id, ok := pathID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	existing, err := h.service.GetInvoice(id)
	if err != nil {
		h.serviceError(w, err, id, "Failed to retrieve invoice")
		return
	}

	payload, ok := decodeInvoice(w, r)
	if !ok {
		return
	}
	if errs := payload.validate(partial); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	inv := existing
	if !partial {
		inv.Status = models.DefaultInvoiceStatus
		inv.PaymentMethod = nil
	}
	payload.apply(&inv)
	if inv.Number == "" {
		inv.Number = existing.Number
	}

	updated, err := h.service.UpdateInvoice(id, inv)
	if err != nil {
		h.serviceError(w, err, id, "Failed to update invoice")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Destroy handles DELETE /api/facturas/{id}/.
func (h *InvoiceHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeNotFound(w)
		return
	}
	if err := h.service.DeleteInvoice(id); err != nil {
		h.serviceError(w, err, id, "Failed to delete invoice")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
}

func (h *InvoiceHandler) serviceError(w http.ResponseWriter, err error, id int64, msg string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeNotFound(w)
	case errors.Is(err, services.ErrDuplicateInvoiceNumber):
		writeJSON(w, http.StatusBadRequest, fieldErrors{"numero_factura": {"Invoice with this numero_factura already exists."}})
	default:
		log.Error().Err(err).Int64("invoice_id", id).Msg(msg)
		writeError(w, http.StatusInternalServerError, msg)
	}
}
