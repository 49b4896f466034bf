/*
handlers.go - HTTP API handlers for the reconciliation engine

PURPOSE:
  Exposes the catalog, orders, transactions and financial stats via REST.
  Handles HTTP request/response and JSON, and delegates every stock or
  payment side effect to the engine.

ENDPOINTS:
  Catalog:
    GET    /api/products               List products
    POST   /api/products               Create product
    GET    /api/products/{id}          Get product
    PUT    /api/products/{id}          Update name/price (stock untouched)
    DELETE /api/products/{id}          Delete product
    POST   /api/products/{id}/adjust   Manual stock correction
    (same CRUD shape for /api/customers and /api/providers)

  Orders:
    GET    /api/orders                 List orders
    POST   /api/orders                 Create order (applies stock effect)
    GET    /api/orders/{id}            Get order
    PUT    /api/orders/{id}            Replace order (reconciles stock)
    DELETE /api/orders/{id}            Delete order and its transactions

  Transactions:
    GET    /api/transactions           List transactions
    POST   /api/transactions           Record transaction
    PUT    /api/transactions/{id}      Patch transaction
    DELETE /api/transactions/{id}      Delete transaction (reverses effects)

  Reporting:
    GET    /api/stats                  Financial Aggregator output

REQUEST FLOW:
  1. Parse HTTP request
  2. Build engine entities (order lines are priced here)
  3. Call the engine
  4. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 409: Duplicate id
  - 500: Internal errors (details are logged, not returned)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/repledger/engine"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Repo   engine.Repository
	Engine *engine.Engine
	Logger *slog.Logger
}

// NewHandler creates a handler over repo. eng must be built on the same repo.
func NewHandler(repo engine.Repository, eng *engine.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Repo: repo, Engine: eng, Logger: logger}
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns all products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Repo.ListProducts(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list products", err)
		return
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Repo.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

// CreateProduct creates a product with an optional opening stock.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	p := engine.Product{
		ID:        defaultID(req.ID),
		Name:      req.Name,
		BasePrice: req.BasePrice,
		Stock:     req.Stock,
	}
	if err := h.Repo.InsertProduct(r.Context(), p); err != nil {
		h.fail(w, r, "Failed to create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

// UpdateProduct edits name and base price. Stock only moves through the
// engine or the adjust endpoint, and the store never writes it here.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	p, err := h.Repo.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get product", err)
		return
	}
	if req.Name != nil && *req.Name != "" {
		p.Name = *req.Name
	}
	if req.BasePrice != nil {
		p.BasePrice = *req.BasePrice
	}

	if err := h.Repo.UpdateProduct(ctx, p); err != nil {
		h.fail(w, r, "Failed to update product", err)
		return
	}

	updated, err := h.Repo.GetProduct(ctx, p.ID)
	if err != nil {
		h.fail(w, r, "Failed to get product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(updated))
}

// DeleteProduct removes a product. Orders referencing it keep their lines;
// later reconciliation of those lines is skipped and reported.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "Failed to delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdjustStock applies a manual stock correction.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req StockAdjustRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	stock, err := h.Engine.Stock.ApplyDelta(r.Context(), id, req.Delta)
	if err != nil {
		h.fail(w, r, "Failed to adjust stock", err)
		return
	}

	h.Logger.InfoContext(r.Context(), "manual stock adjustment",
		"product_id", id, "delta", req.Delta, "stock", stock, "reason", req.Reason)
	writeJSON(w, http.StatusOK, StockAdjustResponse{ProductID: id, Stock: stock})
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns all customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Repo.ListCustomers(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list customers", err)
		return
	}

	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCustomer returns a single customer.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Repo.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(c))
}

// CreateCustomer creates a customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	c := engine.Customer{
		ID:              defaultID(req.ID),
		Name:            req.Name,
		Type:            req.Type,
		Address:         req.Address,
		Brick:           req.Brick,
		DefaultDiscount: req.DefaultDiscount,
	}
	if err := h.Repo.InsertCustomer(r.Context(), c); err != nil {
		h.fail(w, r, "Failed to create customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(c))
}

// UpdateCustomer replaces a customer.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerDTO
	if !decodeBody(w, r, &req) {
		return
	}

	c := engine.Customer{
		ID:              chi.URLParam(r, "id"),
		Name:            req.Name,
		Type:            req.Type,
		Address:         req.Address,
		Brick:           req.Brick,
		DefaultDiscount: req.DefaultDiscount,
	}
	if err := h.Repo.UpdateCustomer(r.Context(), c); err != nil {
		h.fail(w, r, "Failed to update customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(c))
}

// DeleteCustomer removes a customer.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeleteCustomer(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "Failed to delete customer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PROVIDER HANDLERS
// =============================================================================

// ListProviders returns all providers.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.Repo.ListProviders(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list providers", err)
		return
	}

	dtos := make([]ProviderDTO, len(providers))
	for i, p := range providers {
		dtos[i] = toProviderDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProvider returns a single provider.
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	p, err := h.Repo.GetProvider(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get provider", err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderDTO(p))
}

// CreateProvider creates a provider.
func (h *Handler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var req ProviderDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	p := engine.Provider{ID: defaultID(req.ID), Name: req.Name, Phone: req.Phone, Notes: req.Notes}
	if err := h.Repo.InsertProvider(r.Context(), p); err != nil {
		h.fail(w, r, "Failed to create provider", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProviderDTO(p))
}

// UpdateProvider replaces a provider.
func (h *Handler) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	var req ProviderDTO
	if !decodeBody(w, r, &req) {
		return
	}

	p := engine.Provider{ID: chi.URLParam(r, "id"), Name: req.Name, Phone: req.Phone, Notes: req.Notes}
	if err := h.Repo.UpdateProvider(r.Context(), p); err != nil {
		h.fail(w, r, "Failed to update provider", err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderDTO(p))
}

// DeleteProvider removes a provider.
func (h *Handler) DeleteProvider(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeleteProvider(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "Failed to delete provider", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// ListOrders returns all orders by date.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Engine.Orders.List(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list orders", err)
		return
	}

	dtos := make([]OrderDTO, len(orders))
	for i, o := range orders {
		dtos[i] = toOrderDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetOrder returns a single order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Engine.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// CreateOrder prices the lines and creates the order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	o, err := h.buildOrder(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Invalid order", err)
		return
	}

	created, err := h.Engine.Orders.Create(r.Context(), o)
	if err != nil {
		h.fail(w, r, "Failed to create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDTO(created))
}

// UpdateOrder replaces an order and reconciles stock against the stored
// version.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	o, err := h.buildOrder(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Invalid order", err)
		return
	}

	updated, err := h.Engine.Orders.Update(r.Context(), chi.URLParam(r, "id"), o)
	if err != nil {
		h.fail(w, r, "Failed to update order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(updated))
}

// DeleteOrder removes an order, restores its stock and deletes the
// transactions that reference it.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Orders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "Failed to delete order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// buildOrder turns a request into an engine.Order with priced lines and
// recomputed totals.
func (h *Handler) buildOrder(ctx context.Context, req OrderRequest) (engine.Order, error) {
	o := engine.Order{
		ID:           req.ID,
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		IsDraft:      req.IsDraft,
		IsReturn:     req.IsReturn,
		Notes:        req.Notes,
		Items:        make([]engine.OrderItem, 0, len(req.Items)),
	}
	if req.Date != nil {
		o.Date = *req.Date
	}

	for _, line := range req.Items {
		it, err := h.priceLine(ctx, line)
		if err != nil {
			return engine.Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o.WithTotals(), nil
}

func (h *Handler) priceLine(ctx context.Context, line OrderItemRequest) (engine.OrderItem, error) {
	it := engine.OrderItem{
		ProductID:     line.ProductID,
		ProductName:   line.ProductName,
		Quantity:      line.Quantity,
		BonusQuantity: line.BonusQuantity,
		Condition:     line.Condition,
	}

	if line.UnitPrice == nil || it.ProductName == "" {
		p, err := h.Repo.GetProduct(ctx, line.ProductID)
		switch {
		case err == nil:
			if it.ProductName == "" {
				it.ProductName = p.Name
			}
			if line.UnitPrice == nil {
				it.UnitPrice = p.BasePrice
			}
		case engine.IsNotFound(err) && line.UnitPrice == nil:
			return it, fmt.Errorf("%w: unknown product %q and no unit price", engine.ErrInvalidOrder, line.ProductID)
		case !engine.IsNotFound(err):
			return it, err
		}
	}
	if line.UnitPrice != nil {
		it.UnitPrice = *line.UnitPrice
	}

	pct := decimal.Zero
	if line.DiscountPercent != nil {
		pct = *line.DiscountPercent
	}
	it = it.WithDiscountPercent(pct)
	if line.DiscountAmount != nil {
		it = it.WithDiscountAmount(*line.DiscountAmount)
	}
	return it, nil
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns all transactions by date.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Engine.Transactions.List(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, t := range txs {
		dtos[i] = toTransactionDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTransaction records a transaction and applies its side effects.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tx, err := h.Engine.Transactions.Record(r.Context(), req.toTransaction())
	if err != nil {
		h.fail(w, r, "Failed to record transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// UpdateTransaction patches a transaction and reconciles the difference.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionPatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tx, err := h.Engine.Transactions.Update(r.Context(), chi.URLParam(r, "id"), req.toPatch())
	if err != nil {
		h.fail(w, r, "Failed to update transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// DeleteTransaction reverses and removes a transaction. Unknown ids are a
// no-op.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Transactions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "Failed to delete transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REPORTING HANDLERS
// =============================================================================

// GetStats returns the aggregated financial figures.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.Stats.Stats(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(stats))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case engine.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrAlreadyExists):
		return http.StatusConflict
	case engine.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error response. Internal errors are logged and their
// details withheld from the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.ErrorContext(r.Context(), message,
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path)
		writeError(w, status, message, nil)
		return
	}
	writeError(w, status, message, err)
}

func defaultID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
