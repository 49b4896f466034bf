/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's entities from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  decimal.Decimal fields marshal as JSON strings ("12.50") and accept both
  strings and numbers on input.

TYPES:
  Catalog:
    ProductDTO, ProductUpdateRequest, CustomerDTO, ProviderDTO,
    StockAdjustRequest

  Orders:
    OrderDTO, OrderItemDTO, OrderRequest, OrderItemRequest

  Transactions:
    TransactionDTO, TransactionRequest, TransactionPatchRequest

  Reporting:
    StatsDTO

VALIDATION:
  Validation is done in handlers and the engine, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: Entities these map to
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/repledger/engine"
)

// =============================================================================
// CATALOG
// =============================================================================

// ProductDTO represents a product in requests and responses.
type ProductDTO struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	BasePrice decimal.Decimal `json:"basePrice"`
	Stock     int             `json:"stock"`
}

// CustomerDTO represents a customer in requests and responses.
type CustomerDTO struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Type            engine.CustomerType `json:"type"`
	Address         string              `json:"address"`
	Brick           string              `json:"brick"`
	DefaultDiscount decimal.Decimal     `json:"defaultDiscount"`
}

// ProviderDTO represents a provider in requests and responses.
type ProviderDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

// ProductUpdateRequest is the body of PUT /api/products/{id}. Absent fields
// are left unchanged; stock is not editable here.
type ProductUpdateRequest struct {
	Name      *string          `json:"name,omitempty"`
	BasePrice *decimal.Decimal `json:"basePrice,omitempty"`
}

// StockAdjustRequest is the body of POST /api/products/{id}/adjust.
type StockAdjustRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason,omitempty"`
}

// StockAdjustResponse reports the stock after a manual adjustment.
type StockAdjustResponse struct {
	ProductID string `json:"productId"`
	Stock     int    `json:"stock"`
}

// =============================================================================
// ORDERS
// =============================================================================

// OrderItemDTO is an order line in responses.
type OrderItemDTO struct {
	ProductID       string               `json:"productId"`
	ProductName     string               `json:"productName"`
	Quantity        int                  `json:"quantity"`
	BonusQuantity   int                  `json:"bonusQuantity"`
	UnitPrice       decimal.Decimal      `json:"unitPrice"`
	Discount        decimal.Decimal      `json:"discount"`
	DiscountPercent decimal.Decimal      `json:"discountPercent"`
	Subtotal        decimal.Decimal      `json:"subtotal"`
	Condition       engine.ItemCondition `json:"condition,omitempty"`
	PaidQuantity    int                  `json:"paidQuantity"`
}

// OrderDTO represents an order in responses.
type OrderDTO struct {
	ID           string             `json:"id"`
	CustomerID   string             `json:"customerId"`
	CustomerName string             `json:"customerName"`
	Date         time.Time          `json:"date"`
	Items        []OrderItemDTO     `json:"items"`
	TotalAmount  decimal.Decimal    `json:"totalAmount"`
	PaidAmount   decimal.Decimal    `json:"paidAmount"`
	Status       engine.OrderStatus `json:"status"`
	IsDraft      bool               `json:"isDraft"`
	IsReturn     bool               `json:"isReturn"`
	Notes        string             `json:"notes"`
}

// OrderItemRequest is a line in an order create/update request.
// UnitPrice defaults to the product's base price. DiscountAmount, when set,
// wins over DiscountPercent.
type OrderItemRequest struct {
	ProductID       string               `json:"productId"`
	ProductName     string               `json:"productName,omitempty"`
	Quantity        int                  `json:"quantity"`
	BonusQuantity   int                  `json:"bonusQuantity"`
	UnitPrice       *decimal.Decimal     `json:"unitPrice,omitempty"`
	DiscountPercent *decimal.Decimal     `json:"discountPercent,omitempty"`
	DiscountAmount  *decimal.Decimal     `json:"discountAmount,omitempty"`
	Condition       engine.ItemCondition `json:"condition,omitempty"`
}

// OrderRequest is the body of POST /api/orders and PUT /api/orders/{id}.
// Totals are always recomputed from the lines.
type OrderRequest struct {
	ID           string             `json:"id,omitempty"`
	CustomerID   string             `json:"customerId"`
	CustomerName string             `json:"customerName"`
	Date         *time.Time         `json:"date,omitempty"`
	Items        []OrderItemRequest `json:"items"`
	IsDraft      bool               `json:"isDraft"`
	IsReturn     bool               `json:"isReturn"`
	Notes        string             `json:"notes"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO represents a transaction in responses.
type TransactionDTO struct {
	ID            string                      `json:"id"`
	Type          engine.TransactionType      `json:"type"`
	Amount        decimal.Decimal             `json:"amount"`
	Date          time.Time                   `json:"date"`
	ReferenceID   string                      `json:"referenceId,omitempty"`
	Description   string                      `json:"description"`
	PaymentMethod engine.PaymentMethod        `json:"paymentMethod,omitempty"`
	ProviderID    string                      `json:"providerId,omitempty"`
	ProviderName  string                      `json:"providerName,omitempty"`
	Metadata      *engine.TransactionMetadata `json:"metadata,omitempty"`
}

// TransactionRequest is the body of POST /api/transactions.
type TransactionRequest struct {
	ID            string                      `json:"id,omitempty"`
	Type          engine.TransactionType      `json:"type"`
	Amount        decimal.Decimal             `json:"amount"`
	Date          *time.Time                  `json:"date,omitempty"`
	ReferenceID   string                      `json:"referenceId,omitempty"`
	Description   string                      `json:"description"`
	PaymentMethod engine.PaymentMethod        `json:"paymentMethod,omitempty"`
	ProviderID    string                      `json:"providerId,omitempty"`
	ProviderName  string                      `json:"providerName,omitempty"`
	Metadata      *engine.TransactionMetadata `json:"metadata,omitempty"`
}

// TransactionPatchRequest is the body of PUT /api/transactions/{id}.
// Absent fields are left unchanged. Type and referenceId cannot be edited.
type TransactionPatchRequest struct {
	Amount        *decimal.Decimal      `json:"amount,omitempty"`
	Date          *time.Time            `json:"date,omitempty"`
	Description   *string               `json:"description,omitempty"`
	PaymentMethod *engine.PaymentMethod `json:"paymentMethod,omitempty"`
	ProviderID    *string               `json:"providerId,omitempty"`
	ProviderName  *string               `json:"providerName,omitempty"`
	Quantity      *int                  `json:"quantity,omitempty"`
	PaidItems     *[]engine.PaidItem    `json:"paidItems,omitempty"`
}

// =============================================================================
// REPORTING
// =============================================================================

// StatsDTO is the Financial Aggregator output.
type StatsDTO struct {
	RepCashOnHand   decimal.Decimal `json:"repCashOnHand"`
	TransferredToHQ decimal.Decimal `json:"transferredToHQ"`
	TotalCollected  decimal.Decimal `json:"totalCollected"`
	TotalExpenses   decimal.Decimal `json:"totalExpenses"`
	TotalSales      decimal.Decimal `json:"totalSales"`
}

// ErrorResponse is the error envelope for every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toProductDTO(p engine.Product) ProductDTO {
	return ProductDTO{ID: p.ID, Name: p.Name, BasePrice: p.BasePrice, Stock: p.Stock}
}

func toCustomerDTO(c engine.Customer) CustomerDTO {
	return CustomerDTO{
		ID:              c.ID,
		Name:            c.Name,
		Type:            c.Type,
		Address:         c.Address,
		Brick:           c.Brick,
		DefaultDiscount: c.DefaultDiscount,
	}
}

func toProviderDTO(p engine.Provider) ProviderDTO {
	return ProviderDTO{ID: p.ID, Name: p.Name, Phone: p.Phone, Notes: p.Notes}
}

func toOrderDTO(o engine.Order) OrderDTO {
	items := make([]OrderItemDTO, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemDTO{
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			Quantity:        it.Quantity,
			BonusQuantity:   it.BonusQuantity,
			UnitPrice:       it.UnitPrice,
			Discount:        it.Discount,
			DiscountPercent: it.DiscountPercent,
			Subtotal:        it.Subtotal,
			Condition:       it.Condition,
			PaidQuantity:    it.PaidQuantity,
		}
	}
	return OrderDTO{
		ID:           o.ID,
		CustomerID:   o.CustomerID,
		CustomerName: o.CustomerName,
		Date:         o.Date,
		Items:        items,
		TotalAmount:  o.TotalAmount,
		PaidAmount:   o.PaidAmount,
		Status:       o.Status,
		IsDraft:      o.IsDraft,
		IsReturn:     o.IsReturn,
		Notes:        o.Notes,
	}
}

func toTransactionDTO(t engine.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:            t.ID,
		Type:          t.Type,
		Amount:        t.Amount,
		Date:          t.Date,
		ReferenceID:   t.ReferenceID,
		Description:   t.Description,
		PaymentMethod: t.PaymentMethod,
		ProviderID:    t.ProviderID,
		ProviderName:  t.ProviderName,
		Metadata:      t.Metadata,
	}
}

func toStatsDTO(s engine.FinancialStats) StatsDTO {
	return StatsDTO{
		RepCashOnHand:   s.RepCashOnHand,
		TransferredToHQ: s.TransferredToHQ,
		TotalCollected:  s.TotalCollected,
		TotalExpenses:   s.TotalExpenses,
		TotalSales:      s.TotalSales,
	}
}

func (req TransactionRequest) toTransaction() engine.Transaction {
	t := engine.Transaction{
		ID:            req.ID,
		Type:          req.Type,
		Amount:        req.Amount,
		ReferenceID:   req.ReferenceID,
		Description:   req.Description,
		PaymentMethod: req.PaymentMethod,
		ProviderID:    req.ProviderID,
		ProviderName:  req.ProviderName,
		Metadata:      req.Metadata,
	}
	if req.Date != nil {
		t.Date = *req.Date
	}
	return t
}

func (req TransactionPatchRequest) toPatch() engine.TransactionPatch {
	return engine.TransactionPatch{
		Amount:        req.Amount,
		Date:          req.Date,
		Description:   req.Description,
		PaymentMethod: req.PaymentMethod,
		ProviderID:    req.ProviderID,
		ProviderName:  req.ProviderName,
		Quantity:      req.Quantity,
		PaidItems:     req.PaidItems,
	}
}
