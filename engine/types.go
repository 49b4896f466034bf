/*
Package engine provides the stock-and-ledger reconciliation core.

PURPOSE:
  Keeps product stock counts and order payment state consistent while sales
  orders, customer returns and financial transactions are created, edited
  and deleted. Everything outside this package (HTTP handlers, CLI, record
  forms) only calls the operations exposed here.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product, Customer, Provider: catalog records
  - Order / OrderItem: a sale or a return, with embedded lines
  - Transaction: a payment, an expense or a deposit to HQ
  - Enums for statuses, conditions, transaction types and payment methods

COMPONENTS:
  effect.go:       Order Effect Calculator (order -> stock deltas)
  stock.go:        Stock Ledger (applies deltas to product stock)
  orders.go:       Order Lifecycle Manager (create/update/delete orders)
  transactions.go: Transaction Ledger (payments, expenses, deposits)
  stats.go:        Financial Aggregator (cash on hand, HQ balance, totals)

MONEY:
  All amounts are decimal.Decimal. Quantities are plain ints; stock may go
  negative (an oversell), which is tolerated and never rejected here.

SEE ALSO:
  - store.go: Repository interface consumed by every component
  - errors.go: Sentinel and structured errors
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMS
// =============================================================================

type CustomerType string

const (
	CustomerTypePharmacy CustomerType = "PHARMACY"
	CustomerTypeStore    CustomerType = "STORE"
	CustomerTypeDirect   CustomerType = "DIRECT"
)

type OrderStatus string

const (
	StatusDraft    OrderStatus = "DRAFT"
	StatusPending  OrderStatus = "PENDING"
	StatusPartial  OrderStatus = "PARTIAL"
	StatusPaid     OrderStatus = "PAID"
	StatusReturned OrderStatus = "RETURNED"
)

// ItemCondition only matters on return orders.
type ItemCondition string

const (
	ConditionGood    ItemCondition = "GOOD"
	ConditionExpired ItemCondition = "EXPIRED"
)

type TransactionType string

const (
	TxPaymentReceived TransactionType = "PAYMENT_RECEIVED"
	TxExpense         TransactionType = "EXPENSE"
	TxDepositToHQ     TransactionType = "DEPOSIT_TO_HQ"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TxPaymentReceived, TxExpense, TxDepositToHQ:
		return true
	}
	return false
}

// PaymentMethod may be empty; an unspecified deposit is treated as cash.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

// =============================================================================
// CATALOG RECORDS
// =============================================================================

// Product is the single source of truth for available units.
type Product struct {
	ID        string
	Name      string
	BasePrice decimal.Decimal
	Stock     int
}

type Customer struct {
	ID              string
	Name            string
	Type            CustomerType
	Address         string
	Brick           string // sales territory tag
	DefaultDiscount decimal.Decimal
}

type Provider struct {
	ID    string
	Name  string
	Phone string
	Notes string
}

// =============================================================================
// ORDERS
// =============================================================================

// OrderItem is a line of an order. ProductName is a snapshot taken when the
// order was written and is not kept in sync with the catalog.
type OrderItem struct {
	ProductID       string
	ProductName     string
	Quantity        int
	BonusQuantity   int // free units: move stock, not price
	UnitPrice       decimal.Decimal
	Discount        decimal.Decimal
	DiscountPercent decimal.Decimal
	Subtotal        decimal.Decimal
	Condition       ItemCondition
	PaidQuantity    int
}

// EffectiveQuantity is the number of units the line moves in or out of stock.
func (it OrderItem) EffectiveQuantity() int {
	return it.Quantity + it.BonusQuantity
}

// Order is a sale or, when IsReturn is set, a customer return. TotalAmount is
// positive for sales and negative for returns.
type Order struct {
	ID           string
	CustomerID   string
	CustomerName string
	Date         time.Time
	Items        []OrderItem
	TotalAmount  decimal.Decimal
	PaidAmount   decimal.Decimal
	Status       OrderStatus
	IsDraft      bool
	IsReturn     bool
	Notes        string
}

// Clone returns a copy that shares no item storage with o.
func (o Order) Clone() Order {
	c := o
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	return c
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// PaidItem records how many units of a product a payment covers.
type PaidItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// TransactionMetadata is the structured side data every new transaction
// carries so reversal never has to re-read the description text.
type TransactionMetadata struct {
	Quantity        *int       `json:"quantity,omitempty"`
	PaidItems       []PaidItem `json:"paidItems,omitempty"`
	SkipOrderUpdate bool       `json:"skipOrderUpdate,omitempty"`
}

func (m *TransactionMetadata) clone() *TransactionMetadata {
	if m == nil {
		return nil
	}
	c := *m
	if m.Quantity != nil {
		q := *m.Quantity
		c.Quantity = &q
	}
	if m.PaidItems != nil {
		c.PaidItems = append([]PaidItem(nil), m.PaidItems...)
	}
	return &c
}

// Transaction is a financial movement. Amount is always a positive
// magnitude; the Type decides its sign in every computation.
//
// ReferenceID points at an order for payments and at a product for stock
// purchase expenses. It is a weak reference resolved by lookup.
type Transaction struct {
	ID            string
	Type          TransactionType
	Amount        decimal.Decimal
	Date          time.Time
	ReferenceID   string
	Description   string
	PaymentMethod PaymentMethod
	ProviderID    string
	ProviderName  string
	Metadata      *TransactionMetadata
}

// Clone returns a deep copy of t.
func (t Transaction) Clone() Transaction {
	c := t
	c.Metadata = t.Metadata.clone()
	return c
}

// StockQuantity returns the structured purchase quantity, if any.
func (t Transaction) StockQuantity() (int, bool) {
	if t.Metadata == nil || t.Metadata.Quantity == nil {
		return 0, false
	}
	return *t.Metadata.Quantity, true
}

func (t Transaction) skipsOrderUpdate() bool {
	return t.Metadata != nil && t.Metadata.SkipOrderUpdate
}

// IntPtr is a small helper for building metadata literals.
func IntPtr(v int) *int { return &v }
