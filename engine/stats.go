package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// FinancialStats is the read model consumed by dashboards and reporting.
type FinancialStats struct {
	// RepCashOnHand is cash collected in the field and not yet sent to HQ.
	RepCashOnHand   decimal.Decimal
	TransferredToHQ decimal.Decimal
	TotalCollected  decimal.Decimal
	TotalExpenses   decimal.Decimal

	// TotalSales nets returns automatically since their totals are negative.
	TotalSales decimal.Decimal
}

// Aggregate reduces transactions and orders to FinancialStats in one pass
// over each list.
func Aggregate(txs []Transaction, orders []Order) FinancialStats {
	s := FinancialStats{
		RepCashOnHand:   decimal.Zero,
		TransferredToHQ: decimal.Zero,
		TotalCollected:  decimal.Zero,
		TotalExpenses:   decimal.Zero,
		TotalSales:      decimal.Zero,
	}

	for _, tx := range txs {
		switch tx.Type {
		case TxPaymentReceived:
			s.RepCashOnHand = s.RepCashOnHand.Add(tx.Amount)
			s.TotalCollected = s.TotalCollected.Add(tx.Amount)
		case TxDepositToHQ:
			if tx.PaymentMethod == MethodCash || tx.PaymentMethod == "" {
				s.RepCashOnHand = s.RepCashOnHand.Sub(tx.Amount)
			}
			s.TransferredToHQ = s.TransferredToHQ.Add(tx.Amount)
		case TxExpense:
			switch tx.PaymentMethod {
			case MethodCash:
				s.RepCashOnHand = s.RepCashOnHand.Sub(tx.Amount)
			case MethodBankTransfer:
				// bank-paid expenses draw down HQ funds
				s.TransferredToHQ = s.TransferredToHQ.Sub(tx.Amount)
			}
			s.TotalExpenses = s.TotalExpenses.Add(tx.Amount)
		}
	}

	for _, o := range orders {
		if o.IsDraft {
			continue
		}
		s.TotalSales = s.TotalSales.Add(o.TotalAmount)
	}
	return s
}

// Aggregator computes FinancialStats on demand from the Repository.
type Aggregator struct {
	repo Repository
}

// Stats loads every transaction and order and aggregates them.
func (a *Aggregator) Stats(ctx context.Context) (FinancialStats, error) {
	txs, err := a.repo.ListTransactions(ctx)
	if err != nil {
		return FinancialStats{}, err
	}
	orders, err := a.repo.ListOrders(ctx)
	if err != nil {
		return FinancialStats{}, err
	}
	return Aggregate(txs, orders), nil
}
