package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TransactionType discriminates the transaction variants in the ledger.
type TransactionType string

const (
	TransactionBuy           TransactionType = "BUY"
	TransactionSell          TransactionType = "SELL"
	TransactionInflow        TransactionType = "INFLOW"
	TransactionOutflow       TransactionType = "OUTFLOW"
	TransactionStockDividend TransactionType = "STOCK_DIVIDEND"
	TransactionStockSplit    TransactionType = "STOCK_SPLIT"
)

// BuyTransactionTaxRate is the French FTT rate applied to the gross amount of
// eligible purchases.
const BuyTransactionTaxRate = 0.003

// Transaction is an immutable ledger record. All variants share this schema;
// per-variant invariants are enforced by the constructors below, never by
// callers mutating fields after the fact.
type Transaction struct {
	ID             string          `json:"id"`
	Date           time.Time       `json:"date"`
	Type           TransactionType `json:"type"`
	ISIN           string          `json:"isin,omitempty"` // empty for pure cash movements
	MIC            string          `json:"mic,omitempty"`
	Name           string          `json:"name,omitempty"`
	Quantity       float64         `json:"quantity"` // signed: positive for BUY/split-increase, negative for SELL
	Price          float64         `json:"price"`
	GrossAmount    float64         `json:"gross_amount"`
	Fee            float64         `json:"fee"`
	TransactionTax float64         `json:"transaction_tax"`
	NetCashflow    float64         `json:"net_cashflow"` // signed cash impact
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Validate checks the per-variant invariants. Repositories call it before
// every insert so a malformed record can never reach the ledger.
func (t Transaction) Validate() error {
	switch t.Type {
	case TransactionBuy:
		if t.ISIN == "" {
			return fmt.Errorf("BUY requires an instrument")
		}
		if t.Quantity <= 0 {
			return fmt.Errorf("BUY quantity must be positive, got %v", t.Quantity)
		}
		want := -(t.GrossAmount + t.TransactionTax + t.Fee)
		if math.Abs(t.NetCashflow-want) > 1e-6 {
			return fmt.Errorf("BUY net cashflow %v does not match -(gross+tax+fee) = %v", t.NetCashflow, want)
		}
	case TransactionSell:
		if t.ISIN == "" {
			return fmt.Errorf("SELL requires an instrument")
		}
		if t.Quantity >= 0 {
			return fmt.Errorf("SELL quantity must be negative, got %v", t.Quantity)
		}
		want := -t.GrossAmount - t.Fee
		if math.Abs(t.NetCashflow-want) > 1e-6 {
			return fmt.Errorf("SELL net cashflow %v does not match -gross-fee = %v", t.NetCashflow, want)
		}
	case TransactionInflow:
		if t.NetCashflow <= 0 {
			return fmt.Errorf("INFLOW amount must be positive, got %v", t.NetCashflow)
		}
	case TransactionOutflow:
		if t.NetCashflow >= 0 {
			return fmt.Errorf("OUTFLOW amount must be negative, got %v", t.NetCashflow)
		}
	case TransactionStockDividend:
		if t.ISIN == "" {
			return fmt.Errorf("STOCK_DIVIDEND requires an instrument")
		}
	case TransactionStockSplit:
		if t.ISIN == "" {
			return fmt.Errorf("STOCK_SPLIT requires an instrument")
		}
	default:
		return fmt.Errorf("unknown transaction type %q", t.Type)
	}
	return nil
}

// NewBuy creates a BUY transaction. The gross amount, transaction tax and net
// cashflow are derived here, once, at entry time. hasTransactionTax controls
// whether the purchase is FTT-eligible.
func NewBuy(date time.Time, isin, mic, name string, quantity, price, fee float64, hasTransactionTax bool, notes string) (Transaction, error) {
	if quantity <= 0 {
		return Transaction{}, fmt.Errorf("buy quantity must be positive, got %v", quantity)
	}
	gross := round4(price * quantity)
	tax := 0.0
	if hasTransactionTax {
		tax = round4(BuyTransactionTaxRate * gross)
	}
	t := Transaction{
		ID:             uuid.NewString(),
		Date:           date,
		Type:           TransactionBuy,
		ISIN:           strings.TrimSpace(isin),
		MIC:            strings.TrimSpace(mic),
		Name:           name,
		Quantity:       quantity,
		Price:          price,
		GrossAmount:    gross,
		Fee:            fee,
		TransactionTax: tax,
		NetCashflow:    round4(-(gross + tax + fee)),
		Notes:          notes,
		CreatedAt:      time.Now().UTC(),
	}
	return t, t.Validate()
}

// NewSell creates a SELL transaction. Quantity must be negative; the gross
// amount uses its absolute value so the cash proceeds come out positive
// before the fee.
func NewSell(date time.Time, isin, mic, name string, quantity, price, fee float64, notes string) (Transaction, error) {
	if quantity >= 0 {
		return Transaction{}, fmt.Errorf("sell quantity must be negative, got %v", quantity)
	}
	gross := round4(price * quantity) // negative
	t := Transaction{
		ID:          uuid.NewString(),
		Date:        date,
		Type:        TransactionSell,
		ISIN:        strings.TrimSpace(isin),
		MIC:         strings.TrimSpace(mic),
		Name:        name,
		Quantity:    quantity,
		Price:       price,
		GrossAmount: gross,
		Fee:         fee,
		NetCashflow: round4(-gross - fee),
		Notes:       notes,
		CreatedAt:   time.Now().UTC(),
	}
	return t, t.Validate()
}

// NewInflow creates a cash deposit. Inflows carry no instrument.
func NewInflow(date time.Time, amount float64, notes string) (Transaction, error) {
	t := Transaction{
		ID:          uuid.NewString(),
		Date:        date,
		Type:        TransactionInflow,
		Name:        "Bank",
		NetCashflow: amount,
		Notes:       notes,
		CreatedAt:   time.Now().UTC(),
	}
	return t, t.Validate()
}

// NewOutflow creates a cash withdrawal. The amount is stored negative.
func NewOutflow(date time.Time, amount float64, notes string) (Transaction, error) {
	if amount > 0 {
		amount = -amount
	}
	t := Transaction{
		ID:          uuid.NewString(),
		Date:        date,
		Type:        TransactionOutflow,
		Name:        "Bank",
		NetCashflow: amount,
		Notes:       notes,
		CreatedAt:   time.Now().UTC(),
	}
	return t, t.Validate()
}

// NewStockDividend creates a cash dividend paid on a holding.
func NewStockDividend(date time.Time, isin, mic string, netAmount float64, notes string) (Transaction, error) {
	t := Transaction{
		ID:          uuid.NewString(),
		Date:        date,
		Type:        TransactionStockDividend,
		ISIN:        strings.TrimSpace(isin),
		MIC:         strings.TrimSpace(mic),
		NetCashflow: netAmount,
		Notes:       notes,
		CreatedAt:   time.Now().UTC(),
	}
	return t, t.Validate()
}

// NewStockSplit records an adjustment to the share count with no cash impact.
// Quantity is the signed change in shares, not the new total.
func NewStockSplit(date time.Time, isin, mic string, quantityChange float64, notes string) (Transaction, error) {
	t := Transaction{
		ID:        uuid.NewString(),
		Date:      date,
		Type:      TransactionStockSplit,
		ISIN:      strings.TrimSpace(isin),
		MIC:       strings.TrimSpace(mic),
		Quantity:  quantityChange,
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
	}
	return t, t.Validate()
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
