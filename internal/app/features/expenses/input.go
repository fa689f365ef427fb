package expenses

import (
	"strings"
	"time"

	"github.com/dalemusser/tripledger/internal/app/system/normalize"
	"github.com/dalemusser/tripledger/internal/domain/models"
)

const (
	defaultCategory      = "other"
	defaultPaymentMethod = "cash"
	maxReceipts          = 10
)

type expenseInput struct {
	Item             string     `json:"item"`
	ExpenseDate      *time.Time `json:"expense_date"`
	Amount           float64    `json:"amount"`
	Currency         string     `json:"currency"`
	ExchangeRate     float64    `json:"exchange_rate"`
	ExchangeRateTime *time.Time `json:"exchange_rate_time"`
	Category         string     `json:"category"`
	PaymentMethod    string     `json:"payment_method"`
	ReceiptImageURLs []string   `json:"receipt_image_urls"`
	Note             string     `json:"note"`
}

type listResponse struct {
	Expenses []models.Expense `json:"expenses"`
	Total    float64          `json:"total_in_base"`
}

// apply validates in and copies it onto e. A non-empty message means invalid.
func (in expenseInput) apply(e *models.Expense, trip models.Trip) string {
	item := strings.TrimSpace(in.Item)
	switch {
	case item == "":
		return "item is required"
	case in.Amount <= 0:
		return "amount must be greater than zero"
	case in.ExchangeRate < 0:
		return "exchange_rate cannot be negative"
	case len(in.ReceiptImageURLs) > maxReceipts:
		return "too many receipt images"
	}

	e.Item = item
	e.Amount = in.Amount
	e.Currency = normalize.Currency(in.Currency)
	if e.Currency == "" {
		e.Currency = trip.Currency
	}
	e.ExchangeRate = in.ExchangeRate
	if e.Currency == trip.Currency || e.ExchangeRate == 0 {
		e.ExchangeRate = 1
	}
	e.ExchangeRateTime = in.ExchangeRateTime
	e.ExpenseDate = time.Now().UTC()
	if in.ExpenseDate != nil {
		e.ExpenseDate = in.ExpenseDate.UTC()
	}
	e.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if e.Category == "" {
		e.Category = defaultCategory
	}
	e.PaymentMethod = strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if e.PaymentMethod == "" {
		e.PaymentMethod = defaultPaymentMethod
	}
	e.ReceiptImageURLs = in.ReceiptImageURLs
	e.Note = strings.TrimSpace(in.Note)
	return ""
}
