// internal/domain/models/expense.go
package models

import "time"

// Expense belongs to exactly one trip. Submitter fields are captured at submit
// time; when the submitter's account is purged they are anonymized in place
// and IsDeletedUser is set.
type Expense struct {
	ID               string     `bson:"_id" json:"id"`
	TripID           string     `bson:"trip_id" json:"trip_id"`
	Item             string     `bson:"item" json:"item"`
	ExpenseDate      time.Time  `bson:"expense_date" json:"expense_date"`
	Amount           float64    `bson:"amount" json:"amount"`
	Currency         string     `bson:"currency" json:"currency"`
	ExchangeRate     float64    `bson:"exchange_rate" json:"exchange_rate"`
	ExchangeRateTime *time.Time `bson:"exchange_rate_time,omitempty" json:"exchange_rate_time,omitempty"`
	AmountInBase     float64    `bson:"amount_in_base" json:"amount_in_base"`
	Category         string     `bson:"category" json:"category"`
	PaymentMethod    string     `bson:"payment_method" json:"payment_method"`
	ReceiptImageURLs []string   `bson:"receipt_image_urls,omitempty" json:"receipt_image_urls,omitempty"`
	Note             string     `bson:"note,omitempty" json:"note,omitempty"`

	SubmittedAt      time.Time `bson:"submitted_at" json:"submitted_at"`
	SubmittedBy      string    `bson:"submitted_by" json:"submitted_by"`
	SubmittedByName  string    `bson:"submitted_by_name" json:"submitted_by_name"`
	SubmittedByEmail string    `bson:"submitted_by_email" json:"submitted_by_email"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
	UpdatedBy        string    `bson:"updated_by,omitempty" json:"updated_by,omitempty"`
	UpdatedByName    string    `bson:"updated_by_name,omitempty" json:"updated_by_name,omitempty"`
	UpdatedByEmail   string    `bson:"updated_by_email,omitempty" json:"updated_by_email,omitempty"`

	IsDeletedUser   bool   `bson:"is_deleted_user,omitempty" json:"is_deleted_user,omitempty"`
	DeletedUserName string `bson:"deleted_user_name,omitempty" json:"deleted_user_name,omitempty"`
}
