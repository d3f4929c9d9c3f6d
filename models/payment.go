package models

import "time"

// Valid payment methods.
const (
	MethodCash   = "cash"
	MethodCard   = "card"
	MethodOnline = "online"
	MethodCheque = "cheque"
)

// Payment is one settlement event against exactly one violation. The
// transaction id is the caller-visible reference string, distinct from the
// row id.
type Payment struct {
	ID            uint       `gorm:"primaryKey" json:"payment_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"-"`
	ViolationID   uint       `gorm:"not null;index" json:"violation_id"`
	Violation     *Violation `gorm:"foreignKey:ViolationID" json:"-"`
	PaymentDate   time.Time  `gorm:"not null;index" json:"payment_date"`
	AmountPaid    float64    `gorm:"not null" json:"amount_paid"`
	PaymentMethod string     `gorm:"size:16;not null;index" json:"payment_method"`
	TransactionID string     `gorm:"size:64;not null;uniqueIndex" json:"transaction_id"`
}

func (p *Payment) IsOnline() bool { return p.PaymentMethod == MethodOnline }
func (p *Payment) IsCash() bool   { return p.PaymentMethod == MethodCash }
