package managers

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"tvms/models"
	"tvms/pkg/validate"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentManager records settlements and keeps the referenced violation's
// status in sync. Both write pairs (create+mark-paid, delete+mark-unpaid)
// run in a single transaction.
type PaymentManager struct {
	db *gorm.DB
}

func NewPaymentManager(db *gorm.DB) *PaymentManager {
	return &PaymentManager{db: db}
}

// NewTransactionID returns a caller-visible payment reference: TXN followed
// by 32 uppercase hex characters from a random UUID.
func NewTransactionID() string {
	u := uuid.New()
	return "TXN" + strings.ToUpper(hex.EncodeToString(u[:]))
}

// PaymentDetail is a payment row joined with its violation for listings.
type PaymentDetail struct {
	PaymentID     uint      `json:"payment_id"`
	ViolationID   uint      `json:"violation_id"`
	VehicleNumber string    `json:"vehicle_number"`
	OwnerName     *string   `json:"owner_name"`
	TypeName      string    `json:"type_name"`
	PaymentDate   time.Time `json:"payment_date"`
	AmountPaid    float64   `json:"amount_paid"`
	PaymentMethod string    `json:"payment_method"`
	TransactionID string    `json:"transaction_id"`
}

type DailyCollection struct {
	Date           string  `json:"date"`
	PaymentCount   int64   `json:"payment_count"`
	TotalCollected float64 `json:"total_collected"`
	AvgAmount      float64 `json:"avg_amount"`
}

type MonthlyCollection struct {
	Month          string  `json:"month"`
	PaymentCount   int64   `json:"payment_count"`
	TotalCollected float64 `json:"total_collected"`
	AvgAmount      float64 `json:"avg_amount"`
}

type MethodStat struct {
	PaymentMethod string  `json:"payment_method"`
	Count         int64   `json:"count"`
	TotalAmount   float64 `json:"total_amount"`
	AvgAmount     float64 `json:"avg_amount"`
}

type CollectionStats struct {
	TotalPayments  int64   `json:"total_payments"`
	TotalCollected float64 `json:"total_collected"`
	AvgPayment     float64 `json:"avg_payment"`
	MinPayment     float64 `json:"min_payment"`
	MaxPayment     float64 `json:"max_payment"`
}

const paymentDetailSelect = `
	SELECT
		p.id AS payment_id,
		p.violation_id,
		v.vehicle_number,
		u.full_name AS owner_name,
		vt.type_name,
		p.payment_date,
		p.amount_paid,
		p.payment_method,
		p.transaction_id
	FROM payments p
	JOIN violations v ON p.violation_id = v.id
	LEFT JOIN users u ON v.user_id = u.id
	JOIN violation_types vt ON v.type_id = vt.id`

// Create records a payment and flips its violation to paid. Either both
// writes land or neither does, and a violation that is already paid rejects
// the settlement.
func (m *PaymentManager) Create(p *models.Payment) (uint, error) {
	if err := validate.Amount(p.AmountPaid); err != nil {
		return 0, fmt.Errorf("amount paid: %w", err)
	}
	if err := validate.PaymentMethod(p.PaymentMethod); err != nil {
		return 0, err
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now()
	}
	if p.TransactionID == "" {
		p.TransactionID = NewTransactionID()
	}
	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		// compare-and-set: two concurrent settlements race on the same row,
		// and only the one that flips unpaid->paid keeps its insert
		res := tx.Model(&models.Violation{}).
			Where("id = ? AND status <> ?", p.ViolationID, models.StatusPaid).
			Update("status", models.StatusPaid)
		if res.Error != nil {
			return fmt.Errorf("mark violation paid: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Violation{}).Where("id = ?", p.ViolationID).Count(&count).Error; err != nil {
				return fmt.Errorf("check violation: %w", err)
			}
			if count == 0 {
				return ErrViolationNotFound
			}
			return ErrAlreadyPaid
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

// Process settles a violation: it must exist and not already be paid (the
// idempotency guard against double payment). Method defaults to cash.
func (m *PaymentManager) Process(violationID uint, amount float64, method string) (*models.Payment, error) {
	if method == "" {
		method = models.MethodCash
	}
	var v models.Violation
	if err := m.db.First(&v, violationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrViolationNotFound
		}
		return nil, fmt.Errorf("fetch violation: %w", err)
	}
	if v.IsPaid() {
		return nil, ErrAlreadyPaid
	}
	p := &models.Payment{
		ViolationID:   violationID,
		PaymentDate:   time.Now(),
		AmountPaid:    amount,
		PaymentMethod: method,
		TransactionID: NewTransactionID(),
	}
	if _, err := m.Create(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Refund deletes the payment and resets its violation to unpaid, atomically.
// The reset is unconditional: this system records at most one live payment
// per violation through the normal flow.
func (m *PaymentManager) Refund(paymentID uint) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		var p models.Payment
		if err := tx.First(&p, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return fmt.Errorf("fetch payment: %w", err)
		}
		if err := tx.Delete(&models.Payment{}, paymentID).Error; err != nil {
			return fmt.Errorf("delete payment: %w", err)
		}
		if err := tx.Model(&models.Violation{}).Where("id = ?", p.ViolationID).
			Update("status", models.StatusUnpaid).Error; err != nil {
			return fmt.Errorf("reset violation status: %w", err)
		}
		return nil
	})
}

func (m *PaymentManager) GetByID(paymentID uint) (*models.Payment, error) {
	var p models.Payment
	if err := m.db.First(&p, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

// ByViolation returns the most recent payment against a violation.
func (m *PaymentManager) ByViolation(violationID uint) (*models.Payment, error) {
	var p models.Payment
	err := m.db.Where("violation_id = ?", violationID).Order("payment_date DESC").First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment by violation: %w", err)
	}
	return &p, nil
}

func (m *PaymentManager) ListDetailed(limit int) ([]PaymentDetail, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var out []PaymentDetail
	err := m.db.Raw(paymentDetailSelect+` ORDER BY p.payment_date DESC LIMIT ?`, limit).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return out, nil
}

func (m *PaymentManager) ByMethod(method string) ([]PaymentDetail, error) {
	if err := validate.PaymentMethod(method); err != nil {
		return nil, err
	}
	var out []PaymentDetail
	err := m.db.Raw(paymentDetailSelect+` WHERE p.payment_method = ? ORDER BY p.payment_date DESC`, method).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("payments by method: %w", err)
	}
	return out, nil
}

func (m *PaymentManager) ByDateRange(start, end time.Time) ([]PaymentDetail, error) {
	var out []PaymentDetail
	err := m.db.Raw(paymentDetailSelect+
		` WHERE p.payment_date BETWEEN ? AND ? ORDER BY p.payment_date DESC`, start, end).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("payments by date range: %w", err)
	}
	return out, nil
}

func (m *PaymentManager) Recent(limit int) ([]PaymentDetail, error) {
	if limit <= 0 {
		limit = 10
	}
	return m.ListDetailed(limit)
}

func (m *PaymentManager) DailyCollections(days int) ([]DailyCollection, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	var out []DailyCollection
	err := m.db.Raw(`
		SELECT
			to_char(payment_date, 'YYYY-MM-DD') AS date,
			COUNT(*) AS payment_count,
			SUM(amount_paid) AS total_collected,
			ROUND(AVG(amount_paid)::numeric, 2) AS avg_amount
		FROM payments
		WHERE payment_date >= ?
		GROUP BY to_char(payment_date, 'YYYY-MM-DD')
		ORDER BY date DESC`, cutoff).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("daily collections: %w", err)
	}
	return out, nil
}

func (m *PaymentManager) MonthlyCollections(months int) ([]MonthlyCollection, error) {
	if months <= 0 {
		months = 12
	}
	cutoff := time.Now().AddDate(0, -months, 0)
	var out []MonthlyCollection
	err := m.db.Raw(`
		SELECT
			to_char(payment_date, 'YYYY-MM') AS month,
			COUNT(*) AS payment_count,
			SUM(amount_paid) AS total_collected,
			ROUND(AVG(amount_paid)::numeric, 2) AS avg_amount
		FROM payments
		WHERE payment_date >= ?
		GROUP BY to_char(payment_date, 'YYYY-MM')
		ORDER BY month DESC`, cutoff).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("monthly collections: %w", err)
	}
	return out, nil
}

func (m *PaymentManager) MethodDistribution() ([]MethodStat, error) {
	var out []MethodStat
	err := m.db.Raw(`
		SELECT
			payment_method,
			COUNT(*) AS count,
			SUM(amount_paid) AS total_amount,
			ROUND(AVG(amount_paid)::numeric, 2) AS avg_amount
		FROM payments
		GROUP BY payment_method
		ORDER BY total_amount DESC`).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("method distribution: %w", err)
	}
	return out, nil
}

// TotalCollections aggregates over all payments, or over [start, end] when
// both are non-nil.
func (m *PaymentManager) TotalCollections(start, end *time.Time) (CollectionStats, error) {
	q := `
		SELECT
			COUNT(*) AS total_payments,
			COALESCE(SUM(amount_paid), 0) AS total_collected,
			COALESCE(ROUND(AVG(amount_paid)::numeric, 2), 0) AS avg_payment,
			COALESCE(MIN(amount_paid), 0) AS min_payment,
			COALESCE(MAX(amount_paid), 0) AS max_payment
		FROM payments`
	var stats CollectionStats
	var err error
	if start != nil && end != nil {
		err = m.db.Raw(q+` WHERE payment_date BETWEEN ? AND ?`, *start, *end).Scan(&stats).Error
	} else {
		err = m.db.Raw(q).Scan(&stats).Error
	}
	if err != nil {
		return CollectionStats{}, fmt.Errorf("total collections: %w", err)
	}
	return stats, nil
}

// VerifyTransaction looks a payment up by its caller-visible reference.
func (m *PaymentManager) VerifyTransaction(transactionID string) (*PaymentDetail, error) {
	var out []PaymentDetail
	err := m.db.Raw(paymentDetailSelect+` WHERE p.transaction_id = ?`, transactionID).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("verify transaction: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrPaymentNotFound
	}
	return &out[0], nil
}

func (m *PaymentManager) HistoryForUser(userID uint) ([]PaymentDetail, error) {
	var out []PaymentDetail
	err := m.db.Raw(paymentDetailSelect+` WHERE v.user_id = ? ORDER BY p.payment_date DESC`, userID).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("payment history: %w", err)
	}
	return out, nil
}
