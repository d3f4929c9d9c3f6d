package managers

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// AnalyticsEngine runs the read-only aggregate queries behind the reporting
// screens. It holds no state and every call re-scans the store.
type AnalyticsEngine struct {
	db *gorm.DB
}

func NewAnalyticsEngine(db *gorm.DB) *AnalyticsEngine {
	return &AnalyticsEngine{db: db}
}

type AreaStats struct {
	AreaName       string  `json:"area_name"`
	City           string  `json:"city"`
	ViolationCount int64   `json:"violation_count"`
	TotalFines     float64 `json:"total_fines"`
	CollectedFines float64 `json:"collected_fines"`
}

type TypeStats struct {
	TypeName        string  `json:"type_name"`
	BaseFine        float64 `json:"base_fine"`
	OccurrenceCount int64   `json:"occurrence_count"`
	TotalFines      float64 `json:"total_fines"`
	AvgFine         float64 `json:"avg_fine"`
}

type StatusSummary struct {
	Status      string  `json:"status"`
	Count       int64   `json:"count"`
	TotalAmount float64 `json:"total_amount"`
	AvgAmount   float64 `json:"avg_amount"`
}

type MonthlyTrend struct {
	Month           string  `json:"month"`
	TotalViolations int64   `json:"total_violations"`
	TotalFines      float64 `json:"total_fines"`
	CollectedAmount float64 `json:"collected_amount"`
	PaidCount       int64   `json:"paid_count"`
	UnpaidCount     int64   `json:"unpaid_count"`
}

type OfficerStats struct {
	OfficerName          string  `json:"officer_name"`
	Email                string  `json:"email"`
	ViolationsRegistered int64   `json:"violations_registered"`
	TotalFinesImposed    float64 `json:"total_fines_imposed"`
	PaidCount            int64   `json:"paid_count"`
	UnpaidCount          int64   `json:"unpaid_count"`
	CollectionRate       float64 `json:"collection_rate"`
}

type TopViolator struct {
	VehicleNumber  string  `json:"vehicle_number"`
	OwnerName      *string `json:"owner_name"`
	ViolationCount int64   `json:"violation_count"`
	TotalFines     float64 `json:"total_fines"`
	PaidAmount     float64 `json:"paid_amount"`
	UnpaidAmount   float64 `json:"unpaid_amount"`
}

type DailyCount struct {
	Date           string  `json:"date"`
	ViolationCount int64   `json:"violation_count"`
	TotalFines     float64 `json:"total_fines"`
}

type CollectionEfficiency struct {
	TotalViolations      int64   `json:"total_violations"`
	PaidViolations       int64   `json:"paid_violations"`
	UnpaidViolations     int64   `json:"unpaid_violations"`
	TotalFines           float64 `json:"total_fines"`
	CollectedAmount      float64 `json:"collected_amount"`
	PendingAmount        float64 `json:"pending_amount"`
	CollectionPercentage float64 `json:"collection_percentage"`
}

type HourCount struct {
	Hour           int   `json:"hour"`
	ViolationCount int64 `json:"violation_count"`
}

// SummaryReport bundles the headline aggregates into one payload.
type SummaryReport struct {
	CollectionEfficiency CollectionEfficiency `json:"collection_efficiency"`
	PaymentStatus        []StatusSummary      `json:"payment_status"`
	TopAreas             []AreaStats          `json:"top_areas"`
	TopViolationTypes    []TypeStats          `json:"top_violation_types"`
	RecentTrends         []MonthlyTrend       `json:"recent_trends"`
}

// ByArea returns violation counts and fine totals per area, busiest first.
// Areas with no violations are omitted.
func (e *AnalyticsEngine) ByArea() ([]AreaStats, error) {
	var out []AreaStats
	err := e.db.Raw(`
		SELECT
			a.area_name,
			a.city,
			COUNT(v.id) AS violation_count,
			COALESCE(SUM(v.fine_amount), 0) AS total_fines,
			COALESCE(SUM(CASE WHEN v.status = 'paid' THEN v.fine_amount ELSE 0 END), 0) AS collected_fines
		FROM areas a
		LEFT JOIN violations v ON a.id = v.area_id
		GROUP BY a.id, a.area_name, a.city
		HAVING COUNT(v.id) > 0
		ORDER BY violation_count DESC`).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("violations by area: %w", err)
	}
	return out, nil
}

func (e *AnalyticsEngine) ByType() ([]TypeStats, error) {
	var out []TypeStats
	err := e.db.Raw(`
		SELECT
			vt.type_name,
			vt.base_fine,
			COUNT(v.id) AS occurrence_count,
			COALESCE(SUM(v.fine_amount), 0) AS total_fines,
			COALESCE(ROUND(AVG(v.fine_amount)::numeric, 2), 0) AS avg_fine
		FROM violation_types vt
		LEFT JOIN violations v ON vt.id = v.type_id
		GROUP BY vt.id, vt.type_name, vt.base_fine
		HAVING COUNT(v.id) > 0
		ORDER BY occurrence_count DESC`).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("violations by type: %w", err)
	}
	return out, nil
}

func (e *AnalyticsEngine) PaymentStatusSummary() ([]StatusSummary, error) {
	var out []StatusSummary
	err := e.db.Raw(`
		SELECT
			status,
			COUNT(*) AS count,
			SUM(fine_amount) AS total_amount,
			ROUND(AVG(fine_amount)::numeric, 2) AS avg_amount
		FROM violations
		GROUP BY status
		ORDER BY count DESC`).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("payment status summary: %w", err)
	}
	return out, nil
}

func (e *AnalyticsEngine) MonthlyTrends(months int) ([]MonthlyTrend, error) {
	if months <= 0 {
		months = 12
	}
	cutoff := time.Now().AddDate(0, -months, 0)
	var out []MonthlyTrend
	err := e.db.Raw(`
		SELECT
			to_char(violation_date, 'YYYY-MM') AS month,
			COUNT(*) AS total_violations,
			SUM(fine_amount) AS total_fines,
			SUM(CASE WHEN status = 'paid' THEN fine_amount ELSE 0 END) AS collected_amount,
			COUNT(CASE WHEN status = 'paid' THEN 1 END) AS paid_count,
			COUNT(CASE WHEN status = 'unpaid' THEN 1 END) AS unpaid_count
		FROM violations
		WHERE violation_date >= ?
		GROUP BY to_char(violation_date, 'YYYY-MM')
		ORDER BY month DESC`, cutoff).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("monthly trends: %w", err)
	}
	return out, nil
}

// OfficerPerformance lists each officer's registered violations and the share
// of them that got paid.
func (e *AnalyticsEngine) OfficerPerformance() ([]OfficerStats, error) {
	var out []OfficerStats
	err := e.db.Raw(`
		SELECT
			u.full_name AS officer_name,
			u.email,
			COUNT(v.id) AS violations_registered,
			COALESCE(SUM(v.fine_amount), 0) AS total_fines_imposed,
			COUNT(CASE WHEN v.status = 'paid' THEN 1 END) AS paid_count,
			COUNT(CASE WHEN v.status = 'unpaid' THEN 1 END) AS unpaid_count,
			COALESCE(ROUND(
				COUNT(CASE WHEN v.status = 'paid' THEN 1 END)::numeric * 100
					/ NULLIF(COUNT(v.id), 0), 2), 0) AS collection_rate
		FROM users u
		LEFT JOIN violations v ON u.id = v.officer_id
		WHERE u.role = 'officer'
		GROUP BY u.id, u.full_name, u.email
		HAVING COUNT(v.id) > 0
		ORDER BY violations_registered DESC`).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("officer performance: %w", err)
	}
	return out, nil
}

// TopViolators returns vehicles with more than one violation, worst first.
func (e *AnalyticsEngine) TopViolators(limit int) ([]TopViolator, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []TopViolator
	err := e.db.Raw(`
		SELECT
			v.vehicle_number,
			u.full_name AS owner_name,
			COUNT(v.id) AS violation_count,
			SUM(v.fine_amount) AS total_fines,
			SUM(CASE WHEN v.status = 'paid' THEN v.fine_amount ELSE 0 END) AS paid_amount,
			SUM(CASE WHEN v.status = 'unpaid' THEN v.fine_amount ELSE 0 END) AS unpaid_amount
		FROM violations v
		LEFT JOIN users u ON v.user_id = u.id
		GROUP BY v.vehicle_number, u.full_name
		HAVING COUNT(v.id) > 1
		ORDER BY violation_count DESC, total_fines DESC
		LIMIT ?`, limit).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("top violators: %w", err)
	}
	return out, nil
}

func (e *AnalyticsEngine) DailyViolations(days int) ([]DailyCount, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	var out []DailyCount
	err := e.db.Raw(`
		SELECT
			to_char(violation_date, 'YYYY-MM-DD') AS date,
			COUNT(*) AS violation_count,
			SUM(fine_amount) AS total_fines
		FROM violations
		WHERE violation_date >= ?
		GROUP BY to_char(violation_date, 'YYYY-MM-DD')
		ORDER BY date DESC`, cutoff).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("daily violations: %w", err)
	}
	return out, nil
}

func (e *AnalyticsEngine) GetCollectionEfficiency() (CollectionEfficiency, error) {
	var out CollectionEfficiency
	err := e.db.Raw(`
		SELECT
			COUNT(*) AS total_violations,
			COUNT(CASE WHEN status = 'paid' THEN 1 END) AS paid_violations,
			COUNT(CASE WHEN status = 'unpaid' THEN 1 END) AS unpaid_violations,
			COALESCE(SUM(fine_amount), 0) AS total_fines,
			COALESCE(SUM(CASE WHEN status = 'paid' THEN fine_amount ELSE 0 END), 0) AS collected_amount,
			COALESCE(SUM(CASE WHEN status = 'unpaid' THEN fine_amount ELSE 0 END), 0) AS pending_amount,
			COALESCE(ROUND(
				SUM(CASE WHEN status = 'paid' THEN fine_amount ELSE 0 END)::numeric * 100
					/ NULLIF(SUM(fine_amount), 0), 2), 0) AS collection_percentage
		FROM violations`).Scan(&out).Error
	if err != nil {
		return CollectionEfficiency{}, fmt.Errorf("collection efficiency: %w", err)
	}
	return out, nil
}

// PeakHours returns violation counts per hour of day, 0-23.
func (e *AnalyticsEngine) PeakHours() ([]HourCount, error) {
	var out []HourCount
	err := e.db.Raw(`
		SELECT
			EXTRACT(HOUR FROM violation_date)::int AS hour,
			COUNT(*) AS violation_count
		FROM violations
		GROUP BY EXTRACT(HOUR FROM violation_date)::int
		ORDER BY hour`).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("peak hours: %w", err)
	}
	return out, nil
}

func (e *AnalyticsEngine) GenerateSummaryReport() (SummaryReport, error) {
	eff, err := e.GetCollectionEfficiency()
	if err != nil {
		return SummaryReport{}, err
	}
	status, err := e.PaymentStatusSummary()
	if err != nil {
		return SummaryReport{}, err
	}
	areas, err := e.ByArea()
	if err != nil {
		return SummaryReport{}, err
	}
	if len(areas) > 5 {
		areas = areas[:5]
	}
	types, err := e.ByType()
	if err != nil {
		return SummaryReport{}, err
	}
	if len(types) > 5 {
		types = types[:5]
	}
	trends, err := e.MonthlyTrends(3)
	if err != nil {
		return SummaryReport{}, err
	}
	return SummaryReport{
		CollectionEfficiency: eff,
		PaymentStatus:        status,
		TopAreas:             areas,
		TopViolationTypes:    types,
		RecentTrends:         trends,
	}, nil
}
