package managers

import (
	"errors"
	"fmt"
	"time"

	"tvms/models"
	"tvms/pkg/validate"

	"gorm.io/gorm"
)

// defaultListLimit caps list/search endpoints that don't pass their own cap.
const defaultListLimit = 100

// ViolationManager handles violation CRUD plus the joined read views used
// for presentation.
type ViolationManager struct {
	db *gorm.DB
}

func NewViolationManager(db *gorm.DB) *ViolationManager {
	return &ViolationManager{db: db}
}

// ViolationDetail is a violation row joined with the names a listing screen
// shows. OwnerName is nil for unregistered vehicles.
type ViolationDetail struct {
	ViolationID   uint      `json:"violation_id"`
	VehicleNumber string    `json:"vehicle_number"`
	OwnerName     *string   `json:"owner_name"`
	TypeName      string    `json:"type_name"`
	AreaName      string    `json:"area_name"`
	City          string    `json:"city"`
	OfficerName   string    `json:"officer_name"`
	ViolationDate time.Time `json:"violation_date"`
	FineAmount    float64   `json:"fine_amount"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes"`
}

// FineTotals is the count/sum breakdown returned by TotalFines.
type FineTotals struct {
	TotalCount   int64   `json:"total_count"`
	TotalAmount  float64 `json:"total_amount"`
	PaidAmount   float64 `json:"paid_amount"`
	UnpaidAmount float64 `json:"unpaid_amount"`
}

const violationDetailSelect = `
	SELECT
		v.id AS violation_id,
		v.vehicle_number,
		u.full_name AS owner_name,
		vt.type_name,
		a.area_name,
		a.city,
		o.full_name AS officer_name,
		v.violation_date,
		v.fine_amount,
		v.status,
		v.notes
	FROM violations v
	LEFT JOIN users u ON v.user_id = u.id
	JOIN violation_types vt ON v.type_id = vt.id
	JOIN areas a ON v.area_id = a.id
	JOIN users o ON v.officer_id = o.id`

// Create validates and inserts a violation, returning the generated id. The
// vehicle number is normalized, and a fresh record always starts unpaid
// unless the caller set a valid status explicitly.
func (m *ViolationManager) Create(v *models.Violation) (uint, error) {
	if err := validate.VehicleNumber(v.VehicleNumber); err != nil {
		return 0, err
	}
	if err := validate.Amount(v.FineAmount); err != nil {
		return 0, fmt.Errorf("fine amount: %w", err)
	}
	v.VehicleNumber = validate.NormalizeVehicleNumber(v.VehicleNumber)
	if v.Status == "" {
		v.Status = models.StatusUnpaid
	}
	if err := validate.ViolationStatus(v.Status); err != nil {
		return 0, err
	}
	if v.ViolationDate.IsZero() {
		v.ViolationDate = time.Now()
	}
	if err := m.db.Create(v).Error; err != nil {
		return 0, fmt.Errorf("create violation: %w", err)
	}
	return v.ID, nil
}

func (m *ViolationManager) GetByID(id uint) (*models.Violation, error) {
	var v models.Violation
	if err := m.db.First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrViolationNotFound
		}
		return nil, fmt.Errorf("get violation: %w", err)
	}
	return &v, nil
}

// ListDetailed returns the most recent violations with joined names.
func (m *ViolationManager) ListDetailed(limit int) ([]ViolationDetail, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var out []ViolationDetail
	err := m.db.Raw(violationDetailSelect+` ORDER BY v.violation_date DESC LIMIT ?`, limit).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	return out, nil
}

func (m *ViolationManager) ByVehicle(vehicleNumber string) ([]ViolationDetail, error) {
	var out []ViolationDetail
	err := m.db.Raw(violationDetailSelect+` WHERE v.vehicle_number = ? ORDER BY v.violation_date DESC`,
		validate.NormalizeVehicleNumber(vehicleNumber)).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("violations by vehicle: %w", err)
	}
	return out, nil
}

func (m *ViolationManager) ByUser(userID uint) ([]ViolationDetail, error) {
	var out []ViolationDetail
	err := m.db.Raw(violationDetailSelect+` WHERE v.user_id = ? ORDER BY v.violation_date DESC`, userID).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("violations by user: %w", err)
	}
	return out, nil
}

func (m *ViolationManager) Unpaid() ([]ViolationDetail, error) {
	var out []ViolationDetail
	err := m.db.Raw(violationDetailSelect+` WHERE v.status = ? ORDER BY v.violation_date DESC`, models.StatusUnpaid).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("unpaid violations: %w", err)
	}
	return out, nil
}

// UpdateStatus sets a violation's status after validating it against the
// fixed enumeration. An update that touches zero rows is a not-found, not a
// silent success.
func (m *ViolationManager) UpdateStatus(id uint, status string) error {
	if err := validate.ViolationStatus(status); err != nil {
		return err
	}
	res := m.db.Model(&models.Violation{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("update status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrViolationNotFound
	}
	return nil
}

func (m *ViolationManager) Types() ([]models.ViolationType, error) {
	var types []models.ViolationType
	if err := m.db.Order("type_name").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("violation types: %w", err)
	}
	return types, nil
}

func (m *ViolationManager) Areas() ([]models.Area, error) {
	var areas []models.Area
	if err := m.db.Order("city, area_name").Find(&areas).Error; err != nil {
		return nil, fmt.Errorf("areas: %w", err)
	}
	return areas, nil
}

// TotalFines returns count and paid/unpaid sums, scoped to one owner when
// userID is non-nil, global otherwise.
func (m *ViolationManager) TotalFines(userID *uint) (FineTotals, error) {
	q := `
		SELECT
			COUNT(*) AS total_count,
			COALESCE(SUM(fine_amount), 0) AS total_amount,
			COALESCE(SUM(CASE WHEN status = 'paid' THEN fine_amount ELSE 0 END), 0) AS paid_amount,
			COALESCE(SUM(CASE WHEN status = 'unpaid' THEN fine_amount ELSE 0 END), 0) AS unpaid_amount
		FROM violations`
	var totals FineTotals
	var err error
	if userID != nil {
		err = m.db.Raw(q+` WHERE user_id = ?`, *userID).Scan(&totals).Error
	} else {
		err = m.db.Raw(q).Scan(&totals).Error
	}
	if err != nil {
		return FineTotals{}, fmt.Errorf("total fines: %w", err)
	}
	return totals, nil
}

// Search matches the term case-insensitively against vehicle number or owner
// name.
func (m *ViolationManager) Search(term string) ([]ViolationDetail, error) {
	pattern := "%" + term + "%"
	var out []ViolationDetail
	err := m.db.Raw(violationDetailSelect+
		` WHERE v.vehicle_number ILIKE ? OR u.full_name ILIKE ? ORDER BY v.violation_date DESC LIMIT ?`,
		pattern, pattern, defaultListLimit).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("search violations: %w", err)
	}
	return out, nil
}
