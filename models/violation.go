package models

import "time"

// Violation statuses. Transitions are caller-driven; any status may move to
// any other through an explicit manager call.
const (
	StatusUnpaid   = "unpaid"
	StatusPaid     = "paid"
	StatusDisputed = "disputed"
)

// Violation is a recorded traffic infraction tied to a vehicle. The owner is
// optional: unregistered vehicles are allowed, and deleting a user leaves the
// violation behind with a NULL owner.
type Violation struct {
	ID            uint           `gorm:"primaryKey" json:"violation_id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"-"`
	VehicleNumber string         `gorm:"size:16;not null;index" json:"vehicle_number"`
	UserID        *uint          `gorm:"index" json:"user_id"`
	User          *User          `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	TypeID        uint           `gorm:"not null;index" json:"type_id"`
	Type          *ViolationType `gorm:"foreignKey:TypeID" json:"-"`
	AreaID        uint           `gorm:"not null;index" json:"area_id"`
	Area          *Area          `gorm:"foreignKey:AreaID" json:"-"`
	OfficerID     uint           `gorm:"not null;index" json:"officer_id"`
	Officer       *User          `gorm:"foreignKey:OfficerID" json:"-"`
	ViolationDate time.Time      `gorm:"not null;index" json:"violation_date"`
	FineAmount    float64        `gorm:"not null" json:"fine_amount"`
	Status        string         `gorm:"size:16;not null;default:unpaid;index" json:"status"`
	Notes         string         `gorm:"size:512" json:"notes"`
}

func (v *Violation) IsPaid() bool     { return v.Status == StatusPaid }
func (v *Violation) IsUnpaid() bool   { return v.Status == StatusUnpaid }
func (v *Violation) IsDisputed() bool { return v.Status == StatusDisputed }

// LateFee returns the additional fee for a payment that is daysLate days past
// due, at feePercent of the fine per day (0.05 = 5%/day).
func (v *Violation) LateFee(daysLate int, feePercent float64) float64 {
	if daysLate <= 0 {
		return 0
	}
	return v.FineAmount * feePercent * float64(daysLate)
}
