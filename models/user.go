package models

import "time"

// Valid roles for User.Role.
const (
	RoleAdmin   = "admin"
	RoleOfficer = "officer"
	RoleCitizen = "citizen"
)

// User is an account in the system: an admin, a field officer, or a citizen
// who owns vehicles. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
	Username     string    `gorm:"size:50;not null;uniqueIndex" json:"username"`
	PasswordHash []byte    `gorm:"not null" json:"-"`
	FullName     string    `gorm:"size:100;not null" json:"full_name"`
	Role         string    `gorm:"size:16;not null;index" json:"role"`
	Email        string    `gorm:"size:100;not null;uniqueIndex" json:"email"`
	Phone        string    `gorm:"size:20" json:"phone"`
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsOfficer() bool { return u.Role == RoleOfficer }
