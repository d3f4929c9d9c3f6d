package managers

import (
	"errors"
	"fmt"
	"strings"

	"tvms/models"
	"tvms/pkg/validate"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserManager handles account CRUD, authentication, and per-role listing.
type UserManager struct {
	db *gorm.DB
}

func NewUserManager(db *gorm.DB) *UserManager {
	return &UserManager{db: db}
}

// NewUser carries the fields needed to open an account.
type NewUser struct {
	Username string
	Password string
	FullName string
	Role     string
	Email    string
	Phone    string
}

// ProfileUpdate enumerates the fields an account holder may change. A nil
// field is left untouched; anything not listed here cannot be updated at all.
type ProfileUpdate struct {
	FullName *string
	Email    *string
	Phone    *string
}

// UserStats summarizes a citizen's violations.
type UserStats struct {
	TotalViolations int64   `json:"total_violations"`
	TotalFines      float64 `json:"total_fines"`
	PaidAmount      float64 `json:"paid_amount"`
	UnpaidAmount    float64 `json:"unpaid_amount"`
	PaidCount       int64   `json:"paid_count"`
	UnpaidCount     int64   `json:"unpaid_count"`
}

// Create validates every field, hashes the password, and inserts the account.
// The exists-checks are advisory; the unique indexes are the real guard, and
// a duplicate-key insert maps back to the same typed conflicts.
func (m *UserManager) Create(in NewUser) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validate.Username(in.Username); err != nil {
		return nil, err
	}
	if err := validate.Password(in.Password); err != nil {
		return nil, err
	}
	if err := validate.FullName(in.FullName); err != nil {
		return nil, err
	}
	if err := validate.Role(in.Role); err != nil {
		return nil, err
	}
	if err := validate.Email(in.Email); err != nil {
		return nil, err
	}
	if in.Phone != "" {
		if err := validate.Phone(in.Phone); err != nil {
			return nil, err
		}
	}
	if taken, err := m.UsernameExists(in.Username); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrUsernameTaken
	}
	if taken, err := m.EmailExists(in.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		Username:     in.Username,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Role:         in.Role,
		Email:        in.Email,
		Phone:        in.Phone,
	}
	if err := m.db.Create(user).Error; err != nil {
		if isUniqueConstraintError(err) { // lost the check-then-insert race
			return nil, conflictFromDuplicate(err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate compares the supplied password against the stored bcrypt
// hash. Unknown username and wrong password are indistinguishable to the
// caller.
func (m *UserManager) Authenticate(username, password string) (*models.User, error) {
	user, err := m.GetByUsername(strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (m *UserManager) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := m.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (m *UserManager) GetByUsername(username string) (*models.User, error) {
	var user models.User
	if err := m.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return &user, nil
}

func (m *UserManager) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := m.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &user, nil
}

// List returns users ordered for display, optionally filtered by role.
func (m *UserManager) List(role string) ([]models.User, error) {
	q := m.db.Model(&models.User{})
	if role != "" {
		if err := validate.Role(role); err != nil {
			return nil, err
		}
		q = q.Where("role = ?", role).Order("full_name")
	} else {
		q = q.Order("role, full_name")
	}
	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (m *UserManager) Officers() ([]models.User, error) { return m.List(models.RoleOfficer) }
func (m *UserManager) Citizens() ([]models.User, error) { return m.List(models.RoleCitizen) }

// UpdateProfile applies the non-nil fields of upd, each validated first.
func (m *UserManager) UpdateProfile(id uint, upd ProfileUpdate) error {
	changes := map[string]any{}
	if upd.FullName != nil {
		if err := validate.FullName(*upd.FullName); err != nil {
			return err
		}
		changes["full_name"] = strings.TrimSpace(*upd.FullName)
	}
	if upd.Email != nil {
		if err := validate.Email(*upd.Email); err != nil {
			return err
		}
		changes["email"] = *upd.Email
	}
	if upd.Phone != nil {
		if err := validate.Phone(*upd.Phone); err != nil {
			return err
		}
		changes["phone"] = *upd.Phone
	}
	if len(changes) == 0 {
		return ErrNothingToUpdate
	}
	res := m.db.Model(&models.User{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return ErrEmailTaken
		}
		return fmt.Errorf("update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (m *UserManager) UpdatePassword(id uint, newPassword string) error {
	if err := validate.Password(newPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	res := m.db.Model(&models.User{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return fmt.Errorf("update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes the account. Violations owned by the user keep their rows
// with the owner reference set to NULL (FK constraint).
func (m *UserManager) Delete(id uint) error {
	res := m.db.Delete(&models.User{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (m *UserManager) UsernameExists(username string) (bool, error) {
	var count int64
	if err := m.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, fmt.Errorf("username exists: %w", err)
	}
	return count > 0, nil
}

func (m *UserManager) EmailExists(email string) (bool, error) {
	var count int64
	if err := m.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, fmt.Errorf("email exists: %w", err)
	}
	return count > 0, nil
}

func (m *UserManager) Statistics(userID uint) (UserStats, error) {
	var stats UserStats
	err := m.db.Raw(`
		SELECT
			COUNT(*) AS total_violations,
			COALESCE(SUM(fine_amount), 0) AS total_fines,
			COALESCE(SUM(CASE WHEN status = 'paid' THEN fine_amount ELSE 0 END), 0) AS paid_amount,
			COALESCE(SUM(CASE WHEN status = 'unpaid' THEN fine_amount ELSE 0 END), 0) AS unpaid_amount,
			COUNT(CASE WHEN status = 'paid' THEN 1 END) AS paid_count,
			COUNT(CASE WHEN status = 'unpaid' THEN 1 END) AS unpaid_count
		FROM violations
		WHERE user_id = ?`, userID).Scan(&stats).Error
	if err != nil {
		return UserStats{}, fmt.Errorf("user statistics: %w", err)
	}
	return stats, nil
}

// Search matches name, username, or email, case-insensitively.
func (m *UserManager) Search(term string) ([]models.User, error) {
	pattern := "%" + term + "%"
	var users []models.User
	err := m.db.Where("username ILIKE ? OR full_name ILIKE ? OR email ILIKE ?", pattern, pattern, pattern).
		Order("full_name").Limit(defaultListLimit).Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// CountByRole returns a count per role, with every valid role present even
// when zero.
func (m *UserManager) CountByRole() (map[string]int64, error) {
	type roleCount struct {
		Role  string
		Count int64
	}
	var rows []roleCount
	err := m.db.Model(&models.User{}).Select("role, COUNT(*) AS count").Group("role").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count by role: %w", err)
	}
	counts := map[string]int64{models.RoleAdmin: 0, models.RoleOfficer: 0, models.RoleCitizen: 0}
	for _, r := range rows {
		counts[r.Role] = r.Count
	}
	return counts, nil
}
