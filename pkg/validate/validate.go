// Package validate holds the field-level input rules shared by the managers
// and the HTTP layer. Each function returns nil for valid input or an error
// describing the first rule the value breaks.
package validate

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Error marks a field-rule failure, so callers can map it to a 400 rather
// than a store failure.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

func errf(format string, args ...any) error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// Is reports whether err (or anything it wraps) is a validation failure.
func Is(err error) bool {
	var v *Error
	return errors.As(err, &v)
}

var (
	emailRE    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneRE    = regexp.MustCompile(`^\+?\d+$`)
	usernameRE = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	nameRE     = regexp.MustCompile(`^[a-zA-Z\s.\-']+$`)
	// Indian registration plates: 2 letters + 2 digits + 1-2 letters + 4 digits.
	vehicleRE   = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z]{1,2}\d{4}$`)
	separatorRE = regexp.MustCompile(`[\s\-()]`)
)

// NormalizeVehicleNumber strips spaces and hyphens and uppercases, so
// KA-01-AB-1234 and ka01ab1234 compare equal.
func NormalizeVehicleNumber(vehicleNumber string) string {
	return separatorRE.ReplaceAllString(strings.ToUpper(vehicleNumber), "")
}

// VehicleNumber validates an Indian vehicle registration number such as
// KA01AB1234 (hyphens and spaces are tolerated).
func VehicleNumber(vehicleNumber string) error {
	if vehicleNumber == "" {
		return errf("vehicle number is required")
	}
	cleaned := NormalizeVehicleNumber(vehicleNumber)
	if !vehicleRE.MatchString(cleaned) {
		return errf("invalid vehicle number format (expected e.g. KA01AB1234)")
	}
	return nil
}

func Username(username string) error {
	if username == "" {
		return errf("username is required")
	}
	if len(username) < 3 {
		return errf("username must be at least 3 characters")
	}
	if len(username) > 50 {
		return errf("username too long (max 50 characters)")
	}
	if !usernameRE.MatchString(username) {
		return errf("username can only contain letters, numbers, and underscore")
	}
	return nil
}

func Password(password string) error {
	if password == "" {
		return errf("password is required")
	}
	if len(password) < 6 {
		return errf("password must be at least 6 characters")
	}
	if len(password) > 255 {
		return errf("password too long (max 255 characters)")
	}
	return nil
}

func Email(email string) error {
	if email == "" {
		return errf("email is required")
	}
	if !emailRE.MatchString(email) {
		return errf("invalid email format")
	}
	if len(email) > 100 {
		return errf("email too long (max 100 characters)")
	}
	return nil
}

// Phone validates an Indian phone number: 10 digits, or 12-13 with a country
// code. Spaces, hyphens, and parentheses are tolerated.
func Phone(phone string) error {
	if phone == "" {
		return errf("phone number is required")
	}
	cleaned := separatorRE.ReplaceAllString(phone, "")
	if !phoneRE.MatchString(cleaned) {
		return errf("phone number must contain only digits")
	}
	digits := strings.TrimPrefix(cleaned, "+")
	if n := len(digits); n != 10 && n != 12 && n != 13 {
		return errf("phone number must be 10 digits (or 12-13 with country code)")
	}
	return nil
}

func FullName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errf("name is required")
	}
	if len(name) < 2 {
		return errf("name must be at least 2 characters")
	}
	if len(name) > 100 {
		return errf("name too long (max 100 characters)")
	}
	if !nameRE.MatchString(name) {
		return errf("name can only contain letters, spaces, and basic punctuation")
	}
	return nil
}

// Amount validates a monetary value: non-negative, capped, at most two
// decimal places.
func Amount(amount float64) error {
	const maxAmount = 100000.0
	if amount < 0 {
		return errf("amount cannot be negative")
	}
	if amount > maxAmount {
		return errf("amount cannot exceed %.0f", maxAmount)
	}
	// compare against the rounded cent value: 4.35*100 is 434.999... in
	// float64, so truncation would reject valid amounts
	cents := amount * 100
	if math.Abs(cents-math.Round(cents)) > 1e-6 {
		return errf("amount can have at most 2 decimal places")
	}
	return nil
}

func Role(role string) error {
	switch role {
	case "admin", "officer", "citizen":
		return nil
	case "":
		return errf("role is required")
	}
	return errf("invalid role %q (must be admin, officer, or citizen)", role)
}

func PaymentMethod(method string) error {
	switch method {
	case "cash", "card", "online", "cheque":
		return nil
	case "":
		return errf("payment method is required")
	}
	return errf("invalid payment method %q (must be cash, card, online, or cheque)", method)
}

func ViolationStatus(status string) error {
	switch status {
	case "unpaid", "paid", "disputed":
		return nil
	case "":
		return errf("status is required")
	}
	return errf("invalid status %q (must be unpaid, paid, or disputed)", status)
}
