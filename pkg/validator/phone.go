package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidLength indicates phone number length is not 10 digits
	ErrInvalidLength = errors.New("phone number must be exactly 10 digits")

	// ErrInvalidPrefix indicates phone number doesn't start with a Sri Lankan mobile prefix
	ErrInvalidPrefix = errors.New("phone number must start with 070, 071, 072, 074, 075, 076, 077, 078 or 079")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits")

	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")

	// ErrInvalidEmail indicates a malformed contact email
	ErrInvalidEmail = errors.New("email address is not valid")
)

// mobileOperators maps Sri Lankan mobile prefixes to their operator
var mobileOperators = map[string]string{
	"070": "Mobitel",
	"071": "Mobitel",
	"072": "Hutch",
	"074": "Dialog",
	"075": "Airtel",
	"076": "Dialog",
	"077": "Dialog",
	"078": "Hutch",
	"079": "Dialog",
}

var (
	digitsRegex = regexp.MustCompile(`^\d+$`)
	emailRegex  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	separators  = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "", ".", "")
)

// ContactValidator validates the contact details attached to a booking
type ContactValidator struct{}

// NewContactValidator creates a new contact validator instance
func NewContactValidator() *ContactValidator {
	return &ContactValidator{}
}

// ValidatePhone validates a Sri Lankan mobile number.
// Accepts 0771234567, 077 123 4567, 077-123-4567 or +94771234567 and
// returns the local 10 digit form.
func (v *ContactValidator) ValidatePhone(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.SanitizePhone(phone)
	if !digitsRegex.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}
	if len(sanitized) != 10 {
		return "", ErrInvalidLength
	}
	if _, ok := mobileOperators[sanitized[:3]]; !ok {
		return "", ErrInvalidPrefix
	}

	return sanitized, nil
}

// SanitizePhone strips separators and rewrites a 94 country code to a leading 0
func (v *ContactValidator) SanitizePhone(phone string) string {
	phone = separators.Replace(phone)
	if strings.HasPrefix(phone, "94") && len(phone) == 11 {
		phone = "0" + phone[2:]
	}
	return phone
}

// FormatPhone formats a phone number for display: 07X XXX XXXX
func (v *ContactValidator) FormatPhone(phone string) (string, error) {
	sanitized, err := v.ValidatePhone(phone)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", sanitized[0:3], sanitized[3:6], sanitized[6:10]), nil
}

// PhoneOperator returns the mobile operator for a phone number
func (v *ContactValidator) PhoneOperator(phone string) (string, error) {
	sanitized, err := v.ValidatePhone(phone)
	if err != nil {
		return "", err
	}
	return mobileOperators[sanitized[:3]], nil
}

// ValidateEmail checks an email address and returns it trimmed and lower-cased
func (v *ContactValidator) ValidateEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRegex.MatchString(email) {
		return "", ErrInvalidEmail
	}
	return email, nil
}
