package services

import (
	"regexp"
	"strings"

	"github.com/tesseract-hub/enquiry-service/internal/apperrors"
)

var (
	e164Pattern         = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	indianMobilePattern = regexp.MustCompile(`^[6-9]\d{9}$`)
	phoneSeparators     = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// NormalizeIndianMobile strips a +91 prefix and requires a 10-digit number starting with 6-9
func NormalizeIndianMobile(phone string) (string, error) {
	p := phoneSeparators.Replace(strings.TrimSpace(phone))
	switch {
	case strings.HasPrefix(p, "+91"):
		p = p[3:]
	case len(p) == 12 && strings.HasPrefix(p, "91"):
		p = p[2:]
	}
	if !indianMobilePattern.MatchString(p) {
		return "", apperrors.Validation("invalid mobile number",
			apperrors.Field("phone", "must be a 10-digit Indian mobile number starting with 6-9"))
	}
	return p, nil
}

// MaskEmail keeps the first character of the local part
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// MaskPhone keeps the last four digits
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
