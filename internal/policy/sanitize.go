package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

var sensitiveKeyMarkers = []string{
	"email", "phone", "address", "name", "aadhar", "pan", "password", "token", "secret",
	"apikey", "creditcard", "ssn", "bankaccount",
}

// Sanitizer hashes PII in audit payloads with a process-wide pepper
type Sanitizer struct {
	pepper string
}

// NewSanitizer creates a sanitizer using pepper (SECURITY_SALT)
func NewSanitizer(pepper string) *Sanitizer {
	return &Sanitizer{pepper: pepper}
}

// IsSensitiveKey reports whether a field name carries PII
func IsSensitiveKey(key string) bool {
	return containsAny(strings.ToLower(key), sensitiveKeyMarkers)
}

// Hash returns HASH_ followed by the first 12 hex chars of sha256(value || pepper)
func (s *Sanitizer) Hash(value string) string {
	sum := sha256.Sum256([]byte(value + s.pepper))
	return "HASH_" + hex.EncodeToString(sum[:])[:12]
}

// Sanitize returns a copy of values with sensitive fields hashed, recursing into nested maps and slices
func (s *Sanitizer) Sanitize(values map[string]interface{}) map[string]interface{} {
	if values == nil {
		return nil
	}
	out := make(map[string]interface{}, len(values))
	for key, value := range values {
		out[key] = s.sanitizeValue(value, IsSensitiveKey(key))
	}
	return out
}

func (s *Sanitizer) sanitizeValue(value interface{}, sensitive bool) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		return s.Sanitize(v)
	case []interface{}:
		items := make([]interface{}, len(v))
		for i, item := range v {
			items[i] = s.sanitizeValue(item, sensitive)
		}
		return items
	case []string:
		items := make([]interface{}, len(v))
		for i, item := range v {
			items[i] = s.sanitizeValue(item, sensitive)
		}
		return items
	}
	if !sensitive {
		return value
	}
	switch v := value.(type) {
	case string:
		return s.Hash(v)
	case *string:
		if v == nil {
			return nil
		}
		return s.Hash(*v)
	default:
		return s.Hash(fmt.Sprint(v))
	}
}
