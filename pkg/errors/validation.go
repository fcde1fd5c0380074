package errors

import (
	"strings"
	"unicode"
)

// maxIDLength bounds entity identifiers.
const maxIDLength = 256

// ValidateID validates a node, edge, port or label identifier.
//
// The validation rules are intentionally conservative:
//   - No empty ids
//   - No control characters
//   - No ':' (reserved for compound port keys such as "node:port")
//   - Maximum length of 256 characters
func ValidateID(kind, id string) error {
	if id == "" {
		return New(ErrCodeInvalidID, "%s id cannot be empty", kind)
	}

	if len(id) > maxIDLength {
		return New(ErrCodeInvalidID, "%s id too long (max %d characters)", kind, maxIDLength)
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidID, "%s id %q contains invalid control characters", kind, id)
		}
	}

	if strings.Contains(id, ":") {
		return New(ErrCodeInvalidID, "%s id %q cannot contain ':'", kind, id)
	}

	return nil
}

// ValidateUniqueIDs validates every id and rejects duplicates within ids.
func ValidateUniqueIDs(kind string, ids []string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if err := ValidateID(kind, id); err != nil {
			return err
		}
		if seen[id] {
			return New(ErrCodeInvalidID, "duplicate %s id: %q", kind, id)
		}
		seen[id] = true
	}
	return nil
}

// ValidateFraction validates a value that must lie in [0, 1], such as a
// label's position along its edge.
func ValidateFraction(name string, v float64) error {
	if v < 0 || v > 1 {
		return New(ErrCodeInvalidInput, "%s must be between 0 and 1, got %v", name, v)
	}
	return nil
}
