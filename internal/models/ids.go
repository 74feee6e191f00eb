package models

import (
	"strings"

	"github.com/google/uuid"
)

// NormalizeUserID returns the canonical lowercase form of a UUID user id.
// Ids that do not parse are only trimmed; the store rejects them.
func NormalizeUserID(id string) string {
	id = strings.TrimSpace(id)
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return id
}

