package validation

import (
	"strings"

	"twitsnap/internal/models"

	"github.com/google/uuid"
)

// ValidateSnapID checks that id is a UUID, reporting failures against field.
func ValidateSnapID(field, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", models.NewValidationError(field, "Twit ID required!")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", models.NewValidationError(field, "Invalid UUID")
	}
	return parsed.String(), nil
}
