// ABOUTME: Mutation payload validation
// ABOUTME: Rejects malformed queue requests before they are persisted
package sync

import (
	"github.com/go-playground/validator/v10"

	"github.com/harperreed/cardsync/models"
)

var validate = validator.New()

// MutationRequest is the caller-facing shape of a queued mutation.
// Contact is required for create and update, absent for delete.
type MutationRequest struct {
	ContactID string          `validate:"required"`
	Action    string          `validate:"required,oneof=create update delete"`
	Contact   *models.Contact `validate:"required_unless=Action delete"`
}

// ValidateMutation checks a mutation request and returns a
// ValidationError describing the first problem found.
func ValidateMutation(req MutationRequest) error {
	if err := validate.Struct(req); err != nil {
		return &ValidationError{Reason: "mutation payload failed validation", Err: err}
	}

	if req.Contact != nil {
		if req.Contact.ID != req.ContactID {
			return &ValidationError{Reason: "payload contact ID does not match target contact ID"}
		}
		if len(req.Contact.Fields) == 0 {
			return &ValidationError{Reason: "payload contact has no fields"}
		}
		for _, f := range req.Contact.Fields {
			if f.Type == "" {
				return &ValidationError{Reason: "payload contact has a field with no type"}
			}
			if f.Confidence < 0 || f.Confidence > 1 {
				return &ValidationError{Reason: "field confidence must be between 0 and 1"}
			}
		}
	}

	return nil
}
