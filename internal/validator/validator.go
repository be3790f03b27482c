package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/dealscout/dealscout/internal/models"
)

// Validator is a wrapper around the validator library.
type Validator struct {
	validate *validator.Validate
}

// New creates a new Validator instance.
func New() *Validator {
	return &Validator{
		validate: validator.New(),
	}
}

// ValidateStruct validates a struct based on its tags.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateRule checks a rule's tags plus the cross-field invariants the tags
// can't express: min price must not exceed max price (when max is bounded).
func (v *Validator) ValidateRule(r models.Rule) error {
	if err := v.ValidateStruct(r); err != nil {
		return err
	}
	if r.MaxPrice > 0 && r.MinPrice > r.MaxPrice {
		return fmt.Errorf("validation failed: min price %.2f exceeds max price %.2f", r.MinPrice, r.MaxPrice)
	}
	return nil
}
