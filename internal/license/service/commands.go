package service

import (
	"strings"

	"clinictrack/internal/license/models"
	dErrors "clinictrack/pkg/domain-errors"
)

// GenerateCommand requests a new pending license.
type GenerateCommand struct {
	Kind     models.Kind
	MaxUsers *int // overrides the kind preset when set
	Notes    string
}

func (c *GenerateCommand) Validate() error {
	kind, err := models.ParseKind(string(c.Kind))
	if err != nil {
		return err
	}
	c.Kind = kind
	if c.MaxUsers != nil && *c.MaxUsers < 1 {
		return dErrors.New(dErrors.CodeValidation, "max users must be at least 1")
	}
	c.Notes = strings.TrimSpace(c.Notes)
	return nil
}

// GenerateResult carries the plaintext key, which is never retrievable again.
type GenerateResult struct {
	Key     string
	License *models.License
}

// ValidationResult is the answer to a redeemability check. License is nil
// when the key is unknown.
type ValidationResult struct {
	Outcome models.Outcome
	License *models.License
}
