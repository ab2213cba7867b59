package bom

import (
	"github.com/angelmondragon/buildmatch-client/pkg/apiclient"
	pkgerrors "github.com/angelmondragon/buildmatch-client/pkg/errors"
	"github.com/angelmondragon/buildmatch-client/pkg/validators"
	"github.com/shopspring/decimal"
)

// ItemViolation describes a rejected item field.
type ItemViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

var maxWasteFactor = decimal.NewFromInt(1)

// ValidateItem checks an item before it is posted.
func ValidateItem(req apiclient.AddBOMItemRequest) error {
	var violations []ItemViolation
	if validators.SanitizeString(req.VariantID, 0) == "" {
		violations = append(violations, ItemViolation{Field: "variant_id", Reason: "is required"})
	}
	if validators.SanitizeString(req.Unit, 0) == "" {
		violations = append(violations, ItemViolation{Field: "unit", Reason: "is required"})
	}
	if !req.Quantity.IsPositive() {
		violations = append(violations, ItemViolation{Field: "quantity", Reason: "must be greater than zero"})
	}
	if req.WasteFactor != nil && (req.WasteFactor.IsNegative() || req.WasteFactor.GreaterThanOrEqual(maxWasteFactor)) {
		violations = append(violations, ItemViolation{Field: "waste_factor", Reason: "must be at least 0 and below 1"})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid bom item").WithDetails(map[string]any{
		"violations": violations,
	})
}
