package assumption

import (
	"errors"
	"fmt"
	"strings"

	"deal_engine/pkg/models"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidAssumptions is wrapped by every validation failure.
var ErrInvalidAssumptions = errors.New("invalid assumptions")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		a := sl.Current().Interface().(models.Assumptions)
		if a.DownPaymentPct+a.SellerFinancingPct > 1 {
			sl.ReportError(a.SellerFinancingPct, "SellerFinancingPct", "SellerFinancingPct", "equity_plus_seller_lte_1", "")
		}
	}, models.Assumptions{})
	return v
}

// FieldViolation is one rejected field.
type FieldViolation struct {
	Field string      `json:"field"`
	Rule  string      `json:"rule"`
	Value interface{} `json:"value"`
}

// ValidationError lists every rejected field of an assumption set.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s failed '%s' (got %v)", v.Field, v.Rule, v.Value))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidAssumptions, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidAssumptions
}

// Validate rejects assumption sets that would corrupt every downstream number:
// negative prices or rates, percentages outside [0,1], an exit year outside
// 3..7, or equity plus seller note above 100%.
func Validate(a models.Assumptions) error {
	err := validate.Struct(a)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidAssumptions, err)
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Violations = append(out.Violations, FieldViolation{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Value: fe.Value(),
		})
	}
	return out
}
