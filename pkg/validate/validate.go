// Package validate checks tagged input structs with go-playground/validator
// and converts failures into apperr validation errors carrying per-field
// reasons.
package validate

import (
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/salonkit/billingcore/pkg/apperr"
)

// Validator is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// New returns a validator that understands decimal.Decimal fields, so money
// can be checked with the numeric tags (gte=0, gt=0).
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return &Validator{v: v}
}

// Struct validates s. Failures come back as an apperr validation error whose
// Fields map names each offending field and the rule it broke.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.ValidationWrap(err, "invalid input")
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[fe.Field()] = rule
	}
	return apperr.ValidationFields(err, fields)
}
