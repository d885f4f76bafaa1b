// Package validation builds the request validator shared by the HTTP handlers.
package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// New returns a validator that reports JSON field names and understands
// decimal amounts through the dpositive, dnonnegative and dcents tags.
func New() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("dpositive", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && d.IsPositive()
	})
	_ = v.RegisterValidation("dnonnegative", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && !d.IsNegative()
	})

	// dcents rejects amounts with more than two significant decimal places.
	_ = v.RegisterValidation("dcents", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && d.Equal(d.Round(2))
	})

	return v
}

// Fields flattens a validation error into a map of field name to message.
// Errors that are not validator errors are reported under "_".
func Fields(err error) map[string]string {
	fields := make(map[string]string)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["_"] = err.Error()
		return fields
	}
	for _, e := range verrs {
		fields[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return fields
}
