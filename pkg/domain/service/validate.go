package service

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"distribution/pkg/domain/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	// Decimals are validated through their exact string form.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	mustRegister(v, "nonneg", func(d decimal.Decimal) bool { return !d.IsNegative() })
	mustRegister(v, "gt0", func(d decimal.Decimal) bool { return d.IsPositive() })
	mustRegister(v, "percent", func(d decimal.Decimal) bool {
		return !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(100)) && model.WithinScale(d, model.PercentScale)
	})
	mustRegister(v, "money", func(d decimal.Decimal) bool {
		return model.WithinScale(d, model.MoneyScale) && d.Abs().LessThan(model.MaxMoney)
	})
	mustRegister(v, "quantity", func(d decimal.Decimal) bool {
		return model.WithinScale(d, model.QuantityScale) && d.Abs().LessThan(model.MaxQuantity)
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, check func(decimal.Decimal) bool) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && check(d)
	})
	if err != nil {
		panic(err)
	}
}

// validateInput maps the first failing rule to a *model.ValidationError.
func validateInput(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return errors.Wrap(err, "validate input")
	}
	fe := fieldErrors[0]
	return model.NewValidationError(fieldPath(fe), reason(fe))
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s element(s)", fe.Param())
	case "nonneg":
		return "must be non-negative"
	case "gt0":
		return "must be positive"
	case "percent":
		return fmt.Sprintf("must be between 0 and 100 with at most %d decimal places", model.PercentScale)
	case "money":
		return fmt.Sprintf("must have at most %d decimal places and be below %s", model.MoneyScale, model.MaxMoney)
	case "quantity":
		return fmt.Sprintf("must have at most %d decimal places and be below %s", model.QuantityScale, model.MaxQuantity)
	default:
		return "failed " + fe.Tag() + " check"
	}
}
