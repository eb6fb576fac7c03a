package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/LsSens/backend-ecommerce/internal/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	cnpjPattern       = regexp.MustCompile(`^\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}$`)
	brandColorPattern = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)
)

// 字段值不回显到错误列表里
var secretFields = map[string]bool{"password": true}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误里使用 JSON 字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("cnpj", func(fl validator.FieldLevel) bool {
		return cnpjPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("brandcolor", func(fl validator.FieldLevel) bool {
		return brandColorPattern.MatchString(fl.Field().String())
	})
	return v
}

// validateStruct runs the struct tags of req and converts failures into one 400 listing every field.
func validateStruct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Internal("service.validate", err)
	}
	details := make([]apperr.Detail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldDetail(fe))
	}
	return apperr.Invalid("validation failed", details...)
}

func fieldDetail(fe validator.FieldError) apperr.Detail {
	d := apperr.Detail{Field: fieldPath(fe), Code: fe.Tag(), Message: fieldMessage(fe)}
	if fe.Kind() == reflect.String && !secretFields[fe.Field()] {
		d.Value = fmt.Sprint(fe.Value())
	}
	return d
}

// fieldPath drops the request type name: "deliveryAddress.street", "customizations.colors[1]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	unit := ""
	switch fe.Kind() {
	case reflect.String:
		unit = " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		unit = " items"
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "uuid", "uuid4":
		return "must be a valid id"
	case "min":
		return fmt.Sprintf("must have at least %s%s", fe.Param(), unit)
	case "max":
		return fmt.Sprintf("must have at most %s%s", fe.Param(), unit)
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "cnpj":
		return "must be in the format NN.NNN.NNN/NNNN-NN"
	case "brandcolor":
		return "must be a hex color (#RGB or #RRGGBB)"
	}
	return "is invalid"
}

// nonNegative reports a money field below zero; validator cannot see inside decimal.Decimal.
func nonNegative(field string, d *decimal.Decimal) []apperr.Detail {
	if d == nil || !d.IsNegative() {
		return nil
	}
	return []apperr.Detail{{Field: field, Code: "gte", Message: "must be at least 0", Value: d.String()}}
}

// mergeInvalid folds extra field details into the error returned by validateStruct.
func mergeInvalid(err error, extra []apperr.Detail) error {
	if len(extra) == 0 {
		return err
	}
	details := append(apperr.ErrorDetails(err), extra...)
	return apperr.Invalid("validation failed", details...)
}
