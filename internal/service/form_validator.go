package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FormValidator validates form drafts and renders one message per field,
// keyed by the field's JSON name.
type FormValidator struct {
	validate *validator.Validate
}

// NewFormValidator configures validator/v10 to report JSON field names.
func NewFormValidator() *FormValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonName)
	return &FormValidator{validate: v}
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// Validate checks every field of draft and returns the failures. An empty map
// means the draft is valid.
func (v *FormValidator) Validate(draft interface{}) map[string]string {
	errs := map[string]string{}
	err := v.validate.Struct(draft)
	if err == nil {
		return errs
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs["_form"] = "Form could not be validated"
		return errs
	}

	t := reflect.TypeOf(draft)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	for _, fe := range fieldErrs {
		if _, seen := errs[fe.Field()]; seen {
			continue
		}
		errs[fe.Field()] = message(fe, t)
	}
	return errs
}

// FieldNames returns the JSON names of the fields of draft's struct type.
func FieldNames(draft interface{}) map[string]struct{} {
	t := reflect.TypeOf(draft)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	names := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if name := jsonName(f); name != "" {
			names[name] = struct{}{}
		}
	}
	return names
}

// FormFields converts submitted form text into JSON values for draft's
// fields. Text fields always receive the text as written. Other fields take
// the text as a JSON literal when it is one; blank text becomes null.
func FormFields(draft interface{}, values map[string]string) map[string]json.RawMessage {
	t := reflect.TypeOf(draft)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	kinds := make(map[string]reflect.Kind, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		ft := f.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if name := jsonName(f); name != "" {
			kinds[name] = ft.Kind()
		}
	}

	fields := make(map[string]json.RawMessage, len(values))
	for name, text := range values {
		kind, known := kinds[name]
		trimmed := strings.TrimSpace(text)
		switch {
		case !known || kind == reflect.String:
		case trimmed == "":
			fields[name] = json.RawMessage("null")
			continue
		case json.Valid([]byte(trimmed)) && !strings.HasPrefix(trimmed, `"`):
			fields[name] = json.RawMessage(trimmed)
			continue
		}
		quoted, _ := json.Marshal(text)
		fields[name] = quoted
	}
	return fields
}

func label(t reflect.Type, structField string) string {
	if f, ok := t.FieldByName(structField); ok {
		if l := f.Tag.Get("label"); l != "" {
			return l
		}
	}
	return structField
}

func message(fe validator.FieldError, t reflect.Type) string {
	name := label(t, fe.StructField())
	isText := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", name)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", name)
	case "min":
		if isText {
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		if isText {
			return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "gtfield":
		return fmt.Sprintf("%s must be after %s", name, label(t, fe.Param()))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", name)
	}
}
