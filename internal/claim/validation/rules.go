package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/nanolite/internal/imageingest"
)

const DateLayout = "2006-01-02"

var imageDataURL = regexp.MustCompile(`(?i)^data:image/(png|jpe?g|webp);base64,`)

// newStructValidator returns a validator that reports JSON field names and
// knows the claim specific tags.
func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	mustRegister(v, customRules)
	return v
}

var customRules = map[string]validator.Func{
	"image_ref": validateImageRef,
	"ymd":       validateDate,
}

func mustRegister(v *validator.Validate, rules map[string]validator.Func) {
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("validation: register %q: %v", tag, err))
		}
	}
}

// validateImageRef accepts png, jpeg and webp data URLs and stored paths.
func validateImageRef(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if s == "" {
		return false
	}
	if imageingest.IsDataURL(s) || strings.HasPrefix(strings.ToLower(s), "data:") {
		return imageDataURL.MatchString(s)
	}
	return true
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(DateLayout, fl.Field().String())
	return err == nil
}

// ParseDate parses a YYYY-MM-DD payload date.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func translate(fe validator.FieldError) FieldError {
	field := fieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return FieldError{Field: field, Code: CodeRequired, Message: field + " is required"}
	case "min":
		if fe.Kind() == reflect.Slice {
			return FieldError{Field: field, Code: CodeRequired, Message: field + " needs at least " + fe.Param() + " item(s)"}
		}
		if fe.Kind() == reflect.String {
			return FieldError{Field: field, Code: CodeTooShort, Message: field + " must be at least " + fe.Param() + " characters"}
		}
		return FieldError{Field: field, Code: CodeInvalid, Message: field + " must be at least " + fe.Param()}
	case "max":
		if fe.Kind() == reflect.String {
			return FieldError{Field: field, Code: CodeTooLong, Message: field + " must be at most " + fe.Param() + " characters"}
		}
		return FieldError{Field: field, Code: CodeInvalid, Message: field + " must be at most " + fe.Param()}
	case "oneof":
		return FieldError{Field: field, Code: CodeInvalid, Message: field + " must be one of " + fe.Param()}
	case "ymd":
		return FieldError{Field: field, Code: CodeInvalidDate, Message: field + " must be a YYYY-MM-DD date"}
	case "image_ref":
		return FieldError{Field: field, Code: CodeInvalidImage, Message: field + " must be a png, jpg or webp data URL or a stored path"}
	default:
		return FieldError{Field: field, Code: CodeInvalid, Message: field + " is invalid"}
	}
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
