package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

var reDigits = regexp.MustCompile(`^[0-9]+$`)

// ErrTranslatorNotFound indicates the requested translator is unavailable.
var ErrTranslatorNotFound = errors.New("translator not found")

// ValidationError maps JSON field names to a readable message.
type ValidationError map[string]string

func (vs ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}

	b, err := json.Marshal(vs)
	if err != nil {
		return fmt.Sprintf("validation error (failed to marshal: %v)", err)
	}
	return string(b)
}

// RequestValidator validates request structs with English messages keyed by
// the JSON field name.
type RequestValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func NewRequestValidator() (*RequestValidator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	enTrans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	if err := enTranslations.RegisterDefaultTranslations(validate, enTrans); err != nil {
		return nil, err
	}

	if err := registerCustomValidations(validate, enTrans); err != nil {
		return nil, err
	}

	return &RequestValidator{
		validate:   validate,
		translator: enTrans,
	}, nil
}

// Validate returns a ValidationError when data breaks any rule.
func (v *RequestValidator) Validate(data any) error {
	if err := v.validate.Struct(data); err != nil {
		var validateErrs validator.ValidationErrors
		if !errors.As(err, &validateErrs) {
			return err
		}

		fields := make(ValidationError, len(validateErrs))
		for _, fe := range validateErrs {
			fields[fe.Field()] = fe.Translate(v.translator)
		}
		return fields
	}

	return nil
}

func registerCustomValidations(validate *validator.Validate, enTrans ut.Translator) error {
	err := validate.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return reDigits.MatchString(strings.TrimSpace(s))
	})
	if err != nil {
		return err
	}

	return validate.RegisterTranslation("digits", enTrans,
		func(ut ut.Translator) error {
			return ut.Add("digits", "{0} must contain only digits", false)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, err := ut.T(fe.Tag(), fe.Field())
			if err != nil {
				return fe.(error).Error()
			}
			return t
		},
	)
}
