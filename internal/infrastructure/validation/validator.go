// Package validation implements the roster's field predicates with
// go-playground/validator and English messages.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/classbook/classbook/internal/domain/roster"
	"github.com/classbook/classbook/internal/domain/shared"
)

// Class labels accepted by the classlabel tag.
const (
	MinClass = 1
	MaxClass = 10
)

var (
	// custom validation tags & texts
	phoneTag   = "phone"
	phoneText  = "phone format should be 03XX-XXXXXXX"
	phoneRegex = regexp.MustCompile(`^\d{4}-\d{7}$`)

	classLabelTag  = "classlabel"
	classLabelText = "class must be a number from 1 to 10"

	alphaSpaceTag   = "alphaspace"
	alphaSpaceText  = "{0} can only contain letters and spaces"
	alphaSpaceRegex = regexp.MustCompile(`^[A-Za-z\s]+$`)

	notBlankTag = "notblank"

	requiredText = "{0} is required"
	minText      = "{0} must be at least {1} characters"
)

// studentInput is the tagged view of a roster.Student.
type studentInput struct {
	Name       string `json:"name" validate:"notblank,min=2,alphaspace"`
	FatherName string `json:"fatherName" validate:"notblank"`
	Phone      string `json:"phone" validate:"required,phone"`
	ClassName  string `json:"className" validate:"required,classlabel"`
}

// Validator checks student records. It implements roster.Validator.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

var _ roster.Validator = (*Validator)(nil)

// New builds a Validator with the custom tags and translations registered.
func New() *Validator {
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")

	validate := validator.New()
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(phoneTag, func(fl validator.FieldLevel) bool {
		return phoneRegex.MatchString(fl.Field().String())
	})
	registerTranslation(validate, translator, phoneTag, phoneText, false)

	_ = validate.RegisterValidation(classLabelTag, func(fl validator.FieldLevel) bool {
		return IsClassLabel(fl.Field().String())
	})
	registerTranslation(validate, translator, classLabelTag, classLabelText, false)

	_ = validate.RegisterValidation(alphaSpaceTag, func(fl validator.FieldLevel) bool {
		return alphaSpaceRegex.MatchString(fl.Field().String())
	})
	registerTranslation(validate, translator, alphaSpaceTag, alphaSpaceText, false)

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	registerTranslation(validate, translator, notBlankTag, requiredText, false)
	registerTranslation(validate, translator, "required", requiredText, true)

	_ = validate.RegisterTranslation("min", translator,
		func(t ut.Translator) error { return t.Add("min", minText, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T("min", fe.Field(), fe.Param())
			return s
		},
	)

	return &Validator{validate: validate, translator: translator}
}

// registerTranslation registers a message for tag with the field name as {0}.
func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// ValidateStudent returns every failing field, in struct order, with at
// most one message per field.
func (v *Validator) ValidateStudent(s roster.Student) []shared.FieldError {
	err := v.validate.Struct(studentInput{
		Name:       s.Name,
		FatherName: s.FatherName,
		Phone:      s.Phone,
		ClassName:  s.ClassName,
	})
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []shared.FieldError{{Field: "student", Message: err.Error()}}
	}

	fields := make([]shared.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, shared.FieldError{
			Field:   fe.Field(),
			Message: fe.Translate(v.translator),
		})
	}
	return fields
}

// IsClassLabel reports whether label is an integer between MinClass and MaxClass.
func IsClassLabel(label string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(label))
	return err == nil && n >= MinClass && n <= MaxClass
}
