package session

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core"
)

var (
	cellFieldTag  = "cellfield"
	cellFieldText = "must be mark, absent or conduct.<dimension>"
)

// InitValidators registers the validation tags of grid edit payloads.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(cellFieldTag, cellFieldValidation)
	core.RegisterCustomTranslation(validate, translator, cellFieldTag, cellFieldText)
}

func cellFieldValidation(fl validator.FieldLevel) bool {
	_, err := ParseField(fl.Field().String())
	return err == nil
}
