package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Senegalese mobile numbers: +221 followed by an operator prefix
// (70/75/76/77/78) and seven digits.
var snPhonePattern = regexp.MustCompile(`^\+221(7[05678])\d{7}$`)

// RegisterValidations installs custom binding validators.
func RegisterValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("sn_phone", func(fl validator.FieldLevel) bool {
			return snPhonePattern.MatchString(fl.Field().String())
		})
	}
}
