package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// bcrypt 只处理 72 字节，validator 的 max 按字符计数
const maxPasswordBytes = 72

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("bcrypt_max", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	return v
}

// validateStruct 按结构体标签校验命令，转换成 ValidationError
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		reason := e.Tag()
		if e.Param() != "" {
			reason = fmt.Sprintf("%s=%s", e.Tag(), e.Param())
		}
		return newValidationError(e.Field(), "failed on '"+reason+"'")
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
