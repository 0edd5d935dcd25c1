package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate 按结构体标签校验配置，再检查标签无法表达的规则
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if cfg.Messaging.Provider == "kafka" && len(cfg.Messaging.Kafka.Brokers) == 0 {
		return errors.New("messaging.kafka.brokers: at least one broker is required when provider is kafka")
	}
	return nil
}

// 只返回第一个失败字段
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
