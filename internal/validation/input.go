package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MaxCancelReasonLength      = 255
	MaxStatusReasonLength      = 255
	MaxDisputeReasonLength     = 500
	MaxDisputeResolutionLength = 500
	MaxPaymentMethodLength     = 50
)

var currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateOptionalLength проверяет необязательное поле, если оно передано.
func ValidateOptionalLength(fieldName string, value *string, max int) error {
	if value == nil || *value == "" {
		return nil
	}
	return ValidateLength(fieldName, strings.TrimSpace(*value), 0, max)
}

// ValidateCurrency проверяет трёхбуквенный код валюты (ISO 4217).
func ValidateCurrency(currency string) error {
	if currency == "" {
		return nil
	}
	if !currencyRegex.MatchString(strings.ToUpper(strings.TrimSpace(currency))) {
		return fmt.Errorf("валюта должна быть трёхбуквенным кодом")
	}
	return nil
}

// ParseID разбирает положительный числовой идентификатор.
func ParseID(fieldName, raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("параметр %s обязателен", fieldName)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("параметр %s должен быть положительным числом", fieldName)
	}
	return id, nil
}
