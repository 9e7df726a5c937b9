package validation

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinTitleLength       = 3
	MaxTitleLength       = 200
	MinDescriptionLength = 3
	MaxDescriptionLength = 5000
	MaxCategoryLength    = 100
	MaxReasonLength      = 1000
	MinMessageLength     = 1
	MaxMessageLength     = 5000
	MaxSearchLength      = 200

	// Радиус гео-поиска в километрах.
	DefaultRadiusKm = 10.0
	MaxRadiusKm     = 500.0

	MaxPaymentAmount = 100000000.0
)

// ValidateLength проверяет длину строки в рунах.
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

// ValidateCoordinate проверяет, что пара долгота/широта является валидной точкой.
func ValidateCoordinate(longitude, latitude float64) error {
	if math.IsNaN(longitude) || math.IsInf(longitude, 0) ||
		math.IsNaN(latitude) || math.IsInf(latitude, 0) {
		return fmt.Errorf("координаты должны быть конечными числами")
	}
	if longitude < -180 || longitude > 180 {
		return fmt.Errorf("долгота должна быть в диапазоне [-180, 180]")
	}
	if latitude < -90 || latitude > 90 {
		return fmt.Errorf("широта должна быть в диапазоне [-90, 90]")
	}
	return nil
}

// ValidateRadiusKm проверяет радиус поиска в километрах.
func ValidateRadiusKm(radius float64) error {
	if math.IsNaN(radius) || radius <= 0 {
		return fmt.Errorf("радиус должен быть положительным числом")
	}
	if radius > MaxRadiusKm {
		return fmt.Errorf("радиус не может превышать %.0f км", MaxRadiusKm)
	}
	return nil
}

// ValidatePaymentAmount проверяет сумму оплаты.
func ValidatePaymentAmount(amount float64) error {
	if math.IsNaN(amount) || amount < 0 {
		return fmt.Errorf("сумма оплаты не может быть отрицательной")
	}
	if amount > MaxPaymentAmount {
		return fmt.Errorf("сумма оплаты слишком велика")
	}
	return nil
}

// NormalizeText убирает лишние пробелы по краям строки.
func NormalizeText(s string) string {
	return strings.TrimSpace(s)
}
