package validation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateLength(t *testing.T) {
	assert.NoError(t, ValidateLength("заголовок", "Помочь с переездом", MinTitleLength, MaxTitleLength))
	assert.Error(t, ValidateLength("заголовок", "аб", MinTitleLength, MaxTitleLength))

	// Длина считается в рунах, не в байтах.
	assert.NoError(t, ValidateLength("поле", "абв", 3, 3))
}

func TestValidateCoordinate(t *testing.T) {
	assert.NoError(t, ValidateCoordinate(77.5946, 12.9716))
	assert.NoError(t, ValidateCoordinate(-180, -90))
	assert.NoError(t, ValidateCoordinate(180, 90))

	assert.Error(t, ValidateCoordinate(181, 0))
	assert.Error(t, ValidateCoordinate(0, -91))
	assert.Error(t, ValidateCoordinate(math.NaN(), 0))
	assert.Error(t, ValidateCoordinate(0, math.Inf(1)))
}

func TestValidateRadiusKm(t *testing.T) {
	assert.NoError(t, ValidateRadiusKm(10))
	assert.NoError(t, ValidateRadiusKm(MaxRadiusKm))

	assert.Error(t, ValidateRadiusKm(0))
	assert.Error(t, ValidateRadiusKm(-5))
	assert.Error(t, ValidateRadiusKm(MaxRadiusKm+1))
	assert.Error(t, ValidateRadiusKm(math.NaN()))
}

func TestValidatePaymentAmount(t *testing.T) {
	assert.NoError(t, ValidatePaymentAmount(0))
	assert.NoError(t, ValidatePaymentAmount(20))

	assert.Error(t, ValidatePaymentAmount(-1))
	assert.Error(t, ValidatePaymentAmount(MaxPaymentAmount+1))
	assert.Error(t, ValidatePaymentAmount(math.NaN()))
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "текст", NormalizeText("  текст  "))
	assert.Equal(t, "", NormalizeText("   "))
}
