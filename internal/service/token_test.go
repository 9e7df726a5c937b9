package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-identity-secret-for-verification-0123456789"

func issueToken(t *testing.T, secret string, claims tokenClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	verifier := NewTokenVerifier(testSecret, "assistmate-identity")

	raw := issueToken(t, testSecret, tokenClaims{
		Email:     "bob@example.com",
		FirstName: "Боб",
		LastName:  "Петров",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "provider-subject-42",
			Issuer:    "assistmate-identity",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := verifier.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "provider-subject-42", claims.Subject)
	assert.Equal(t, "bob@example.com", claims.Email)
	assert.Equal(t, "Боб", claims.FirstName)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	verifier := NewTokenVerifier(testSecret, "")

	raw := issueToken(t, "another-secret-entirely-0123456789abcdef", tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "provider-subject-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := verifier.Verify(raw)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	verifier := NewTokenVerifier(testSecret, "")

	raw := issueToken(t, testSecret, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "provider-subject-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := verifier.Verify(raw)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	verifier := NewTokenVerifier(testSecret, "assistmate-identity")

	raw := issueToken(t, testSecret, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "provider-subject-42",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := verifier.Verify(raw)
	assert.Error(t, err)
}

func TestVerifyRejectsEmptySubject(t *testing.T) {
	verifier := NewTokenVerifier(testSecret, "")

	raw := issueToken(t, testSecret, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := verifier.Verify(raw)
	assert.Error(t, err)
}
