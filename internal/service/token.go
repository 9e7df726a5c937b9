package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/assistmate/assistmate-backend/internal/pkg/apperror"
)

// IdentityClaims — проверенные утверждения токена identity-провайдера.
// Subject стабилен для пользователя и служит ключом автосоздания профиля.
type IdentityClaims struct {
	Subject   string
	Email     string
	Username  string
	FirstName string
	LastName  string
	Avatar    string
}

type tokenClaims struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar"`
	jwt.RegisteredClaims
}

// TokenVerifier проверяет подпись и срок действия токенов доступа.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier создаёт верификатор. issuer может быть пустым,
// тогда издатель токена не проверяется.
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify разбирает токен и возвращает утверждения пользователя.
func (v *TokenVerifier) Verify(tokenString string) (*IdentityClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, options...)
	if err != nil {
		return nil, fmt.Errorf("token verifier: %w: %s", apperror.ErrUnauthorized, err.Error())
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("token verifier: %w", apperror.ErrUnauthorized)
	}

	return &IdentityClaims{
		Subject:   claims.Subject,
		Email:     claims.Email,
		Username:  claims.Username,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Avatar:    claims.Avatar,
	}, nil
}
