package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

// AccessTokenValidity is how long an issued access token stays valid.
const AccessTokenValidity = time.Hour * 24

var ErrInvalidToken = errors.New("invalid token")

// GenerateToken signs an access token carrying the user id and role.
func GenerateToken(userID uint, role string, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not set")
	}
	claims := jwt.MapClaims{
		"id":   userID,
		"role": role,
		"exp":  time.Now().Add(AccessTokenValidity).Unix(),
		"iat":  time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateAndGetClaims parses and verifies a token, returning its claims.
func ValidateAndGetClaims(tokenString string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserIDFromClaims extracts the uint user id out of parsed claims.
func UserIDFromClaims(claims jwt.MapClaims) (uint, error) {
	idValue, ok := claims["id"]
	if !ok {
		return 0, ErrInvalidToken
	}
	idFloat, ok := idValue.(float64)
	if !ok {
		return 0, ErrInvalidToken
	}
	return uint(idFloat), nil
}
