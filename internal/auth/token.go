package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// RequestSubject extracts the subject claim from a request's bearer token
// without verifying the signature. It exists for audit logging of report
// runs when the OIDC middleware is disabled; it must never be used for
// authorization decisions.
func RequestSubject(r *http.Request) (string, error) {
	rawToken, err := ExtractTokenFromRequest(r)
	if err != nil {
		return "", err
	}

	token, _, err := new(jwt.Parser).ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("subject claim not found in token")
	}
	return sub, nil
}
