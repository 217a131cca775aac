package auth

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingHeader = errors.New("authorization header is missing")
	ErrHeaderFormat  = errors.New("authorization header format must be 'Bearer {token}'")
)

// ExtractTokenFromRequest extracts a bearer token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingHeader
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrHeaderFormat
	}

	return parts[1], nil
}
