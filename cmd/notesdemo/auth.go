package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoBearerToken = errors.New("no bearer token")

// RequireBearer rejects requests without a valid HS256 bearer token signed with secret.
func RequireBearer(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := verifyBearer(r, secret); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="notes"`)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func verifyBearer(r *http.Request, secret []byte) (*jwt.RegisteredClaims, error) {
	auths := strings.Fields(r.Header.Get("Authorization"))
	if len(auths) != 2 || auths[0] != "Bearer" {
		return nil, ErrNoBearerToken
	}
	claims := new(jwt.RegisteredClaims)
	_, err := jwt.ParseWithClaims(auths[1], claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func IssueToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}).SignedString(secret)
}
