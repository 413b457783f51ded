// Package auth builds the Basic-Auth headers used against the product API
// and resolves endpoint passwords from configuration or the system keyring.
package auth

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"prodfetch/pkg/config"
	"prodfetch/pkg/logger"
)

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)

// Headers returns the Authorization header for username/password.
// It returns nil when either value is empty, which disables the endpoint.
func Headers(username, password string) http.Header {
	if username == "" || password == "" {
		return nil
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	h := make(http.Header)
	h.Set("Authorization", "Basic "+encoded)
	return h
}

// PasswordSource looks up a stored password for an endpoint user
type PasswordSource interface {
	Password(endpoint, username string) (string, error)
}

// Resolver turns endpoint configuration into request headers
type Resolver struct {
	source PasswordSource
	logger logger.Logger
}

// NewResolver creates a resolver; source may be nil when no keyring is available
func NewResolver(source PasswordSource, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Resolver{source: source, logger: log}
}

// Headers returns the endpoint's auth headers, or nil if it has no usable credentials
func (r *Resolver) Headers(endpoint config.EndpointConfig) http.Header {
	username := strings.TrimSpace(endpoint.Username)
	password := endpoint.Password
	log := r.logger.WithField("endpoint", endpoint.Name)
	if username != "" {
		log = log.WithField("username", MaskString(username))
	}

	if username != "" && password == "" && r.source != nil {
		stored, err := r.source.Password(endpoint.Name, username)
		switch {
		case err == nil:
			password = stored
		case errors.Is(err, ErrCredentialsNotFound):
		default:
			log.WithError(err).Warn("Password lookup failed")
		}
	}

	headers := Headers(username, password)
	if headers == nil {
		log.Warn("Credentials missing, endpoint disabled")
	}
	return headers
}

// MaskString masks all but the first 2 and last 2 characters of a string
func MaskString(s string) string {
	if len(s) <= 6 {
		return "******"
	}
	return s[:2] + "..." + s[len(s)-2:]
}
