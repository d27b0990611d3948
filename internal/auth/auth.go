// Package auth decides whether a destructive action may proceed.
package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Authorizer is the single policy check consulted before destructive actions
// such as deleting a budget that already has spend recorded against it.
type Authorizer interface {
	AuthorizeDestructiveAction(token string) bool
}

// AuthorizerFunc adapts a plain function to Authorizer.
type AuthorizerFunc func(token string) bool

func (f AuthorizerFunc) AuthorizeDestructiveAction(token string) bool { return f(token) }

// DenyAll rejects every token. It is the default when no PIN is configured.
var DenyAll Authorizer = AuthorizerFunc(func(string) bool { return false })

// PINAuthorizer accepts a token whose bcrypt hash matches the configured one.
type PINAuthorizer struct {
	hash []byte
}

// NewPINAuthorizer validates hash and returns an authorizer for it.
func NewPINAuthorizer(hash string) (*PINAuthorizer, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, errors.New("empty PIN hash")
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, err
	}
	return &PINAuthorizer{hash: []byte(hash)}, nil
}

func (a *PINAuthorizer) AuthorizeDestructiveAction(token string) bool {
	if token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(token)) == nil
}

// FromHash returns a PINAuthorizer for hash, or DenyAll when hash is empty or
// malformed.
func FromHash(hash string) Authorizer {
	a, err := NewPINAuthorizer(hash)
	if err != nil {
		return DenyAll
	}
	return a
}

// HashPIN hashes pin for storage in the config file.
func HashPIN(pin string) (string, error) {
	if len(strings.TrimSpace(pin)) < 4 {
		return "", errors.New("PIN must have at least 4 characters")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	return string(b), err
}
