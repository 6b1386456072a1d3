package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredential is reported without any further detail; the caller
// never learns whether the secret was close.
var ErrInvalidCredential = errors.New("invalid credential")

// OperatorGate checks the shared operator credential guarding destructive
// operations. Prefer the bcrypt hash form; the plaintext form exists for dev.
// With neither configured every check fails, which disables clear operations
// entirely.
type OperatorGate struct {
	secret string
	hash   string
}

// NewOperatorGate builds a gate from the configured secret and/or bcrypt hash.
func NewOperatorGate(secret, bcryptHash string) *OperatorGate {
	return &OperatorGate{secret: secret, hash: bcryptHash}
}

// Check validates a presented credential. Never mutates state.
func (g *OperatorGate) Check(credential string) error {
	if credential == "" {
		return ErrInvalidCredential
	}
	if g.hash != "" {
		if bcrypt.CompareHashAndPassword([]byte(g.hash), []byte(credential)) == nil {
			return nil
		}
		return ErrInvalidCredential
	}
	if g.secret != "" {
		if subtle.ConstantTimeCompare([]byte(g.secret), []byte(credential)) == 1 {
			return nil
		}
	}
	return ErrInvalidCredential
}
