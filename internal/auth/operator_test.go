package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestOperatorGatePlaintext(t *testing.T) {
	gate := NewOperatorGate("s3cret", "")

	if err := gate.Check("s3cret"); err != nil {
		t.Fatalf("Check(correct) error = %v", err)
	}
	for _, bad := range []string{"", "wrong", "s3cret ", "S3CRET"} {
		if err := gate.Check(bad); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("Check(%q) error = %v, want ErrInvalidCredential", bad, err)
		}
	}
}

func TestOperatorGateBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	gate := NewOperatorGate("", string(hash))

	if err := gate.Check("s3cret"); err != nil {
		t.Fatalf("Check(correct) error = %v", err)
	}
	if err := gate.Check("wrong"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Check(wrong) error = %v, want ErrInvalidCredential", err)
	}
}

func TestOperatorGateHashWinsOverPlaintext(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("hashed"), bcrypt.MinCost)
	gate := NewOperatorGate("plain", string(hash))

	if err := gate.Check("hashed"); err != nil {
		t.Fatalf("Check(hashed) error = %v", err)
	}
	// The plaintext secret is ignored once a hash is configured.
	if err := gate.Check("plain"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Check(plain) error = %v, want ErrInvalidCredential", err)
	}
}

func TestOperatorGateUnconfiguredDeniesAll(t *testing.T) {
	gate := NewOperatorGate("", "")
	for _, cred := range []string{"", "anything"} {
		if err := gate.Check(cred); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("Check(%q) error = %v, want ErrInvalidCredential", cred, err)
		}
	}
}
