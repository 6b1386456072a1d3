package qr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"qrattend/internal/directory"
)

var (
	// ErrInvalidPayload means the scanned string is not one of ours. The
	// operator should just rescan.
	ErrInvalidPayload = errors.New("invalid scan payload")
	// ErrStudentNotEnrolled means the payload parsed but the student is not in
	// the class. An enrollment issue, not a scanning issue.
	ErrStudentNotEnrolled = errors.New("student not enrolled in class")
)

// Payload prefix identifying codes issued by this engine. Anything else is a
// foreign QR code.
const payloadPrefix = "ATTQR1:"

const maxStudentIDLen = 64

// Encode builds the payload embedded in a student's badge QR code.
func Encode(studentID string) string {
	return payloadPrefix + studentID
}

// parse extracts the student id from a payload, rejecting foreign or
// malformed strings.
func parse(payload string) (string, error) {
	rest, ok := strings.CutPrefix(payload, payloadPrefix)
	if !ok {
		return "", ErrInvalidPayload
	}
	if rest == "" || len(rest) > maxStudentIDLen {
		return "", ErrInvalidPayload
	}
	for _, r := range rest {
		if !validIDRune(r) {
			return "", ErrInvalidPayload
		}
	}
	return rest, nil
}

func validIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '.':
		return true
	}
	return false
}

// Resolver maps scanned payloads to enrolled student ids.
type Resolver struct {
	dir directory.Directory
}

// NewResolver creates a resolver backed by the enrollment directory.
func NewResolver(dir directory.Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve parses the payload and checks the claimed student against the
// class's enrollment. Parse failures and enrollment misses are distinct
// errors because the operator handles them differently.
func (r *Resolver) Resolve(ctx context.Context, payload, classID string) (string, error) {
	studentID, err := parse(payload)
	if err != nil {
		return "", err
	}
	enrolled, err := r.dir.EnrolledStudents(ctx, classID)
	if err != nil {
		return "", fmt.Errorf("enrollment lookup: %w", err)
	}
	for _, id := range enrolled {
		if id == studentID {
			return studentID, nil
		}
	}
	return "", ErrStudentNotEnrolled
}
