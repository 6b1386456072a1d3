package qr

import (
	"context"
	"errors"
	"strings"
	"testing"

	"qrattend/internal/directory"
)

type fakeDirectory struct {
	enrolled map[string][]string
	err      error
}

func (f *fakeDirectory) EnrolledStudents(_ context.Context, classID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.enrolled[classID], nil
}

func (f *fakeDirectory) StudentInfo(_ context.Context, studentID string) (directory.StudentInfo, error) {
	return directory.StudentInfo{ID: studentID}, nil
}

func TestResolve(t *testing.T) {
	dir := &fakeDirectory{enrolled: map[string][]string{
		"cs101": {"alice", "bob"},
	}}
	r := NewResolver(dir)

	tests := []struct {
		name    string
		payload string
		classID string
		want    string
		wantErr error
	}{
		{"enrolled student", Encode("alice"), "cs101", "alice", nil},
		{"second student", Encode("bob"), "cs101", "bob", nil},
		{"not enrolled", Encode("carol"), "cs101", "", ErrStudentNotEnrolled},
		{"foreign payload", "https://example.com/menu", "cs101", "", ErrInvalidPayload},
		{"missing prefix", "alice", "cs101", "", ErrInvalidPayload},
		{"empty id", "ATTQR1:", "cs101", "", ErrInvalidPayload},
		{"bad charset", "ATTQR1:al ice", "cs101", "", ErrInvalidPayload},
		{"sql-ish id", "ATTQR1:a';--", "cs101", "", ErrInvalidPayload},
		{"oversized id", "ATTQR1:" + strings.Repeat("a", 65), "cs101", "", ErrInvalidPayload},
		{"empty payload", "", "cs101", "", ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), tt.payload, tt.classID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveDirectoryFailure(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("directory down")}
	r := NewResolver(dir)

	_, err := r.Resolve(context.Background(), Encode("alice"), "cs101")
	if err == nil {
		t.Fatal("expected error when directory is unavailable")
	}
	if errors.Is(err, ErrInvalidPayload) || errors.Is(err, ErrStudentNotEnrolled) {
		t.Fatalf("directory failure must not masquerade as a validation error, got %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	id, err := parse(Encode("student-42"))
	if err != nil {
		t.Fatalf("parse(Encode()) error = %v", err)
	}
	if id != "student-42" {
		t.Fatalf("round trip = %q, want student-42", id)
	}
}

func TestBadgePNG(t *testing.T) {
	png, err := BadgePNG("alice", 0)
	if err != nil {
		t.Fatalf("BadgePNG() error = %v", err)
	}
	if len(png) == 0 {
		t.Fatal("BadgePNG() returned empty image")
	}
}
