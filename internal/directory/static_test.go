package directory

import (
	"context"
	"testing"
)

func TestParseStatic(t *testing.T) {
	raw := `{"cs101": [{"id":"s1","name":"Alice","index":"001"},{"id":"s2","name":"Bob","index":"002"}]}`
	dir, err := ParseStatic(raw)
	if err != nil {
		t.Fatalf("ParseStatic() error = %v", err)
	}
	ctx := context.Background()

	students, err := dir.EnrolledStudents(ctx, "cs101")
	if err != nil {
		t.Fatalf("EnrolledStudents() error = %v", err)
	}
	if len(students) != 2 {
		t.Fatalf("enrollment size = %d, want 2", len(students))
	}

	info, err := dir.StudentInfo(ctx, "s1")
	if err != nil {
		t.Fatalf("StudentInfo() error = %v", err)
	}
	if info.Name != "Alice" || info.Index != "001" {
		t.Fatalf("StudentInfo() = %+v", info)
	}

	if _, err := dir.EnrolledStudents(ctx, "unknown"); err == nil {
		t.Fatal("unknown class should error")
	}
	if _, err := dir.StudentInfo(ctx, "ghost"); err == nil {
		t.Fatal("unknown student should error")
	}
}

func TestParseStaticRejectsGarbage(t *testing.T) {
	if _, err := ParseStatic("not json"); err == nil {
		t.Fatal("expected parse error")
	}
}
