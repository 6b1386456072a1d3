package directory

import "context"

// StudentInfo carries display attributes for roster rendering. Not
// authoritative for engine logic.
type StudentInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Index string `json:"index"`
}

// Directory is the external enrollment collaborator. The engine only reads
// from it: who belongs to a class, and how to display a student.
type Directory interface {
	EnrolledStudents(ctx context.Context, classID string) ([]string, error)
	StudentInfo(ctx context.Context, studentID string) (StudentInfo, error)
}
