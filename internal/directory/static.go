package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Static is an in-memory directory for dev and tests, loaded from a JSON
// blob mapping class ids to student entries:
//
//	{"cs101": [{"id":"s1","name":"Alice","index":"001"}]}
type Static struct {
	classes  map[string][]string
	students map[string]StudentInfo
}

// NewStatic builds a static directory from class → students.
func NewStatic(classes map[string][]StudentInfo) *Static {
	s := &Static{
		classes:  make(map[string][]string, len(classes)),
		students: make(map[string]StudentInfo),
	}
	for classID, infos := range classes {
		ids := make([]string, 0, len(infos))
		for _, info := range infos {
			ids = append(ids, info.ID)
			s.students[info.ID] = info
		}
		sort.Strings(ids)
		s.classes[classID] = ids
	}
	return s
}

// ParseStatic decodes the DIRECTORY_STATIC JSON format.
func ParseStatic(raw string) (*Static, error) {
	var classes map[string][]StudentInfo
	if err := json.Unmarshal([]byte(raw), &classes); err != nil {
		return nil, fmt.Errorf("static directory parse: %w", err)
	}
	return NewStatic(classes), nil
}

// EnrolledStudents returns the configured enrollment for a class.
func (s *Static) EnrolledStudents(_ context.Context, classID string) ([]string, error) {
	ids, ok := s.classes[classID]
	if !ok {
		return nil, fmt.Errorf("unknown class %s", classID)
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

// StudentInfo returns display attributes for a configured student.
func (s *Static) StudentInfo(_ context.Context, studentID string) (StudentInfo, error) {
	info, ok := s.students[studentID]
	if !ok {
		return StudentInfo{}, fmt.Errorf("unknown student %s", studentID)
	}
	return info, nil
}
