package session

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
)

// Key identifies a grading grid: one subject of one class in one exam.
// An empty SubjectID selects the class' conduct override grid, which has no mark column.
type Key struct {
	ExamID    string `json:"exam_id"`
	ClassID   string `json:"class_id"`
	SubjectID string `json:"subject_id"`
}

func (k Key) String() string {
	return k.ExamID + "/" + k.ClassID + "/" + k.SubjectID
}

func (k Key) IsConductView() bool { return k.SubjectID == "" }

// sameGrid reports whether both keys are grids of the same exam and class.
func (k Key) sameGrid(o Key) bool {
	return k.ExamID == o.ExamID && k.ClassID == o.ClassID
}

// State of the autosave cycle of a Key.
type State string

const (
	StateIdle    State = "idle"
	StateEditing State = "editing"
	StateSaving  State = "saving"
	StateSaved   State = "saved"
	StateError   State = "error"
)

// Field is an editable column of a row.
type Field struct {
	Kind      FieldKind
	Dimension exam.Dimension // FieldConduct only
}

type FieldKind int

const (
	FieldMark FieldKind = iota
	FieldAbsent
	FieldConduct
)

const conductPrefix = "conduct."

// ParseField parses "mark", "absent" or "conduct.<dimension>".
func ParseField(name string) (Field, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch {
	case name == "mark":
		return Field{Kind: FieldMark}, nil
	case name == "absent":
		return Field{Kind: FieldAbsent}, nil
	case strings.HasPrefix(name, conductPrefix):
		dim, err := exam.ParseDimension(strings.TrimPrefix(name, conductPrefix))
		if err != nil {
			return Field{}, err
		}
		return Field{Kind: FieldConduct, Dimension: dim}, nil
	}
	return Field{}, errors.Errorf("unknown field %q", name)
}

func (f Field) String() string {
	switch f.Kind {
	case FieldMark:
		return "mark"
	case FieldAbsent:
		return "absent"
	}
	return conductPrefix + f.Dimension.String()
}
