package exam

import (
	"math"
	"time"

	"github.com/volatiletech/null/v8"
)

// Kind of assessment.
type Kind string

const (
	KindExam Kind = "exam"
	KindQuiz Kind = "quiz"
)

// StudentStatus is the enrollment status of a Student.
type StudentStatus string

const (
	StudentEnrolled    StudentStatus = "enrolled"
	StudentProspective StudentStatus = "prospective"
	StudentWithdrawn   StudentStatus = "withdrawn"
)

// AllClasses selects every class of an exam.
const AllClasses = "all"

// Sentinel grades
const (
	GradeAbsent   = "TH"  // student was absent; mark is null
	GradeOptedOut = "N/A" // student opted out of the subject
	gradeUngraded = ""

	minMark = 0.0
	maxMark = 100.0
)

type Exam struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Kind       Kind     `json:"kind"`
	ClassIDs   []string `json:"class_ids"`
	SubjectIDs []string `json:"subject_ids"`
	// Matrix optionally restricts the subjects of each class: {classID: [subjectID]}.
	Matrix map[string][]string `json:"matrix,omitempty"`
	// ConductWeights is the percentage (0-100) of the final score attributed to conduct, per class.
	ConductWeights map[string]float64 `json:"conduct_weights,omitempty"`
	Conduct        ConductSchema      `json:"conduct"`
	Released       bool               `json:"released"`
	CreatedAt      time.Time          `json:"created_at"`
}

func (e Exam) HasClass(classID string) bool {
	for _, id := range e.ClassIDs {
		if id == classID {
			return true
		}
	}
	return false
}

func (e Exam) HasSubject(subjectID string) bool {
	for _, id := range e.SubjectIDs {
		if id == subjectID {
			return true
		}
	}
	return false
}

// AllowedSubjects returns the subjects graded for `classID`, in exam subject order.
// Without a matrix entry for the class every exam subject is allowed.
func (e Exam) AllowedSubjects(classID string) []string {
	allowed, ok := e.Matrix[classID]
	if classID == "" || classID == AllClasses || !ok {
		return append([]string(nil), e.SubjectIDs...)
	}
	set := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		set[id] = true
	}
	subjects := make([]string, 0, len(allowed))
	for _, id := range e.SubjectIDs {
		if set[id] {
			subjects = append(subjects, id)
		}
	}
	return subjects
}

// ConductWeight returns the conduct weight configured for `classID`, null when unset.
func (e Exam) ConductWeight(classID string) null.Float64 {
	w, ok := e.ConductWeights[classID]
	if !ok {
		return null.Float64{}
	}
	return null.Float64From(clamp(w, minMark, maxMark))
}

type Student struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	ClassID string        `json:"class_id"`
	Status  StudentStatus `json:"status"`
}

func (s Student) IsEnrolled() bool {
	return s.Status == "" || s.Status == StudentEnrolled
}

// SnapshotEntry is a roster row captured once per exam; ClassID is the class at capture time.
type SnapshotEntry struct {
	ExamID    string    `json:"exam_id"`
	StudentID string    `json:"student_id"`
	ClassID   string    `json:"class_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RosterEntry is a row of a resolved roster.
type RosterEntry struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	ClassID   string `json:"class_id"`
}

type SubjectResult struct {
	ExamID    string       `json:"exam_id"`
	SubjectID string       `json:"subject_id"`
	StudentID string       `json:"student_id"`
	Mark      null.Float64 `json:"mark"`
	Grade     string       `json:"grade"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (r SubjectResult) IsAbsent() bool { return r.Grade == GradeAbsent }

// Cell returns the grid cell stored by this result.
func (r SubjectResult) Cell() Cell {
	if r.IsAbsent() {
		return Cell{Absent: true}
	}
	return Cell{Mark: r.Mark}
}

// ResultInput is one row of a SaveResults batch.
type ResultInput struct {
	StudentID string       `json:"student_id"`
	Mark      null.Float64 `json:"mark"`
	IsAbsent  bool         `json:"is_absent"`
	Grade     string       `json:"grade"`
}

type ConductEntry struct {
	ExamID    string `json:"exam_id"`
	TeacherID string `json:"teacher_id"`
	StudentID string `json:"student_id"`
	// SubjectID is null for the cross-subject override entry.
	SubjectID null.String   `json:"subject_id"`
	Scores    ConductScores `json:"scores"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (c ConductEntry) IsOverride() bool { return !c.SubjectID.Valid }

// ConductInput is one row of a SaveConductEntries batch.
type ConductInput struct {
	StudentID string        `json:"student_id"`
	SubjectID null.String   `json:"subject_id"`
	Scores    ConductScores `json:"scores"`
}

// ExclusionEntry removes a student from an exam; a null ClassID applies to every class.
type ExclusionEntry struct {
	ExamID    string      `json:"exam_id"`
	ClassID   null.String `json:"class_id"`
	StudentID string      `json:"student_id"`
}

// SubjectOptOut exempts a student from one subject of an exam.
type SubjectOptOut struct {
	ExamID    string `json:"exam_id"`
	SubjectID string `json:"subject_id"`
	StudentID string `json:"student_id"`
}

// Cell is the state of one (student, subject) grid cell.
// At most one of Mark, Absent and OptedOut is meaningful: OptedOut wins over Absent, Absent over Mark.
type Cell struct {
	Mark     null.Float64 `json:"mark"`
	Absent   bool         `json:"absent"`
	OptedOut bool         `json:"opted_out"`
}

// Normalize enforces the one-status-per-cell rule.
func (c Cell) Normalize() Cell {
	switch {
	case c.OptedOut:
		return Cell{OptedOut: true}
	case c.Absent:
		return Cell{Absent: true}
	}
	return c
}

// Filled reports whether nothing is left for a human to enter in the cell.
func (c Cell) Filled() bool {
	return c.OptedOut || c.Absent || hasFiniteMark(c.Mark)
}

// Numeric returns the mark when the cell contributes to averages.
func (c Cell) Numeric() (float64, bool) {
	if c.OptedOut || c.Absent || !hasFiniteMark(c.Mark) {
		return 0, false
	}
	return c.Mark.Float64, true
}

func hasFiniteMark(m null.Float64) bool {
	return m.Valid && !math.IsNaN(m.Float64) && !math.IsInf(m.Float64, 0)
}

func clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
