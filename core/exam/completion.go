package exam

import (
	"github.com/volatiletech/null/v8"
)

// CellSource returns the current state of a (student, subject) cell, unsaved edits included.
type CellSource func(studentID, subjectID string) Cell

type (
	SubjectCompletion struct {
		SubjectID string       `json:"subject_id"`
		Filled    int          `json:"filled"`
		Total     int          `json:"total"`
		Percent   null.Float64 `json:"percent"` // null for an empty roster
	}

	StudentCompletion struct {
		StudentID string         `json:"student_id"`
		Name      string         `json:"name"`
		ClassID   string         `json:"class_id"`
		Completed int            `json:"completed"`
		Missing   []string       `json:"missing"`
		Total     int            `json:"total"`
		Grades    map[string]int `json:"grades"`
	}

	CompletionSummary struct {
		Subjects []SubjectCompletion `json:"subjects"`
		Students []StudentCompletion `json:"students"`
		// Grades counts every graded cell of the class, per label.
		Grades map[string]int `json:"grades"`
	}
)

// CompletionInput gathers what TrackCompletion reads.
type CompletionInput struct {
	ExamID     string
	Roster     []RosterEntry
	SubjectIDs []string
	Cells      CellSource
	Ledger     *Ledger
	Scale      *GradingScale
}

// TrackCompletion classifies every (student, subject) cell as filled or missing.
// A cell is filled when it holds a finite mark, is TH, or the student opted out of the subject.
func TrackCompletion(in CompletionInput) CompletionSummary {
	summary := CompletionSummary{
		Subjects: make([]SubjectCompletion, 0, len(in.SubjectIDs)),
		Students: make([]StudentCompletion, 0, len(in.Roster)),
		Grades:   make(map[string]int),
	}
	filledBySubject := make(map[string]int, len(in.SubjectIDs))

	for _, st := range in.Roster {
		sc := StudentCompletion{
			StudentID: st.StudentID,
			Name:      st.Name,
			ClassID:   st.ClassID,
			Missing:   []string{},
			Total:     len(in.SubjectIDs),
			Grades:    make(map[string]int),
		}
		for _, subjectID := range in.SubjectIDs {
			cell := resolveCell(in.ExamID, in.Cells, in.Ledger, st.StudentID, subjectID)
			if !cell.Filled() {
				sc.Missing = append(sc.Missing, subjectID)
				continue
			}
			sc.Completed++
			filledBySubject[subjectID]++
			if grade := GradeCell(in.Scale, cell); grade != gradeUngraded {
				sc.Grades[grade]++
				summary.Grades[grade]++
			}
		}
		summary.Students = append(summary.Students, sc)
	}

	total := len(in.Roster)
	for _, subjectID := range in.SubjectIDs {
		c := SubjectCompletion{SubjectID: subjectID, Filled: filledBySubject[subjectID], Total: total}
		if total > 0 {
			c.Percent = null.Float64From(float64(c.Filled) / float64(total) * 100)
		}
		summary.Subjects = append(summary.Subjects, c)
	}
	return summary
}

// resolveCell applies the ledger's opt-outs on top of the cell source.
func resolveCell(examID string, cells CellSource, ledger *Ledger, studentID, subjectID string) Cell {
	var cell Cell
	if cells != nil {
		cell = cells(studentID, subjectID)
	}
	if ledger.IsOptedOut(examID, subjectID, studentID) {
		cell.OptedOut = true
	}
	return cell.Normalize()
}

// Rounded returns a copy with percentages rounded to one decimal place, for display.
func (s CompletionSummary) Rounded() CompletionSummary {
	subjects := make([]SubjectCompletion, len(s.Subjects))
	for i, c := range s.Subjects {
		c.Percent = round1(c.Percent)
		subjects[i] = c
	}
	s.Subjects = subjects
	return s
}
