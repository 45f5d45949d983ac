package exam

import (
	"github.com/volatiletech/null/v8"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core"
)

type (
	StudentScore struct {
		StudentID       string       `json:"student_id"`
		Name            string       `json:"name"`
		ClassID         string       `json:"class_id"`
		Marks           int          `json:"marks"` // number of numeric marks averaged
		AcademicAverage null.Float64 `json:"academic_average"`
		ConductAverage  null.Float64 `json:"conduct_average"`
		FinalScore      null.Float64 `json:"final_score"`
	}

	SubjectAverage struct {
		SubjectID    string       `json:"subject_id"`
		Average      null.Float64 `json:"average"` // null when nobody contributed
		Contributors int          `json:"contributors"`
	}

	WeightedSummary struct {
		ConductWeight null.Float64     `json:"conduct_weight"`
		Students      []StudentScore   `json:"students"`
		Subjects      []SubjectAverage `json:"subjects"`
	}
)

// WeightedInput gathers what Summarize reads.
type WeightedInput struct {
	ExamID     string
	Roster     []RosterEntry
	SubjectIDs []string
	Cells      CellSource
	Ledger     *Ledger
	// Conduct holds the raw scores per student, see ResolveConduct.
	Conduct map[string]ConductScores
	Schema  ConductSchema
	// Weight is the conduct weight (0-100) of the class; null when unset.
	Weight null.Float64
}

// Mean returns the arithmetic mean of `values`, null for an empty slice.
func Mean(values []float64) null.Float64 {
	if len(values) == 0 {
		return null.Float64{}
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return null.Float64From(sum / float64(len(values)))
}

// WeightedScore combines both averages:
//   final = academic*(1 - w/100) + conduct*(w/100)
// The academic average is returned unchanged when the weight is unset or zero or conduct is undefined.
// The result is null when the academic average is undefined.
func WeightedScore(academic, conduct, weight null.Float64) null.Float64 {
	if !academic.Valid {
		return null.Float64{}
	}
	if !weight.Valid || weight.Float64 <= 0 || !conduct.Valid {
		return academic
	}
	w := clamp(weight.Float64, 0, 100) / 100
	return null.Float64From(academic.Float64*(1-w) + conduct.Float64*w)
}

// Summarize computes every student's averages and final score and the class average of every subject.
// TH and opted-out cells never contribute to a mean.
func Summarize(in WeightedInput) WeightedSummary {
	summary := WeightedSummary{
		ConductWeight: in.Weight,
		Students:      make([]StudentScore, 0, len(in.Roster)),
		Subjects:      make([]SubjectAverage, 0, len(in.SubjectIDs)),
	}
	bySubject := make(map[string][]float64, len(in.SubjectIDs))

	for _, st := range in.Roster {
		marks := make([]float64, 0, len(in.SubjectIDs))
		for _, subjectID := range in.SubjectIDs {
			cell := resolveCell(in.ExamID, in.Cells, in.Ledger, st.StudentID, subjectID)
			if m, ok := cell.Numeric(); ok {
				marks = append(marks, m)
				bySubject[subjectID] = append(bySubject[subjectID], m)
			}
		}

		score := StudentScore{
			StudentID:       st.StudentID,
			Name:            st.Name,
			ClassID:         st.ClassID,
			Marks:           len(marks),
			AcademicAverage: Mean(marks),
		}
		if scores, ok := in.Conduct[st.StudentID]; ok {
			score.ConductAverage = ConductAverage(in.Schema, scores)
		}
		score.FinalScore = WeightedScore(score.AcademicAverage, score.ConductAverage, in.Weight)
		summary.Students = append(summary.Students, score)
	}

	for _, subjectID := range in.SubjectIDs {
		marks := bySubject[subjectID]
		summary.Subjects = append(summary.Subjects, SubjectAverage{
			SubjectID:    subjectID,
			Average:      Mean(marks),
			Contributors: len(marks),
		})
	}
	return summary
}

// Rounded returns a copy with every average rounded to one decimal place, for display.
func (s WeightedSummary) Rounded() WeightedSummary {
	students := make([]StudentScore, len(s.Students))
	for i, st := range s.Students {
		st.AcademicAverage = round1(st.AcademicAverage)
		st.ConductAverage = round1(st.ConductAverage)
		st.FinalScore = round1(st.FinalScore)
		students[i] = st
	}
	subjects := make([]SubjectAverage, len(s.Subjects))
	for i, sa := range s.Subjects {
		sa.Average = round1(sa.Average)
		subjects[i] = sa
	}
	s.Students = students
	s.Subjects = subjects
	return s
}

func round1(f null.Float64) null.Float64 {
	if !f.Valid {
		return f
	}
	return null.Float64From(core.Round1(f.Float64))
}
