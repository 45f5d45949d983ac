package exam

import (
	"context"
)

// Ledger answers membership questions about exclusions and subject opt-outs of one exam.
// A nil *Ledger has no entries.
type Ledger struct {
	examID     string
	exclusions []ExclusionEntry
	optOuts    map[string]map[string]bool // {studentID: {subjectID}}
}

func NewLedger(examID string, exclusions []ExclusionEntry, optOuts []SubjectOptOut) *Ledger {
	l := &Ledger{
		examID:  examID,
		optOuts: make(map[string]map[string]bool),
	}
	for _, e := range exclusions {
		if e.ExamID == examID {
			l.exclusions = append(l.exclusions, e)
		}
	}
	for _, o := range optOuts {
		if o.ExamID != examID {
			continue
		}
		subjects, ok := l.optOuts[o.StudentID]
		if !ok {
			subjects = make(map[string]bool)
			l.optOuts[o.StudentID] = subjects
		}
		subjects[o.SubjectID] = true
	}
	return l
}

// LoadLedger fetches the exclusions (scoped to classID when set) and every opt-out of the exam.
func LoadLedger(ctx context.Context, repo Repository, examID, classID string) (*Ledger, error) {
	if classID == AllClasses {
		classID = ""
	}
	exclusions, err := repo.FetchExclusions(ctx, examID, classID)
	if err != nil {
		return nil, NewFetchError("exclusions", err)
	}
	optOuts, err := repo.FetchSubjectOptOuts(ctx, examID, "")
	if err != nil {
		return nil, NewFetchError("subject opt-outs", err)
	}
	return NewLedger(examID, exclusions, optOuts), nil
}

// IsExcluded reports whether the student is removed from the exam.
// classID is the student's roster class: class-scoped entries only match it; an empty classID matches any entry.
func (l *Ledger) IsExcluded(examID, classID, studentID string) bool {
	if l == nil || examID != l.examID {
		return false
	}
	for _, e := range l.exclusions {
		if e.StudentID != studentID {
			continue
		}
		if !e.ClassID.Valid || classID == "" || e.ClassID.String == classID {
			return true
		}
	}
	return false
}

// OptedOutSubjects returns the set of subjects the student is exempt from.
func (l *Ledger) OptedOutSubjects(examID, studentID string) map[string]bool {
	set := make(map[string]bool)
	if l == nil || examID != l.examID {
		return set
	}
	for subjectID := range l.optOuts[studentID] {
		set[subjectID] = true
	}
	return set
}

func (l *Ledger) IsOptedOut(examID, subjectID, studentID string) bool {
	if l == nil || examID != l.examID {
		return false
	}
	return l.optOuts[studentID][subjectID]
}
