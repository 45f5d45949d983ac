package session

import (
	"github.com/volatiletech/null/v8"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
)

// Completion summarizes the active class: every allowed subject, unsaved edits included.
func (s *Session) Completion() (exam.CompletionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.activeDraftLocked(); err != nil {
		return exam.CompletionSummary{}, err
	}
	v := s.view
	return exam.TrackCompletion(exam.CompletionInput{
		ExamID:     v.exam.ID,
		Roster:     v.roster,
		SubjectIDs: v.subjects,
		Cells:      s.cellsLocked(v),
		Ledger:     v.ledger,
		Scale:      v.scale,
	}), nil
}

// Weighted computes the academic, conduct and final scores of the active class, unsaved edits included.
func (s *Session) Weighted() (exam.WeightedSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.activeDraftLocked(); err != nil {
		return exam.WeightedSummary{}, err
	}
	v := s.view
	return exam.Summarize(exam.WeightedInput{
		ExamID:     v.exam.ID,
		Roster:     v.roster,
		SubjectIDs: v.subjects,
		Cells:      s.cellsLocked(v),
		Ledger:     v.ledger,
		Conduct:    exam.ResolveConduct(s.conductLocked(v)),
		Schema:     v.exam.Conduct,
		Weight:     v.exam.ConductWeight(v.key.ClassID),
	}), nil
}

// cellsLocked reads fetched results, overlaid with the unsaved rows of every cached grid of the same class.
// The returned source must be used while s.mu is held.
func (s *Session) cellsLocked(v *view) exam.CellSource {
	return func(studentID, subjectID string) exam.Cell {
		key := Key{ExamID: v.key.ExamID, ClassID: v.key.ClassID, SubjectID: subjectID}
		if d, ok := s.drafts[key]; ok {
			if row, ok := d.index[studentID]; ok && d.resultDirty(row) {
				return row.cell
			}
		}
		return v.results[subjectID][studentID]
	}
}

// conductLocked returns the fetched conduct entries with unsaved conduct rows applied.
func (s *Session) conductLocked(v *view) []exam.ConductEntry {
	type entryKey struct {
		studentID string
		subjectID null.String
	}
	entries := make([]exam.ConductEntry, 0, len(v.conduct))
	index := make(map[entryKey]int, len(v.conduct))
	for _, e := range v.conduct {
		index[entryKey{e.StudentID, e.SubjectID}] = len(entries)
		entries = append(entries, e)
	}

	for key, d := range s.drafts {
		if !key.sameGrid(v.key) {
			continue
		}
		subjectID := null.NewString(key.SubjectID, !key.IsConductView())
		for _, row := range d.rows {
			if !d.conductDirty(row) {
				continue
			}
			k := entryKey{row.entry.StudentID, subjectID}
			if i, ok := index[k]; ok {
				entries[i].Scores = row.conduct
				continue
			}
			index[k] = len(entries)
			entries = append(entries, exam.ConductEntry{
				ExamID:    key.ExamID,
				TeacherID: s.teacherID,
				StudentID: row.entry.StudentID,
				SubjectID: subjectID,
				Scores:    row.conduct,
			})
		}
	}
	return entries
}

// recordSaved keeps the fetched data of the class in line with what a flush of `key` stored.
func (v *view) recordSaved(key Key, teacherID string, results []exam.ResultInput, conduct []exam.ConductInput) {
	if len(results) > 0 {
		cells, ok := v.results[key.SubjectID]
		if !ok {
			cells = make(map[string]exam.Cell, len(results))
			v.results[key.SubjectID] = cells
		}
		for _, r := range results {
			cells[r.StudentID] = exam.Cell{Mark: r.Mark, Absent: r.IsAbsent}.Normalize()
		}
	}

	for _, c := range conduct {
		found := false
		for i := range v.conduct {
			e := &v.conduct[i]
			if e.StudentID == c.StudentID && e.SubjectID == c.SubjectID {
				e.Scores = c.Scores
				found = true
				break
			}
		}
		if !found {
			v.conduct = append(v.conduct, exam.ConductEntry{
				ExamID:    key.ExamID,
				TeacherID: teacherID,
				StudentID: c.StudentID,
				SubjectID: c.SubjectID,
				Scores:    c.Scores,
			})
		}
	}
}
