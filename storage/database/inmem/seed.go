package inmemdb

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
)

// The Put* helpers write fixtures directly, bypassing faults and call counters.

func (db *DB) PutExam(exm exam.Exam) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if exm.CreatedAt.IsZero() {
		exm.CreatedAt = time.Now().UTC()
	}
	db.exams[exm.ID] = exm
}

func (db *DB) PutStudents(students ...exam.Student) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	for _, st := range students {
		db.students[st.ID] = st
	}
}

func (db *DB) PutScale(examID string, bands []exam.GradeBand) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.scales[examID] = append([]exam.GradeBand(nil), bands...)
}

func (db *DB) PutResult(r exam.SubjectResult) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.results[resultKey{r.ExamID, r.SubjectID, r.StudentID}] = r
}

func (db *DB) PutConduct(e exam.ConductEntry) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.conduct[conductKey{
		examID:    e.ExamID,
		teacherID: e.TeacherID,
		studentID: e.StudentID,
		subjectID: e.SubjectID.String,
		override:  !e.SubjectID.Valid,
	}] = e
}

func (db *DB) PutExclusion(e exam.ExclusionEntry) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.exclusions = append(db.exclusions, e)
}

func (db *DB) PutOptOut(o exam.SubjectOptOut) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.optOuts = append(db.optOuts, o)
}

// Result returns the stored result of a cell.
func (db *DB) Result(examID, subjectID, studentID string) (exam.SubjectResult, bool) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	r, ok := db.results[resultKey{examID, subjectID, studentID}]
	return r, ok
}

// Conduct returns the stored conduct entry of a teacher; a null subjectID selects the override entry.
func (db *DB) Conduct(examID, teacherID, studentID string, subjectID null.String) (exam.ConductEntry, bool) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	e, ok := db.conduct[conductKey{
		examID:    examID,
		teacherID: teacherID,
		studentID: studentID,
		subjectID: subjectID.String,
		override:  !subjectID.Valid,
	}]
	return e, ok
}

// Snapshot returns the captured roster of an exam.
func (db *DB) Snapshot(examID string) []exam.SnapshotEntry {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return append([]exam.SnapshotEntry(nil), db.snapshots[examID]...)
}
