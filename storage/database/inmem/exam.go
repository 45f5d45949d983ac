package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
)

type examRepository struct {
	db *DB
}

func NewExamRepository(db *DB) exam.Repository {
	return &examRepository{db: db}
}

func (repo *examRepository) FetchExam(ctx context.Context, examID string) (exam.Exam, error) {
	if err := repo.db.enter(ctx, OpFetchExam); err != nil {
		return exam.Exam{}, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if exm, ok := repo.db.exams[examID]; ok {
		return exm, nil
	}
	return exam.Exam{}, exam.ErrNotFound
}

func (repo *examRepository) FetchSnapshotRoster(ctx context.Context, examID string) ([]exam.SnapshotEntry, error) {
	if err := repo.db.enter(ctx, OpFetchSnapshot); err != nil {
		return nil, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return append([]exam.SnapshotEntry(nil), repo.db.snapshots[examID]...), nil
}

func (repo *examRepository) SaveSnapshotRoster(ctx context.Context, examID string, entries []exam.SnapshotEntry) error {
	if err := repo.db.enter(ctx, OpSaveSnapshot); err != nil {
		return err
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	existing := repo.db.snapshots[examID]
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[e.StudentID] = true
	}
	now := time.Now().UTC()
	for _, e := range entries {
		if seen[e.StudentID] {
			continue
		}
		seen[e.StudentID] = true
		e.ExamID = examID
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		existing = append(existing, e)
	}
	repo.db.snapshots[examID] = existing
	return nil
}

func (repo *examRepository) FetchLiveRoster(ctx context.Context, classID string) ([]exam.Student, error) {
	if err := repo.db.enter(ctx, OpFetchLiveRoster); err != nil {
		return nil, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]exam.Student, 0)
	for _, st := range repo.db.students {
		if classID == exam.AllClasses || st.ClassID == classID {
			students = append(students, st)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students, nil
}

func (repo *examRepository) FetchStudentsByID(ctx context.Context, ids []string) ([]exam.Student, error) {
	if err := repo.db.enter(ctx, OpFetchStudents); err != nil {
		return nil, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]exam.Student, 0, len(ids))
	for _, id := range ids {
		if st, ok := repo.db.students[id]; ok {
			students = append(students, st)
		}
	}
	return students, nil
}

func (repo *examRepository) FetchExclusions(ctx context.Context, examID, classID string) ([]exam.ExclusionEntry, error) {
	if err := repo.db.enter(ctx, OpFetchExclusions); err != nil {
		return nil, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]exam.ExclusionEntry, 0)
	for _, e := range repo.db.exclusions {
		if e.ExamID != examID {
			continue
		}
		if classID != "" && e.ClassID.Valid && e.ClassID.String != classID {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (repo *examRepository) FetchSubjectOptOuts(ctx context.Context, examID, subjectID string) ([]exam.SubjectOptOut, error) {
	if err := repo.db.enter(ctx, OpFetchOptOuts); err != nil {
		return nil, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	optOuts := make([]exam.SubjectOptOut, 0)
	for _, o := range repo.db.optOuts {
		if o.ExamID == examID && (subjectID == "" || o.SubjectID == subjectID) {
			optOuts = append(optOuts, o)
		}
	}
	return optOuts, nil
}

func (repo *examRepository) FetchSubjectResults(ctx context.Context, examID, subjectID string, studentIDs []string) ([]exam.SubjectResult, error) {
	if err := repo.db.enter(ctx, OpFetchResults); err != nil {
		return nil, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	results := make([]exam.SubjectResult, 0, len(studentIDs))
	for _, id := range studentIDs {
		if r, ok := repo.db.results[resultKey{examID, subjectID, id}]; ok {
			results = append(results, r)
		}
	}
	return results, nil
}

func (repo *examRepository) FetchConductEntries(ctx context.Context, examID, teacherID string) ([]exam.ConductEntry, error) {
	if err := repo.db.enter(ctx, OpFetchConduct); err != nil {
		return nil, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]exam.ConductEntry, 0)
	for k, e := range repo.db.conduct {
		if k.examID == examID && (teacherID == "" || k.teacherID == teacherID) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].StudentID != entries[j].StudentID {
			return entries[i].StudentID < entries[j].StudentID
		}
		return entries[i].SubjectID.String < entries[j].SubjectID.String
	})
	return entries, nil
}

func (repo *examRepository) FetchGradingScale(ctx context.Context, examID string) ([]exam.GradeBand, error) {
	if err := repo.db.enter(ctx, OpFetchScale); err != nil {
		return nil, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	bands, ok := repo.db.scales[examID]
	if !ok {
		return nil, nil
	}
	return append([]exam.GradeBand(nil), bands...), nil
}

func (repo *examRepository) SaveResults(ctx context.Context, examID, subjectID, classID string, rows []exam.ResultInput) error {
	if err := repo.db.enter(ctx, OpSaveResults); err != nil {
		return err
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now().UTC()
	for _, r := range rows {
		mark := r.Mark
		if r.IsAbsent {
			mark = null.Float64{}
		}
		repo.db.results[resultKey{examID, subjectID, r.StudentID}] = exam.SubjectResult{
			ExamID:    examID,
			SubjectID: subjectID,
			StudentID: r.StudentID,
			Mark:      mark,
			Grade:     r.Grade,
			UpdatedAt: now,
		}
	}
	return nil
}

func (repo *examRepository) SaveConductEntries(ctx context.Context, examID, classID, teacherID string, rows []exam.ConductInput) error {
	if err := repo.db.enter(ctx, OpSaveConduct); err != nil {
		return err
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now().UTC()
	for _, r := range rows {
		k := conductKey{
			examID:    examID,
			teacherID: teacherID,
			studentID: r.StudentID,
			subjectID: r.SubjectID.String,
			override:  !r.SubjectID.Valid,
		}
		repo.db.conduct[k] = exam.ConductEntry{
			ExamID:    examID,
			TeacherID: teacherID,
			StudentID: r.StudentID,
			SubjectID: r.SubjectID,
			Scores:    r.Scores,
			UpdatedAt: now,
		}
	}
	return nil
}
