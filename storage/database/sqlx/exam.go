package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
)

type (
	examRow struct {
		ID             string         `db:"id"`
		Name           string         `db:"name"`
		Kind           string         `db:"kind"`
		ClassIDs       pq.StringArray `db:"class_ids"`
		SubjectIDs     pq.StringArray `db:"subject_ids"`
		Matrix         []byte         `db:"matrix"`
		ConductWeights []byte         `db:"conduct_weights"`
		ConductSchema  []byte         `db:"conduct_schema"`
		Released       bool           `db:"released"`
		CreatedAt      time.Time      `db:"created_at"`
	}

	studentRow struct {
		ID      string `db:"id"`
		Name    string `db:"name"`
		ClassID string `db:"class_id"`
		Status  string `db:"status"`
	}

	snapshotRow struct {
		ExamID    string    `db:"exam_id"`
		StudentID string    `db:"student_id"`
		ClassID   string    `db:"class_id"`
		CreatedAt time.Time `db:"created_at"`
	}

	exclusionRow struct {
		ExamID    string      `db:"exam_id"`
		ClassID   null.String `db:"class_id"`
		StudentID string      `db:"student_id"`
	}

	optOutRow struct {
		ExamID    string `db:"exam_id"`
		SubjectID string `db:"subject_id"`
		StudentID string `db:"student_id"`
	}

	resultRow struct {
		ExamID    string       `db:"exam_id"`
		SubjectID string       `db:"subject_id"`
		StudentID string       `db:"student_id"`
		ClassID   string       `db:"class_id"`
		Mark      null.Float64 `db:"mark"`
		Grade     string       `db:"grade"`
		UpdatedAt time.Time    `db:"updated_at"`
	}

	conductRow struct {
		ExamID        string       `db:"exam_id"`
		TeacherID     string       `db:"teacher_id"`
		StudentID     string       `db:"student_id"`
		SubjectID     null.String  `db:"subject_id"`
		ClassID       string       `db:"class_id"`
		Discipline    null.Float64 `db:"score_discipline"`
		Effort        null.Float64 `db:"score_effort"`
		Participation null.Float64 `db:"score_participation"`
		Motivation    null.Float64 `db:"score_motivation"`
		Character     null.Float64 `db:"score_character"`
		Leadership    null.Float64 `db:"score_leadership"`
		UpdatedAt     time.Time    `db:"updated_at"`
	}

	bandRow struct {
		Threshold float64 `db:"threshold"`
		Label     string  `db:"label"`
	}
)

func (r examRow) toExam() (exam.Exam, error) {
	exm := exam.Exam{
		ID:         r.ID,
		Name:       r.Name,
		Kind:       exam.Kind(r.Kind),
		ClassIDs:   []string(r.ClassIDs),
		SubjectIDs: []string(r.SubjectIDs),
		Released:   r.Released,
		CreatedAt:  r.CreatedAt,
	}
	if err := unmarshalJSON(r.Matrix, &exm.Matrix); err != nil {
		return exam.Exam{}, errors.Wrap(err, "decoding subject matrix")
	}
	if err := unmarshalJSON(r.ConductWeights, &exm.ConductWeights); err != nil {
		return exam.Exam{}, errors.Wrap(err, "decoding conduct weights")
	}
	var schema []exam.DimensionScale
	if err := unmarshalJSON(r.ConductSchema, &schema); err != nil {
		return exam.Exam{}, errors.Wrap(err, "decoding conduct schema")
	}
	copy(exm.Conduct[:], schema)
	return exm, nil
}

func (r conductRow) toEntry() exam.ConductEntry {
	return exam.ConductEntry{
		ExamID:    r.ExamID,
		TeacherID: r.TeacherID,
		StudentID: r.StudentID,
		SubjectID: r.SubjectID,
		Scores: exam.ConductScores{
			exam.Discipline:    r.Discipline,
			exam.Effort:        r.Effort,
			exam.Participation: r.Participation,
			exam.Motivation:    r.Motivation,
			exam.Character:     r.Character,
			exam.Leadership:    r.Leadership,
		},
		UpdatedAt: r.UpdatedAt,
	}
}

func unmarshalJSON(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

type examRepository struct {
	db *sqlx.DB
}

func NewExamRepository(db *sqlx.DB) exam.Repository {
	return &examRepository{db: db}
}

func (repo *examRepository) FetchExam(ctx context.Context, examID string) (exam.Exam, error) {
	var row examRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT id, name, kind, class_ids, subject_ids, matrix, conduct_weights, conduct_schema, released, created_at
		FROM exams WHERE id = $1`, examID)
	if err == sql.ErrNoRows {
		return exam.Exam{}, exam.ErrNotFound
	}
	if err != nil {
		return exam.Exam{}, errors.Wrap(err, "selecting exam")
	}
	return row.toExam()
}

func (repo *examRepository) FetchSnapshotRoster(ctx context.Context, examID string) ([]exam.SnapshotEntry, error) {
	var rows []snapshotRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT exam_id, student_id, class_id, created_at
		FROM exam_roster_snapshots WHERE exam_id = $1
		ORDER BY student_id`, examID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting roster snapshot")
	}
	entries := make([]exam.SnapshotEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, exam.SnapshotEntry(r))
	}
	return entries, nil
}

func (repo *examRepository) SaveSnapshotRoster(ctx context.Context, examID string, entries []exam.SnapshotEntry) error {
	return repo.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, e := range entries {
			row := snapshotRow{ExamID: examID, StudentID: e.StudentID, ClassID: e.ClassID, CreatedAt: e.CreatedAt}
			if row.CreatedAt.IsZero() {
				row.CreatedAt = time.Now().UTC()
			}
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO exam_roster_snapshots (exam_id, student_id, class_id, created_at)
				VALUES (:exam_id, :student_id, :class_id, :created_at)
				ON CONFLICT (exam_id, student_id) DO NOTHING`, row)
			if err != nil {
				return errors.Wrap(err, "inserting roster snapshot")
			}
		}
		return nil
	})
}

func (repo *examRepository) FetchLiveRoster(ctx context.Context, classID string) ([]exam.Student, error) {
	var (
		rows []studentRow
		err  error
	)
	if classID == exam.AllClasses {
		err = repo.db.SelectContext(ctx, &rows, `SELECT id, name, class_id, status FROM students ORDER BY id`)
	} else {
		err = repo.db.SelectContext(ctx, &rows, `SELECT id, name, class_id, status FROM students WHERE class_id = $1 ORDER BY id`, classID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	return toStudents(rows), nil
}

func (repo *examRepository) FetchStudentsByID(ctx context.Context, ids []string) ([]exam.Student, error) {
	if len(ids) == 0 {
		return []exam.Student{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, name, class_id, status FROM students WHERE id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building students query")
	}
	var rows []studentRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	return toStudents(rows), nil
}

func (repo *examRepository) FetchExclusions(ctx context.Context, examID, classID string) ([]exam.ExclusionEntry, error) {
	var rows []exclusionRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT exam_id, class_id, student_id FROM exam_exclusions
		WHERE exam_id = $1 AND ($2::text = '' OR class_id IS NULL OR class_id = $2)`, examID, classID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting exclusions")
	}
	entries := make([]exam.ExclusionEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, exam.ExclusionEntry(r))
	}
	return entries, nil
}

func (repo *examRepository) FetchSubjectOptOuts(ctx context.Context, examID, subjectID string) ([]exam.SubjectOptOut, error) {
	var rows []optOutRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT exam_id, subject_id, student_id FROM exam_subject_opt_outs
		WHERE exam_id = $1 AND ($2::text = '' OR subject_id = $2)`, examID, subjectID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting subject opt-outs")
	}
	optOuts := make([]exam.SubjectOptOut, 0, len(rows))
	for _, r := range rows {
		optOuts = append(optOuts, exam.SubjectOptOut(r))
	}
	return optOuts, nil
}

func (repo *examRepository) FetchSubjectResults(ctx context.Context, examID, subjectID string, studentIDs []string) ([]exam.SubjectResult, error) {
	var rows []resultRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT exam_id, subject_id, student_id, class_id, mark, grade, updated_at FROM exam_results
		WHERE exam_id = $1 AND subject_id = $2 AND student_id = ANY($3)`,
		examID, subjectID, pq.Array(studentIDs))
	if err != nil {
		return nil, errors.Wrap(err, "selecting results")
	}
	results := make([]exam.SubjectResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, exam.SubjectResult{
			ExamID:    r.ExamID,
			SubjectID: r.SubjectID,
			StudentID: r.StudentID,
			Mark:      r.Mark,
			Grade:     r.Grade,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return results, nil
}

func (repo *examRepository) FetchConductEntries(ctx context.Context, examID, teacherID string) ([]exam.ConductEntry, error) {
	var rows []conductRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT exam_id, teacher_id, student_id, subject_id, class_id,
			score_discipline, score_effort, score_participation, score_motivation, score_character, score_leadership,
			updated_at
		FROM conduct_entries
		WHERE exam_id = $1 AND ($2::text = '' OR teacher_id = $2)
		ORDER BY student_id, subject_id NULLS FIRST`, examID, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting conduct entries")
	}
	entries := make([]exam.ConductEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toEntry())
	}
	return entries, nil
}

func (repo *examRepository) FetchGradingScale(ctx context.Context, examID string) ([]exam.GradeBand, error) {
	var rows []bandRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT threshold, label FROM grading_scales WHERE exam_id = $1 ORDER BY threshold DESC`, examID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting grading scale")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	bands := make([]exam.GradeBand, 0, len(rows))
	for _, r := range rows {
		bands = append(bands, exam.GradeBand(r))
	}
	return bands, nil
}

func (repo *examRepository) SaveResults(ctx context.Context, examID, subjectID, classID string, rows []exam.ResultInput) error {
	now := time.Now().UTC()
	return repo.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, r := range rows {
			row := resultRow{
				ExamID:    examID,
				SubjectID: subjectID,
				StudentID: r.StudentID,
				ClassID:   classID,
				Mark:      r.Mark,
				Grade:     r.Grade,
				UpdatedAt: now,
			}
			if r.IsAbsent {
				row.Mark = null.Float64{}
			}
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO exam_results (exam_id, subject_id, student_id, class_id, mark, grade, updated_at)
				VALUES (:exam_id, :subject_id, :student_id, :class_id, :mark, :grade, :updated_at)
				ON CONFLICT (exam_id, subject_id, student_id) DO UPDATE
				SET class_id = EXCLUDED.class_id, mark = EXCLUDED.mark, grade = EXCLUDED.grade, updated_at = EXCLUDED.updated_at`, row)
			if err != nil {
				return errors.Wrapf(err, "upserting result of %s", r.StudentID)
			}
		}
		return nil
	})
}

func (repo *examRepository) SaveConductEntries(ctx context.Context, examID, classID, teacherID string, rows []exam.ConductInput) error {
	now := time.Now().UTC()
	return repo.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, r := range rows {
			row := conductRow{
				ExamID:        examID,
				TeacherID:     teacherID,
				StudentID:     r.StudentID,
				SubjectID:     r.SubjectID,
				ClassID:       classID,
				Discipline:    r.Scores[exam.Discipline],
				Effort:        r.Scores[exam.Effort],
				Participation: r.Scores[exam.Participation],
				Motivation:    r.Scores[exam.Motivation],
				Character:     r.Scores[exam.Character],
				Leadership:    r.Scores[exam.Leadership],
				UpdatedAt:     now,
			}
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO conduct_entries (exam_id, teacher_id, student_id, subject_id, class_id,
					score_discipline, score_effort, score_participation, score_motivation, score_character, score_leadership,
					updated_at)
				VALUES (:exam_id, :teacher_id, :student_id, :subject_id, :class_id,
					:score_discipline, :score_effort, :score_participation, :score_motivation, :score_character, :score_leadership,
					:updated_at)
				ON CONFLICT (exam_id, teacher_id, student_id, (COALESCE(subject_id, ''))) DO UPDATE
				SET class_id = EXCLUDED.class_id,
					score_discipline = EXCLUDED.score_discipline,
					score_effort = EXCLUDED.score_effort,
					score_participation = EXCLUDED.score_participation,
					score_motivation = EXCLUDED.score_motivation,
					score_character = EXCLUDED.score_character,
					score_leadership = EXCLUDED.score_leadership,
					updated_at = EXCLUDED.updated_at`, row)
			if err != nil {
				return errors.Wrapf(err, "upserting conduct of %s", r.StudentID)
			}
		}
		return nil
	})
}

func (repo *examRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func toStudents(rows []studentRow) []exam.Student {
	students := make([]exam.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, exam.Student{
			ID:      r.ID,
			Name:    r.Name,
			ClassID: r.ClassID,
			Status:  exam.StudentStatus(r.Status),
		})
	}
	return students
}
