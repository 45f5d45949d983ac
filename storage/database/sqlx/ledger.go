package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
)

type ledgerWriter struct {
	db *sqlx.DB
}

func NewLedgerWriter(db *sqlx.DB) exam.LedgerWriter {
	return &ledgerWriter{db: db}
}

func (w *ledgerWriter) AddExclusion(ctx context.Context, entry exam.ExclusionEntry) error {
	_, err := w.db.NamedExecContext(ctx, `
		INSERT INTO exam_exclusions (exam_id, class_id, student_id)
		VALUES (:exam_id, :class_id, :student_id)
		ON CONFLICT DO NOTHING`, exclusionRow(entry))
	return errors.Wrap(err, "inserting exclusion")
}

func (w *ledgerWriter) RemoveExclusion(ctx context.Context, entry exam.ExclusionEntry) error {
	_, err := w.db.ExecContext(ctx, `
		DELETE FROM exam_exclusions
		WHERE exam_id = $1 AND student_id = $2 AND class_id IS NOT DISTINCT FROM $3`,
		entry.ExamID, entry.StudentID, entry.ClassID)
	return errors.Wrap(err, "deleting exclusion")
}

func (w *ledgerWriter) AddSubjectOptOut(ctx context.Context, optOut exam.SubjectOptOut) error {
	_, err := w.db.NamedExecContext(ctx, `
		INSERT INTO exam_subject_opt_outs (exam_id, subject_id, student_id)
		VALUES (:exam_id, :subject_id, :student_id)
		ON CONFLICT DO NOTHING`, optOutRow(optOut))
	return errors.Wrap(err, "inserting subject opt-out")
}

func (w *ledgerWriter) RemoveSubjectOptOut(ctx context.Context, optOut exam.SubjectOptOut) error {
	_, err := w.db.ExecContext(ctx, `
		DELETE FROM exam_subject_opt_outs WHERE exam_id = $1 AND subject_id = $2 AND student_id = $3`,
		optOut.ExamID, optOut.SubjectID, optOut.StudentID)
	return errors.Wrap(err, "deleting subject opt-out")
}
