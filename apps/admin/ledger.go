package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
)

// snapshot captures the roster of every class of the exam, unless it was already captured.
func (cli *commandLine) snapshot(ctx context.Context, examID string) error {
	exm, err := cli.repo.FetchExam(ctx, examID)
	if err != nil {
		return errors.Wrap(err, "fetching exam")
	}
	created, err := exam.NewRosterResolver(cli.repo).EnsureSnapshot(ctx, exm)
	if err != nil {
		return errors.Wrap(err, "capturing snapshot")
	}
	if !created {
		fmt.Fprintf(cli.out, "exam %s already has a roster snapshot\n", exm.ID)
		return nil
	}
	entries, err := cli.repo.FetchSnapshotRoster(ctx, exm.ID)
	if err != nil {
		return errors.Wrap(err, "fetching snapshot")
	}
	fmt.Fprintf(cli.out, "roster snapshot of exam %s captured: %d students\n", exm.ID, len(entries))
	return nil
}

func (cli *commandLine) exclude(ctx context.Context, examID, classID, studentID string, remove bool) error {
	exm, err := cli.repo.FetchExam(ctx, examID)
	if err != nil {
		return errors.Wrap(err, "fetching exam")
	}
	classID = core.CleanString(classID, false)
	if classID != "" && len(exm.ClassIDs) > 0 && !exm.HasClass(classID) {
		return unknownError("class", classID, exm.ClassIDs)
	}
	if err = cli.checkStudent(ctx, studentID); err != nil {
		return err
	}

	entry := exam.ExclusionEntry{
		ExamID:    exm.ID,
		ClassID:   null.NewString(classID, classID != ""),
		StudentID: studentID,
	}
	if remove {
		if err = cli.ledger.RemoveExclusion(ctx, entry); err != nil {
			return errors.Wrap(err, "removing exclusion")
		}
		fmt.Fprintf(cli.out, "student %s is no longer excluded from exam %s\n", studentID, exm.ID)
		return nil
	}
	if err = cli.ledger.AddExclusion(ctx, entry); err != nil {
		return errors.Wrap(err, "adding exclusion")
	}
	fmt.Fprintf(cli.out, "student %s excluded from exam %s\n", studentID, exm.ID)
	return nil
}

func (cli *commandLine) optOut(ctx context.Context, examID, subjectID, studentID string, remove bool) error {
	exm, err := cli.repo.FetchExam(ctx, examID)
	if err != nil {
		return errors.Wrap(err, "fetching exam")
	}
	if !exm.HasSubject(subjectID) {
		return unknownError("subject", subjectID, exm.SubjectIDs)
	}
	if err = cli.checkStudent(ctx, studentID); err != nil {
		return err
	}

	optOut := exam.SubjectOptOut{ExamID: exm.ID, SubjectID: subjectID, StudentID: studentID}
	if remove {
		if err = cli.ledger.RemoveSubjectOptOut(ctx, optOut); err != nil {
			return errors.Wrap(err, "removing opt-out")
		}
		fmt.Fprintf(cli.out, "student %s takes %s again in exam %s\n", studentID, subjectID, exm.ID)
		return nil
	}
	if err = cli.ledger.AddSubjectOptOut(ctx, optOut); err != nil {
		return errors.Wrap(err, "adding opt-out")
	}
	fmt.Fprintf(cli.out, "student %s opted out of %s in exam %s\n", studentID, subjectID, exm.ID)
	return nil
}

// checkStudent fails with a suggestion when `studentID` is not a known student.
func (cli *commandLine) checkStudent(ctx context.Context, studentID string) error {
	found, err := cli.repo.FetchStudentsByID(ctx, []string{studentID})
	if err != nil {
		return errors.Wrap(err, "fetching student")
	}
	if len(found) > 0 {
		return nil
	}
	all, err := cli.repo.FetchLiveRoster(ctx, exam.AllClasses)
	if err != nil {
		return errors.Wrap(err, "fetching students")
	}
	ids := make([]string, 0, len(all))
	for _, s := range all {
		ids = append(ids, s.ID)
	}
	return unknownError("student", studentID, ids)
}
