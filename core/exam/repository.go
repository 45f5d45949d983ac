package exam

import "context"

type (
	// Repository is the store of record for exams, rosters, results and conduct.
	// Saves are idempotent upserts: repeating a save with identical values is a no-op.
	Repository interface {
		FetchExam(ctx context.Context, examID string) (Exam, error)

		FetchSnapshotRoster(ctx context.Context, examID string) ([]SnapshotEntry, error)
		// SaveSnapshotRoster stores entries that do not exist yet; existing entries are never changed.
		SaveSnapshotRoster(ctx context.Context, examID string, entries []SnapshotEntry) error
		// FetchLiveRoster returns the students currently assigned to classID, or every student for AllClasses.
		FetchLiveRoster(ctx context.Context, classID string) ([]Student, error)
		FetchStudentsByID(ctx context.Context, ids []string) ([]Student, error)

		// FetchExclusions returns the exam's exclusions; a non-empty classID limits them to
		// exam-wide entries and the ones of that class.
		FetchExclusions(ctx context.Context, examID, classID string) ([]ExclusionEntry, error)
		// FetchSubjectOptOuts returns the exam's opt-outs, for one subject when subjectID is not empty.
		FetchSubjectOptOuts(ctx context.Context, examID, subjectID string) ([]SubjectOptOut, error)

		FetchSubjectResults(ctx context.Context, examID, subjectID string, studentIDs []string) ([]SubjectResult, error)
		FetchConductEntries(ctx context.Context, examID, teacherID string) ([]ConductEntry, error)
		// FetchGradingScale returns nil bands when the exam has no scale.
		FetchGradingScale(ctx context.Context, examID string) ([]GradeBand, error)

		SaveResults(ctx context.Context, examID, subjectID, classID string, rows []ResultInput) error
		SaveConductEntries(ctx context.Context, examID, classID, teacherID string, rows []ConductInput) error
	}

	// LedgerWriter records administrative exclusions and opt-outs.
	LedgerWriter interface {
		AddExclusion(ctx context.Context, entry ExclusionEntry) error
		RemoveExclusion(ctx context.Context, entry ExclusionEntry) error
		AddSubjectOptOut(ctx context.Context, optOut SubjectOptOut) error
		RemoveSubjectOptOut(ctx context.Context, optOut SubjectOptOut) error
	}
)
