package inmemdb

import (
	"context"
	"sync"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
)

// Operation names accepted by DB.Fail.
const (
	OpFetchExam       = "FetchExam"
	OpFetchSnapshot   = "FetchSnapshotRoster"
	OpSaveSnapshot    = "SaveSnapshotRoster"
	OpFetchLiveRoster = "FetchLiveRoster"
	OpFetchStudents   = "FetchStudentsByID"
	OpFetchExclusions = "FetchExclusions"
	OpFetchOptOuts    = "FetchSubjectOptOuts"
	OpFetchResults    = "FetchSubjectResults"
	OpFetchConduct    = "FetchConductEntries"
	OpFetchScale      = "FetchGradingScale"
	OpSaveResults     = "SaveResults"
	OpSaveConduct     = "SaveConductEntries"
	OpWriteLedger     = "LedgerWriter"
)

type (
	// DB is an in-memory store of record, used by tests and the TEST environment.
	DB struct {
		mutex sync.RWMutex

		exams      map[string]exam.Exam
		students   map[string]exam.Student
		snapshots  map[string][]exam.SnapshotEntry // {examID: entries}
		exclusions []exam.ExclusionEntry
		optOuts    []exam.SubjectOptOut
		results    map[resultKey]exam.SubjectResult
		conduct    map[conductKey]exam.ConductEntry
		scales     map[string][]exam.GradeBand

		faults map[string]error
		calls  map[string]int
		hooks  map[string]func(ctx context.Context)
	}

	resultKey struct {
		examID, subjectID, studentID string
	}

	conductKey struct {
		examID, teacherID, studentID, subjectID string
		override                                bool
	}
)

func Open() (*DB, error) {
	db := &DB{
		exams:     make(map[string]exam.Exam),
		students:  make(map[string]exam.Student),
		snapshots: make(map[string][]exam.SnapshotEntry),
		results:   make(map[resultKey]exam.SubjectResult),
		conduct:   make(map[conductKey]exam.ConductEntry),
		scales:    make(map[string][]exam.GradeBand),
		faults:    make(map[string]error),
		calls:     make(map[string]int),
		hooks:     make(map[string]func(ctx context.Context)),
	}
	return db, nil
}

// Fail makes every following call of `op` return `err`. A nil err clears the fault.
func (db *DB) Fail(op string, err error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if err == nil {
		delete(db.faults, op)
		return
	}
	db.faults[op] = err
}

// OnCall runs `hook` at the start of every call of `op`, before any lock is taken.
// Tests use it to interleave calls with an operation in progress.
func (db *DB) OnCall(op string, hook func(ctx context.Context)) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if hook == nil {
		delete(db.hooks, op)
		return
	}
	db.hooks[op] = hook
}

// Calls returns how many times `op` was called, failed calls included.
func (db *DB) Calls(op string) int {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return db.calls[op]
}

// enter counts the call, runs its hook and returns the injected fault, if any.
func (db *DB) enter(ctx context.Context, op string) error {
	db.mutex.Lock()
	db.calls[op]++
	hook := db.hooks[op]
	err := db.faults[op]
	db.mutex.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}
