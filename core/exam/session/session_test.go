package session_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam/session"
	"github.com/aizadzidi/tasmik-windsurf-sub000/services/logger"
	"github.com/aizadzidi/tasmik-windsurf-sub000/storage/database/inmem"
)

const (
	teacherID = "t1"
	delay     = 1200 * time.Millisecond
)

var (
	mathKey    = session.Key{ExamID: "e1", ClassID: "c1", SubjectID: "math"}
	artKey     = session.Key{ExamID: "e1", ClassID: "c1", SubjectID: "art"}
	conductKey = session.Key{ExamID: "e1", ClassID: "c1"}

	markField   = session.Field{Kind: session.FieldMark}
	absentField = session.Field{Kind: session.FieldAbsent}

	errBoom = errors.New("connection refused")
)

type fixture struct {
	db    *inmemdb.DB
	sched *session.ManualScheduler
	sess  *session.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)

	db.PutExam(exam.Exam{
		ID:             "e1",
		Name:           "Midterm",
		Kind:           exam.KindExam,
		ClassIDs:       []string{"c1"},
		SubjectIDs:     []string{"math", "art"},
		ConductWeights: map[string]float64{"c1": 20},
	})
	db.PutStudents(
		exam.Student{ID: "s1", Name: "Aina", ClassID: "c1"},
		exam.Student{ID: "s2", Name: "Badrul", ClassID: "c1"},
		exam.Student{ID: "s3", Name: "Chong", ClassID: "c1"},
		exam.Student{ID: "s4", Name: "Dina", ClassID: "c1"},
	)
	db.PutResult(exam.SubjectResult{ExamID: "e1", SubjectID: "math", StudentID: "s1", Mark: null.Float64From(50), Grade: "C"})
	db.PutResult(exam.SubjectResult{ExamID: "e1", SubjectID: "math", StudentID: "s4", Mark: null.Float64From(60), Grade: "B"})
	db.PutOptOut(exam.SubjectOptOut{ExamID: "e1", SubjectID: "art", StudentID: "s4"})

	sched := session.NewManualScheduler()
	sess := session.New(session.Options{
		TeacherID:     teacherID,
		Repo:          inmemdb.NewExamRepository(db),
		Logger:        logsvc.NewDiscardLogger(),
		Scheduler:     sched,
		AutosaveDelay: delay,
	})
	return &fixture{db: db, sched: sched, sess: sess}
}

func (f *fixture) row(t *testing.T, studentID string) session.Row {
	t.Helper()
	rows, err := f.sess.Rows()
	require.NoError(t, err)
	for _, r := range rows {
		if r.StudentID == studentID {
			return r
		}
	}
	t.Fatalf("no row for %s", studentID)
	return session.Row{}
}

func TestSession_Select(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sess.Rows()
	assert.Equal(t, session.ErrNoSelection, err)

	require.NoError(t, f.sess.Select(ctx, mathKey))
	rows, err := f.sess.Rows()
	require.NoError(t, err)

	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Name)
		assert.False(t, r.Dirty)
	}
	assert.Equal(t, []string{"Aina", "Badrul", "Chong", "Dina"}, names)
	assert.Equal(t, "C", f.row(t, "s1").Grade)
	assert.Equal(t, "", f.row(t, "s2").Grade)

	require.NoError(t, f.sess.Select(ctx, artKey))
	assert.True(t, f.row(t, "s4").OptedOut)
	assert.Equal(t, exam.GradeOptedOut, f.row(t, "s4").Grade)
}

func TestSession_SelectInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		key  session.Key
		want func(error) bool
	}{
		{name: "missing class", key: session.Key{ExamID: "e1"}, want: core.IsValidation},
		{name: "unknown class", key: session.Key{ExamID: "e1", ClassID: "c9", SubjectID: "math"}, want: core.IsValidation},
		{name: "unknown subject", key: session.Key{ExamID: "e1", ClassID: "c1", SubjectID: "music"}, want: core.IsValidation},
		{name: "unknown exam", key: session.Key{ExamID: "e9", ClassID: "c1", SubjectID: "math"}, want: exam.IsFetchError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.sess.Select(ctx, tt.key)
			assert.True(t, tt.want(err), "Select() error = %v", err)
		})
	}
}

func TestSession_SelectReportsMissingFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		key  session.Key
		want []string
	}{
		{name: "missing exam", key: session.Key{ClassID: "c1"}, want: []string{"exam_id"}},
		{name: "missing class", key: session.Key{ExamID: "e1"}, want: []string{"class_id"}},
		{name: "missing both", key: session.Key{}, want: []string{"exam_id", "class_id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.sess.Select(ctx, tt.key)
			verr, ok := errors.Cause(err).(*core.ValidationError)
			require.True(t, ok, "Select() error = %v", err)
			var fields []string
			for _, fe := range verr.Fields {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.want, fields)
		})
	}
}

func TestSession_EditRecomputesGrade(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Select(context.Background(), mathKey))

	require.NoError(t, f.sess.EditCell("s1", markField, "85"))
	r := f.row(t, "s1")
	assert.Equal(t, 85.0, r.Mark.Float64)
	assert.Equal(t, "A", r.Grade)
	assert.True(t, r.Dirty)
	assert.Equal(t, session.StateEditing, f.sess.StateOf(mathKey))

	// unparsable values leave the cell alone
	require.NoError(t, f.sess.EditCell("s1", markField, "eighty"))
	assert.Equal(t, 85.0, f.row(t, "s1").Mark.Float64)

	require.NoError(t, f.sess.EditCell("s2", absentField, "true"))
	r = f.row(t, "s2")
	assert.True(t, r.Absent)
	assert.False(t, r.Mark.Valid)
	assert.Equal(t, exam.GradeAbsent, r.Grade)

	err := f.sess.EditCell("nobody", markField, "10")
	assert.Equal(t, session.ErrUnknownStudent, errors.Cause(err))
}

func TestSession_EditOptedOutRow(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Select(context.Background(), artKey))

	err := f.sess.EditCell("s4", markField, "70")
	assert.True(t, core.IsValidation(err))
	assert.Equal(t, exam.GradeOptedOut, f.row(t, "s4").Grade)
}

func TestSession_Debounce(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Select(context.Background(), mathKey))

	require.NoError(t, f.sess.EditCell("s1", markField, "85"))
	f.sched.Advance(time.Second)
	require.NoError(t, f.sess.EditCell("s2", markField, "72"))
	f.sched.Advance(time.Second)
	assert.Equal(t, 0, f.db.Calls(inmemdb.OpSaveResults), "saved before the debounce elapsed")

	f.sched.Advance(200 * time.Millisecond)
	assert.Equal(t, 1, f.db.Calls(inmemdb.OpSaveResults))
	assert.Equal(t, session.StateSaved, f.sess.StateOf(mathKey))
	assert.Equal(t, 0, f.sched.Pending())

	stored, ok := f.db.Result("e1", "math", "s1")
	require.True(t, ok)
	assert.Equal(t, 85.0, stored.Mark.Float64)
	assert.Equal(t, "A", stored.Grade)
	stored, _ = f.db.Result("e1", "math", "s2")
	assert.Equal(t, "A-", stored.Grade)

	assert.False(t, f.row(t, "s1").Dirty)
	assert.Len(t, f.db.Snapshot("e1"), 4, "the first save captures the roster snapshot")
}

func TestSession_AbsentIsSavedAsTH(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Select(context.Background(), mathKey))

	require.NoError(t, f.sess.EditCell("s1", absentField, "true"))
	require.NoError(t, f.sess.SaveNow(context.Background()))

	stored, ok := f.db.Result("e1", "math", "s1")
	require.True(t, ok)
	assert.False(t, stored.Mark.Valid)
	assert.Equal(t, exam.GradeAbsent, stored.Grade)

	completion, err := f.sess.Completion()
	require.NoError(t, err)
	assert.Equal(t, 1, completion.Students[0].Completed)

	summary, err := f.sess.Weighted()
	require.NoError(t, err)
	assert.False(t, summary.Students[0].AcademicAverage.Valid)
}

func TestSession_NoLossOnSwitch(t *testing.T) {
	tests := []struct {
		name      string
		saveFault error
		wantDirty bool
	}{
		{name: "switch saves the outgoing grid"},
		{name: "failed save keeps the draft", saveFault: errBoom, wantDirty: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.db.Fail(inmemdb.OpSaveResults, tt.saveFault)

			require.NoError(t, f.sess.Select(ctx, mathKey))
			require.NoError(t, f.sess.EditCell("s1", markField, "85"))
			require.NoError(t, f.sess.Select(ctx, artKey))
			assert.Equal(t, 1, f.db.Calls(inmemdb.OpSaveResults), "switching flushes the outgoing grid")
			require.NoError(t, f.sess.Select(ctx, mathKey))

			r := f.row(t, "s1")
			assert.Equal(t, 85.0, r.Mark.Float64)
			assert.Equal(t, "A", r.Grade)
			assert.Equal(t, tt.wantDirty, r.Dirty)
		})
	}
}

func TestSession_MergeOnReentry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.db.Fail(inmemdb.OpSaveResults, errBoom)

	require.NoError(t, f.sess.Select(ctx, mathKey))
	require.NoError(t, f.sess.EditCell("s1", markField, "85"))
	require.NoError(t, f.sess.Select(ctx, artKey))

	// another teacher updates the store meanwhile
	f.db.PutResult(exam.SubjectResult{ExamID: "e1", SubjectID: "math", StudentID: "s1", Mark: null.Float64From(40), Grade: "E"})
	f.db.PutResult(exam.SubjectResult{ExamID: "e1", SubjectID: "math", StudentID: "s2", Mark: null.Float64From(77), Grade: "A-"})

	require.NoError(t, f.sess.Select(ctx, mathKey))
	assert.Equal(t, 85.0, f.row(t, "s1").Mark.Float64, "edited field keeps the cached value")
	assert.Equal(t, 77.0, f.row(t, "s2").Mark.Float64, "untouched field takes the fresh value")
	assert.False(t, f.row(t, "s2").Dirty)

	f.db.Fail(inmemdb.OpSaveResults, nil)
	f.sched.Advance(delay)
	stored, _ := f.db.Result("e1", "math", "s1")
	assert.Equal(t, 85.0, stored.Mark.Float64)
	assert.Equal(t, session.StateSaved, f.sess.StateOf(mathKey))
}

func TestSession_SaveErrorRetry(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Select(context.Background(), mathKey))
	f.db.Fail(inmemdb.OpSaveResults, errBoom)

	require.NoError(t, f.sess.EditCell("s1", markField, "85"))
	f.sched.Advance(delay)

	assert.Equal(t, session.StateError, f.sess.StateOf(mathKey))
	status := f.sess.Status()
	require.Len(t, status, 1)
	assert.Contains(t, status[0].LastError, errBoom.Error())
	assert.Equal(t, 1, status[0].DirtyRows)
	assert.Equal(t, 85.0, f.row(t, "s1").Mark.Float64, "a failed save never reverts the draft")

	err := f.sess.SaveNow(context.Background())
	assert.True(t, exam.IsSaveError(err))

	// the next debounce tick retries every dirty row
	f.db.Fail(inmemdb.OpSaveResults, nil)
	require.NoError(t, f.sess.EditCell("s2", markField, "66"))
	f.sched.Advance(delay)

	assert.Equal(t, session.StateSaved, f.sess.StateOf(mathKey))
	for studentID, want := range map[string]float64{"s1": 85, "s2": 66} {
		stored, ok := f.db.Result("e1", "math", studentID)
		require.True(t, ok)
		assert.Equal(t, want, stored.Mark.Float64)
	}
}

func TestSession_SavesNeverOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sess.Select(ctx, mathKey))

	var fired int32
	saved := make(chan error, 1)
	f.db.OnCall(inmemdb.OpSaveResults, func(context.Context) {
		if !atomic.CompareAndSwapInt32(&fired, 0, 1) {
			return
		}
		// an edit and a manual save while the first save is in flight
		assert.NoError(t, f.sess.EditCell("s2", markField, "70"))
		go func() { saved <- f.sess.SaveNow(ctx) }()
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 1, f.db.Calls(inmemdb.OpSaveResults), "second save started while the first was in flight")
		assert.Equal(t, session.StateSaving, f.sess.StateOf(mathKey))
	})

	require.NoError(t, f.sess.EditCell("s1", markField, "85"))
	require.NoError(t, f.sess.SaveNow(ctx))
	require.NoError(t, <-saved)

	assert.Equal(t, 2, f.db.Calls(inmemdb.OpSaveResults))
	stored, _ := f.db.Result("e1", "math", "s2")
	assert.Equal(t, 70.0, stored.Mark.Float64)
	assert.False(t, f.row(t, "s2").Dirty)
	assert.Equal(t, session.StateSaved, f.sess.StateOf(mathKey))
}

func TestSession_EditDuringSaveStaysPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sess.Select(ctx, mathKey))

	var fired int32
	f.db.OnCall(inmemdb.OpSaveResults, func(context.Context) {
		if atomic.CompareAndSwapInt32(&fired, 0, 1) {
			assert.NoError(t, f.sess.EditCell("s2", markField, "70"))
		}
	})

	require.NoError(t, f.sess.EditCell("s1", markField, "85"))
	require.NoError(t, f.sess.SaveNow(ctx))

	assert.Equal(t, session.StateEditing, f.sess.StateOf(mathKey))
	status := f.sess.Status()
	require.Len(t, status, 1)
	assert.Equal(t, 1, status[0].DirtyRows)
	assert.Equal(t, 1, f.sched.Pending())

	f.sched.Advance(delay)
	assert.Equal(t, session.StateSaved, f.sess.StateOf(mathKey))
	stored, _ := f.db.Result("e1", "math", "s2")
	assert.Equal(t, 70.0, stored.Mark.Float64)
}

func TestSession_CloseWaitsForSaveInFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sess.Select(ctx, mathKey))

	var fired int32
	closed := make(chan error, 1)
	f.db.OnCall(inmemdb.OpSaveResults, func(context.Context) {
		if !atomic.CompareAndSwapInt32(&fired, 0, 1) {
			return
		}
		assert.NoError(t, f.sess.EditCell("s2", markField, "70"))
		go func() { closed <- f.sess.Close(ctx) }()
		assert.Eventually(t, func() bool {
			_, err := f.sess.Rows()
			return err == session.ErrClosed
		}, time.Second, time.Millisecond)
	})

	require.NoError(t, f.sess.EditCell("s1", markField, "85"))
	require.NoError(t, f.sess.SaveNow(ctx))
	require.NoError(t, <-closed)

	assert.Equal(t, 2, f.db.Calls(inmemdb.OpSaveResults))
	for studentID, want := range map[string]float64{"s1": 85, "s2": 70} {
		stored, ok := f.db.Result("e1", "math", studentID)
		require.True(t, ok, studentID)
		assert.Equal(t, want, stored.Mark.Float64)
	}
	assert.Equal(t, 0, f.sched.Pending())
}

func TestSession_SaveDuringRefreshIsKept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sess.Select(ctx, mathKey))

	var resultsFetched, fired int32
	f.db.OnCall(inmemdb.OpFetchResults, func(context.Context) {
		atomic.AddInt32(&resultsFetched, 1)
	})
	f.db.OnCall(inmemdb.OpFetchConduct, func(context.Context) {
		if !atomic.CompareAndSwapInt32(&fired, 0, 1) {
			return
		}
		// let the result fetches read the old marks before saving a new one
		assert.Eventually(t, func() bool { return atomic.LoadInt32(&resultsFetched) == 2 }, time.Second, time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		assert.NoError(t, f.sess.EditCell("s2", markField, "70"))
		assert.NoError(t, f.sess.SaveNow(ctx))
	})

	require.NoError(t, f.sess.Refresh(ctx))

	row := f.row(t, "s2")
	assert.Equal(t, 70.0, row.Mark.Float64)
	assert.Equal(t, "A-", row.Grade)
	assert.False(t, row.Dirty)

	completion, err := f.sess.Completion()
	require.NoError(t, err)
	for _, sc := range completion.Subjects {
		if sc.SubjectID == "math" {
			assert.Equal(t, 3, sc.Filled, "s1, s2 and s4 have math marks")
		}
	}

	f.sched.Advance(delay)
	assert.Equal(t, 1, f.db.Calls(inmemdb.OpSaveResults), "the saved mark is not saved again")
}

func TestSession_StaleFetchIsDiscarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sess.Select(ctx, mathKey))

	var fired int32
	f.db.OnCall(inmemdb.OpFetchResults, func(context.Context) {
		if atomic.CompareAndSwapInt32(&fired, 0, 1) {
			// the teacher switches back before the art fetch returns
			assert.NoError(t, f.sess.Select(ctx, mathKey))
		}
	})

	err := f.sess.Select(ctx, artKey)
	assert.Equal(t, session.ErrStaleFetch, err)

	active, ok := f.sess.Active()
	require.True(t, ok)
	assert.Equal(t, mathKey, active)
	assert.Equal(t, "C", f.row(t, "s1").Grade)
}

func TestSession_FetchErrorKeepsDrafts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sess.Select(ctx, mathKey))
	f.db.Fail(inmemdb.OpSaveResults, errBoom)
	require.NoError(t, f.sess.EditCell("s1", markField, "85"))

	f.db.Fail(inmemdb.OpFetchResults, errBoom)
	err := f.sess.Select(ctx, artKey)
	assert.True(t, exam.IsFetchError(err))
	_, err = f.sess.Rows()
	assert.Equal(t, session.ErrNotReady, err)

	f.db.Fail(inmemdb.OpFetchResults, nil)
	require.NoError(t, f.sess.Select(ctx, mathKey))
	assert.Equal(t, 85.0, f.row(t, "s1").Mark.Float64)
}

func TestSession_PasteColumn(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Select(context.Background(), mathKey))

	n, err := f.sess.PasteColumn(0, "95\n88\nTH\n-")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	tests := []struct {
		studentID string
		mark      null.Float64
		absent    bool
		grade     string
	}{
		{studentID: "s1", mark: null.Float64From(95), grade: "A+"},
		{studentID: "s2", mark: null.Float64From(88), grade: "A"},
		{studentID: "s3", absent: true, grade: exam.GradeAbsent},
		{studentID: "s4", grade: ""},
	}
	for _, tt := range tests {
		t.Run(tt.studentID, func(t *testing.T) {
			r := f.row(t, tt.studentID)
			assert.Equal(t, tt.mark, r.Mark)
			assert.Equal(t, tt.absent, r.Absent)
			assert.Equal(t, tt.grade, r.Grade)
		})
	}

	_, err = f.sess.PasteColumn(9, "50")
	assert.True(t, core.IsValidation(err))
}

func TestSession_PasteSkipsOptedOutRows(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Select(context.Background(), artKey))

	n, err := f.sess.PasteColumn(1, "70\nabc\n70\n70\n")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "unparsable lines, opted-out rows and overflow are skipped")
	assert.Equal(t, 70.0, f.row(t, "s2").Mark.Float64)
	assert.False(t, f.row(t, "s3").Mark.Valid)
	assert.Equal(t, exam.GradeOptedOut, f.row(t, "s4").Grade)
}

func TestSession_Summaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.db.PutConduct(exam.ConductEntry{
		ExamID:    "e1",
		TeacherID: teacherID,
		StudentID: "s1",
		Scores:    exam.ConductScores{null.Float64From(90), null.Float64From(90)},
	})
	require.NoError(t, f.sess.Select(ctx, mathKey))
	require.NoError(t, f.sess.EditCell("s1", markField, "80"))
	require.NoError(t, f.sess.EditCell("s2", markField, "70"))

	completion, err := f.sess.Completion()
	require.NoError(t, err)
	require.Len(t, completion.Subjects, 2)
	assert.Equal(t, 3, completion.Subjects[0].Filled, "unsaved marks count")
	assert.Equal(t, 1, completion.Subjects[1].Filled, "the opt-out counts as filled")
	for _, st := range completion.Students {
		assert.Equal(t, st.Total, st.Completed+len(st.Missing))
	}

	summary, err := f.sess.Weighted()
	require.NoError(t, err)
	s1 := summary.Students[0]
	assert.Equal(t, 80.0, s1.AcademicAverage.Float64)
	assert.Equal(t, 90.0, s1.ConductAverage.Float64)
	assert.InDelta(t, 82.0, s1.FinalScore.Float64, 1e-9)
	assert.Equal(t, 70.0, summary.Students[1].FinalScore.Float64, "no conduct: the academic average")
}

func TestSession_ConductGrid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sess.Select(ctx, conductKey))

	field, err := session.ParseField("conduct.discipline")
	require.NoError(t, err)

	assert.True(t, core.IsValidation(f.sess.EditCell("s1", markField, "80")), "no mark column")
	assert.True(t, core.IsValidation(f.sess.EditCell("s1", field, "101")))
	require.NoError(t, f.sess.EditCell("s1", field, "75"))

	f.sched.Advance(delay)
	assert.Equal(t, 0, f.db.Calls(inmemdb.OpSaveResults))
	entry, ok := f.db.Conduct("e1", teacherID, "s1", null.String{})
	require.True(t, ok)
	assert.Equal(t, 75.0, entry.Scores[exam.Discipline].Float64)
	assert.True(t, entry.IsOverride())
}

func TestSession_CloseSavesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.db.Fail(inmemdb.OpSaveResults, errBoom)
	require.NoError(t, f.sess.Select(ctx, mathKey))
	require.NoError(t, f.sess.EditCell("s1", markField, "85"))
	require.NoError(t, f.sess.Select(ctx, artKey))
	require.NoError(t, f.sess.EditCell("s2", markField, "60"))

	f.db.Fail(inmemdb.OpSaveResults, nil)
	require.NoError(t, f.sess.Close(ctx))

	stored, _ := f.db.Result("e1", "math", "s1")
	assert.Equal(t, 85.0, stored.Mark.Float64)
	stored, _ = f.db.Result("e1", "art", "s2")
	assert.Equal(t, 60.0, stored.Mark.Float64)
	assert.Equal(t, 0, f.sched.Pending())

	assert.Equal(t, session.ErrClosed, f.sess.Select(ctx, mathKey))
}
