package testutil

import (
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam/session"
	"github.com/aizadzidi/tasmik-windsurf-sub000/storage/database/inmem"
)

// Config returns the configuration used by tests: no debug, TEST mode, fixed secret.
func Config() *core.Config {
	return &core.Config{
		Env:       "TEST",
		TestMode:  true,
		AppName:   "Tasmik",
		SecretKey: "test-secret",
		Server: core.ServerConfig{
			JWTExpirationDelta: time.Hour,
			ShutdownTimeout:    time.Second,
		},
		Exam: core.ExamConfig{
			AutosaveDelay:      1200 * time.Millisecond,
			SessionIdleTimeout: 30 * time.Minute,
			FetchTimeout:       time.Second,
			SaveTimeout:        time.Second,
		},
	}
}

// NewValidator returns a validator with every custom tag of the app registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	session.InitValidators(validate, translator)
	return validate, translator
}

// OpenDB returns an empty in-memory store.
func OpenDB(t *testing.T) *inmemdb.DB {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	return db
}

// SeedExam stores the "e1" midterm sat by class c1 in math and art:
//   - s1 Aina (math 50), s2 Badrul, s3 Chong, s4 Dina (math 60, opted out of art) in c1
//   - s5 Emir in c2, which does not sit the exam
// The conduct weight of c1 is 20%.
func SeedExam(db *inmemdb.DB) exam.Exam {
	exm := exam.Exam{
		ID:             "e1",
		Name:           "Midterm",
		Kind:           exam.KindExam,
		ClassIDs:       []string{"c1"},
		SubjectIDs:     []string{"math", "art"},
		ConductWeights: map[string]float64{"c1": 20},
	}
	db.PutExam(exm)
	db.PutStudents(
		exam.Student{ID: "s1", Name: "Aina", ClassID: "c1"},
		exam.Student{ID: "s2", Name: "Badrul", ClassID: "c1"},
		exam.Student{ID: "s3", Name: "Chong", ClassID: "c1"},
		exam.Student{ID: "s4", Name: "Dina", ClassID: "c1"},
		exam.Student{ID: "s5", Name: "Emir", ClassID: "c2"},
	)
	db.PutResult(exam.SubjectResult{ExamID: "e1", SubjectID: "math", StudentID: "s1", Mark: null.Float64From(50), Grade: "C"})
	db.PutResult(exam.SubjectResult{ExamID: "e1", SubjectID: "math", StudentID: "s4", Mark: null.Float64From(60), Grade: "B"})
	db.PutOptOut(exam.SubjectOptOut{ExamID: "e1", SubjectID: "art", StudentID: "s4"})
	return exm
}
