package exam

import (
	"math"
	"testing"

	"github.com/volatiletech/null/v8"
)

func TestWeightedScore(t *testing.T) {
	tests := []struct {
		name     string
		academic null.Float64
		conduct  null.Float64
		weight   null.Float64
		want     null.Float64
	}{
		{
			name:     "weighted",
			academic: null.Float64From(80),
			conduct:  null.Float64From(90),
			weight:   null.Float64From(20),
			want:     null.Float64From(82),
		},
		{
			name:     "no weight",
			academic: null.Float64From(80),
			conduct:  null.Float64From(90),
			want:     null.Float64From(80),
		},
		{
			name:     "zero weight",
			academic: null.Float64From(80),
			conduct:  null.Float64From(90),
			weight:   null.Float64From(0),
			want:     null.Float64From(80),
		},
		{
			name:     "no conduct",
			academic: null.Float64From(80),
			weight:   null.Float64From(20),
			want:     null.Float64From(80),
		},
		{
			name:    "no academic average",
			conduct: null.Float64From(90),
			weight:  null.Float64From(20),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedScore(tt.academic, tt.conduct, tt.weight)
			if got.Valid != tt.want.Valid || math.Abs(got.Float64-tt.want.Float64) > 1e-9 {
				t.Errorf("WeightedScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeightedScore_Bounds(t *testing.T) {
	for a := 0.0; a <= 100; a += 12.5 {
		for c := 0.0; c <= 100; c += 12.5 {
			for w := 0.0; w <= 100; w += 10 {
				got := WeightedScore(null.Float64From(a), null.Float64From(c), null.Float64From(w))
				if !got.Valid || got.Float64 < 0 || got.Float64 > 100 {
					t.Fatalf("WeightedScore(%v, %v, %v) = %v, out of [0, 100]", a, c, w, got)
				}
			}
		}
	}
}

func TestSummarize(t *testing.T) {
	roster := []RosterEntry{
		{StudentID: "s1", Name: "Aina", ClassID: "c1"},
		{StudentID: "s2", Name: "Badrul", ClassID: "c1"},
		{StudentID: "s3", Name: "Chong", ClassID: "c1"},
	}
	cells := cellMap{
		"s1": {"math": mark(70), "art": mark(90)},
		"s2": {"math": {Absent: true}, "art": mark(60)},
		"s3": {"math": mark(100), "art": mark(10)},
	}
	ledger := NewLedger("e1", nil, []SubjectOptOut{{ExamID: "e1", SubjectID: "art", StudentID: "s3"}})
	five := DimensionScale{Kind: ScaleFivePoint}
	schema := ConductSchema{five, five, five, five, five, five}
	conduct := map[string]ConductScores{
		"s1": {null.Float64From(4.5), null.Float64From(4.5)},
	}

	got := Summarize(WeightedInput{
		ExamID:     "e1",
		Roster:     roster,
		SubjectIDs: []string{"math", "art"},
		Cells:      cells.source,
		Ledger:     ledger,
		Conduct:    conduct,
		Schema:     schema,
		Weight:     null.Float64From(20),
	})

	tests := []struct {
		studentID string
		academic  float64
		final     float64
		marks     int
	}{
		{studentID: "s1", academic: 80, final: 82, marks: 2},
		{studentID: "s2", academic: 60, final: 60, marks: 1},
		{studentID: "s3", academic: 100, final: 100, marks: 1},
	}
	for i, tt := range tests {
		t.Run(tt.studentID, func(t *testing.T) {
			st := got.Students[i]
			if st.Marks != tt.marks {
				t.Errorf("Marks = %d, want %d", st.Marks, tt.marks)
			}
			if !st.AcademicAverage.Valid || math.Abs(st.AcademicAverage.Float64-tt.academic) > 1e-9 {
				t.Errorf("AcademicAverage = %v, want %v", st.AcademicAverage, tt.academic)
			}
			if !st.FinalScore.Valid || math.Abs(st.FinalScore.Float64-tt.final) > 1e-9 {
				t.Errorf("FinalScore = %v, want %v", st.FinalScore, tt.final)
			}
		})
	}

	wantSubjects := map[string]struct {
		avg          float64
		contributors int
	}{
		"math": {avg: 85, contributors: 2},
		"art":  {avg: 75, contributors: 2},
	}
	for _, sa := range got.Subjects {
		want := wantSubjects[sa.SubjectID]
		if sa.Contributors != want.contributors || math.Abs(sa.Average.Float64-want.avg) > 1e-9 {
			t.Errorf("%s: average %v over %d, want %v over %d", sa.SubjectID, sa.Average, sa.Contributors, want.avg, want.contributors)
		}
	}
}

func TestSummarize_NoContributors(t *testing.T) {
	got := Summarize(WeightedInput{
		ExamID:     "e1",
		Roster:     []RosterEntry{{StudentID: "s1"}},
		SubjectIDs: []string{"math"},
		Cells:      cellMap{"s1": {"math": {Absent: true}}}.source,
	})
	if got.Subjects[0].Average.Valid || got.Students[0].AcademicAverage.Valid || got.Students[0].FinalScore.Valid {
		t.Errorf("Summarize() = %+v, want null averages", got)
	}
}
