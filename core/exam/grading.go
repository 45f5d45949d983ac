package exam

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core"
)

// defaultFloorGrade is given to marks below every band.
const defaultFloorGrade = "G"

// GradeBand maps every mark >= Threshold (down to the next band) to Label.
type GradeBand struct {
	Threshold float64 `json:"threshold"`
	Label     string  `json:"label"`
}

// GradingScale is an ordered list of bands, descending by threshold.
type GradingScale struct {
	bands []GradeBand
	floor string
}

// DefaultScale is used whenever an exam has no grading scale configured.
var DefaultScale = &GradingScale{
	bands: []GradeBand{
		{Threshold: 90, Label: "A+"},
		{Threshold: 80, Label: "A"},
		{Threshold: 70, Label: "A-"},
		{Threshold: 65, Label: "B+"},
		{Threshold: 60, Label: "B"},
		{Threshold: 55, Label: "C+"},
		{Threshold: 50, Label: "C"},
		{Threshold: 45, Label: "D"},
		{Threshold: 40, Label: "E"},
	},
	floor: defaultFloorGrade,
}

// NewGradingScale validates `bands` and sorts them descending by threshold.
func NewGradingScale(bands []GradeBand) (*GradingScale, error) {
	if len(bands) == 0 {
		return nil, ErrConfigMissing
	}
	sorted := make([]GradeBand, 0, len(bands))
	seen := make(map[float64]bool, len(bands))
	for _, b := range bands {
		b.Label = core.CleanString(b.Label)
		switch {
		case b.Label == "":
			return nil, core.NewValidationError(errors.New("grade label is required"), core.FieldError{Field: "label", Error: "grade label is required"})
		case b.Label == GradeAbsent || b.Label == GradeOptedOut:
			return nil, core.NewValidationError(errors.Errorf("%q is a reserved grade", b.Label), core.FieldError{Field: "label", Error: "reserved grade"})
		case b.Threshold < minMark || b.Threshold > maxMark:
			return nil, core.NewValidationError(errors.Errorf("threshold %v out of range", b.Threshold), core.FieldError{Field: "threshold", Error: "must be between 0 and 100"})
		case seen[b.Threshold]:
			return nil, core.NewValidationError(errors.Errorf("duplicate threshold %v", b.Threshold), core.FieldError{Field: "threshold", Error: "duplicate threshold"})
		}
		seen[b.Threshold] = true
		sorted = append(sorted, b)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Threshold > sorted[j].Threshold })
	return &GradingScale{bands: sorted, floor: defaultFloorGrade}, nil
}

// Bands returns a copy of the scale's bands, highest first.
func (s *GradingScale) Bands() []GradeBand {
	return append([]GradeBand(nil), s.orDefault().bands...)
}

func (s *GradingScale) orDefault() *GradingScale {
	if s == nil || len(s.bands) == 0 {
		return DefaultScale
	}
	return s
}

// Grade returns the label of the first band whose threshold is <= mark.
func (s *GradingScale) Grade(mark float64) string {
	scale := s.orDefault()
	for _, b := range scale.bands {
		if b.Threshold <= mark {
			return b.Label
		}
	}
	return scale.floor
}

// Rank orders labels of the scale: the floor is 0 and the top band is the highest rank.
// Unknown labels (TH, N/A, "") rank -1.
func (s *GradingScale) Rank(label string) int {
	scale := s.orDefault()
	if label == scale.floor {
		return 0
	}
	for i, b := range scale.bands {
		if b.Label == label {
			return len(scale.bands) - i
		}
	}
	return -1
}

// Labels returns every label the scale may produce, best first.
func (s *GradingScale) Labels() []string {
	scale := s.orDefault()
	labels := make([]string, 0, len(scale.bands)+1)
	for _, b := range scale.bands {
		labels = append(labels, b.Label)
	}
	return append(labels, scale.floor)
}

// GradeCell is the one place grades are computed, for instant previews and for persisted results alike.
// Opted-out cells are "N/A", absent cells "TH", empty cells have no grade.
// Marks are clamped to [0, 100].
func GradeCell(scale *GradingScale, c Cell) string {
	switch {
	case c.OptedOut:
		return GradeOptedOut
	case c.Absent:
		return GradeAbsent
	case !hasFiniteMark(c.Mark):
		return gradeUngraded
	}
	return scale.Grade(clamp(c.Mark.Float64, minMark, maxMark))
}
