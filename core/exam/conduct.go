package exam

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// Dimension of a conduct assessment.
type Dimension int

const (
	Discipline Dimension = iota
	Effort
	Participation
	Motivation
	Character
	Leadership

	NumDimensions = 6
)

var dimensionNames = [NumDimensions]string{
	"discipline", "effort", "participation", "motivation", "character", "leadership",
}

func (d Dimension) String() string {
	if d < 0 || int(d) >= NumDimensions {
		return "unknown"
	}
	return dimensionNames[d]
}

// ParseDimension maps a dimension name (case-insensitive) to its Dimension.
func ParseDimension(name string) (Dimension, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range dimensionNames {
		if n == name {
			return Dimension(i), nil
		}
	}
	return 0, errors.Errorf("unknown conduct dimension %q", name)
}

// ScaleKind says how raw conduct scores of a dimension are recorded.
type ScaleKind string

const (
	ScaleFivePoint  ScaleKind = "five-point"
	ScalePercentage ScaleKind = "percentage"
)

// DimensionScale describes the raw range of one dimension. Max overrides the kind's natural maximum.
type DimensionScale struct {
	Kind ScaleKind `json:"kind"`
	Max  float64   `json:"max,omitempty"`
}

func (s DimensionScale) max() float64 {
	switch {
	case s.Max > 0:
		return s.Max
	case s.Kind == ScaleFivePoint:
		return 5
	}
	return 100
}

// ConductSchema carries the scale of each dimension. The zero value records every dimension as a percentage.
type ConductSchema [NumDimensions]DimensionScale

// ConductScores holds the raw scores of the six dimensions; null means not recorded.
type ConductScores [NumDimensions]null.Float64

// Recorded reports whether at least one dimension has a score.
func (cs ConductScores) Recorded() bool {
	for _, s := range cs {
		if s.Valid {
			return true
		}
	}
	return false
}

// Normalize turns raw scores into 0-100 percentages using each dimension's configured maximum.
func (schema ConductSchema) Normalize(scores ConductScores) ConductScores {
	var pct ConductScores
	for i, s := range scores {
		if !hasFiniteMark(s) {
			continue
		}
		pct[i] = null.Float64From(clamp(s.Float64/schema[i].max()*100, 0, 100))
	}
	return pct
}

// ValidScore reports whether `raw` fits the raw range of dimension `d`.
func (schema ConductSchema) ValidScore(d Dimension, raw float64) bool {
	return raw >= 0 && raw <= schema[d].max()
}

// ConductAverage is the mean of the recorded normalized dimensions, null when nothing is recorded.
func ConductAverage(schema ConductSchema, scores ConductScores) null.Float64 {
	var sum float64
	var n int
	for _, p := range schema.Normalize(scores) {
		if p.Valid {
			sum += p.Float64
			n++
		}
	}
	if n == 0 {
		return null.Float64{}
	}
	return null.Float64From(sum / float64(n))
}

// ResolveConduct returns the conduct scores to display per student.
// A student's override entry (no subject) supersedes the per-subject entries;
// otherwise each dimension is the mean of the per-subject scores recorded for it.
func ResolveConduct(entries []ConductEntry) map[string]ConductScores {
	type acc struct {
		sum [NumDimensions]float64
		n   [NumDimensions]int
	}
	overrides := make(map[string]ConductScores)
	perSubject := make(map[string]*acc)
	for _, e := range entries {
		if e.IsOverride() {
			overrides[e.StudentID] = e.Scores
			continue
		}
		a, ok := perSubject[e.StudentID]
		if !ok {
			a = new(acc)
			perSubject[e.StudentID] = a
		}
		for i, s := range e.Scores {
			if hasFiniteMark(s) {
				a.sum[i] += s.Float64
				a.n[i]++
			}
		}
	}

	resolved := make(map[string]ConductScores, len(overrides)+len(perSubject))
	for studentID, a := range perSubject {
		var scores ConductScores
		for i := range scores {
			if a.n[i] > 0 {
				scores[i] = null.Float64From(a.sum[i] / float64(a.n[i]))
			}
		}
		resolved[studentID] = scores
	}
	for studentID, scores := range overrides {
		resolved[studentID] = scores
	}
	return resolved
}
