package session

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
)

// EditCell sets one field of a row of the active grid and schedules an autosave.
// Mark values follow ParseCellToken; an empty value clears the field. An unparsable mark leaves
// the cell untouched and is not an error.
func (s *Session) EditCell(studentID string, field Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.activeDraftLocked()
	if err != nil {
		return err
	}
	row, ok := d.index[studentID]
	if !ok {
		return errors.Wrap(ErrUnknownStudent, studentID)
	}

	changed, err := d.edit(row, field, value)
	if err != nil || !changed {
		return err
	}
	d.state = StateEditing
	s.scheduleLocked(d)
	return nil
}

// PasteColumn writes newline-delimited values down the active grid starting at row `start`.
// Each line targets the next row: opted-out rows and unparsable lines keep their value,
// lines past the last row are dropped. It returns the number of rows changed.
func (s *Session) PasteColumn(start int, raw string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.activeDraftLocked()
	if err != nil {
		return 0, err
	}
	if d.key.IsConductView() {
		return 0, core.NewValidationError(errors.New("the conduct grid has no mark column"),
			core.FieldError{Field: "subject_id", Error: "select a subject to paste marks"})
	}
	if start < 0 || start >= len(d.rows) {
		return 0, core.NewValidationError(errors.Errorf("start row %d out of range", start),
			core.FieldError{Field: "start", Error: "row out of range"})
	}

	var n int
	for i, tok := range exam.ParseColumn(raw) {
		idx := start + i
		if idx >= len(d.rows) {
			break
		}
		row := d.rows[idx]
		if row.cell.OptedOut || tok.Kind == exam.TokenSkip {
			continue
		}
		if d.applyToken(row, tok) {
			n++
		}
	}
	if n > 0 {
		d.state = StateEditing
		s.scheduleLocked(d)
	}
	return n, nil
}

// edit applies `value` to `field` of `row`, reporting whether anything changed.
func (d *draft) edit(row *draftRow, field Field, value string) (bool, error) {
	value = strings.TrimSpace(value)
	switch field.Kind {
	case FieldMark, FieldAbsent:
		if d.key.IsConductView() {
			return false, core.NewValidationError(errors.New("the conduct grid has no mark column"),
				core.FieldError{Field: "field", Error: "not editable in this grid"})
		}
		if row.cell.OptedOut {
			return false, core.NewValidationError(errors.Errorf("student %s opted out of the subject", row.entry.StudentID),
				core.FieldError{Field: "field", Error: "student opted out of this subject"})
		}
	}

	switch field.Kind {
	case FieldMark:
		if value == "" {
			return d.applyToken(row, exam.CellToken{Kind: exam.TokenClear}), nil
		}
		tok, _ := exam.ParseCellToken(value) // unparsable: TokenSkip
		if tok.Kind == exam.TokenSkip {
			return false, nil
		}
		return d.applyToken(row, tok), nil

	case FieldAbsent:
		absent := false
		if value != "" {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return false, core.NewValidationError(errors.Wrap(err, "parsing absent flag"),
					core.FieldError{Field: "value", Error: "must be true or false"})
			}
			absent = b
		}
		if absent {
			return d.applyToken(row, exam.CellToken{Kind: exam.TokenAbsent}), nil
		}
		if !row.cell.Absent {
			return false, nil
		}
		row.cell.Absent = false
		row.edited |= editMark | editAbsent
		return true, nil

	case FieldConduct:
		var score null.Float64
		if value != "" && value != "-" {
			raw, err := strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64)
			if err != nil || !d.exam.Conduct.ValidScore(field.Dimension, raw) {
				return false, core.NewValidationError(errors.Errorf("invalid %s score %q", field.Dimension, value),
					core.FieldError{Field: "value", Error: "score out of range"})
			}
			score = null.Float64From(raw)
		}
		if sameMark(row.conduct[field.Dimension], score) {
			return false, nil
		}
		row.conduct[field.Dimension] = score
		row.edited |= conductEdit(field.Dimension)
		return true, nil
	}
	return false, errors.Errorf("unknown field %v", field)
}

// applyToken sets the (mark, absent) pair of a row; both fields count as edited together.
func (d *draft) applyToken(row *draftRow, tok exam.CellToken) bool {
	next := row.cell
	switch tok.Kind {
	case exam.TokenMark:
		next.Mark, next.Absent = null.Float64From(tok.Mark), false
	case exam.TokenAbsent:
		next.Mark, next.Absent = null.Float64{}, true
	case exam.TokenClear:
		next.Mark, next.Absent = null.Float64{}, false
	default:
		return false
	}
	next = next.Normalize()
	if next.Absent == row.cell.Absent && sameMark(next.Mark, row.cell.Mark) {
		return false
	}
	row.cell = next
	row.edited |= editMark | editAbsent
	return true
}
