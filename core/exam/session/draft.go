package session

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
)

// Row is a line of the grading grid as rendered by the dashboard.
type Row struct {
	StudentID string             `json:"student_id"`
	Name      string             `json:"name"`
	ClassID   string             `json:"class_id"`
	Mark      null.Float64       `json:"mark"`
	Absent    bool               `json:"absent"`
	OptedOut  bool               `json:"opted_out"`
	Grade     string             `json:"grade"`
	Conduct   exam.ConductScores `json:"conduct"`
	// ConductOverridden is set when a cross-subject conduct entry supersedes this grid's conduct for display.
	ConductOverridden bool `json:"conduct_overridden"`
	Dirty             bool `json:"dirty"`
}

// edits records which fields of a row were touched by the user.
// Untouched fields take the freshly fetched value when a cached draft is merged. Opt-outs are not
// editable in a session, so they always come from the ledger.
type edits uint16

const (
	editMark edits = 1 << iota
	editAbsent
	editConductBase // first of exam.NumDimensions bits
)

func conductEdit(d exam.Dimension) edits { return editConductBase << uint(d) }

func (e edits) has(flag edits) bool { return e&flag != 0 }

type draftRow struct {
	entry      exam.RosterEntry
	cell       exam.Cell
	conduct    exam.ConductScores
	overridden bool
	edited     edits
}

// baseline is a row as fetched (or as last saved), used to detect unsaved changes.
type baseline struct {
	cell    exam.Cell
	conduct exam.ConductScores
}

// freshRow is a row built from a fetch.
type freshRow struct {
	entry      exam.RosterEntry
	cell       exam.Cell
	conduct    exam.ConductScores
	overridden bool
}

type draft struct {
	key      Key
	exam     exam.Exam
	scale    *exam.GradingScale
	rows     []*draftRow
	index    map[string]*draftRow
	baseline map[string]baseline

	state     State
	lastErr   error
	lastSaved time.Time
	fetchedAt time.Time
	inFlight  bool
	pending   bool          // a flush was requested while a save was in flight
	done      chan struct{} // closed when the save in flight returns
	timer     Timer
}

func newDraft(key Key) *draft {
	return &draft{
		key:      key,
		index:    make(map[string]*draftRow),
		baseline: make(map[string]baseline),
		state:    StateIdle,
	}
}

// merge replaces the rows with `fresh`. For students already cached, every field the user edited keeps
// its cached value; untouched fields take the fresh value. Students only present in `fresh` pass through.
// The baseline is reset to the fresh values.
func (d *draft) merge(fresh []freshRow) {
	rows := make([]*draftRow, 0, len(fresh))
	index := make(map[string]*draftRow, len(fresh))
	base := make(map[string]baseline, len(fresh))

	for _, f := range fresh {
		row := &draftRow{entry: f.entry, cell: f.cell, conduct: f.conduct, overridden: f.overridden}
		if cached, ok := d.index[f.entry.StudentID]; ok {
			row.edited = cached.edited
			if cached.edited.has(editMark) {
				row.cell.Mark = cached.cell.Mark
			}
			if cached.edited.has(editAbsent) {
				row.cell.Absent = cached.cell.Absent
			}
			for i := 0; i < exam.NumDimensions; i++ {
				if cached.edited.has(conductEdit(exam.Dimension(i))) {
					row.conduct[i] = cached.conduct[i]
				}
			}
			row.cell = row.cell.Normalize()
		}
		rows = append(rows, row)
		index[f.entry.StudentID] = row
		base[f.entry.StudentID] = baseline{cell: f.cell.Normalize(), conduct: f.conduct}
	}

	d.rows = rows
	d.index = index
	d.baseline = base
}

// resultDirty reports whether the row's (mark, absent) differs from the baseline.
func (d *draft) resultDirty(row *draftRow) bool {
	if d.key.IsConductView() || row.cell.OptedOut {
		return false
	}
	b := d.baseline[row.entry.StudentID]
	return row.cell.Absent != b.cell.Absent || !sameMark(row.cell.Mark, b.cell.Mark)
}

func (d *draft) conductDirty(row *draftRow) bool {
	b := d.baseline[row.entry.StudentID]
	for i := range row.conduct {
		if !sameMark(row.conduct[i], b.conduct[i]) {
			return true
		}
	}
	return false
}

func (d *draft) isDirty(row *draftRow) bool {
	return d.resultDirty(row) || d.conductDirty(row)
}

func (d *draft) dirtyCount() int {
	var n int
	for _, row := range d.rows {
		if d.isDirty(row) {
			n++
		}
	}
	return n
}

func (d *draft) hasDirty() bool {
	for _, row := range d.rows {
		if d.isDirty(row) {
			return true
		}
	}
	return false
}

// batch is what one flush persists.
type batch struct {
	results []exam.ResultInput
	conduct []exam.ConductInput
}

func (b batch) empty() bool { return len(b.results) == 0 && len(b.conduct) == 0 }

// dirtyBatch collects every dirty row. Grades are computed with the same function used for previews.
func (d *draft) dirtyBatch() batch {
	var b batch
	subject := null.NewString(d.key.SubjectID, !d.key.IsConductView())
	for _, row := range d.rows {
		if d.resultDirty(row) {
			b.results = append(b.results, exam.ResultInput{
				StudentID: row.entry.StudentID,
				Mark:      row.cell.Mark,
				IsAbsent:  row.cell.Absent,
				Grade:     exam.GradeCell(d.scale, row.cell),
			})
		}
		if d.conductDirty(row) {
			b.conduct = append(b.conduct, exam.ConductInput{
				StudentID: row.entry.StudentID,
				SubjectID: subject,
				Scores:    row.conduct,
			})
		}
	}
	return b
}

// applySaved moves the baseline to the saved values. Rows whose draft still equals what was saved
// forget their edit marks, so a later merge takes the store's values for them.
func (d *draft) applySaved(results []exam.ResultInput, conduct []exam.ConductInput) {
	for _, r := range results {
		b := d.baseline[r.StudentID]
		b.cell = exam.Cell{Mark: r.Mark, Absent: r.IsAbsent}.Normalize()
		d.baseline[r.StudentID] = b
		if row, ok := d.index[r.StudentID]; ok && !d.resultDirty(row) {
			row.edited &^= editMark | editAbsent
		}
	}
	for _, c := range conduct {
		b := d.baseline[c.StudentID]
		b.conduct = c.Scores
		d.baseline[c.StudentID] = b
		if row, ok := d.index[c.StudentID]; ok && !d.conductDirty(row) {
			for i := 0; i < exam.NumDimensions; i++ {
				row.edited &^= conductEdit(exam.Dimension(i))
			}
		}
	}
}

func (d *draft) row(r *draftRow) Row {
	return Row{
		StudentID:         r.entry.StudentID,
		Name:              r.entry.Name,
		ClassID:           r.entry.ClassID,
		Mark:              r.cell.Mark,
		Absent:            r.cell.Absent,
		OptedOut:          r.cell.OptedOut,
		Grade:             exam.GradeCell(d.scale, r.cell),
		Conduct:           r.conduct,
		ConductOverridden: r.overridden,
		Dirty:             d.isDirty(r),
	}
}

func (d *draft) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func sameMark(a, b null.Float64) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Float64 == b.Float64
}
