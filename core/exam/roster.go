package exam

import (
	"context"
	"sort"
)

// RosterResolver determines who sits an exam.
type RosterResolver struct {
	repo Repository
}

func NewRosterResolver(repo Repository) *RosterResolver {
	return &RosterResolver{repo: repo}
}

// Resolve returns the roster of the exam, restricted to classFilter unless it is empty or AllClasses.
func (r *RosterResolver) Resolve(ctx context.Context, examID, classFilter string) ([]RosterEntry, error) {
	exm, err := r.repo.FetchExam(ctx, examID)
	if err != nil {
		return nil, NewFetchError("exam", err)
	}
	ledger, err := LoadLedger(ctx, r.repo, examID, classFilter)
	if err != nil {
		return nil, err
	}
	return r.ResolveExam(ctx, exm, classFilter, ledger)
}

// ResolveExam resolves the roster of an already fetched exam.
// The snapshot, when one was captured, is the only source of membership and class labels.
// Otherwise the enrolled students of the live classes are used. Excluded students are always removed.
// Entries are sorted by name then student id.
func (r *RosterResolver) ResolveExam(ctx context.Context, exm Exam, classFilter string, ledger *Ledger) ([]RosterEntry, error) {
	allClasses := classFilter == "" || classFilter == AllClasses

	snapshot, err := r.repo.FetchSnapshotRoster(ctx, exm.ID)
	if err != nil {
		return nil, NewFetchError("snapshot roster", err)
	}

	var base []RosterEntry
	if len(snapshot) > 0 {
		if base, err = r.fromSnapshot(ctx, snapshot, classFilter, allClasses); err != nil {
			return nil, err
		}
	} else {
		if base, err = r.fromLive(ctx, exm, classFilter, allClasses); err != nil {
			return nil, err
		}
	}

	roster := make([]RosterEntry, 0, len(base))
	for _, e := range base {
		if !ledger.IsExcluded(exm.ID, e.ClassID, e.StudentID) {
			roster = append(roster, e)
		}
	}
	SortRoster(roster)
	return roster, nil
}

func (r *RosterResolver) fromSnapshot(ctx context.Context, snapshot []SnapshotEntry, classFilter string, allClasses bool) ([]RosterEntry, error) {
	entries := make([]RosterEntry, 0, len(snapshot))
	ids := make([]string, 0, len(snapshot))
	seen := make(map[string]bool, len(snapshot))
	for _, s := range snapshot {
		if seen[s.StudentID] || !(allClasses || s.ClassID == classFilter) {
			continue
		}
		seen[s.StudentID] = true
		entries = append(entries, RosterEntry{StudentID: s.StudentID, ClassID: s.ClassID})
		ids = append(ids, s.StudentID)
	}
	if len(ids) == 0 {
		return entries, nil
	}

	students, err := r.repo.FetchStudentsByID(ctx, ids)
	if err != nil {
		return nil, NewFetchError("students", err)
	}
	names := make(map[string]string, len(students))
	for _, s := range students {
		names[s.ID] = s.Name
	}
	for i := range entries {
		entries[i].Name = names[entries[i].StudentID]
	}
	return entries, nil
}

func (r *RosterResolver) fromLive(ctx context.Context, exm Exam, classFilter string, allClasses bool) ([]RosterEntry, error) {
	query := classFilter
	if allClasses {
		query = AllClasses
	}
	students, err := r.repo.FetchLiveRoster(ctx, query)
	if err != nil {
		return nil, NewFetchError("live roster", err)
	}

	entries := make([]RosterEntry, 0, len(students))
	seen := make(map[string]bool, len(students))
	for _, s := range students {
		if seen[s.ID] || !s.IsEnrolled() {
			continue
		}
		if allClasses && len(exm.ClassIDs) > 0 && !exm.HasClass(s.ClassID) {
			continue
		}
		if !allClasses && s.ClassID != classFilter {
			continue
		}
		seen[s.ID] = true
		entries = append(entries, RosterEntry{StudentID: s.ID, Name: s.Name, ClassID: s.ClassID})
	}
	return entries, nil
}

// EnsureSnapshot captures the live roster of every class of the exam as its snapshot,
// unless a snapshot already exists. It reports whether a snapshot was captured.
func (r *RosterResolver) EnsureSnapshot(ctx context.Context, exm Exam) (bool, error) {
	existing, err := r.repo.FetchSnapshotRoster(ctx, exm.ID)
	if err != nil {
		return false, NewFetchError("snapshot roster", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	live, err := r.fromLive(ctx, exm, AllClasses, true)
	if err != nil {
		return false, err
	}
	if len(live) == 0 {
		return false, nil
	}
	entries := make([]SnapshotEntry, 0, len(live))
	for _, e := range live {
		entries = append(entries, SnapshotEntry{ExamID: exm.ID, StudentID: e.StudentID, ClassID: e.ClassID})
	}
	if err = r.repo.SaveSnapshotRoster(ctx, exm.ID, entries); err != nil {
		return false, NewSaveError("snapshot roster", err)
	}
	return true, nil
}

// SortRoster orders entries by name, then by student id.
func SortRoster(roster []RosterEntry) {
	sort.SliceStable(roster, func(i, j int) bool {
		if roster[i].Name != roster[j].Name {
			return roster[i].Name < roster[j].Name
		}
		return roster[i].StudentID < roster[j].StudentID
	})
}

// StudentIDs returns the ids of the roster, in roster order.
func StudentIDs(roster []RosterEntry) []string {
	ids := make([]string, 0, len(roster))
	for _, e := range roster {
		ids = append(ids, e.StudentID)
	}
	return ids
}
