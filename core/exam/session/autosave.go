package session

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
)

// scheduleLocked (re)arms the debounce timer of `d`.
func (s *Session) scheduleLocked(d *draft) {
	d.stopTimer()
	if s.closed {
		return
	}
	key := d.key
	d.timer = s.scheduler.AfterFunc(s.autosaveDelay, func() { s.autosave(key) })
}

func (s *Session) autosave(key Key) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	// failures are recorded on the draft and logged by flush
	_ = s.flush(context.Background(), key, false)
}

// SaveNow saves the unsaved rows of the active grid without waiting for the debounce.
// A save of the grid already in flight is awaited first, so every edit made before the call is stored
// when SaveNow returns nil.
func (s *Session) SaveNow(ctx context.Context) error {
	s.mu.Lock()
	if _, err := s.activeDraftLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	key := s.active
	s.mu.Unlock()
	return s.flush(ctx, key, true)
}

// SaveAll saves the unsaved rows of every visited grid. It returns the first failure.
func (s *Session) SaveAll(ctx context.Context) error {
	s.mu.Lock()
	keys := make([]Key, 0, len(s.drafts))
	for key, d := range s.drafts {
		if d.hasDirty() {
			keys = append(keys, key)
		}
	}
	s.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	var first error
	for _, key := range keys {
		if err := s.flush(ctx, key, true); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// flush persists the dirty rows of `key` in one batch. Saves of a key never overlap. When a save is
// in flight, a waiting flush blocks until it returns then saves what is left; otherwise the flush is
// deferred until that save returns.
func (s *Session) flush(ctx context.Context, key Key, wait bool) error {
	s.mu.Lock()
	d, ok := s.drafts[key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	d.stopTimer()
	for d.inFlight {
		if !wait {
			d.pending = true
			s.mu.Unlock()
			return nil
		}
		done := d.done
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "waiting for the save of %s", key)
		}
		s.mu.Lock()
		d.stopTimer()
	}
	b := d.dirtyBatch()
	if b.empty() {
		if d.state == StateEditing {
			d.state = StateIdle
		}
		s.mu.Unlock()
		return nil
	}
	d.inFlight = true
	d.done = make(chan struct{})
	d.state = StateSaving
	exm := d.exam
	snapshot := !s.snapshotted[key.ExamID]
	s.mu.Unlock()

	results, conduct, err := s.persist(ctx, key, exm, snapshot, b)

	s.mu.Lock()
	defer s.mu.Unlock()
	d.inFlight = false
	close(d.done)
	d.applySaved(results, conduct)
	if s.view != nil && s.view.key.sameGrid(key) {
		s.view.recordSaved(key, s.teacherID, results, conduct)
	}
	s.recordSavedLocked(key, results, conduct)
	if err != nil {
		d.state = StateError
		d.lastErr = err
		s.logger.Error("autosave failed", err, map[string]interface{}{
			"key":     key.String(),
			"results": len(b.results),
			"conduct": len(b.conduct),
		}, s.identity())
	} else {
		d.state = StateSaved
		d.lastErr = nil
		d.lastSaved = time.Now()
		if d.hasDirty() {
			// edited while saving
			d.state = StateEditing
		}
	}
	if d.pending {
		d.pending = false
		if d.hasDirty() {
			s.scheduleLocked(d)
		}
	}
	return err
}

// persist writes a batch and returns the parts that were stored.
func (s *Session) persist(ctx context.Context, key Key, exm exam.Exam, snapshot bool, b batch) ([]exam.ResultInput, []exam.ConductInput, error) {
	ctx, cancel := context.WithTimeout(ctx, s.saveTimeout)
	defer cancel()

	if snapshot {
		created, err := s.resolver.EnsureSnapshot(ctx, exm)
		if err != nil {
			// the marks are still worth saving; the snapshot is retried on the next save
			s.logger.Warn("capturing roster snapshot", err, map[string]interface{}{"exam": exm.ID})
		} else {
			s.mu.Lock()
			s.snapshotted[exm.ID] = true
			s.mu.Unlock()
			if created {
				s.logger.Info("roster snapshot captured", map[string]interface{}{"exam": exm.ID})
			}
		}
	}

	var (
		results  []exam.ResultInput
		conduct  []exam.ConductInput
		firstErr error
	)
	if len(b.results) > 0 {
		err := s.repo.SaveResults(ctx, key.ExamID, key.SubjectID, key.ClassID, b.results)
		if err != nil {
			firstErr = exam.NewSaveError("results of "+key.String(), err)
		} else {
			results = b.results
		}
	}
	if len(b.conduct) > 0 {
		err := s.repo.SaveConductEntries(ctx, key.ExamID, key.ClassID, s.teacherID, b.conduct)
		if err != nil {
			if firstErr == nil {
				firstErr = exam.NewSaveError("conduct of "+key.String(), err)
			}
		} else {
			conduct = b.conduct
		}
	}
	return results, conduct, firstErr
}

// savedBatch is what a flush stored while a fetch was running.
type savedBatch struct {
	seq     uint64
	key     Key
	results []exam.ResultInput
	conduct []exam.ConductInput
}

// recordSavedLocked numbers a stored batch and keeps it for the fetches in progress, whose data
// may predate it.
func (s *Session) recordSavedLocked(key Key, results []exam.ResultInput, conduct []exam.ConductInput) {
	if len(results) == 0 && len(conduct) == 0 {
		return
	}
	s.saveSeq++
	if s.fetching > 0 {
		s.savedDuringFetch = append(s.savedDuringFetch, savedBatch{
			seq:     s.saveSeq,
			key:     key,
			results: results,
			conduct: conduct,
		})
	}
}
