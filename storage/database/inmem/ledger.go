package inmemdb

import (
	"context"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
)

type ledgerWriter struct {
	db *DB
}

func NewLedgerWriter(db *DB) exam.LedgerWriter {
	return &ledgerWriter{db: db}
}

func (w *ledgerWriter) AddExclusion(ctx context.Context, entry exam.ExclusionEntry) error {
	if err := w.db.enter(ctx, OpWriteLedger); err != nil {
		return err
	}
	w.db.mutex.Lock()
	defer w.db.mutex.Unlock()

	for _, e := range w.db.exclusions {
		if e == entry {
			return nil
		}
	}
	w.db.exclusions = append(w.db.exclusions, entry)
	return nil
}

func (w *ledgerWriter) RemoveExclusion(ctx context.Context, entry exam.ExclusionEntry) error {
	if err := w.db.enter(ctx, OpWriteLedger); err != nil {
		return err
	}
	w.db.mutex.Lock()
	defer w.db.mutex.Unlock()

	kept := w.db.exclusions[:0]
	for _, e := range w.db.exclusions {
		if e != entry {
			kept = append(kept, e)
		}
	}
	w.db.exclusions = kept
	return nil
}

func (w *ledgerWriter) AddSubjectOptOut(ctx context.Context, optOut exam.SubjectOptOut) error {
	if err := w.db.enter(ctx, OpWriteLedger); err != nil {
		return err
	}
	w.db.mutex.Lock()
	defer w.db.mutex.Unlock()

	for _, o := range w.db.optOuts {
		if o == optOut {
			return nil
		}
	}
	w.db.optOuts = append(w.db.optOuts, optOut)
	return nil
}

func (w *ledgerWriter) RemoveSubjectOptOut(ctx context.Context, optOut exam.SubjectOptOut) error {
	if err := w.db.enter(ctx, OpWriteLedger); err != nil {
		return err
	}
	w.db.mutex.Lock()
	defer w.db.mutex.Unlock()

	kept := w.db.optOuts[:0]
	for _, o := range w.db.optOuts {
		if o != optOut {
			kept = append(kept, o)
		}
	}
	w.db.optOuts = kept
	return nil
}
