package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/sync/errgroup"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
)

const (
	defaultAutosaveDelay = 1200 * time.Millisecond
	defaultFetchTimeout  = 10 * time.Second
	defaultSaveTimeout   = 15 * time.Second
)

var (
	ErrNoSelection    = errors.New("no exam selected")
	ErrNotReady       = errors.New("selection is still loading")
	ErrStaleFetch     = errors.New("selection changed while fetching")
	ErrClosed         = errors.New("session closed")
	ErrUnknownStudent = errors.New("student not in roster")
)

// Options configures a Session. Zero durations fall back to the defaults.
type Options struct {
	TeacherID     string
	Repo          exam.Repository
	Logger        core.Logger
	Scheduler     Scheduler
	AutosaveDelay time.Duration
	FetchTimeout  time.Duration
	SaveTimeout   time.Duration
}

// Session is the state of one open grading dashboard.
// It caches a draft per visited Key, debounces saves of edited rows and merges cached drafts with fresh
// data when a Key is selected again. A Session is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	teacherID     string
	repo          exam.Repository
	resolver      *exam.RosterResolver
	logger        core.Logger
	scheduler     Scheduler
	autosaveDelay time.Duration
	fetchTimeout  time.Duration
	saveTimeout   time.Duration

	active     Key
	hasActive  bool
	generation uint64
	view       *view
	drafts     map[Key]*draft
	// exams whose roster snapshot is known to exist
	snapshotted map[string]bool
	lastUsed    time.Time
	closed      bool

	// saveSeq numbers stored batches; savedDuringFetch keeps those stored while `fetching` > 0
	saveSeq          uint64
	fetching         int
	savedDuringFetch []savedBatch
}

// view is what was fetched for the active Key.
type view struct {
	key      Key
	exam     exam.Exam
	subjects []string
	roster   []exam.RosterEntry
	ledger   *exam.Ledger
	scale    *exam.GradingScale
	results  map[string]map[string]exam.Cell // {subjectID: {studentID: cell}}
	conduct  []exam.ConductEntry
}

func New(opts Options) *Session {
	s := &Session{
		teacherID:     opts.TeacherID,
		repo:          opts.Repo,
		resolver:      exam.NewRosterResolver(opts.Repo),
		logger:        opts.Logger,
		scheduler:     opts.Scheduler,
		autosaveDelay: opts.AutosaveDelay,
		fetchTimeout:  opts.FetchTimeout,
		saveTimeout:   opts.SaveTimeout,
		drafts:        make(map[Key]*draft),
		snapshotted:   make(map[string]bool),
		lastUsed:      time.Now(),
	}
	if s.scheduler == nil {
		s.scheduler = SystemScheduler
	}
	if s.autosaveDelay <= 0 {
		s.autosaveDelay = defaultAutosaveDelay
	}
	if s.fetchTimeout <= 0 {
		s.fetchTimeout = defaultFetchTimeout
	}
	if s.saveTimeout <= 0 {
		s.saveTimeout = defaultSaveTimeout
	}
	return s
}

func (s *Session) TeacherID() string { return s.teacherID }

// Active returns the selected Key.
func (s *Session) Active() (Key, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.hasActive
}

// LastUsed returns the time of the last call that touched the session.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Select makes `key` the active grid.
// Unsaved rows of the grid being left are saved first; a failed save keeps them in the draft cache
// and is reported through Status. The fresh data of `key` is then fetched and merged with the cached
// draft of `key`, if any. ErrStaleFetch is returned when another Select won the race meanwhile.
func (s *Session) Select(ctx context.Context, key Key) error {
	var missing []core.FieldError
	if key.ExamID == "" {
		missing = append(missing, core.FieldError{Field: "exam_id", Error: "this field is required"})
	}
	if key.ClassID == "" {
		missing = append(missing, core.FieldError{Field: "class_id", Error: "this field is required"})
	}
	if len(missing) > 0 {
		return core.NewValidationError(errors.New("exam and class are required"), missing...)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.lastUsed = time.Now()
	outgoing, hadActive := s.active, s.hasActive
	flushOutgoing := false
	if hadActive && outgoing != key {
		if d, ok := s.drafts[outgoing]; ok && d.hasDirty() {
			flushOutgoing = true
		}
	}
	s.mu.Unlock()

	if flushOutgoing {
		if err := s.flush(ctx, outgoing, true); err != nil {
			s.logger.Warn("leaving grid with unsaved rows", map[string]interface{}{"key": outgoing.String()}, s.identity())
		}
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.active, s.hasActive = key, true
	if s.view != nil && s.view.key != key {
		s.view = nil
	}
	s.fetching++
	since := s.saveSeq
	s.mu.Unlock()

	v, err := s.hydrate(ctx, key)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.endFetchLocked()
	if gen != s.generation || s.closed {
		return ErrStaleFetch
	}
	if err != nil {
		return err
	}
	s.applyLocked(v, since)
	return nil
}

func (s *Session) endFetchLocked() {
	s.fetching--
	if s.fetching == 0 {
		s.savedDuringFetch = nil
	}
}

// Refresh refetches the active grid, keeping unsaved edits.
func (s *Session) Refresh(ctx context.Context) error {
	key, ok := s.Active()
	if !ok {
		return ErrNoSelection
	}
	return s.Select(ctx, key)
}

func (s *Session) hydrate(ctx context.Context, key Key) (*view, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	exm, err := s.repo.FetchExam(ctx, key.ExamID)
	if err != nil {
		return nil, exam.NewFetchError("exam", err)
	}
	if len(exm.ClassIDs) > 0 && !exm.HasClass(key.ClassID) {
		return nil, core.NewValidationError(errors.Errorf("class %q does not sit exam %q", key.ClassID, key.ExamID),
			core.FieldError{Field: "class_id", Error: "class does not sit this exam"})
	}
	subjects := exm.AllowedSubjects(key.ClassID)
	if !key.IsConductView() && !contains(subjects, key.SubjectID) {
		return nil, core.NewValidationError(errors.Errorf("subject %q is not graded for class %q", key.SubjectID, key.ClassID),
			core.FieldError{Field: "subject_id", Error: "subject is not graded for this class"})
	}

	ledger, err := exam.LoadLedger(ctx, s.repo, exm.ID, key.ClassID)
	if err != nil {
		return nil, err
	}
	roster, err := s.resolver.ResolveExam(ctx, exm, key.ClassID, ledger)
	if err != nil {
		return nil, err
	}

	v := &view{
		key:      key,
		exam:     exm,
		subjects: subjects,
		roster:   roster,
		ledger:   ledger,
		results:  make(map[string]map[string]exam.Cell, len(subjects)),
	}
	ids := exam.StudentIDs(roster)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bands, err := s.repo.FetchGradingScale(gctx, exm.ID)
		if err != nil {
			return exam.NewFetchError("grading scale", err)
		}
		scale, err := exam.NewGradingScale(bands)
		switch {
		case err == exam.ErrConfigMissing:
			s.logger.Debug("no grading scale, using the default one", map[string]interface{}{"exam": exm.ID})
		case err != nil:
			s.logger.Warn("invalid grading scale, using the default one", err, map[string]interface{}{"exam": exm.ID})
		}
		mu.Lock()
		v.scale = scale
		mu.Unlock()
		return nil
	})
	for _, subjectID := range subjects {
		subjectID := subjectID
		g.Go(func() error {
			results, err := s.repo.FetchSubjectResults(gctx, exm.ID, subjectID, ids)
			if err != nil {
				return exam.NewFetchError("results of "+subjectID, err)
			}
			cells := make(map[string]exam.Cell, len(results))
			for _, r := range results {
				cells[r.StudentID] = r.Cell()
			}
			mu.Lock()
			v.results[subjectID] = cells
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		entries, err := s.repo.FetchConductEntries(gctx, exm.ID, s.teacherID)
		if err != nil {
			return exam.NewFetchError("conduct", err)
		}
		mu.Lock()
		v.conduct = entries
		mu.Unlock()
		return nil
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}
	return v, nil
}

// applyLocked installs the fetched view and merges it into the draft of its key.
// Batches stored after save number `since` are newer than the fetched data and are laid over it.
func (s *Session) applyLocked(v *view, since uint64) {
	for _, b := range s.savedDuringFetch {
		if b.seq > since && b.key.sameGrid(v.key) {
			v.recordSaved(b.key, s.teacherID, b.results, b.conduct)
		}
	}

	d, ok := s.drafts[v.key]
	if !ok {
		d = newDraft(v.key)
		s.drafts[v.key] = d
	}
	d.exam = v.exam
	d.scale = v.scale
	d.fetchedAt = time.Now()
	d.merge(v.freshRows())
	s.view = v

	if d.hasDirty() && !d.inFlight {
		// unsaved rows from an earlier visit: save them again
		d.state = StateEditing
		s.scheduleLocked(d)
	}
}

func (v *view) freshRows() []freshRow {
	subjectID := null.NewString(v.key.SubjectID, !v.key.IsConductView())
	own := make(map[string]exam.ConductScores)
	overridden := make(map[string]bool)
	for _, e := range v.conduct {
		if e.IsOverride() {
			overridden[e.StudentID] = true
		}
		if e.SubjectID == subjectID {
			own[e.StudentID] = e.Scores
		}
	}

	rows := make([]freshRow, 0, len(v.roster))
	for _, entry := range v.roster {
		row := freshRow{entry: entry, conduct: own[entry.StudentID]}
		if !v.key.IsConductView() {
			row.cell = v.results[v.key.SubjectID][entry.StudentID]
			row.cell.OptedOut = v.ledger.IsOptedOut(v.exam.ID, v.key.SubjectID, entry.StudentID)
			row.cell = row.cell.Normalize()
			row.overridden = overridden[entry.StudentID]
		}
		rows = append(rows, row)
	}
	return rows
}

// Rows returns the rows of the active grid, unsaved edits included.
func (s *Session) Rows() ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.activeDraftLocked()
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(d.rows))
	for _, r := range d.rows {
		rows = append(rows, d.row(r))
	}
	return rows, nil
}

// KeyStatus reports the autosave state of a visited Key.
type KeyStatus struct {
	Key         Key       `json:"key"`
	Active      bool      `json:"active"`
	State       State     `json:"state"`
	DirtyRows   int       `json:"dirty_rows"`
	LastError   string    `json:"last_error,omitempty"`
	LastSavedAt time.Time `json:"last_saved_at,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Status returns the state of every visited Key, sorted by key.
func (s *Session) Status() []KeyStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	statuses := make([]KeyStatus, 0, len(s.drafts))
	for key, d := range s.drafts {
		st := KeyStatus{
			Key:         key,
			Active:      s.hasActive && key == s.active,
			State:       d.state,
			DirtyRows:   d.dirtyCount(),
			LastSavedAt: d.lastSaved,
			FetchedAt:   d.fetchedAt,
		}
		if d.lastErr != nil {
			st.LastError = d.lastErr.Error()
		}
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Key.String() < statuses[j].Key.String() })
	return statuses
}

// StateOf returns the autosave state of `key`; StateIdle for keys never visited.
func (s *Session) StateOf(key Key) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.drafts[key]; ok {
		return d.state
	}
	return StateIdle
}

// Close stops pending autosaves and saves every unsaved row, waiting for saves in flight.
// It fails while any row is left unsaved. The session cannot be used afterwards.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, d := range s.drafts {
		d.stopTimer()
	}
	s.mu.Unlock()

	if err := s.SaveAll(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, d := range s.drafts {
		if n := d.dirtyCount(); n > 0 {
			return errors.Errorf("%s still has %d unsaved rows", key, n)
		}
	}
	return nil
}

func (s *Session) activeDraftLocked() (*draft, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if !s.hasActive {
		return nil, ErrNoSelection
	}
	d, ok := s.drafts[s.active]
	if !ok || s.view == nil || s.view.key != s.active {
		return nil, ErrNotReady
	}
	s.lastUsed = time.Now()
	return d, nil
}

func (s *Session) identity() core.Identity {
	return core.Identity{ID: s.teacherID}
}

func contains(ids []string, id string) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}
