package echoapi

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam/session"
)

// sessionRegistry holds the open grading dashboards, one session.Session per browser tab.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	opts     session.Options
	idle     time.Duration
	logger   core.Logger
}

func newSessionRegistry(opts session.Options, idle time.Duration, logger core.Logger) *sessionRegistry {
	return &sessionRegistry{
		sessions: make(map[string]*session.Session),
		opts:     opts,
		idle:     idle,
		logger:   logger,
	}
}

func (r *sessionRegistry) open(teacherID string) (string, *session.Session) {
	opts := r.opts
	opts.TeacherID = teacherID
	sess := session.New(opts)
	id := uuid.New().String()

	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()
	return id, sess
}

// get returns the session `id` if it belongs to `teacherID`.
func (r *sessionRegistry) get(id, teacherID string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok || sess.TeacherID() != teacherID {
		return nil, errSessionNotFound
	}
	return sess, nil
}

// close saves and forgets the session `id`. The session is forgotten even when the final save fails.
func (r *sessionRegistry) close(ctx context.Context, id, teacherID string) error {
	sess, err := r.get(id, teacherID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return sess.Close(ctx)
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// evictIdle closes the sessions not used since `now - idle` and returns how many were evicted.
func (r *sessionRegistry) evictIdle(ctx context.Context, now time.Time) int {
	deadline := now.Add(-r.idle)

	r.mu.Lock()
	var idle []string
	for id, sess := range r.sessions {
		if sess.LastUsed().Before(deadline) {
			idle = append(idle, id)
		}
	}
	r.mu.Unlock()
	sort.Strings(idle)

	return r.closeSessions(ctx, idle)
}

// closeAll saves and forgets every session.
func (r *sessionRegistry) closeAll(ctx context.Context) int {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)

	return r.closeSessions(ctx, ids)
}

func (r *sessionRegistry) closeSessions(ctx context.Context, ids []string) int {
	var n int
	for _, id := range ids {
		r.mu.Lock()
		sess, ok := r.sessions[id]
		delete(r.sessions, id)
		r.mu.Unlock()
		if !ok {
			continue
		}
		n++
		if err := sess.Close(ctx); err != nil {
			r.logger.Error("closing session: unsaved rows lost", err, map[string]interface{}{"session": id},
				core.Identity{ID: sess.TeacherID()})
		}
	}
	return n
}

// run evicts idle sessions every `every` until ctx is done.
func (r *sessionRegistry) run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.evictIdle(ctx, now); n > 0 {
				r.logger.Info("idle sessions evicted", map[string]interface{}{"count": n})
			}
		}
	}
}
