package stats

import (
	"context"
	"fmt"
	"log"
	"time"

	"qrattend/internal/directory"
	"qrattend/internal/session"
)

// Stats is the dashboard progress view for one session.
type Stats struct {
	TotalEnrolled int `json:"total_enrolled"`
	TotalMarked   int `json:"total_marked"`
}

// SessionSource resolves a session id to its session. *session.Repository
// satisfies it.
type SessionSource interface {
	GetByID(ctx context.Context, id string) (*session.Session, error)
}

// MarkCounter counts a session's non-absent records. *attendance.Repository
// satisfies it.
type MarkCounter interface {
	CountMarked(ctx context.Context, sessionID string) (int, error)
}

// Cache holds recent stats so 2-second dashboard polling stays off the
// database. Misses and failures both read through.
type Cache interface {
	Get(ctx context.Context, sessionID string) (Stats, bool)
	Set(ctx context.Context, sessionID string, s Stats)
	Invalidate(ctx context.Context, sessionID string)
	InvalidateAll(ctx context.Context)
}

// Aggregator computes enrollment/marked counts for polling dashboards.
type Aggregator struct {
	sessions SessionSource
	marks    MarkCounter
	dir      directory.Directory
	cache    Cache
}

// NewAggregator creates an aggregator. cache may be a NopCache.
func NewAggregator(sessions SessionSource, marks MarkCounter, dir directory.Directory, cache Cache) *Aggregator {
	if cache == nil {
		cache = NopCache{}
	}
	return &Aggregator{sessions: sessions, marks: marks, dir: dir, cache: cache}
}

// Get returns the session's stats, serving from cache when fresh. Reads are
// plain MVCC counts, so they never block concurrent marks; the numbers are
// eventually consistent within the cache TTL.
func (a *Aggregator) Get(ctx context.Context, sessionID string) (Stats, error) {
	if s, ok := a.cache.Get(ctx, sessionID); ok {
		return s, nil
	}
	defer logSlow("recompute", time.Now())

	sess, err := a.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return Stats{}, err
	}
	enrolled, err := a.dir.EnrolledStudents(ctx, sess.ClassID)
	if err != nil {
		return Stats{}, fmt.Errorf("load enrollment: %w", err)
	}
	marked, err := a.marks.CountMarked(ctx, sessionID)
	if err != nil {
		return Stats{}, err
	}

	s := Stats{TotalEnrolled: len(enrolled), TotalMarked: marked}
	a.cache.Set(ctx, sessionID, s)
	return s, nil
}

// Invalidate drops the cached entry, used after completion and clear so the
// next poll sees the final state immediately.
func (a *Aggregator) Invalidate(ctx context.Context, sessionID string) {
	a.cache.Invalidate(ctx, sessionID)
}

// InvalidateAll drops every cached entry. A global clear touches records in
// every session, so any surviving entry would be stale.
func (a *Aggregator) InvalidateAll(ctx context.Context) {
	a.cache.InvalidateAll(ctx)
}

// NopCache disables caching; every Get recomputes.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (Stats, bool) { return Stats{}, false }
func (NopCache) Set(context.Context, string, Stats)        {}
func (NopCache) Invalidate(context.Context, string)        {}
func (NopCache) InvalidateAll(context.Context)             {}

// logSlow is a shared helper for flagging reads that would make 2s polling
// fall behind.
func logSlow(op string, started time.Time) {
	if d := time.Since(started); d > time.Second {
		log.Printf("stats %s slow: %s", op, d)
	}
}
