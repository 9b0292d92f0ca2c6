package roster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/language"

	"github.com/ashureev/rollcall/internal/domain"
)

// DefaultPollPeriod bounds how stale the presenter's roster can be.
const DefaultPollPeriod = 2 * time.Second

// Source is the read side of the attendance store.
type Source interface {
	ListBySession(ctx context.Context, sessionID string) ([]domain.RosterEntry, error)
}

// PublishFunc receives each newly published roster.
type PublishFunc func(domain.Roster)

// Syncer polls the store for one session and republishes the roster when
// the number of records changes. Change detection is by count only: a
// correction that keeps the count constant is not noticed until the count
// moves again.
type Syncer struct {
	src       Source
	sessionID string
	publish   PublishFunc
	lang      language.Tag
	now       func() time.Time

	polling atomic.Bool
	mu      sync.Mutex
	lastLen int
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLanguage sets the collation locale used to order display names.
func WithLanguage(tag language.Tag) Option {
	return func(s *Syncer) { s.lang = tag }
}

// WithClock overrides the time source stamped on published rosters.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// NewSyncer creates a syncer for sessionID. The last published roster is
// assumed empty, matching the cleared roster of a freshly started session.
func NewSyncer(src Source, sessionID string, publish PublishFunc, opts ...Option) *Syncer {
	s := &Syncer{
		src:       src,
		sessionID: sessionID,
		publish:   publish,
		lang:      language.English,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionID returns the session this syncer mirrors.
func (s *Syncer) SessionID() string {
	return s.sessionID
}

// Poll performs one reconciliation step and reports whether it published.
// A poll that starts while another is still in flight is skipped, so two
// overlapping polls can never both publish from the same stale comparison.
func (s *Syncer) Poll(ctx context.Context) (bool, error) {
	if !s.polling.CompareAndSwap(false, true) {
		slog.Debug("Roster poll skipped, previous poll still running", "session_id", s.sessionID)
		return false, nil
	}
	defer s.polling.Store(false)

	entries, err := s.src.ListBySession(ctx, s.sessionID)
	if err != nil {
		return false, fmt.Errorf("list attendance: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(entries) == s.lastLen {
		return false, nil
	}

	SortEntries(entries, s.lang)
	s.lastLen = len(entries)
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	s.publish(domain.Roster{
		SessionID:   s.sessionID,
		Entries:     entries,
		PublishedAt: s.now(),
	})
	return true, nil
}

// Run polls once immediately and then on every tick until ctx is done.
// Errors are logged and polling continues; the roster simply stays stale.
func (s *Syncer) Run(ctx context.Context, ticks <-chan time.Time) {
	s.pollAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			s.pollAndLog(ctx)
		}
	}
}

func (s *Syncer) pollAndLog(ctx context.Context) {
	published, err := s.Poll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("Roster poll failed", "session_id", s.sessionID, "error", err)
		}
		return
	}
	if published {
		slog.Debug("Roster published", "session_id", s.sessionID)
	}
}
