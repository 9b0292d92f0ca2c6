// Package session owns the attendance session lifecycle. A Controller is
// either idle or running exactly one session; while running it rotates the
// attendance token and mirrors the attendance store into a roster.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/rollcall/internal/domain"
	"github.com/ashureev/rollcall/internal/roster"
	"github.com/ashureev/rollcall/internal/store"
	"github.com/ashureev/rollcall/internal/token"
)

// Observer receives state changes. Methods may be called from the rotation
// and polling goroutines and must not block for long.
type Observer interface {
	SessionChanged(domain.Session)
	TokenMinted(domain.Token)
	RosterPublished(domain.Roster)
	HeadcountRecorded(domain.HeadcountResult)
}

// TickerFunc starts a ticker and returns its channel and a stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// State is a point-in-time copy of the controller's view.
type State struct {
	Session   domain.Session
	Token     *domain.Token
	Roster    domain.Roster
	Headcount domain.HeadcountResult
}

// Controller drives one session at a time.
type Controller struct {
	repo       store.Repository
	minter     *token.Minter
	pollPeriod time.Duration
	now        func() time.Time
	newTicker  TickerFunc
	rosterOpts []roster.Option
	observers  []Observer

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex

	mu        sync.RWMutex
	session   domain.Session
	current   *domain.Token
	roster    domain.Roster
	headcount domain.HeadcountResult
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithRotationPeriod sets how often a new token is minted.
func WithRotationPeriod(d time.Duration) Option {
	return func(c *Controller) { c.minter = token.NewMinter(d) }
}

// WithPollPeriod sets the roster polling cadence.
func WithPollPeriod(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollPeriod = d
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithTicker overrides how rotation and polling tickers are created.
func WithTicker(fn TickerFunc) Option {
	return func(c *Controller) { c.newTicker = fn }
}

// WithRosterOptions passes options to each session's roster syncer.
func WithRosterOptions(opts ...roster.Option) Option {
	return func(c *Controller) { c.rosterOpts = append(c.rosterOpts, opts...) }
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

// New creates an idle controller backed by repo.
func New(repo store.Repository, opts ...Option) *Controller {
	c := &Controller{
		repo:       repo,
		minter:     token.NewMinter(token.DefaultRotationPeriod),
		pollPeriod: roster.DefaultPollPeriod,
		now:        time.Now,
		newTicker:  realTicker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RotationPeriod returns the token lifetime.
func (c *Controller) RotationPeriod() time.Duration {
	return c.minter.Period()
}

// Start begins a new session with a fresh ID, clears the roster and the
// headcount, mints the first token and starts rotation and polling.
func (c *Controller) Start() (domain.Session, error) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.session.Active {
		c.mu.Unlock()
		return domain.Session{}, domain.ErrSessionActive
	}

	now := c.now()
	sess := domain.Session{ID: newSessionID(now), StartedAt: now, Active: true}
	tok := c.minter.Mint(sess.ID, now)
	ctx, cancel := context.WithCancel(context.Background())

	c.session = sess
	c.current = &tok
	c.roster = domain.Roster{SessionID: sess.ID, PublishedAt: now}
	c.headcount = domain.HeadcountResult{SessionID: sess.ID}
	c.cancel = cancel
	cleared, reset := c.roster, c.headcount
	c.mu.Unlock()

	// Observers see the reset before the children can publish anything
	// for the new session.
	c.notify(func(o Observer) {
		o.SessionChanged(sess)
		o.RosterPublished(cleared)
		o.HeadcountRecorded(reset)
		o.TokenMinted(tok)
	})

	rotation, stopRotation := c.newTicker(c.minter.Period())
	polls, stopPolls := c.newTicker(c.pollPeriod)
	syncer := roster.NewSyncer(c.repo, sess.ID, c.applyRoster, c.rosterOpts...)

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		defer stopRotation()
		c.rotate(ctx, sess.ID, rotation)
	}()
	go func() {
		defer c.wg.Done()
		defer stopPolls()
		syncer.Run(ctx, polls)
	}()

	slog.Info("Session started", "session_id", sess.ID, "rotation", c.minter.Period(), "poll", c.pollPeriod)
	return sess, nil
}

// Stop ends the session. When it returns, rotation and polling have
// stopped and no token for the old session will be accepted. The last
// roster stays visible until the next Start.
func (c *Controller) Stop() (domain.Session, error) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if !c.session.Active {
		c.mu.Unlock()
		return domain.Session{}, domain.ErrSessionInactive
	}
	ended := c.session
	cancel := c.cancel
	c.session = domain.Session{}
	c.current = nil
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()

	ended.Active = false
	slog.Info("Session stopped", "session_id", ended.ID)
	c.notify(func(o Observer) { o.SessionChanged(domain.Session{}) })
	return ended, nil
}

// Shutdown stops any running session.
func (c *Controller) Shutdown() {
	if _, err := c.Stop(); err != nil && !errors.Is(err, domain.ErrSessionInactive) {
		slog.Warn("Failed to stop session on shutdown", "error", err)
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := State{
		Session:   c.session,
		Roster:    c.roster,
		Headcount: c.headcount,
	}
	st.Roster.Entries = append([]domain.RosterEntry(nil), c.roster.Entries...)
	if c.current != nil {
		tok := *c.current
		st.Token = &tok
	}
	if c.headcount.Count != nil {
		n := *c.headcount.Count
		st.Headcount.Count = &n
	}
	return st
}

// CurrentToken returns the token presenters should display.
func (c *Controller) CurrentToken() (domain.Token, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return domain.Token{}, domain.ErrSessionInactive
	}
	return *c.current, nil
}

// Redeem validates a scanned payload against the running session and
// records the attendee. A repeat scan is a success with AlreadyPresent.
func (c *Controller) Redeem(ctx context.Context, payload []byte, attendeeID string) (domain.RedeemResult, error) {
	if strings.TrimSpace(attendeeID) == "" {
		return domain.RedeemResult{}, errors.New("attendee id is required")
	}

	c.mu.RLock()
	activeID := c.session.ID
	c.mu.RUnlock()

	now := c.now()
	tok, err := token.Validate(payload, activeID, now)
	if err != nil {
		slog.Debug("Scan rejected", "attendee_id", attendeeID, "error", err)
		return domain.RedeemResult{}, err
	}

	outcome, err := c.repo.RecordIfAbsent(ctx, tok.SessionID, attendeeID, now)
	if err != nil {
		slog.Error("Failed to record attendance", "session_id", tok.SessionID, "attendee_id", attendeeID, "error", err)
		return domain.RedeemResult{}, err
	}

	res := domain.RedeemResult{SessionID: tok.SessionID, Outcome: outcome, Message: domain.MsgRecorded}
	if outcome == domain.AlreadyPresent {
		res.Message = domain.MsgAlreadyPresent
	}
	slog.Info("Attendance scanned", "session_id", tok.SessionID, "attendee_id", attendeeID, "outcome", outcome.String())
	return res, nil
}

// RecordHeadcount stores the latest headcount for the running session.
// The last write wins.
func (c *Controller) RecordHeadcount(count int) (domain.HeadcountResult, error) {
	return c.recordHeadcount("", count)
}

// RecordHeadcountFor stores a headcount taken during sessionID. It fails
// with domain.ErrSessionChanged when that session is no longer the running
// one, so a slow estimate never lands on a newer session.
func (c *Controller) RecordHeadcountFor(sessionID string, count int) (domain.HeadcountResult, error) {
	if sessionID == "" {
		return domain.HeadcountResult{}, domain.ErrSessionInactive
	}
	return c.recordHeadcount(sessionID, count)
}

func (c *Controller) recordHeadcount(sessionID string, count int) (domain.HeadcountResult, error) {
	if count < 0 {
		return domain.HeadcountResult{}, fmt.Errorf("%w: %d", domain.ErrNegativeCount, count)
	}

	c.mu.Lock()
	if !c.session.Active {
		c.mu.Unlock()
		if sessionID != "" {
			return domain.HeadcountResult{}, fmt.Errorf("%w: %s ended", domain.ErrSessionChanged, sessionID)
		}
		return domain.HeadcountResult{}, domain.ErrSessionInactive
	}
	if sessionID != "" && sessionID != c.session.ID {
		current := c.session.ID
		c.mu.Unlock()
		return domain.HeadcountResult{}, fmt.Errorf("%w: %s replaced by %s", domain.ErrSessionChanged, sessionID, current)
	}
	n := count
	c.headcount = domain.HeadcountResult{SessionID: c.session.ID, Count: &n}
	res := c.headcount
	c.mu.Unlock()

	slog.Info("Headcount recorded", "session_id", res.SessionID, "count", count)
	c.notify(func(o Observer) { o.HeadcountRecorded(res) })
	return res, nil
}

func (c *Controller) rotate(ctx context.Context, sessionID string, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			c.mint(sessionID)
		}
	}
}

func (c *Controller) mint(sessionID string) {
	c.mu.Lock()
	if c.session.ID != sessionID {
		c.mu.Unlock()
		return
	}
	tok := c.minter.Mint(sessionID, c.now())
	c.current = &tok
	c.mu.Unlock()

	slog.Debug("Token rotated", "session_id", sessionID, "expires_at", tok.ExpiresAt)
	c.notify(func(o Observer) { o.TokenMinted(tok) })
}

func (c *Controller) applyRoster(r domain.Roster) {
	c.mu.Lock()
	if c.session.ID != r.SessionID {
		c.mu.Unlock()
		return
	}
	c.roster = r
	c.mu.Unlock()

	c.notify(func(o Observer) { o.RosterPublished(r) })
}

func (c *Controller) notify(fn func(Observer)) {
	for _, o := range c.observers {
		fn(o)
	}
}

// newSessionID returns "session-<unix ms>-<random>".
func newSessionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("session-%d-%s", now.UnixMilli(), suffix)
}
