// Package session holds the client-side session state: the last-resolved
// (identity, profile) pair for the current token, kept fresh by the
// verify→resolve pipeline and by auth service lifecycle events. It replaces
// the ad-hoc global auth state of earlier revisions with one object that has
// a defined lifecycle: construct on app start, SignOut or Close to end.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/locomotion-ai/locomotion/internal/auth"
	"github.com/locomotion-ai/locomotion/internal/profile"
)

// Revoker invalidates a token with the auth service on sign-out.
type Revoker interface {
	Revoke(ctx context.Context, token string) error
}

// State is a snapshot of the session.
type State struct {
	// Identity and Profile are set together once a resolution commits.
	// Profile's role is never nil-equivalent: resolution fails closed.
	Identity *auth.AccountIdentity
	Profile  *profile.Profile
	// Hint is an optional previously-persisted profile shown while Loading.
	// It is a paint-time optimization only and must never feed an access
	// decision; it clears as soon as a real resolution commits.
	Hint *profile.Profile
	// Loading is true while a resolution pipeline is in flight.
	Loading bool
	// Err is set only for backend/transport failures, which are retryable
	// and must not be confused with bad credentials. Invalid tokens and
	// missing profiles leave Err nil and the identity absent.
	Err error
}

// SignedIn reports whether the session holds a committed profile.
func (s State) SignedIn() bool {
	return s.Identity != nil && s.Profile != nil
}

// Cache is the reactive session holder. All resolutions within one Cache are
// totally ordered by an attempt counter; a completing resolution commits only
// if its attempt is still the newest, so stale in-flight results can never
// overwrite the effects of a later sign-in, refresh, or sign-out.
type Cache struct {
	verifier auth.Verifier
	resolver profile.ResolverIface
	revoker  Revoker // optional

	mu       sync.Mutex
	state    State
	token    string
	attempt  uint64 // monotonically increasing resolution attempt token
	inflight string // token being resolved right now ("" = none)
	subs     map[int]chan State
	nextSub  int
}

// Option configures a Cache.
type Option func(*Cache)

// WithRevoker sets the auth service hook used by SignOut.
func WithRevoker(r Revoker) Option {
	return func(c *Cache) { c.revoker = r }
}

// WithPaintHint seeds the state with a persisted profile that may be shown
// while the first resolution runs. The hint is never trusted for access
// decisions and is replaced by the first committed resolution.
func WithPaintHint(p *profile.Profile) Option {
	return func(c *Cache) { c.state.Hint = p }
}

// WithInitialToken starts exactly one resolution for a token already held at
// construction time (page load with an existing session).
func WithInitialToken(token string) Option {
	return func(c *Cache) {
		if token != "" {
			c.beginResolution(token)
		}
	}
}

// New creates a session cache over the verify→resolve pipeline.
func New(verifier auth.Verifier, resolver profile.ResolverIface, opts ...Option) *Cache {
	c := &Cache{
		verifier: verifier,
		resolver: resolver,
		subs:     make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current session state.
func (c *Cache) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers for state change notifications. The returned cancel
// func must be called when done. Notifications are best-effort snapshots: a
// slow receiver may miss intermediate states but always observes the latest
// via Snapshot.
func (c *Cache) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan State, 1)
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// notifyLocked pushes the current state to subscribers. Callers hold c.mu.
// A full subscriber channel is drained first so it always ends up holding
// the newest snapshot.
func (c *Cache) notifyLocked() {
	for _, ch := range c.subs {
		select {
		case ch <- c.state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- c.state
		}
	}
}

// HandleEvent applies one auth service lifecycle event.
func (c *Cache) HandleEvent(e Event) {
	switch e.Kind {
	case SignedIn, TokenRefreshed:
		c.beginResolution(e.Token)
	case SignedOut:
		c.clear()
	}
}

// Listen consumes events until the channel closes or ctx is done. Run it in
// its own goroutine.
func (c *Cache) Listen(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			c.HandleEvent(e)
		}
	}
}

// beginResolution starts the verify→resolve pipeline for a token. A pipeline
// already in flight for the same token suppresses the new trigger; a
// different token supersedes it (the old result will fail the attempt check
// and be discarded).
func (c *Cache) beginResolution(token string) {
	c.mu.Lock()
	if token == "" {
		c.mu.Unlock()
		return
	}
	if c.inflight == token {
		c.mu.Unlock()
		return
	}
	c.attempt++
	attempt := c.attempt
	c.token = token
	c.inflight = token
	c.state.Loading = true
	c.state.Err = nil
	c.notifyLocked()
	c.mu.Unlock()

	go c.resolve(attempt, token)
}

// resolve runs the pipeline and commits the outcome iff this attempt is
// still the newest. A superseded result is dropped silently — a newer
// attempt winning is expected, not an error.
func (c *Cache) resolve(attempt uint64, token string) {
	ctx := context.Background()

	var prof *profile.Profile
	identity, err := c.verifier.Verify(ctx, token)
	if err == nil {
		prof, err = c.resolver.Resolve(ctx, identity)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if attempt != c.attempt {
		return
	}
	c.inflight = ""
	c.state.Loading = false
	c.state.Hint = nil

	switch {
	case err == nil:
		c.state.Identity = identity
		c.state.Profile = prof
		c.state.Err = nil
	case errors.Is(err, auth.ErrInvalidToken):
		slog.Info("session resolution: token rejected")
		c.state.Identity = nil
		c.state.Profile = nil
		c.state.Err = nil
	case errors.Is(err, profile.ErrProfileNotFound):
		slog.Warn("session resolution: account has no profile", "account_id", identity.ID)
		c.state.Identity = nil
		c.state.Profile = nil
		c.state.Err = nil
	default:
		// Backend unavailable: not a credential problem. Surface a
		// retryable error and do not cache a negative result.
		slog.Error("session resolution failed", "error", err)
		c.state.Identity = nil
		c.state.Profile = nil
		c.state.Err = err
	}
	c.notifyLocked()
}

// SignOut invalidates the held token with the auth service and clears the
// session. Safe to call when already signed out. State clears immediately:
// any resolution still in flight from before the sign-out fails the attempt
// check when it lands and is discarded.
func (c *Cache) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.attempt++
	c.token = ""
	c.inflight = ""
	c.state = State{}
	c.notifyLocked()
	c.mu.Unlock()

	if token == "" || c.revoker == nil {
		return nil
	}
	if err := c.revoker.Revoke(ctx, token); err != nil {
		// Local state is already cleared; report the upstream failure so
		// the caller can decide whether to retry revocation.
		return err
	}
	return nil
}

// clear resets state without revoking (the auth service initiated the
// sign-out, so the token is already dead).
func (c *Cache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempt++
	c.token = ""
	c.inflight = ""
	c.state = State{}
	c.notifyLocked()
}
