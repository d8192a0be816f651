// internal/session/manager.go
//
// Live game sessions.
// Responsibilities:
//   - One game.Controller per session, keyed by a uuid.
//   - Snapshot guesses, resets and finished games to the Store (best effort);
//     countdown ticks are only checkpointed every CheckpointTicks seconds.
//   - Restore a controller from its snapshot when the process no longer has it
//     in memory (e.g. after a restart with the SQLite store).
//   - Reap sessions nobody has touched for longer than the TTL, closing their
//     controllers and deleting their snapshots. A closed controller never
//     ticks or saves again, even if a request still holds it.

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/colorgame/internal/color"
	"github.com/robalobadob/colorgame/internal/game"
	"github.com/robalobadob/colorgame/internal/store"
)

const (
	saveTimeout            = 2 * time.Second // bounds a single snapshot write
	defaultCheckpointTicks = 10
)

// Options configure a Manager.
type Options struct {
	Rules game.Rules
	TTL   time.Duration   // idle time before a session is reaped
	Clock clockwork.Clock // defaults to the real clock

	// CheckpointTicks saves a playing game on every n-th remaining second.
	// Other transitions are always saved. Defaults to 10.
	CheckpointTicks int

	// NewSampler supplies the sampler for each new or restored session.
	// Defaults to crypto-seeded samplers.
	NewSampler func() *color.Sampler
}

type entry struct {
	ctrl     *game.Controller
	lastSeen time.Time
}

// Manager owns every live session.
type Manager struct {
	store store.Store
	opts  Options
	ctx   context.Context

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewManager builds a Manager. ctx bounds the lifetime of all session tickers.
func NewManager(ctx context.Context, st store.Store, opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.NewSampler == nil {
		opts.NewSampler = color.NewRandomSampler
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.CheckpointTicks <= 0 {
		opts.CheckpointTicks = defaultCheckpointTicks
	}
	return &Manager{
		store:    st,
		opts:     opts,
		ctx:      ctx,
		sessions: make(map[string]*entry),
	}
}

// Create starts a new session and returns its controller.
func (m *Manager) Create(ctx context.Context) (*game.Controller, error) {
	id := uuid.New().String()
	s := m.opts.NewSampler()
	g := game.New(id, m.opts.Rules, s, m.opts.Clock.Now())
	if err := m.store.Save(ctx, g.Clone()); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	ctrl := m.attach(g, s)

	log.Info().Str("session", id).Int("seq", g.Round.Seq).Msg("session created")
	return ctrl, nil
}

// Get returns the live controller for id, restoring it from the store if needed.
// Unknown ids yield store.ErrNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*game.Controller, error) {
	now := m.opts.Clock.Now()
	m.mu.Lock()
	if e, ok := m.sessions[id]; ok {
		e.lastSeen = now
		m.mu.Unlock()
		return e.ctrl, nil
	}
	m.mu.Unlock()

	snap, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(snap.Round.Options) == 0 {
		return nil, fmt.Errorf("restore session %s: empty round", id)
	}
	g := snap
	ctrl := m.attach(&g, m.opts.NewSampler())
	log.Info().
		Str("session", id).
		Str("state", string(g.State)).
		Int("remaining", g.Remaining).
		Msg("session restored")
	return ctrl, nil
}

// attach registers a controller for g and starts its ticker. If another
// goroutine attached the same id first, that controller wins.
func (m *Manager) attach(g *game.Game, s *color.Sampler) *game.Controller {
	ctrl := game.NewController(g, s, m.opts.Clock)
	ctrl.OnChange(m.persist)

	m.mu.Lock()
	if e, ok := m.sessions[g.ID]; ok {
		e.lastSeen = m.opts.Clock.Now()
		m.mu.Unlock()
		return e.ctrl
	}
	m.sessions[g.ID] = &entry{ctrl: ctrl, lastSeen: m.opts.Clock.Now()}
	m.mu.Unlock()

	ctrl.Start(m.ctx)
	return ctrl
}

// persist is the controllers' change hook. Ticks of a game still playing are
// saved only on checkpoint seconds, so a restore after a crash may hand back
// up to CheckpointTicks-1 seconds.
func (m *Manager) persist(g game.Game, ch game.Change) {
	if ch == game.ChangeTick && g.State == game.StatePlaying && g.Remaining%m.opts.CheckpointTicks != 0 {
		return
	}
	m.save(g)
}

// save writes a snapshot; failures are logged and never fail the transition.
func (m *Manager) save(g game.Game) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := m.store.Save(ctx, g); err != nil {
		log.Warn().Err(err).Str("session", g.ID).Msg("save snapshot")
	}
}

// Touch marks id as active.
func (m *Manager) Touch(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[id]; ok {
		e.lastSeen = m.opts.Clock.Now()
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Reap stops and removes sessions idle since before now-TTL. Returns how many.
func (m *Manager) Reap(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-m.opts.TTL)
	var stale []*entry
	m.mu.Lock()
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, e := range stale {
		e.ctrl.Close()
		if err := m.store.Delete(ctx, e.ctrl.ID()); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("session", e.ctrl.ID()).Msg("delete reaped session")
		}
		log.Debug().Str("session", e.ctrl.ID()).Msg("session reaped")
	}
	return len(stale)
}

// Run reaps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	t := m.opts.Clock.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.Chan():
			if n := m.Reap(ctx, now); n > 0 {
				log.Info().Int("reaped", n).Int("live", m.Len()).Msg("reaped idle sessions")
			}
		}
	}
}

// Close closes every session and saves its final snapshot so a restarted
// process can restore it.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*game.Controller, 0, len(m.sessions))
	for _, e := range m.sessions {
		all = append(all, e.ctrl)
	}
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for _, c := range all {
		c.Close()
		m.save(c.Snapshot())
	}
}
