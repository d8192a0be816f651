// internal/game/controller.go
//
// Concurrent owner of one Game.
// Responsibilities:
//   - Serialise ticks, guesses and resets under one mutex.
//   - Run the countdown ticker and cancel it on reset, finish, Stop or Close.
//   - Report each transition to an optional change hook (with its Change kind)
//     and to any number of non-blocking subscribers.
//   - Stay dead once closed: no ticker restarts and no hook calls.

package game

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/colorgame/internal/color"
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 8

// Change names the kind of transition passed to the change hook.
type Change int

const (
	ChangeTick Change = iota
	ChangeGuess
	ChangeReset
)

func (c Change) String() string {
	switch c {
	case ChangeTick:
		return "tick"
	case ChangeGuess:
		return "guess"
	case ChangeReset:
		return "reset"
	}
	return "unknown"
}

// Controller owns one Game, its sampler and the countdown ticker.
//
// Ticks run on a background goroutine and guesses arrive from callers, so every
// transition happens under mu. Each ticker run carries a generation number;
// Reset and Stop bump the generation, which turns any tick still in flight
// from the previous run into a no-op.
type Controller struct {
	mu      sync.Mutex
	game    *Game
	sampler *color.Sampler
	clock   clockwork.Clock

	parent  context.Context
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	closed  bool

	onChange func(Game, Change)
	subs     map[chan Game]struct{}
}

// NewController wraps g. The ticker does not run until Start.
func NewController(g *Game, s *color.Sampler, clock clockwork.Clock) *Controller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Controller{
		game:    g,
		sampler: s,
		clock:   clock,
		subs:    make(map[chan Game]struct{}),
	}
}

// OnChange registers fn to run after every transition, under the controller
// lock, with a snapshot of the new state. Must be set before Start.
func (c *Controller) OnChange(fn func(Game, Change)) { c.onChange = fn }

// ID returns the game id.
func (c *Controller) ID() string { return c.game.ID }

// Start begins ticking if the game is playing. Cancelling ctx stops the ticker.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parent = ctx
	c.startLocked()
}

// Stop cancels the ticker and waits for its goroutine to exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	done := c.stopLocked()
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close stops the ticker for good. A closed controller still answers
// Snapshot, Guess and Reset, but never ticks again and no longer calls the
// change hook; subscribers keep receiving updates.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	done := c.stopLocked()
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Running reports whether a ticker goroutine is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Snapshot returns a copy of the current game.
func (c *Controller) Snapshot() Game {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.game.Clone()
}

// Guess applies a guess by color.
func (c *Controller) Guess(picked color.RGB) (Result, Game, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.game.Guess(picked, c.sampler, c.clock.Now())
	return c.afterGuessLocked(res, err)
}

// GuessIndex applies a guess by option index for round seq (0 = current).
func (c *Controller) GuessIndex(i, seq int) (Result, Game, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.game.GuessIndex(i, seq, c.sampler, c.clock.Now())
	return c.afterGuessLocked(res, err)
}

// Reset restarts the game and its ticker. The previous ticker is cancelled
// before the state changes.
func (c *Controller) Reset() Game {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.game.Reset(c.sampler, c.clock.Now())
	c.startLocked()
	return c.publishLocked(ChangeReset)
}

// Subscribe returns a channel receiving a snapshot after every transition and
// a func that ends the subscription. Sends never block: a subscriber that
// falls behind misses updates.
func (c *Controller) Subscribe() (<-chan Game, func()) {
	ch := make(chan Game, subscriberBuffer)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// ------------------------------- internals ---------------------------------

func (c *Controller) afterGuessLocked(res Result, err error) (Result, Game, error) {
	if err != nil {
		return res, c.game.Clone(), err
	}
	if c.game.State.Terminal() {
		c.stopLocked()
		log.Info().
			Str("game_id", c.game.ID).
			Str("state", string(c.game.State)).
			Int("score", c.game.Score).
			Int("elapsed", c.game.Elapsed()).
			Msg("game finished")
	}
	return res, c.publishLocked(ChangeGuess), nil
}

// startLocked launches a ticker run for the current generation.
func (c *Controller) startLocked() {
	if c.closed || c.running || c.game.State != StatePlaying {
		return
	}
	parent := c.parent
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	c.gen++
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	ticker := c.clock.NewTicker(c.game.Rules.TickInterval)
	go c.run(ctx, ticker, c.gen, c.done)
}

// stopLocked cancels the current run and returns its done channel (nil when
// nothing was running). Callers must not wait on it while holding mu.
func (c *Controller) stopLocked() chan struct{} {
	if !c.running {
		return nil
	}
	c.gen++
	c.cancel()
	c.running = false
	return c.done
}

func (c *Controller) run(ctx context.Context, ticker clockwork.Ticker, gen uint64, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			if gen == c.gen {
				c.running = false
			}
			c.mu.Unlock()
			return
		case <-ticker.Chan():
			if !c.tick(gen) {
				return
			}
		}
	}
}

// tick applies one timer tick if gen is still current. Returns false when
// the run should end.
func (c *Controller) tick(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	more := c.game.Tick(c.clock.Now())
	if !more {
		c.running = false
		c.cancel()
		if c.game.State == StateGameOver {
			log.Info().
				Str("game_id", c.game.ID).
				Int("score", c.game.Score).
				Msg("time is up")
		}
	}
	c.publishLocked(ChangeTick)
	return more
}

// publishLocked notifies the change hook and subscribers; returns the snapshot.
func (c *Controller) publishLocked(ch Change) Game {
	snap := c.game.Clone()
	if c.onChange != nil && !c.closed {
		c.onChange(snap, ch)
	}
	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	return snap
}
