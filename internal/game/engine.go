// internal/game/engine.go
//
// Pure transitions for a single game.
// Responsibilities:
//   - New/Reset: fresh playing state with a new round.
//   - Tick: one second off the clock; GameOver at zero.
//   - Guess/GuessIndex: compare against the target, score, start the next round.
//
// State transitions:
//   playing --tick to 0--> game_over
//   playing --score reaches WinScore--> won
//   any     --reset--> playing
//
// Nothing here touches clocks or goroutines; the Controller owns the ticker.
// Every transition takes the sampler and the current time explicitly.

package game

import (
	"fmt"
	"time"

	"github.com/robalobadob/colorgame/internal/color"
)

// New constructs a playing game with a first round.
func New(id string, rules Rules, s *color.Sampler, now time.Time) *Game {
	g := &Game{ID: id, Rules: rules}
	g.Reset(s, now)
	return g
}

// Reset returns g to its initial values with a freshly generated round.
// Allowed from any state.
func (g *Game) Reset(s *color.Sampler, now time.Time) {
	g.State = StatePlaying
	g.Score = 0
	g.Remaining = g.Rules.Duration
	g.StartedAt = now
	g.Round = Round{Seq: g.Round.Seq}
	g.nextRound(s, now)
}

// Tick takes one second off the clock while playing.
// Returns false once the game no longer needs ticks.
func (g *Game) Tick(now time.Time) bool {
	if g.State != StatePlaying {
		return false
	}
	g.Remaining--
	g.UpdatedAt = now
	if g.Remaining <= 0 {
		g.Remaining = 0
		g.State = StateGameOver
		return false
	}
	return true
}

// Guess compares picked against the current target.
// A correct guess scores one point; reaching WinScore wins. Unless the game
// just ended, a new round is started whether or not the guess was correct.
func (g *Game) Guess(picked color.RGB, s *color.Sampler, now time.Time) (Result, error) {
	if g.State != StatePlaying {
		return Result{}, ErrNotPlaying
	}
	target := g.Round.Target
	res := Result{
		Correct:  picked == target,
		Picked:   picked,
		Target:   target,
		Distance: color.Distance(picked, target),
	}
	if res.Correct {
		g.Score++
		if g.Score >= g.Rules.WinScore {
			g.State = StateWon
		}
	}
	g.UpdatedAt = now
	if g.State == StatePlaying {
		g.nextRound(s, now)
	}
	return res, nil
}

// GuessIndex guesses option i of round seq. A seq of 0 skips the round check.
func (g *Game) GuessIndex(i, seq int, s *color.Sampler, now time.Time) (Result, error) {
	if g.State != StatePlaying {
		return Result{}, ErrNotPlaying
	}
	if seq != 0 && seq != g.Round.Seq {
		return Result{}, fmt.Errorf("round %d, current %d: %w", seq, g.Round.Seq, ErrStaleRound)
	}
	if i < 0 || i >= len(g.Round.Options) {
		return Result{}, fmt.Errorf("index %d of %d: %w", i, len(g.Round.Options), ErrBadOption)
	}
	return g.Guess(g.Round.Options[i], s, now)
}

// Clone returns a deep copy safe to hand to other goroutines.
func (g *Game) Clone() Game {
	c := *g
	c.Round.Options = append([]color.RGB(nil), g.Round.Options...)
	return c
}

// Elapsed is the whole seconds played so far.
func (g *Game) Elapsed() int { return g.Rules.Duration - g.Remaining }

// nextRound replaces the current round and bumps its sequence number.
func (g *Game) nextRound(s *color.Sampler, now time.Time) {
	target, opts := s.Options(g.Rules.Options, g.Rules.Variation)
	g.Round = Round{Seq: g.Round.Seq + 1, Target: target, Options: opts}
	g.UpdatedAt = now
}

// FormatClock renders seconds as M:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
