// internal/game/types.go
//
// Core type definitions for the color guessing game.
// Defines:
//   - State: playing / game_over / won.
//   - Rules: countdown length, win threshold, options per round, shade variation.
//   - Round: one target color plus its candidate swatches.
//   - Game: state for a single session (also its serializable snapshot).
//   - Result: outcome of one guess.

package game

import (
	"errors"
	"time"

	"github.com/robalobadob/colorgame/internal/color"
)

// State is the coarse game phase.
type State string

const (
	StatePlaying  State = "playing"
	StateGameOver State = "game_over"
	StateWon      State = "won"
)

// Terminal reports whether s only exits through Reset.
func (s State) Terminal() bool { return s == StateGameOver || s == StateWon }

// Errors returned by guesses.
var (
	ErrNotPlaying = errors.New("game is not in progress")
	ErrBadOption  = errors.New("option index out of range")
	ErrStaleRound = errors.New("guess is for an earlier round")
)

// Rules are fixed for the lifetime of a game.
type Rules struct {
	Duration     int           `yaml:"duration" json:"duration"`   // seconds on the clock at start
	WinScore     int           `yaml:"win_score" json:"winScore"`  // score that wins the game
	Options      int           `yaml:"options" json:"options"`     // swatches per round
	Variation    int           `yaml:"variation" json:"variation"` // shade offset range [-v, v)
	TickInterval time.Duration `yaml:"tick_interval" json:"tickInterval"`
}

// DefaultRules: five minutes, 50 points, six swatches, offsets in [-30,29], 1s ticks.
func DefaultRules() Rules {
	return Rules{
		Duration:     300,
		WinScore:     50,
		Options:      color.DefaultOptions,
		Variation:    color.DefaultVariation,
		TickInterval: time.Second,
	}
}

// Validate rejects rules a game cannot be played with.
func (r Rules) Validate() error {
	switch {
	case r.Duration <= 0:
		return errors.New("rules: duration must be positive")
	case r.WinScore <= 0:
		return errors.New("rules: win_score must be positive")
	case r.Options < 2:
		return errors.New("rules: options must be at least 2")
	case r.Variation < 0:
		return errors.New("rules: variation must not be negative")
	case r.TickInterval <= 0:
		return errors.New("rules: tick_interval must be positive")
	}
	return nil
}

// Round is one target plus its options. Seq increases by one per round within a game.
type Round struct {
	Seq     int         `json:"seq"`
	Target  color.RGB   `json:"target"`
	Options []color.RGB `json:"options"`
}

// Game holds the state of a single session.
type Game struct {
	ID        string    `json:"id"`
	Rules     Rules     `json:"rules"`
	State     State     `json:"state"`
	Score     int       `json:"score"`
	Remaining int       `json:"remaining"` // seconds left on the clock
	Round     Round     `json:"round"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Result is the outcome of one guess.
type Result struct {
	Correct  bool      `json:"correct"`
	Picked   color.RGB `json:"picked"`
	Target   color.RGB `json:"target"`
	Distance float64   `json:"distance"` // CIEDE2000, 0 when correct
}
