// internal/tui/sound.go
//
// Audible guess feedback for the terminal client.
// Responsibilities:
//   - Sound interface the App calls after every guess.
//   - Mute, used for -mute and when no audio device is available.
//   - Beeper: short sine tones through the beep speaker (high = correct,
//     low = wrong).

package tui

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

// Sound gives audible feedback for guesses.
type Sound interface {
	Correct()
	Wrong()
}

// Mute plays nothing.
type Mute struct{}

func (Mute) Correct() {}
func (Mute) Wrong()   {}

const sampleRate = beep.SampleRate(44100)

// Beeper plays short sine tones through the system speaker.
type Beeper struct {
	mu     sync.Mutex
	closed bool
}

// NewBeeper initialises the speaker. Callers usually treat an error as
// "no audio" and fall back to Mute.
func NewBeeper() (*Beeper, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return nil, err
	}
	return &Beeper{}, nil
}

// Correct plays a high short tone.
func (b *Beeper) Correct() { b.tone(880, 80*time.Millisecond) }

// Wrong plays a low short tone.
func (b *Beeper) Wrong() { b.tone(220, 120*time.Millisecond) }

func (b *Beeper) tone(freq int, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	sine, err := generators.SineTone(sampleRate, float64(freq))
	if err != nil {
		return
	}
	speaker.Play(beep.Take(sampleRate.N(d), sine))
}

// Close releases the speaker.
func (b *Beeper) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		speaker.Close()
	}
}
