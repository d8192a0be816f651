// internal/tui/app.go
//
// Terminal client for the color guessing game.
//
// Layout (top to bottom):
//   title + instructions
//   target swatch
//   one numbered swatch per option
//   score and M:SS clock
//   feedback for the last guess
//   key help
//
// Game over and win replace the board with a banner, the final score and a
// "press r to play again" line.
//
// Input:
//   1..n        guess that option (keys reach the first nine)
//   mouse click guess the clicked swatch
//   r           reset
//   q, Esc, ^C  quit
//
// The App never mutates game state itself; it calls the Controller and redraws
// from the snapshots the Controller publishes.

package tui

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/robalobadob/colorgame/internal/color"
	"github.com/robalobadob/colorgame/internal/game"
)

const (
	swatchWidth  = 8
	swatchHeight = 3
	swatchGap    = 2
	targetWidth  = 16
	targetHeight = 4
	leftMargin   = 2
)

// rect is a screen area used for mouse hit testing.
type rect struct{ x, y, w, h int }

func (r rect) contains(x, y int) bool {
	return x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

// App renders one game on a tcell screen and routes input to its controller.
type App struct {
	screen tcell.Screen
	ctrl   *game.Controller
	sound  Sound

	feedback string
	good     bool
	swatches []rect
	buttons  tcell.ButtonMask
}

// New builds an App. A nil sound plays nothing.
func New(screen tcell.Screen, ctrl *game.Controller, sound Sound) *App {
	if sound == nil {
		sound = Mute{}
	}
	return &App{screen: screen, ctrl: ctrl, sound: sound}
}

// Run draws the game and processes input until the user quits or ctx ends.
// The screen must already be initialised; Run does not Fini it.
func (a *App) Run(ctx context.Context) error {
	a.screen.EnableMouse()
	updates, unsubscribe := a.ctrl.Subscribe()
	defer unsubscribe()

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	a.Draw(a.ctrl.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			a.Draw(snap)
		case ev := <-events:
			if !a.HandleEvent(ev) {
				return nil
			}
		}
	}
}

// HandleEvent applies one tcell event. It returns false when the app should exit.
func (a *App) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return a.HandleKey(ev.Key(), ev.Rune())
	case *tcell.EventMouse:
		pressed := ev.Buttons() & tcell.Button1
		// act on press only, not on drag or release
		if pressed != 0 && a.buttons&tcell.Button1 == 0 {
			x, y := ev.Position()
			a.HandleClick(x, y)
		}
		a.buttons = ev.Buttons()
	case *tcell.EventResize:
		a.screen.Sync()
		a.Draw(a.ctrl.Snapshot())
	}
	return true
}

// HandleKey applies a key press. It returns false for quit keys.
func (a *App) HandleKey(key tcell.Key, r rune) bool {
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyRune:
	default:
		return true
	}

	switch {
	case r == 'q' || r == 'Q':
		return false
	case r == 'r' || r == 'R':
		a.reset()
	case r >= '1' && r <= '9':
		a.guess(int(r - '1'))
	}
	return true
}

// HandleClick guesses the swatch under (x, y), if any.
func (a *App) HandleClick(x, y int) {
	for i, sw := range a.swatches {
		if sw.contains(x, y) {
			a.guess(i)
			return
		}
	}
}

func (a *App) guess(i int) {
	snap := a.ctrl.Snapshot()
	if snap.State != game.StatePlaying || i >= len(snap.Round.Options) {
		return
	}
	res, after, err := a.ctrl.GuessIndex(i, snap.Round.Seq)
	if err != nil {
		// a tick ended the game between snapshot and guess
		a.Draw(after)
		return
	}
	if res.Correct {
		a.feedback, a.good = "Correct!", true
		a.sound.Correct()
	} else {
		a.feedback, a.good = fmt.Sprintf("Wrong! (off by %.1f)", res.Distance), false
		a.sound.Wrong()
	}
	a.Draw(after)
}

func (a *App) reset() {
	a.feedback = ""
	a.Draw(a.ctrl.Reset())
}

// ------------------------------- drawing -----------------------------------

var (
	styleText  = tcell.StyleDefault
	styleTitle = tcell.StyleDefault.Bold(true)
	styleDim   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleGood  = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleBad   = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
)

// Draw renders g and records swatch positions for mouse input.
func (a *App) Draw(g game.Game) {
	a.screen.Clear()
	a.swatches = a.swatches[:0]

	y := 1
	switch g.State {
	case game.StateGameOver:
		a.drawBanner(y, "Game Over!", styleBad, "Your score", g.Score)
	case game.StateWon:
		a.drawBanner(y, "You Win!", styleGood, "Final Score", g.Score)
	default:
		a.drawBoard(y, g)
	}
	a.screen.Show()
}

func (a *App) drawBoard(y int, g game.Game) {
	a.text(leftMargin, y, styleTitle, "Color Guessing Game")
	y++
	a.text(leftMargin, y, styleDim, fmt.Sprintf("Guess the correct shade! Get %d points before the clock runs out.", g.Rules.WinScore))
	y += 2

	a.fill(rect{leftMargin, y, targetWidth, targetHeight}, g.Round.Target)
	y += targetHeight + 1

	x := leftMargin
	for i, c := range g.Round.Options {
		sw := rect{x, y, swatchWidth, swatchHeight}
		a.fill(sw, c)
		a.swatches = append(a.swatches, sw)
		a.text(x+swatchWidth/2, y+swatchHeight, styleText, fmt.Sprintf("%d", i+1))
		x += swatchWidth + swatchGap
	}
	y += swatchHeight + 2

	a.text(leftMargin, y, styleText, fmt.Sprintf("Score: %d", g.Score))
	a.text(leftMargin+14, y, styleText, "Time Left: "+game.FormatClock(g.Remaining))
	y += 2

	if a.feedback != "" {
		st := styleBad
		if a.good {
			st = styleGood
		}
		a.text(leftMargin, y, st, a.feedback)
	}
	y += 2
	a.text(leftMargin, y, styleDim, fmt.Sprintf("1-%d or click: guess   r: reset score   q: quit", min(len(g.Round.Options), 9)))
}

func (a *App) drawBanner(y int, title string, st tcell.Style, label string, score int) {
	a.text(leftMargin, y, st, title)
	a.text(leftMargin, y+2, styleText, fmt.Sprintf("%s: %d", label, score))
	a.text(leftMargin, y+4, styleDim, "r: play again   q: quit")
}

func (a *App) text(x, y int, st tcell.Style, s string) {
	for _, r := range s {
		a.screen.SetContent(x, y, r, nil, st)
		x++
	}
}

func (a *App) fill(r rect, c color.RGB) {
	st := tcell.StyleDefault.Background(tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)))
	for dy := 0; dy < r.h; dy++ {
		for dx := 0; dx < r.w; dx++ {
			a.screen.SetContent(r.x+dx, r.y+dy, ' ', nil, st)
		}
	}
}
