package game

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/robalobadob/colorgame/internal/color"
)

type controllerFixture struct {
	ctrl    *Controller
	clock   *clockwork.FakeClock
	updates <-chan Game
	ctx     context.Context
}

func newControllerFixture(t *testing.T, rules Rules) *controllerFixture {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	clock := clockwork.NewFakeClockAt(t0)
	s := color.NewSeededSampler(5)
	ctrl := NewController(New("c1", rules, s, clock.Now()), s, clock)
	updates, unsubscribe := ctrl.Subscribe()
	t.Cleanup(func() {
		ctrl.Stop()
		unsubscribe()
	})
	return &controllerFixture{ctrl: ctrl, clock: clock, updates: updates, ctx: ctx}
}

// tick waits for the ticker, advances one interval and returns the published snapshot.
func (f *controllerFixture) tick(t *testing.T) Game {
	t.Helper()
	if err := f.clock.BlockUntilContext(f.ctx, 1); err != nil {
		t.Fatalf("waiting for ticker: %v", err)
	}
	f.clock.Advance(time.Second)
	return f.next(t)
}

func (f *controllerFixture) next(t *testing.T) Game {
	t.Helper()
	select {
	case g := <-f.updates:
		return g
	case <-f.ctx.Done():
		t.Fatal("timed out waiting for update")
		return Game{}
	}
}

func TestControllerCountsDown(t *testing.T) {
	rules := DefaultRules()
	rules.Duration = 3
	f := newControllerFixture(t, rules)
	f.ctrl.Start(f.ctx)

	if !f.ctrl.Running() {
		t.Fatal("Expected ticker running after Start")
	}
	for want := 2; want >= 1; want-- {
		g := f.tick(t)
		if g.Remaining != want || g.State != StatePlaying {
			t.Fatalf("Expected %d remaining while playing, got %d %s", want, g.Remaining, g.State)
		}
	}

	g := f.tick(t)
	if g.State != StateGameOver || g.Remaining != 0 {
		t.Fatalf("Expected game_over at 0, got %s at %d", g.State, g.Remaining)
	}
	if err := f.clock.BlockUntilContext(f.ctx, 0); err != nil {
		t.Fatalf("Expected ticker to stop: %v", err)
	}
	if f.ctrl.Running() {
		t.Error("Expected ticker stopped after game over")
	}
}

func TestControllerResetRestartsTimer(t *testing.T) {
	f := newControllerFixture(t, DefaultRules())
	f.ctrl.Start(f.ctx)

	f.tick(t)
	g := f.tick(t)
	if g.Remaining != 298 {
		t.Fatalf("Expected 298, got %d", g.Remaining)
	}

	reset := f.ctrl.Reset()
	if reset.Remaining != 300 || reset.Score != 0 || reset.State != StatePlaying {
		t.Fatalf("Expected fresh game after reset, got %+v", reset)
	}
	if pub := f.next(t); pub.Remaining != 300 {
		t.Errorf("Expected reset to be published, got remaining %d", pub.Remaining)
	}

	// exactly one ticker survives the reset
	g = f.tick(t)
	if g.Remaining != 299 {
		t.Errorf("Expected 299 after one tick on the new timer, got %d", g.Remaining)
	}
}

func TestControllerResetAfterGameOver(t *testing.T) {
	rules := DefaultRules()
	rules.Duration = 1
	f := newControllerFixture(t, rules)
	f.ctrl.Start(f.ctx)

	if g := f.tick(t); g.State != StateGameOver {
		t.Fatalf("Expected game_over, got %s", g.State)
	}
	if _, _, err := f.ctrl.GuessIndex(0, 0); err == nil {
		t.Error("Expected guess to be rejected after game over")
	}

	f.ctrl.Reset()
	f.next(t)
	if !f.ctrl.Running() {
		t.Fatal("Expected ticker running after reset")
	}
	if g := f.tick(t); g.State != StateGameOver {
		t.Errorf("Expected second game to time out too, got %s", g.State)
	}
}

func TestControllerWinStopsTimer(t *testing.T) {
	rules := DefaultRules()
	rules.WinScore = 2
	f := newControllerFixture(t, rules)
	f.ctrl.Start(f.ctx)

	for i := 0; i < 2; i++ {
		snap := f.ctrl.Snapshot()
		idx := slices.Index(snap.Round.Options, snap.Round.Target)
		res, after, err := f.ctrl.GuessIndex(idx, snap.Round.Seq)
		if err != nil || !res.Correct {
			t.Fatalf("guess %d: correct=%v err=%v", i, res.Correct, err)
		}
		if pub := f.next(t); pub.Score != after.Score {
			t.Errorf("Expected published score %d, got %d", after.Score, pub.Score)
		}
	}

	g := f.ctrl.Snapshot()
	if g.State != StateWon || g.Score != 2 {
		t.Fatalf("Expected won with 2, got %s with %d", g.State, g.Score)
	}
	if err := f.clock.BlockUntilContext(f.ctx, 0); err != nil {
		t.Fatalf("Expected ticker to stop: %v", err)
	}
	f.clock.Advance(10 * time.Second)
	if got := f.ctrl.Snapshot().Remaining; got != 300 {
		t.Errorf("Expected clock frozen at 300 after win, got %d", got)
	}
}

func TestControllerStaleGuess(t *testing.T) {
	f := newControllerFixture(t, DefaultRules())
	snap := f.ctrl.Snapshot()

	if _, _, err := f.ctrl.GuessIndex(0, snap.Round.Seq); err != nil {
		t.Fatalf("first guess: %v", err)
	}
	f.next(t)

	_, after, err := f.ctrl.GuessIndex(0, snap.Round.Seq)
	if err == nil {
		t.Fatal("Expected stale round error")
	}
	if after.Round.Seq != snap.Round.Seq+1 {
		t.Errorf("Expected current round in error snapshot, got seq %d", after.Round.Seq)
	}
}

func TestControllerOnChange(t *testing.T) {
	f := newControllerFixture(t, DefaultRules())
	var (
		mu      sync.Mutex
		seen    []Game
		changes []Change
	)
	f.ctrl.OnChange(func(g Game, ch Change) {
		mu.Lock()
		seen = append(seen, g)
		changes = append(changes, ch)
		mu.Unlock()
	})
	f.ctrl.Start(f.ctx)

	f.tick(t)
	f.ctrl.Reset()
	f.next(t)
	f.ctrl.GuessIndex(0, 0)
	f.next(t)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("Expected 3 change notifications, got %d", len(seen))
	}
	if seen[0].Remaining != 299 || seen[1].Remaining != 300 {
		t.Errorf("Expected 299 then 300, got %d then %d", seen[0].Remaining, seen[1].Remaining)
	}
	want := []Change{ChangeTick, ChangeReset, ChangeGuess}
	if !slices.Equal(changes, want) {
		t.Errorf("Expected changes %v, got %v", want, changes)
	}
}

func TestControllerStaleTickAfterReset(t *testing.T) {
	f := newControllerFixture(t, DefaultRules())
	f.ctrl.Start(f.ctx)
	f.tick(t)

	f.ctrl.mu.Lock()
	oldGen := f.ctrl.gen
	f.ctrl.mu.Unlock()

	f.ctrl.Reset()
	f.next(t)

	// a tick from the cancelled run that only got the lock after Reset
	if f.ctrl.tick(oldGen) {
		t.Error("Expected a tick from the previous run to end that run")
	}
	if got := f.ctrl.Snapshot().Remaining; got != 300 {
		t.Errorf("Expected stale tick to leave 300 remaining, got %d", got)
	}
	select {
	case g := <-f.updates:
		t.Errorf("Expected no update from a stale tick, got remaining %d", g.Remaining)
	default:
	}
	if !f.ctrl.Running() {
		t.Error("Expected the new run to keep ticking")
	}
	if g := f.tick(t); g.Remaining != 299 {
		t.Errorf("Expected 299 after one tick on the new timer, got %d", g.Remaining)
	}
}

func TestControllerClosedStaysStopped(t *testing.T) {
	f := newControllerFixture(t, DefaultRules())
	var (
		mu    sync.Mutex
		calls int
	)
	f.ctrl.OnChange(func(Game, Change) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	f.ctrl.Start(f.ctx)
	f.ctrl.Close()

	if !f.ctrl.Closed() {
		t.Fatal("Expected Closed after Close")
	}
	if f.ctrl.Running() {
		t.Fatal("Expected ticker stopped after Close")
	}

	g := f.ctrl.Reset()
	if g.State != StatePlaying || g.Remaining != 300 {
		t.Errorf("Expected reset snapshot still returned, got %s at %d", g.State, g.Remaining)
	}
	if f.ctrl.Running() {
		t.Error("Expected Reset not to restart a closed controller")
	}
	f.ctrl.Start(f.ctx)
	if f.ctrl.Running() {
		t.Error("Expected Start not to restart a closed controller")
	}
	f.ctrl.GuessIndex(0, 0)

	if err := f.clock.BlockUntilContext(f.ctx, 0); err != nil {
		t.Fatalf("Expected no ticker waiting: %v", err)
	}
	f.clock.Advance(5 * time.Second)
	if got := f.ctrl.Snapshot().Remaining; got != 300 {
		t.Errorf("Expected closed game clock frozen at 300, got %d", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("Expected no change hook calls after Close, got %d", calls)
	}
}

func TestControllerParentCancelStopsTicker(t *testing.T) {
	f := newControllerFixture(t, DefaultRules())
	ctx, cancel := context.WithCancel(f.ctx)
	f.ctrl.Start(ctx)
	if err := f.clock.BlockUntilContext(f.ctx, 1); err != nil {
		t.Fatalf("waiting for ticker: %v", err)
	}

	cancel()
	if err := f.clock.BlockUntilContext(f.ctx, 0); err != nil {
		t.Fatalf("Expected ticker to stop: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for f.ctrl.Running() {
		if time.Now().After(deadline) {
			t.Fatal("Expected Running false after parent cancel")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	f := newControllerFixture(t, DefaultRules())
	ch, unsubscribe := f.ctrl.Subscribe()
	unsubscribe()
	unsubscribe() // second call is a no-op

	f.ctrl.Reset()
	if _, ok := <-ch; ok {
		t.Error("Expected closed channel after unsubscribe")
	}
}

func TestControllerFullCountdown(t *testing.T) {
	f := newControllerFixture(t, DefaultRules())
	f.ctrl.Start(f.ctx)

	var g Game
	for i := 0; i < 300; i++ {
		g = f.tick(t)
	}
	if g.State != StateGameOver || g.Remaining != 0 {
		t.Fatalf("Expected game_over at 0 after 300 ticks, got %s at %d", g.State, g.Remaining)
	}
	if err := f.clock.BlockUntilContext(f.ctx, 0); err != nil {
		t.Fatalf("Expected ticker to stop: %v", err)
	}
	f.clock.Advance(5 * time.Second)
	if got := f.ctrl.Snapshot().Remaining; got != 0 {
		t.Errorf("Expected no further decrements, got %d", got)
	}
}
