package session

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/robalobadob/colorgame/internal/color"
	"github.com/robalobadob/colorgame/internal/game"
	"github.com/robalobadob/colorgame/internal/store"
)

func newTestManager(t *testing.T, st store.Store, clock clockwork.Clock) *Manager {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var seed uint64
	m := NewManager(ctx, st, Options{
		Rules: game.DefaultRules(),
		TTL:   10 * time.Minute,
		Clock: clock,
		NewSampler: func() *color.Sampler {
			seed++
			return color.NewSeededSampler(seed)
		},
	})
	t.Cleanup(func() {
		m.Close()
		cancel()
	})
	return m
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newTestManager(t, st, clockwork.NewFakeClock())

	ctrl, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ctrl.ID() == "" {
		t.Fatal("Expected a session id")
	}
	if m.Len() != 1 {
		t.Errorf("Expected 1 live session, got %d", m.Len())
	}
	if !ctrl.Running() {
		t.Error("Expected the countdown to be running")
	}

	got, err := m.Get(ctx, ctrl.ID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != ctrl {
		t.Error("Expected Get to return the live controller")
	}

	if _, err := st.Get(ctx, ctrl.ID()); err != nil {
		t.Errorf("Expected the new session to be saved, got %v", err)
	}
}

func TestGetUnknown(t *testing.T) {
	m := newTestManager(t, store.NewMemoryStore(), clockwork.NewFakeClock())
	if _, err := m.Get(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTransitionsArePersisted(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newTestManager(t, st, clockwork.NewFakeClock())
	ctrl, _ := m.Create(ctx)

	snap := ctrl.Snapshot()
	idx := slices.Index(snap.Round.Options, snap.Round.Target)
	if _, _, err := ctrl.GuessIndex(idx, snap.Round.Seq); err != nil {
		t.Fatalf("guess: %v", err)
	}

	saved, err := st.Get(ctx, ctrl.ID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if saved.Score != 1 || saved.Round.Seq != snap.Round.Seq+1 {
		t.Errorf("Expected saved score 1 and next round, got score %d seq %d", saved.Score, saved.Round.Seq)
	}
}

func TestRestoreFromStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	clock := clockwork.NewFakeClock()

	first := newTestManager(t, st, clock)
	ctrl, _ := first.Create(ctx)
	snap := ctrl.Snapshot()
	idx := slices.Index(snap.Round.Options, snap.Round.Target)
	_, before, _ := ctrl.GuessIndex(idx, snap.Round.Seq)
	first.Close()

	// a second manager over the same store stands in for a restarted process
	second := newTestManager(t, st, clock)
	restored, err := second.Get(ctx, ctrl.ID())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	got := restored.Snapshot()
	if got.Score != before.Score || got.Round.Seq != before.Round.Seq || got.Round.Target != before.Round.Target {
		t.Errorf("Expected restored %+v, got %+v", before, got)
	}
	if !restored.Running() {
		t.Error("Expected restored playing session to tick")
	}
}

func TestRestoreRejectsEmptyRound(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	_ = st.Save(ctx, game.Game{ID: "broken", Rules: game.DefaultRules(), State: game.StatePlaying})

	m := newTestManager(t, st, clockwork.NewFakeClock())
	if _, err := m.Get(ctx, "broken"); err == nil {
		t.Error("Expected error restoring a snapshot without a round")
	}
}

func TestReap(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	m := newTestManager(t, st, clock)

	idle, _ := m.Create(ctx)
	active, _ := m.Create(ctx)
	start := clock.Now()

	if n := m.Reap(ctx, start.Add(5*time.Minute)); n != 0 {
		t.Fatalf("Expected nothing reaped yet, got %d", n)
	}

	clock.Advance(8 * time.Minute)
	m.Touch(active.ID())
	if n := m.Reap(ctx, start.Add(12*time.Minute)); n != 1 {
		t.Fatalf("Expected 1 reaped, got %d", n)
	}

	if m.Len() != 1 {
		t.Errorf("Expected 1 live session, got %d", m.Len())
	}
	if idle.Running() {
		t.Error("Expected reaped session's ticker to be stopped")
	}
	if _, err := st.Get(ctx, idle.ID()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected reaped snapshot deleted, got %v", err)
	}
	if _, err := st.Get(ctx, active.ID()); err != nil {
		t.Errorf("Expected active snapshot kept, got %v", err)
	}
}

func TestReapedSessionStaysDead(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	m := newTestManager(t, st, clock)

	// a request resolved ctrl just before the reaper ran
	ctrl, _ := m.Create(ctx)
	if n := m.Reap(ctx, clock.Now().Add(time.Hour)); n != 1 {
		t.Fatalf("Expected 1 reaped, got %d", n)
	}

	ctrl.Reset()
	snap := ctrl.Snapshot()
	idx := slices.Index(snap.Round.Options, snap.Round.Target)
	ctrl.GuessIndex(idx, snap.Round.Seq)

	if ctrl.Running() {
		t.Error("Expected a reaped controller not to restart its ticker")
	}
	if m.Len() != 0 {
		t.Errorf("Expected no live sessions, got %d", m.Len())
	}
	if _, err := st.Get(ctx, ctrl.ID()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected no snapshot for a reaped session, got %v", err)
	}
	if _, err := m.Get(ctx, ctrl.ID()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected reaped session to stay unknown, got %v", err)
	}
}

func TestTickCheckpoints(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newTestManager(t, st, clockwork.NewFakeClock())
	ctrl, _ := m.Create(ctx)
	g := ctrl.Snapshot()

	tests := []struct {
		name      string
		remaining int
		state     game.State
		change    game.Change
		want      int // remaining in the store afterwards
	}{
		{"tick between checkpoints", 297, game.StatePlaying, game.ChangeTick, 300},
		{"checkpoint tick", 290, game.StatePlaying, game.ChangeTick, 290},
		{"tick after checkpoint", 289, game.StatePlaying, game.ChangeTick, 290},
		{"guess", 288, game.StatePlaying, game.ChangeGuess, 288},
		{"reset", 287, game.StatePlaying, game.ChangeReset, 287},
		{"final tick", 0, game.StateGameOver, game.ChangeTick, 0},
		{"win", 123, game.StateWon, game.ChangeGuess, 123},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := g.Clone()
			next.Remaining, next.State = tt.remaining, tt.state
			m.persist(next, tt.change)

			saved, err := st.Get(ctx, g.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if saved.Remaining != tt.want {
				t.Errorf("Expected %d saved, got %d", tt.want, saved.Remaining)
			}
		})
	}
}

func TestCloseSavesFinalSnapshot(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newTestManager(t, st, clockwork.NewFakeClock())
	ctrl, _ := m.Create(ctx)

	// the store lags behind between checkpoints
	stale := ctrl.Snapshot()
	stale.Remaining = 296
	_ = st.Save(ctx, stale)

	m.Close()
	if !ctrl.Closed() {
		t.Error("Expected Close to close every controller")
	}
	saved, err := st.Get(ctx, ctrl.ID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if want := ctrl.Snapshot().Remaining; saved.Remaining != want {
		t.Errorf("Expected final snapshot %d saved on Close, got %d", want, saved.Remaining)
	}
}

func TestRunReapsOnInterval(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	clock := clockwork.NewFakeClock()
	m := newTestManager(t, store.NewMemoryStore(), clock)
	if _, err := m.Create(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}

	// pause the session ticker so the only waiter is the reaper
	for _, e := range m.sessions {
		e.ctrl.Stop()
	}

	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Minute)
		close(done)
	}()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("waiting for reaper: %v", err)
	}
	// step a minute at a time so no reaper tick is dropped
	for i := 0; m.Len() != 0; i++ {
		if i > 30 {
			t.Fatal("Expected idle session to be reaped")
		}
		clock.Advance(time.Minute)
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}
