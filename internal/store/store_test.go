package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "mercado.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAccounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateAccount(ctx, "leo", "segredo"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateAccount(ctx, "leo", "outro"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if err := s.Authenticate(ctx, "leo", "segredo"); err != nil {
		t.Fatalf("auth: %v", err)
	}
	if err := s.Authenticate(ctx, "leo", "errado"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if err := s.Authenticate(ctx, "ninguem", "x"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials for unknown user, got %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateAccount(ctx, "leo", "x"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.LoadState(ctx, "leo"); !errors.Is(err, ErrNoSave) {
		t.Fatalf("expected ErrNoSave, got %v", err)
	}

	payload := []byte(`{"data":{"money":5},"hash":"abc"}`)
	if err := s.SaveState(ctx, "leo", payload); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadState(ctx, "leo")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch: %s", got)
	}

	// Overwrite wins.
	if err := s.SaveState(ctx, "leo", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, _ = s.LoadState(ctx, "leo")
	if string(got) != `{"v":2}` {
		t.Fatalf("overwrite lost: %s", got)
	}

	if err := s.DeleteSave(ctx, "leo"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.LoadState(ctx, "leo"); !errors.Is(err, ErrNoSave) {
		t.Fatalf("expected ErrNoSave after delete, got %v", err)
	}
}

func TestLeaderboardOrderingAndTies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entries := []Entry{
		{Username: "bruno", LifetimeEarnings: 100, PlayTime: 50},
		{Username: "ana", LifetimeEarnings: 100, PlayTime: 300},
		{Username: "carla", LifetimeEarnings: 900, PlayTime: 10},
	}
	for _, e := range entries {
		if err := s.UpsertEntry(ctx, e); err != nil {
			t.Fatalf("upsert %s: %v", e.Username, err)
		}
	}

	byMoney, err := s.TopByMoney(ctx, 10)
	if err != nil {
		t.Fatalf("top by money: %v", err)
	}
	wantMoney := []string{"carla", "ana", "bruno"} // tie broken by username
	for i, w := range wantMoney {
		if byMoney[i].Username != w {
			t.Fatalf("money order[%d] = %s, want %s", i, byMoney[i].Username, w)
		}
	}

	byTime, err := s.TopByPlayTime(ctx, 10)
	if err != nil {
		t.Fatalf("top by time: %v", err)
	}
	wantTime := []string{"ana", "bruno", "carla"}
	for i, w := range wantTime {
		if byTime[i].Username != w {
			t.Fatalf("time order[%d] = %s, want %s", i, byTime[i].Username, w)
		}
	}
}

func TestLeaderboardCapKeepsBothRankings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// 60 grinders rich in money, poor in play time.
	for i := 0; i < 60; i++ {
		e := Entry{
			Username:         fmt.Sprintf("rico%02d", i),
			LifetimeEarnings: float64(1000000 + i),
			PlayTime:         1,
		}
		if err := s.UpsertEntry(ctx, e); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	// One veteran with huge play time but no money must survive pruning.
	vet := Entry{Username: "veterano", LifetimeEarnings: 1, PlayTime: 9999999}
	if err := s.UpsertEntry(ctx, vet); err != nil {
		t.Fatalf("upsert veteran: %v", err)
	}

	byMoney, _ := s.TopByMoney(ctx, 50)
	if len(byMoney) != 50 {
		t.Fatalf("money board size = %d, want 50", len(byMoney))
	}
	byTime, _ := s.TopByPlayTime(ctx, 50)
	if byTime[0].Username != "veterano" {
		t.Fatalf("veteran pruned; time leader = %s", byTime[0].Username)
	}
}

func TestSeedBotsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bots := []Entry{{Username: "MasterMarket", Title: "CEO", LifetimeEarnings: 5e9, PlayTime: 360000}}
	if err := s.SeedBots(ctx, bots); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// A second seed never overwrites the drifted row.
	if err := s.UpsertEntry(ctx, Entry{Username: "MasterMarket", Title: "CEO", LifetimeEarnings: 6e9, PlayTime: 360001, IsBot: true}); err != nil {
		t.Fatalf("drift: %v", err)
	}
	if err := s.SeedBots(ctx, bots); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	top, _ := s.TopByMoney(ctx, 1)
	if top[0].LifetimeEarnings != 6e9 || !top[0].IsBot {
		t.Fatalf("reseed clobbered drift: %+v", top[0])
	}
}

func TestDriftBotsOnlyTouchesBots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SeedBots(ctx, []Entry{{Username: "MasterMarket", LifetimeEarnings: 1000, PlayTime: 100}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.UpsertEntry(ctx, Entry{Username: "leo", LifetimeEarnings: 1000, PlayTime: 100}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := s.DriftBots(ctx, 0.5, 60*time.Second); err != nil {
		t.Fatalf("drift: %v", err)
	}
	rows, _ := s.TopByMoney(ctx, 10)
	for _, e := range rows {
		switch e.Username {
		case "MasterMarket":
			if e.LifetimeEarnings != 1500 || e.PlayTime != 160 {
				t.Fatalf("bot not drifted: %+v", e)
			}
		case "leo":
			if e.LifetimeEarnings != 1000 || e.PlayTime != 100 {
				t.Fatalf("player drifted: %+v", e)
			}
		}
	}
}

func TestChatHistoryCap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 55; i++ {
		m := Message{Username: "leo", Color: "#fff", Body: fmt.Sprintf("msg %d", i)}
		if _, err := s.AppendMessage(ctx, m); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := s.RecentMessages(ctx, 50)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 50 {
		t.Fatalf("history size = %d, want 50", len(got))
	}
	if got[0].Body != "msg 5" || got[49].Body != "msg 54" {
		t.Fatalf("history window wrong: first=%q last=%q", got[0].Body, got[49].Body)
	}
}
