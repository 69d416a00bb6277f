package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"mercado/internal/game"
	"mercado/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	cat, signer, db := testDeps(t)
	m := NewManager(cat, signer, db, time.Minute, slog.Default())
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	return m, db
}

func TestRegisterAndLogin(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s, err := m.Register(ctx, "leo", "segredo")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := m.Get(s.Token); !ok {
		t.Fatalf("session not resolvable by token")
	}
	if _, err := m.Register(ctx, "leo", "outro"); !errors.Is(err, store.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if _, err := m.Register(ctx, "x", "p"); !errors.Is(err, game.ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}

	if err := m.Logout(ctx, s.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := m.Get(s.Token); ok {
		t.Fatalf("token survived logout")
	}

	res, err := m.Login(ctx, "leo", "segredo")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Tampered || res.Session == nil {
		t.Fatalf("unexpected login result: %+v", res)
	}
	if _, err := m.Login(ctx, "leo", "errada"); !errors.Is(err, store.ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
}

func TestSecondLoginEvictsFirst(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.Register(ctx, "leo", "x")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	res, err := m.Login(ctx, "leo", "x")
	if err != nil {
		t.Fatalf("relogin: %v", err)
	}
	if _, ok := m.Get(first.Token); ok {
		t.Fatalf("old token still valid after relogin")
	}
	if _, ok := m.Get(res.Session.Token); !ok {
		t.Fatalf("new token not valid")
	}
}

func TestLoginAppliesOfflineEarnings(t *testing.T) {
	m, db := newTestManager(t)
	ctx := context.Background()

	if err := db.CreateAccount(ctx, "leo", "x"); err != nil {
		t.Fatalf("account: %v", err)
	}
	st := game.NewState(m.cat.Starter, time.Now())
	st.ProductLevels["balas"] = 5 // 5/s
	st.LastSaveTime = time.Now().Unix() - 100
	payload, err := m.signer.Seal(st)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if err := db.SaveState(ctx, "leo", payload); err != nil {
		t.Fatalf("save: %v", err)
	}

	res, err := m.Login(ctx, "leo", "x")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	// 100s at 5/s, with a little slack for clock ticks between setup and
	// login.
	if res.OfflineEarnings < 500 || res.OfflineEarnings > 520 {
		t.Fatalf("offline earnings = %v, want ~500", res.OfflineEarnings)
	}
}

func TestLoginSkipsShortAbsence(t *testing.T) {
	m, db := newTestManager(t)
	ctx := context.Background()

	if err := db.CreateAccount(ctx, "leo", "x"); err != nil {
		t.Fatalf("account: %v", err)
	}
	st := game.NewState(m.cat.Starter, time.Now())
	st.ProductLevels["balas"] = 5
	st.LastSaveTime = time.Now().Unix() - 3
	payload, _ := m.signer.Seal(st)
	if err := db.SaveState(ctx, "leo", payload); err != nil {
		t.Fatalf("save: %v", err)
	}

	res, err := m.Login(ctx, "leo", "x")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.OfflineEarnings != 0 {
		t.Fatalf("short absence paid out %v", res.OfflineEarnings)
	}
}

func TestLoginWithTamperedSaveFreezes(t *testing.T) {
	m, db := newTestManager(t)
	ctx := context.Background()

	if err := db.CreateAccount(ctx, "leo", "x"); err != nil {
		t.Fatalf("account: %v", err)
	}
	st := game.NewState(m.cat.Starter, time.Now())
	st.Money = 100
	payload, _ := m.signer.Seal(st)
	edited := bytes.Replace(payload, []byte("100"), []byte("9999999"), 1)
	if err := db.SaveState(ctx, "leo", edited); err != nil {
		t.Fatalf("save: %v", err)
	}

	res, err := m.Login(ctx, "leo", "x")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !res.Tampered {
		t.Fatalf("tampered save not detected")
	}
	if _, err := res.Session.Click(); !errors.Is(err, game.ErrTampered) {
		t.Fatalf("frozen session accepted a click: %v", err)
	}

	// The only way out: reset, then log in fresh.
	if err := m.Reset(ctx, res.Session.Token); err != nil {
		t.Fatalf("reset: %v", err)
	}
	res2, err := m.Login(ctx, "leo", "x")
	if err != nil {
		t.Fatalf("relogin: %v", err)
	}
	if res2.Tampered {
		t.Fatalf("fresh account still tampered")
	}
	snap, status := res2.Session.Snapshot()
	if status != StatusActive || snap.Money != 0 {
		t.Fatalf("reset did not start fresh: %+v", snap)
	}
}

func TestLoginMigratesLegacySave(t *testing.T) {
	m, db := newTestManager(t)
	ctx := context.Background()

	if err := db.CreateAccount(ctx, "leo", "x"); err != nil {
		t.Fatalf("account: %v", err)
	}
	// Pre-signing era record: a bare state object.
	if err := db.SaveState(ctx, "leo", []byte(`{"money":250,"product_levels":{"balas":3}}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	res, err := m.Login(ctx, "leo", "x")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Tampered {
		t.Fatalf("legacy save treated as tampering")
	}
	if !res.Legacy {
		t.Fatalf("legacy save not flagged")
	}
	snap, _ := res.Session.Snapshot()
	if snap.ProductLevels["balas"] != 3 {
		t.Fatalf("legacy state lost: %+v", snap)
	}

	// Login re-sealed it: the stored record now verifies.
	raw, err := db.LoadState(ctx, "leo")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, legacy, err := m.signer.Open(raw); err != nil || legacy {
		t.Fatalf("save not re-sealed: legacy=%v err=%v", legacy, err)
	}
}
