package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"mercado/internal/catalog"
	"mercado/internal/chat"
	"mercado/internal/config"
	"mercado/internal/integrity"
	"mercado/internal/session"
	"mercado/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "api_test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	cat := catalog.Default()
	signer := integrity.NewSigner("api-test-secret")
	sessions := session.NewManager(cat, signer, db, time.Hour, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sessions.Shutdown(ctx)
	})

	hub := chat.NewHub(db, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	cfg := config.APIConfig{AdminToken: "operator-token"}
	return New(cfg, logger, cat, sessions, db, hub), db
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, w.Body.String())
	}
	return out
}

func registerPlayer(t *testing.T, srv *Server, username string) string {
	t.Helper()
	w := doJSON(t, srv, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"username": username,
		"password": "hunter22",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	out := decodeBody(t, w)
	token, _ := out["token"].(string)
	if token == "" {
		t.Fatalf("register: missing token in %v", out)
	}
	return token
}

func TestRegisterAndLoginFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	token := registerPlayer(t, srv, "ana")

	w := doJSON(t, srv, http.MethodGet, "/v1/state", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("state: expected 200, got %d", w.Code)
	}
	out := decodeBody(t, w)
	if out["title"] != "NOOB" {
		t.Fatalf("expected starting title NOOB, got %v", out["title"])
	}
	if pretty, _ := out["money_pretty"].(string); pretty == "" {
		t.Fatalf("expected a formatted money value, got %v", out["money_pretty"])
	}

	// Duplicate username is rejected.
	w = doJSON(t, srv, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"username": "ana",
		"password": "other",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", w.Code)
	}

	// Wrong password is rejected.
	w = doJSON(t, srv, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"username": "ana",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"username": "ana",
		"password": "hunter22",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/v1/state", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/click", "not-a-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bogus token: expected 401, got %d", w.Code)
	}
}

func TestClickThenBuyProduct(t *testing.T) {
	srv, _ := newTestServer(t)
	token := registerPlayer(t, srv, "bruno")

	// Broke: max buy reports zero affordable levels instead of failing.
	w := doJSON(t, srv, http.MethodPost, "/v1/products/balas/buy", token, map[string]any{"amount": "max"})
	if w.Code != http.StatusOK {
		t.Fatalf("max buy: expected 200, got %d", w.Code)
	}
	out := decodeBody(t, w)
	if out["count"].(float64) != 0 {
		t.Fatalf("expected zero affordable levels, got %v", out["count"])
	}

	// Work the register until level 2 of the starter section is affordable.
	earned := 0.0
	for i := 0; i < 15; i++ {
		cw := doJSON(t, srv, http.MethodPost, "/v1/click", token, nil)
		if cw.Code != http.StatusOK {
			t.Fatalf("click: expected 200, got %d", cw.Code)
		}
		earned += decodeBody(t, cw)["amount"].(float64)
	}
	if earned < 15 {
		t.Fatalf("15 clicks should earn at least 15, got %v", earned)
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/products/balas/buy", token, map[string]any{"amount": "1"})
	if w.Code != http.StatusOK {
		t.Fatalf("buy: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	out = decodeBody(t, w)
	if out["count"].(float64) != 1 {
		t.Fatalf("expected to buy exactly 1 level, got %v", out["count"])
	}
	if out["cost"].(float64) != 11 {
		t.Fatalf("expected level 2 to cost 11, got %v", out["cost"])
	}
}

func TestBuyUnknownProduct(t *testing.T) {
	srv, _ := newTestServer(t)
	token := registerPlayer(t, srv, "carla")

	w := doJSON(t, srv, http.MethodPost, "/v1/products/caviar/buy", token, map[string]any{"amount": "1"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown product: expected 404, got %d", w.Code)
	}
}

func TestRedeemCode(t *testing.T) {
	srv, _ := newTestServer(t)
	token := registerPlayer(t, srv, "diego")

	w := doJSON(t, srv, http.MethodPost, "/v1/codes/redeem", token, map[string]any{"code": "bemvindo"})
	if w.Code != http.StatusOK {
		t.Fatalf("redeem: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	out := decodeBody(t, w)
	if out["credits"].(float64) != 5 {
		t.Fatalf("expected 5 credits from welcome code, got %v", out["credits"])
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/codes/redeem", token, map[string]any{"code": "BEMVINDO"})
	if w.Code != http.StatusConflict {
		t.Fatalf("reused code: expected 409, got %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/codes/redeem", token, map[string]any{"code": "NOPE"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("bogus code: expected 404, got %d", w.Code)
	}
}

func TestLeaderboardModes(t *testing.T) {
	srv, db := newTestServer(t)
	ctx := context.Background()

	entries := []store.Entry{
		{Username: "rica", Title: "GERENTE", LifetimeEarnings: 5000, PlayTime: 10},
		{Username: "paciente", Title: "NOOB", LifetimeEarnings: 10, PlayTime: 9000},
	}
	for _, e := range entries {
		if err := db.UpsertEntry(ctx, e); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}

	w := doJSON(t, srv, http.MethodGet, "/v1/leaderboard", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("leaderboard: expected 200, got %d", w.Code)
	}
	out := decodeBody(t, w)
	rows := out["rows"].([]any)
	first := rows[0].(map[string]any)
	if first["username"] != "rica" {
		t.Fatalf("money mode: expected rica first, got %v", first["username"])
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/leaderboard?mode=time", "", nil)
	out = decodeBody(t, w)
	if out["mode"] != "time" {
		t.Fatalf("expected mode time, got %v", out["mode"])
	}
	rows = out["rows"].([]any)
	first = rows[0].(map[string]any)
	if first["username"] != "paciente" {
		t.Fatalf("time mode: expected paciente first, got %v", first["username"])
	}
}

func TestCatalogAndAnnouncer(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/v1/catalog", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("catalog: expected 200, got %d", w.Code)
	}
	out := decodeBody(t, w)
	if _, ok := out["products"]; !ok {
		t.Fatalf("catalog response missing products: %v", out)
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/announcer", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("announcer: expected 200, got %d", w.Code)
	}
	out = decodeBody(t, w)
	if out["quote"] == "" {
		t.Fatalf("expected a non-empty announcer quote")
	}
}

func TestAdminGrant(t *testing.T) {
	srv, _ := newTestServer(t)
	token := registerPlayer(t, srv, "lojista")

	w := doJSON(t, srv, http.MethodPost, "/v1/admin/grant", "", map[string]any{
		"username": "lojista",
		"credits":  25,
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("missing admin token: expected 403, got %d", w.Code)
	}

	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(map[string]any{"username": "lojista", "credits": 25})
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/grant", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", "operator-token")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin grant: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/state", token, nil)
	out := decodeBody(t, w)
	state := out["state"].(map[string]any)
	if state["credits"].(float64) < 25 {
		t.Fatalf("expected at least 25 credits after grant, got %v", state["credits"])
	}
}

func TestSoundAndChatColor(t *testing.T) {
	srv, _ := newTestServer(t)
	token := registerPlayer(t, srv, "eduarda")

	w := doJSON(t, srv, http.MethodPost, "/v1/settings/sound", token, map[string]any{"enabled": false})
	if w.Code != http.StatusOK {
		t.Fatalf("sound: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/chat/color", token, map[string]any{"color": "#1d4ed8"})
	if w.Code != http.StatusOK {
		t.Fatalf("chat color: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/chat/color", token, map[string]any{"color": "#ff8800"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("off-palette color: expected 404, got %d (%s)", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/state", token, nil)
	out := decodeBody(t, w)
	state := out["state"].(map[string]any)
	if state["sound_enabled"].(bool) {
		t.Fatalf("expected sound disabled")
	}
	if state["chat_color"] != "#1d4ed8" {
		t.Fatalf("expected chat color to persist, got %v", state["chat_color"])
	}
}
