package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mercado/internal/catalog"
	"mercado/internal/chat"
	"mercado/internal/config"
	"mercado/internal/game"
	"mercado/internal/metrics"
	"mercado/internal/session"
	"mercado/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type contextKey string

const sessionContextKey contextKey = "session"

type Server struct {
	cfg      config.APIConfig
	log      *slog.Logger
	cat      *catalog.Catalog
	sessions *session.Manager
	store    *store.Store
	hub      *chat.Hub
	mux      *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, cat *catalog.Catalog, sessions *session.Manager, db *store.Store, hub *chat.Hub) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		log:      logger,
		cat:      cat,
		sessions: sessions,
		store:    db,
		hub:      hub,
		mux:      chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(countRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Get("/catalog", s.handleCatalog)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/announcer", s.handleAnnouncer)
		r.Get("/chat/history", s.handleChatHistory)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/auth/logout", s.handleLogout)
			r.Post("/session/reset", s.handleReset)

			r.Get("/state", s.handleState)
			r.Post("/click", s.handleClick)
			r.Post("/products/{id}/buy", s.handleBuyProduct)
			r.Post("/products/{id}/unlock", s.handleUnlockProduct)
			r.Post("/staff/{id}/hire", s.handleHireStaff)
			r.Post("/upgrades/{id}/buy", s.handleBuyUpgrade)
			r.Post("/prestige", s.handlePrestige)
			r.Post("/credits/spend", s.handleSpendCredits)
			r.Post("/codes/redeem", s.handleRedeemCode)
			r.Post("/settings/sound", s.handleSound)
			r.Post("/chat/color", s.handleChatColor)
			r.Get("/chat/ws", s.handleChatWS)
		})

		r.Post("/admin/grant", s.handleAdminGrant)
	})
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.HTTPRequests.WithLabelValues(route, fmt.Sprintf("%dxx", ww.Status()/100)).Inc()
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		sess, ok := s.sessions.Get(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) (*session.Session, error) {
	sess, ok := ctx.Value(sessionContextKey).(*session.Session)
	if !ok || sess == nil {
		return nil, errors.New("missing session context")
	}
	return sess, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.sessions.Register(r.Context(), strings.TrimSpace(in.Username), in.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.loginPayload(sess, 0, false))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.sessions.Login(r.Context(), strings.TrimSpace(in.Username), in.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.loginPayload(res.Session, res.OfflineEarnings, res.Tampered))
}

func (s *Server) loginPayload(sess *session.Session, offline float64, tampered bool) map[string]any {
	st, status := sess.Snapshot()
	out := map[string]any{
		"token":    sess.Token,
		"username": sess.Username,
		"tampered": tampered,
		"state":    s.statePayload(st, status),
	}
	if offline > 0 {
		out["offline_earnings"] = offline
		out["offline_earnings_pretty"] = game.FormatMoney(offline)
	}
	return out
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := s.sessions.Logout(r.Context(), sess.Token); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := s.sessions.Reset(r.Context(), sess.Token); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// statePayload decorates the raw state with the derived numbers every
// client screen needs.
func (s *Server) statePayload(st game.State, status session.Status) map[string]any {
	out := map[string]any{
		"state":        st,
		"tampered":     status == session.StatusTamperDetected,
		"income_rate":  game.TotalIncomeRate(s.cat, &st),
		"click_power":  game.ClickPower(s.cat, &st),
		"money_pretty": game.FormatMoney(st.Money),
		"title":        s.cat.TitleFor(st.PrestigeLevel).Name,
	}
	if next, ok := s.cat.NextTitle(st.PrestigeLevel); ok {
		out["next_title"] = next
	}
	return out
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	st, status := sess.Snapshot()
	writeJSON(w, http.StatusOK, s.statePayload(st, status))
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	amount, err := sess.Click()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"amount":        amount,
		"amount_pretty": game.FormatMoney(amount),
	})
}

func (s *Server) handleBuyProduct(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Amount string `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(in.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := sess.PurchaseProduct(chi.URLParam(r, "id"), amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":       q.Count,
		"cost":        q.Cost,
		"cost_pretty": game.FormatMoney(q.Cost),
	})
}

func (s *Server) handleUnlockProduct(w http.ResponseWriter, r *http.Request) {
	s.handleSimpleAction(w, r, func(sess *session.Session) error {
		return sess.UnlockProduct(chi.URLParam(r, "id"))
	})
}

func (s *Server) handleHireStaff(w http.ResponseWriter, r *http.Request) {
	s.handleSimpleAction(w, r, func(sess *session.Session) error {
		return sess.HireStaff(chi.URLParam(r, "id"))
	})
}

func (s *Server) handleBuyUpgrade(w http.ResponseWriter, r *http.Request) {
	s.handleSimpleAction(w, r, func(sess *session.Session) error {
		return sess.BuyUpgrade(chi.URLParam(r, "id"))
	})
}

func (s *Server) handlePrestige(w http.ResponseWriter, r *http.Request) {
	s.handleSimpleAction(w, r, func(sess *session.Session) error {
		return sess.Prestige()
	})
}

func (s *Server) handleSpendCredits(w http.ResponseWriter, r *http.Request) {
	s.handleSimpleAction(w, r, func(sess *session.Session) error {
		return sess.SpendCredits()
	})
}

// handleSimpleAction runs a transition and replies with the fresh state.
// Most transitions no-op quietly on failed preconditions, so the state is
// the only useful answer.
func (s *Server) handleSimpleAction(w http.ResponseWriter, r *http.Request, fn func(*session.Session) error) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := fn(sess); err != nil {
		writeDomainError(w, err)
		return
	}
	st, status := sess.Snapshot()
	writeJSON(w, http.StatusOK, s.statePayload(st, status))
}

func (s *Server) handleRedeemCode(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	credits, err := sess.RedeemCode(strings.ToUpper(strings.TrimSpace(in.Code)))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"credits": credits})
}

func (s *Server) handleSound(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := sess.SetSound(in.Enabled); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleChatColor(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Color string `json:"color"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := sess.SetChatColor(strings.TrimSpace(in.Color)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	username, color := sess.ChatIdentity()
	s.hub.ServeWS(w, r, username, color)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.store.RecentMessages(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cat)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	var (
		rows []store.Entry
		err  error
	)
	mode := r.URL.Query().Get("mode")
	switch mode {
	case "", "money":
		mode = "money"
		rows, err = s.store.TopByMoney(r.Context(), 50)
	case "time":
		rows, err = s.store.TopByPlayTime(r.Context(), 50)
	default:
		writeError(w, http.StatusBadRequest, "mode must be money or time")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": mode, "rows": rows})
}

func (s *Server) handleAnnouncer(w http.ResponseWriter, _ *http.Request) {
	quote := ""
	if len(s.cat.Quotes) > 0 {
		quote = s.cat.Quotes[rand.Intn(len(s.cat.Quotes))]
	}
	writeJSON(w, http.StatusOK, map[string]any{"quote": quote})
}

// handleAdminGrant credits an online player. Guarded by the operator token,
// disabled entirely when none is configured.
func (s *Server) handleAdminGrant(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AdminToken == "" || r.Header.Get("X-Admin-Token") != s.cfg.AdminToken {
		writeError(w, http.StatusForbidden, "admin token required")
		return
	}
	var in struct {
		Username string `json:"username"`
		Credits  int    `json:"credits"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := s.sessions.GetByUser(strings.TrimSpace(in.Username))
	if !ok {
		writeError(w, http.StatusNotFound, "player is not online")
		return
	}
	if err := sess.GrantCredits(in.Credits); err != nil {
		writeDomainError(w, err)
		return
	}
	s.log.Info("admin credit grant", "user", in.Username, "credits", in.Credits)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func parseAmount(v string) (int, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" || v == "1" {
		return 1, nil
	}
	if v == "max" {
		return game.BuyMax, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.New("amount must be a positive integer or \"max\"")
	}
	return n, nil
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrTampered):
		writeError(w, http.StatusLocked, err.Error())
	case errors.Is(err, game.ErrUnknownItem):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrInvalidCode):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrCodeAlreadyUsed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrInvalidUsername):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, store.ErrUsernameTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrBadCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
