// Package session owns the live game loop for each logged-in player: the
// progression state machine, its three timers (income tick, autosave,
// leaderboard publish), and the login/logout lifecycle around it.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"mercado/internal/catalog"
	"mercado/internal/game"
	"mercado/internal/integrity"
	"mercado/internal/metrics"
	"mercado/internal/store"
)

const (
	saveInterval = 10 * time.Second

	creditEarnSeconds = int64(game.CreditEarnInterval / time.Second)
)

// Status is the session's progression state. TamperDetected is terminal:
// every money-affecting transition refuses until the player resets and logs
// back in.
type Status int

const (
	StatusActive Status = iota
	StatusTamperDetected
)

// Session is one player's live state. All mutation happens under mu; the
// tickers and the HTTP handlers share it.
type Session struct {
	Username string
	Token    string

	cat    *catalog.Catalog
	signer *integrity.Signer
	store  *store.Store
	log    *slog.Logger

	rankEvery time.Duration

	mu     sync.Mutex
	state  *game.State
	status Status

	done     chan struct{}
	stopOnce sync.Once
}

func newSession(username, token string, st *game.State, cat *catalog.Catalog, signer *integrity.Signer, db *store.Store, rankEvery time.Duration, log *slog.Logger) *Session {
	return &Session{
		Username:  username,
		Token:     token,
		cat:       cat,
		signer:    signer,
		store:     db,
		log:       log.With("user", username),
		rankEvery: rankEvery,
		state:     st,
		status:    StatusActive,
		done:      make(chan struct{}),
	}
}

// run drives the three periodic timers until stop. Persistence and
// leaderboard writes are fire-and-forget: a failed write is logged and the
// loop moves on.
func (s *Session) run() {
	tick := time.NewTicker(game.TickInterval)
	save := time.NewTicker(saveInterval)
	rank := time.NewTicker(s.rankEvery)
	defer tick.Stop()
	defer save.Stop()
	defer rank.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-tick.C:
			s.Tick()
		case <-save.C:
			s.Save(context.Background())
		case <-rank.C:
			s.PublishRank(context.Background())
		}
	}
}

func (s *Session) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Snapshot returns a copy of the current state plus the session status.
// Maps are cloned so callers can serialize without holding the lock.
func (s *Session) Snapshot() (game.State, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneState(s.state), s.status
}

func cloneState(st *game.State) game.State {
	out := *st
	out.ProductLevels = make(map[string]int, len(st.ProductLevels))
	for k, v := range st.ProductLevels {
		out.ProductLevels[k] = v
	}
	out.HiredStaff = make(map[string]bool, len(st.HiredStaff))
	for k, v := range st.HiredStaff {
		out.HiredStaff[k] = v
	}
	out.PurchasedUpgrades = make(map[string]bool, len(st.PurchasedUpgrades))
	for k, v := range st.PurchasedUpgrades {
		out.PurchasedUpgrades[k] = v
	}
	out.RedeemedCodes = append([]string(nil), st.RedeemedCodes...)
	return out
}

// Tick applies one second of passive income. A money value the engine could
// never have produced trips tamper detection: the in-memory state is
// replaced with a fresh one and frozen, while the last good save stays on
// disk as evidence.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return
	}
	if !game.Plausible(s.state.Money) {
		s.log.Warn("implausible money value, freezing session", "money", s.state.Money)
		s.state = game.NewState(s.cat.Starter, time.Now())
		s.status = StatusTamperDetected
		metrics.TamperTrips.Inc()
		return
	}
	rate := game.TotalIncomeRate(s.cat, s.state)
	s.state.Money += rate
	s.state.LifetimeEarnings += rate
	s.state.LastSaveTime = time.Now().Unix()
	s.state.PlayTime++
	if s.state.PlayTime%creditEarnSeconds == 0 {
		s.state.Credits++
	}
}

// Click applies one manual click and returns the amount earned so the
// caller can show it.
func (s *Session) Click() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return 0, game.ErrTampered
	}
	amount := game.ClickPower(s.cat, s.state)
	s.state.Money += amount
	s.state.LifetimeEarnings += amount
	metrics.Clicks.Inc()
	return amount, nil
}

// PurchaseProduct buys levels of a product; amount game.BuyMax buys as many
// as the balance allows. An unaffordable request is a quiet no-op with a
// zero quote, matching the affordability pre-check the UI already runs.
func (s *Session) PurchaseProduct(id string, amount int) (game.PurchaseQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return game.PurchaseQuote{}, game.ErrTampered
	}
	p, ok := s.cat.Product(id)
	if !ok {
		return game.PurchaseQuote{}, game.ErrUnknownItem
	}
	level := s.state.ProductLevels[id]
	if level == 0 {
		return game.PurchaseQuote{}, nil
	}
	q := game.BulkCost(p, level, amount, s.state.Money)
	if q.Count == 0 || q.Cost > s.state.Money {
		return game.PurchaseQuote{}, nil
	}
	s.state.Money -= q.Cost
	s.state.ProductLevels[id] += q.Count
	metrics.Purchases.WithLabelValues("product").Inc()
	return q, nil
}

// UnlockProduct opens a locked product line at level 1.
func (s *Session) UnlockProduct(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return game.ErrTampered
	}
	p, ok := s.cat.Product(id)
	if !ok {
		return game.ErrUnknownItem
	}
	if s.state.ProductLevels[id] != 0 ||
		s.state.PrestigeLevel < p.ReqPrestige ||
		s.state.Money < p.UnlockCost {
		return nil
	}
	s.state.Money -= p.UnlockCost
	s.state.ProductLevels[id] = 1
	metrics.Purchases.WithLabelValues("unlock").Inc()
	return nil
}

// HireStaff is a one-time boolean purchase.
func (s *Session) HireStaff(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return game.ErrTampered
	}
	st, ok := s.cat.StaffByID(id)
	if !ok {
		return game.ErrUnknownItem
	}
	if s.state.HiredStaff[id] || s.state.Money < st.Cost {
		return nil
	}
	s.state.Money -= st.Cost
	s.state.HiredStaff[id] = true
	metrics.Purchases.WithLabelValues("staff").Inc()
	return nil
}

// BuyUpgrade is a one-time boolean purchase gated on its prerequisite
// product being unlocked.
func (s *Session) BuyUpgrade(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return game.ErrTampered
	}
	u, ok := s.cat.UpgradeByID(id)
	if !ok {
		return game.ErrUnknownItem
	}
	if s.state.PurchasedUpgrades[id] || s.state.Money < u.Cost {
		return nil
	}
	if u.Requires != "" && s.state.ProductLevels[u.Requires] == 0 {
		return nil
	}
	s.state.Money -= u.Cost
	s.state.PurchasedUpgrades[id] = true
	metrics.Purchases.WithLabelValues("upgrade").Inc()
	return nil
}

// Prestige climbs one title when lifetime earnings allow it, hard-resetting
// the run.
func (s *Session) Prestige() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return game.ErrTampered
	}
	if !game.CanPrestige(s.cat, s.state) {
		return nil
	}
	game.ApplyPrestige(s.cat, s.state)
	metrics.Prestiges.Inc()
	s.log.Info("prestige", "level", s.state.PrestigeLevel)
	return nil
}

// SpendCredits buys the permanent VIP income boost.
func (s *Session) SpendCredits() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return game.ErrTampered
	}
	if s.state.Credits < game.CreditBoostCost {
		return nil
	}
	s.state.Credits -= game.CreditBoostCost
	s.state.CreditMultiplier *= game.CreditBoostFactor
	metrics.Purchases.WithLabelValues("credit_boost").Inc()
	return nil
}

// RedeemCode claims a promo code once per account. Unknown and reused codes
// are real errors here: the player typed something, so they get an answer.
func (s *Session) RedeemCode(code string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return 0, game.ErrTampered
	}
	c, ok := s.cat.CodeByValue(code)
	if !ok {
		return 0, game.ErrInvalidCode
	}
	if s.state.HasRedeemed(code) {
		return 0, game.ErrCodeAlreadyUsed
	}
	s.state.Credits += c.Credits
	s.state.RedeemedCodes = append(s.state.RedeemedCodes, code)
	return c.Credits, nil
}

// GrantCredits is the operator backdoor for compensation and events.
func (s *Session) GrantCredits(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return game.ErrTampered
	}
	if n > 0 {
		s.state.Credits += n
	}
	return nil
}

// SetChatColor stores the player's chat cosmetic. Only palette colors are
// accepted. It survives prestige.
func (s *Session) SetChatColor(color string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return game.ErrTampered
	}
	if !s.cat.ValidChatColor(color) {
		return game.ErrUnknownItem
	}
	s.state.ChatColor = color
	return nil
}

// SetSound toggles the client sound preference.
func (s *Session) SetSound(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return game.ErrTampered
	}
	s.state.SoundEnabled = enabled
	return nil
}

// ChatIdentity returns the name and color to stamp on chat lines.
func (s *Session) ChatIdentity() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Username, s.state.ChatColor
}

// Save seals and persists the current state. A tamper-frozen session never
// saves; the last good record on disk is the forensic baseline.
func (s *Session) Save(ctx context.Context) {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return
	}
	s.state.LastSaveTime = time.Now().Unix()
	payload, err := s.signer.Seal(s.state)
	s.mu.Unlock()
	if err != nil {
		s.log.Error("seal save", "err", err)
		return
	}
	if err := s.store.SaveState(ctx, s.Username, payload); err != nil {
		s.log.Error("persist save", "err", err)
	}
}

// PublishRank pushes the player's standing to the leaderboard.
func (s *Session) PublishRank(ctx context.Context) {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return
	}
	e := store.Entry{
		Username:         s.Username,
		Title:            s.cat.TitleFor(s.state.PrestigeLevel).Name,
		PrestigeLevel:    s.state.PrestigeLevel,
		LifetimeEarnings: s.state.LifetimeEarnings,
		PlayTime:         s.state.PlayTime,
	}
	s.mu.Unlock()
	if err := s.store.UpsertEntry(ctx, e); err != nil {
		s.log.Error("publish rank", "err", err)
	}
}

// decodeState unmarshals a raw save payload into a usable state.
func decodeState(raw json.RawMessage) (*game.State, error) {
	var st game.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	st.Normalize()
	return &st, nil
}
