package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercado/internal/catalog"
	"mercado/internal/game"
	"mercado/internal/integrity"
	"mercado/internal/metrics"
	"mercado/internal/store"
)

// LoginResult is what a successful (or tamper-frozen) login hands back to
// the transport layer.
type LoginResult struct {
	Session         *Session
	OfflineEarnings float64
	Tampered        bool
	Legacy          bool
}

// Manager owns every live session, keyed by bearer token. One session per
// user: a second login evicts the first after saving it.
type Manager struct {
	cat       *catalog.Catalog
	signer    *integrity.Signer
	store     *store.Store
	log       *slog.Logger
	rankEvery time.Duration

	mu      sync.Mutex
	byToken map[string]*Session
	byUser  map[string]*Session
}

func NewManager(cat *catalog.Catalog, signer *integrity.Signer, db *store.Store, rankEvery time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		cat:       cat,
		signer:    signer,
		store:     db,
		log:       log,
		rankEvery: rankEvery,
		byToken:   make(map[string]*Session),
		byUser:    make(map[string]*Session),
	}
}

// Register creates the account, seeds a fresh save, and opens a session.
func (m *Manager) Register(ctx context.Context, username, password string) (*Session, error) {
	if err := game.ValidateUsername(username); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, errors.New("password is required")
	}
	if err := m.store.CreateAccount(ctx, username, password); err != nil {
		return nil, err
	}
	st := game.NewState(m.cat.Starter, time.Now())
	s := m.admit(username, st, StatusActive)
	s.Save(ctx)
	metrics.Logins.Inc()
	return s, nil
}

// Login authenticates, loads and verifies the save, applies offline
// earnings, and opens a session. A save that fails its integrity check
// yields a frozen session: the caller learns Tampered and can only offer a
// reset.
func (m *Manager) Login(ctx context.Context, username, password string) (LoginResult, error) {
	if err := m.store.Authenticate(ctx, username, password); err != nil {
		return LoginResult{}, err
	}

	raw, err := m.store.LoadState(ctx, username)
	if errors.Is(err, store.ErrNoSave) {
		s := m.admit(username, game.NewState(m.cat.Starter, time.Now()), StatusActive)
		s.Save(ctx)
		metrics.Logins.Inc()
		return LoginResult{Session: s}, nil
	}
	if err != nil {
		return LoginResult{}, err
	}

	data, legacy, err := m.signer.Open(raw)
	if errors.Is(err, integrity.ErrBadSignature) {
		m.log.Warn("tampered save on login", "user", username)
		metrics.TamperTrips.Inc()
		s := m.admit(username, game.NewState(m.cat.Starter, time.Now()), StatusTamperDetected)
		return LoginResult{Session: s, Tampered: true}, nil
	}
	if err != nil {
		return LoginResult{}, err
	}

	st, err := decodeState(data)
	if err != nil {
		return LoginResult{}, err
	}

	var offline float64
	if elapsed := float64(time.Now().Unix() - st.LastSaveTime); elapsed > 0 {
		offline = game.OfflineEarnings(m.cat, st, elapsed)
		st.Money += offline
		st.LifetimeEarnings += offline
	}

	s := m.admit(username, st, StatusActive)
	if legacy {
		// Old unsigned record: re-seal right away so it only rides once.
		s.Save(ctx)
	}
	metrics.Logins.Inc()
	return LoginResult{Session: s, OfflineEarnings: offline, Legacy: legacy}, nil
}

// admit registers a new session, evicting any existing one for the user.
func (m *Manager) admit(username string, st *game.State, status Status) *Session {
	s := newSession(username, uuid.NewString(), st, m.cat, m.signer, m.store, m.rankEvery, m.log)
	s.status = status

	m.mu.Lock()
	if old, ok := m.byUser[username]; ok {
		old.stop()
		delete(m.byToken, old.Token)
	}
	m.byToken[s.Token] = s
	m.byUser[username] = s
	metrics.ActiveSessions.Set(float64(len(m.byToken)))
	m.mu.Unlock()

	go s.run()
	return s
}

// Get resolves a bearer token to its live session.
func (m *Manager) Get(token string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byToken[token]
	return s, ok
}

// GetByUser resolves a username to its live session, if any.
func (m *Manager) GetByUser(username string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byUser[username]
	return s, ok
}

// Logout saves once more, stops the timers, and forgets the session.
func (m *Manager) Logout(ctx context.Context, token string) error {
	m.mu.Lock()
	s, ok := m.byToken[token]
	if ok {
		delete(m.byToken, token)
		delete(m.byUser, s.Username)
		metrics.ActiveSessions.Set(float64(len(m.byToken)))
	}
	m.mu.Unlock()
	if !ok {
		return game.ErrUnauthorized
	}
	s.Save(ctx)
	s.PublishRank(ctx)
	s.stop()
	return nil
}

// Reset wipes the user's save and closes the session. It exists for the
// tamper-frozen dead end; the next login starts from scratch.
func (m *Manager) Reset(ctx context.Context, token string) error {
	m.mu.Lock()
	s, ok := m.byToken[token]
	if ok {
		delete(m.byToken, token)
		delete(m.byUser, s.Username)
		metrics.ActiveSessions.Set(float64(len(m.byToken)))
	}
	m.mu.Unlock()
	if !ok {
		return game.ErrUnauthorized
	}
	s.stop()
	return m.store.DeleteSave(ctx, s.Username)
}

// Shutdown saves and stops every live session. Called once on server exit.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.byToken))
	for _, s := range m.byToken {
		sessions = append(sessions, s)
	}
	m.byToken = make(map[string]*Session)
	m.byUser = make(map[string]*Session)
	metrics.ActiveSessions.Set(0)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Save(ctx)
		s.PublishRank(ctx)
		s.stop()
	}
}
