// Package game holds the player state model and the pure economy math:
// income rates, click power, bulk purchase pricing, prestige, and the
// compact money formatter. Nothing here touches storage or the network.
package game

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	// TickInterval is the cadence of passive income accrual.
	TickInterval = time.Second

	// MilestoneStep doubles a product's output every this many levels.
	MilestoneStep = 25

	// PrestigeBonusPerLevel is the permanent income bonus granted by each
	// prestige level.
	PrestigeBonusPerLevel = 0.25

	// ClickIncomeShare scales click power with passive income so clicking
	// stays relevant late game.
	ClickIncomeShare = 0.05

	// CreditEarnInterval awards one VIP credit per interval of play time.
	CreditEarnInterval = 300 * time.Second

	// CreditBoostCost and CreditBoostFactor describe the one VIP shop item:
	// a permanent income doubling.
	CreditBoostCost   = 10
	CreditBoostFactor = 2.0

	// MinOfflineGap is the smallest absence worth paying out for. Anything
	// shorter is a page refresh, not a return.
	MinOfflineGap = 10 * time.Second
)

var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrLocked              = errors.New("item locked")
	ErrUnknownItem         = errors.New("unknown item")
	ErrAlreadyOwned        = errors.New("already owned")
	ErrPrestigeUnavailable = errors.New("prestige requirements not met")
	ErrCodeAlreadyUsed     = errors.New("code already redeemed")
	ErrInvalidCode         = errors.New("invalid code")
	ErrTampered            = errors.New("save data failed integrity check")
	ErrInvalidUsername     = errors.New("username must be 3-24 letters, digits or underscores")
	ErrUnauthorized        = errors.New("unauthorized")
)

var usernameRE = regexp.MustCompile(`^[a-zA-Z0-9_]{3,24}$`)

func ValidateUsername(name string) error {
	if !usernameRE.MatchString(strings.TrimSpace(name)) {
		return ErrInvalidUsername
	}
	return nil
}

// State is the full persisted progress of one player. It is the unit of
// integrity signing, so field layout changes invalidate existing signatures
// only when they change the JSON encoding.
type State struct {
	Money            float64 `json:"money"`
	LifetimeEarnings float64 `json:"lifetime_earnings"`

	StartTime    int64 `json:"start_time"`
	LastSaveTime int64 `json:"last_save_time"`

	ProductLevels     map[string]int  `json:"product_levels"`
	HiredStaff        map[string]bool `json:"hired_staff"`
	PurchasedUpgrades map[string]bool `json:"purchased_upgrades"`

	Credits          int      `json:"credits"`
	PlayTime         int64    `json:"play_time"`
	CreditMultiplier float64  `json:"credit_multiplier"`
	RedeemedCodes    []string `json:"redeemed_codes"`

	PrestigeLevel      int     `json:"prestige_level"`
	PrestigeMultiplier float64 `json:"prestige_multiplier"`

	ChatColor    string `json:"chat_color"`
	SoundEnabled bool   `json:"sound_enabled"`
}

// NewState returns a fresh account: one level of the starter product,
// nothing else.
func NewState(starter string, now time.Time) *State {
	return &State{
		StartTime:          now.Unix(),
		LastSaveTime:       now.Unix(),
		ProductLevels:      map[string]int{starter: 1},
		HiredStaff:         map[string]bool{},
		PurchasedUpgrades:  map[string]bool{},
		CreditMultiplier:   1,
		PrestigeMultiplier: 1,
		ChatColor:          "#000000",
		SoundEnabled:       true,
	}
}

// Normalize repairs zero-value fields after decoding old saves so the math
// never sees nil maps or a zero multiplier.
func (s *State) Normalize() {
	if s.ProductLevels == nil {
		s.ProductLevels = map[string]int{}
	}
	if s.HiredStaff == nil {
		s.HiredStaff = map[string]bool{}
	}
	if s.PurchasedUpgrades == nil {
		s.PurchasedUpgrades = map[string]bool{}
	}
	if s.CreditMultiplier < 1 {
		s.CreditMultiplier = 1
	}
	if s.PrestigeMultiplier < 1 {
		s.PrestigeMultiplier = 1
	}
	if s.ChatColor == "" {
		s.ChatColor = "#000000"
	}
}

// HasRedeemed reports whether the code was already claimed on this account.
func (s *State) HasRedeemed(code string) bool {
	for _, c := range s.RedeemedCodes {
		if c == code {
			return true
		}
	}
	return false
}
