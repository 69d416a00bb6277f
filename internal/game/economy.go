package game

import (
	"math"

	"mercado/internal/catalog"
)

// BuyMax requests the largest affordable quantity in PurchaseQuote.
const BuyMax = -1

// PurchaseQuote is the outcome of a bulk pricing request: how many levels
// can be bought and what they cost together.
type PurchaseQuote struct {
	Count int
	Cost  float64
}

// IncomeRate returns the passive income per second of one product at the
// given level, with every owned multiplier applied. A level of 0 earns
// nothing.
func IncomeRate(cat *catalog.Catalog, s *State, productID string) float64 {
	level := s.ProductLevels[productID]
	if level <= 0 {
		return 0
	}
	p, ok := cat.Product(productID)
	if !ok {
		return 0
	}

	rate := p.BaseRevenue * float64(level)
	rate *= math.Pow(2, math.Floor(float64(level)/MilestoneStep))

	for _, st := range cat.Staff {
		if !s.HiredStaff[st.ID] {
			continue
		}
		if st.Target == productID || st.Target == catalog.TargetGlobal {
			rate *= st.Multiplier
		}
	}
	for _, u := range cat.Upgrades {
		if !s.PurchasedUpgrades[u.ID] {
			continue
		}
		for _, e := range u.Effects {
			if e.Target == productID || e.Target == catalog.TargetGlobal {
				rate *= e.Value
			}
		}
	}

	return rate * s.PrestigeMultiplier * s.CreditMultiplier
}

// TotalIncomeRate sums IncomeRate over every owned product.
func TotalIncomeRate(cat *catalog.Catalog, s *State) float64 {
	var total float64
	for id := range s.ProductLevels {
		total += IncomeRate(cat, s, id)
	}
	return total
}

// ClickPower returns the money earned per manual click. It scales with the
// passive income rate and is never below 1.
func ClickPower(cat *catalog.Catalog, s *State) float64 {
	power := 1 + TotalIncomeRate(cat, s)*ClickIncomeShare
	for _, u := range cat.Upgrades {
		if !s.PurchasedUpgrades[u.ID] {
			continue
		}
		for _, e := range u.Effects {
			if e.Target == catalog.TargetClick {
				power *= e.Value
			}
		}
	}
	power *= s.PrestigeMultiplier * s.CreditMultiplier
	if power < 1 {
		return 1
	}
	return power
}

// BulkCost prices a purchase of `amount` additional levels starting at
// `currentLevel`, or, when amount is BuyMax, the largest quantity payable
// with `money`. Prices follow a geometric series with ratio
// p.CostMultiplier; the total is floored to a whole amount. A MAX request
// that cannot afford even one level yields {0, 0}.
func BulkCost(p catalog.Product, currentLevel, amount int, money float64) PurchaseQuote {
	r := p.CostMultiplier
	base := p.BaseCost * math.Pow(r, float64(currentLevel))

	seriesCost := func(k int) float64 {
		return math.Floor(base * (math.Pow(r, float64(k)) - 1) / (r - 1))
	}

	if amount != BuyMax {
		if amount <= 0 {
			return PurchaseQuote{}
		}
		return PurchaseQuote{Count: amount, Cost: seriesCost(amount)}
	}

	// Closed-form inversion of the series sum, then recompute the exact
	// floored cost since the logarithm alone is not trustworthy at the
	// boundary.
	k := int(math.Floor(math.Log(money*(r-1)/base+1) / math.Log(r)))
	if k < 1 {
		return PurchaseQuote{}
	}
	cost := seriesCost(k)
	for k > 0 && cost > money {
		k--
		cost = seriesCost(k)
	}
	if k < 1 {
		return PurchaseQuote{}
	}
	return PurchaseQuote{Count: k, Cost: cost}
}

// CanPrestige reports whether the player has earned enough lifetime money to
// climb to the next title. The final title has no further rung.
func CanPrestige(cat *catalog.Catalog, s *State) bool {
	next, ok := cat.NextTitle(s.PrestigeLevel)
	if !ok {
		return false
	}
	return s.LifetimeEarnings >= next.Cost
}

// ApplyPrestige advances one prestige level and performs the hard reset:
// the run-specific progress is replaced wholesale while the permanent
// account fields (credits, multipliers, cosmetics) survive untouched.
func ApplyPrestige(cat *catalog.Catalog, s *State) {
	s.PrestigeLevel++
	s.PrestigeMultiplier = 1 + float64(s.PrestigeLevel)*PrestigeBonusPerLevel
	s.Money = 0
	s.LifetimeEarnings = 0
	s.ProductLevels = map[string]int{cat.Starter: 1}
	s.HiredStaff = map[string]bool{}
	s.PurchasedUpgrades = map[string]bool{}
}

// OfflineEarnings estimates what the loaded state would have earned during
// an absence of `elapsed` seconds at the rate frozen at save time. Absences
// below MinOfflineGap pay nothing.
func OfflineEarnings(cat *catalog.Catalog, s *State, elapsedSeconds float64) float64 {
	if elapsedSeconds < MinOfflineGap.Seconds() {
		return 0
	}
	return elapsedSeconds * TotalIncomeRate(cat, s)
}

// Plausible reports whether a money value could have been produced by the
// engine itself. Non-finite or negative balances only appear through bugs
// or live memory editing.
func Plausible(money float64) bool {
	return !math.IsNaN(money) && !math.IsInf(money, 0) && money >= 0
}
