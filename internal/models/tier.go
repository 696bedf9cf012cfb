package models

// Tier is an achievement level. The zero value means no tier has been reached.
type Tier int

const (
	TierNone Tier = iota
	TierBronze
	TierSilver
	TierGold
)

var tierNames = map[Tier]string{
	TierNone:   "none",
	TierBronze: "bronze",
	TierSilver: "silver",
	TierGold:   "gold",
}

func (t Tier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return "unknown"
}

// ParseTier parses "bronze", "silver" or "gold".
func ParseTier(s string) (Tier, bool) {
	for t, name := range tierNames {
		if t != TierNone && name == s {
			return t, true
		}
	}
	return TierNone, false
}

// Tiers lists the achievable tiers from lowest to highest.
var Tiers = []Tier{TierBronze, TierSilver, TierGold}

// TierRolls is the number of prize-draw tickets each tier grants.
type TierRolls struct {
	Bronze int `json:"bronze" yaml:"bronze"`
	Silver int `json:"silver" yaml:"silver"`
	Gold   int `json:"gold" yaml:"gold"`
}

// DefaultTierRolls grants 1, 2 and 3 tickets.
func DefaultTierRolls() TierRolls {
	return TierRolls{Bronze: 1, Silver: 2, Gold: 3}
}

// For returns the ticket count for tier.
func (r TierRolls) For(tier Tier) int {
	switch tier {
	case TierBronze:
		return r.Bronze
	case TierSilver:
		return r.Silver
	case TierGold:
		return r.Gold
	}
	return 0
}

// TierCounts counts members per tier.
type TierCounts struct {
	Bronze int `json:"bronze"`
	Silver int `json:"silver"`
	Gold   int `json:"gold"`
}

// Add adjusts the counter for tier by delta. TierNone is ignored.
func (c *TierCounts) Add(tier Tier, delta int) {
	switch tier {
	case TierBronze:
		c.Bronze += delta
	case TierSilver:
		c.Silver += delta
	case TierGold:
		c.Gold += delta
	}
}

// Get returns the counter for tier.
func (c TierCounts) Get(tier Tier) int {
	switch tier {
	case TierBronze:
		return c.Bronze
	case TierSilver:
		return c.Silver
	case TierGold:
		return c.Gold
	}
	return 0
}

// Total returns the sum of all tiers.
func (c TierCounts) Total() int {
	return c.Bronze + c.Silver + c.Gold
}
