package scoring

import (
	"faint-memory-server/catalog"
	"faint-memory-server/rules"
)

// scalingTable is the price of the n-th repeat of Copy or Remove (zero based).
// Counts past the end pay the last entry.
var scalingTable = [...]int{0, 10, 30, 50, 70}

const (
	// divineStatusValue is the flat bonus for any Divine card, whatever bonus_divine says.
	divineStatusValue = 20
	// startingRemovalCost is charged for removing an unconverted starting card.
	startingRemovalCost = 20
)

// Card is the part of a live card that scoring looks at.
type Card struct {
	Type       catalog.CardType
	Tier       Tier
	Provenance Provenance
}

// Engine computes point deltas from a rule set. It holds no state of its own.
type Engine struct {
	rules *rules.Set
}

// NewEngine returns an engine reading constants from set. A nil set uses defaults everywhere.
func NewEngine(set *rules.Set) *Engine {
	return &Engine{rules: set}
}

// Rules returns the rule set backing the engine.
func (e *Engine) Rules() *rules.Set {
	return e.rules
}

// Cap is the soft Faint Memory limit for a Chaos Tier.
func (e *Engine) Cap(tier int) int {
	base := e.rules.Get(rules.KeyCapBase, rules.DefaultCapBase)
	inc := e.rules.Get(rules.KeyCapIncrement, rules.DefaultCapIncrement)
	return base + (tier-1)*inc
}

// ScalingCost is the action fee for the n-th (zero based) Copy or Remove.
func ScalingCost(n int) int {
	if n < 0 {
		n = 0
	}
	if n >= len(scalingTable) {
		return scalingTable[len(scalingTable)-1]
	}
	return scalingTable[n]
}

// CardBaseValue is what a card of type t costs to hold. Innate cards are free.
func (e *Engine) CardBaseValue(t catalog.CardType) int {
	if t.Innate() {
		return 0
	}
	return e.rules.Get(rules.CostKey(string(t)), 0)
}

// CardStatusValue is the tier bonus layered on top of the base value.
func (e *Engine) CardStatusValue(t catalog.CardType, tier Tier) int {
	switch tier {
	case Divine:
		return divineStatusValue
	case Epiphany:
		if t.Innate() {
			return 0
		}
		return e.rules.Get(rules.KeyBonusEpiphany, rules.DefaultBonusEpiphany)
	default:
		return 0
	}
}

// RemovalBaseCost is +20 for an unconverted starting card and a refund of the
// base value for everything else.
func (e *Engine) RemovalBaseCost(c Card) int {
	if c.Provenance == Starting {
		return startingRemovalCost
	}
	return -e.CardBaseValue(c.Type)
}

// UpgradeCost is the delta for moving c to tier to.
func (e *Engine) UpgradeCost(c Card, to Tier) int {
	return e.CardStatusValue(c.Type, to) - e.CardStatusValue(c.Type, c.Tier)
}

// CopyCost is the delta for duplicating c when the player has already copied
// duplications cards.
func (e *Engine) CopyCost(c Card, duplications int) int {
	return ScalingCost(duplications) + e.CardBaseValue(c.Type) + e.CardStatusValue(c.Type, c.Tier)
}

// RemoveCost is the delta for removing c after removals earlier removals.
// It goes negative when the refund outweighs the fee.
func (e *Engine) RemoveCost(c Card, removals int) int {
	return ScalingCost(removals) + e.RemovalBaseCost(c) - e.CardStatusValue(c.Type, c.Tier)
}

// ConvertCost is the delta for replacing source with a catalog card of type target.
func (e *Engine) ConvertCost(source Card, target catalog.CardType) int {
	fee := e.rules.Get(rules.KeyActionConvert, rules.DefaultActionConvert)
	return fee + e.CardBaseValue(target) - e.CardStatusValue(source.Type, source.Tier)
}

// AddCost is the delta for adding a catalog card of type t.
func (e *Engine) AddCost(t catalog.CardType) int {
	return e.CardBaseValue(t)
}

// CanConvert reports whether c is an unconverted starting Basic/Unique card.
func CanConvert(c Card) bool {
	return c.Provenance == Starting && c.Type.Innate()
}
