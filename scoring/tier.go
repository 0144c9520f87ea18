package scoring

import (
	"fmt"
	"strings"

	"faint-memory-server/calcerrors"
)

// Tier is a card's upgrade level. The path is one-way: Normal -> Epiphany -> Divine.
type Tier string

const (
	Normal   Tier = "Normal"
	Epiphany Tier = "Epiphany"
	Divine   Tier = "Divine"
)

// rank orders tiers along the upgrade path.
func (t Tier) rank() int {
	switch t {
	case Normal:
		return 0
	case Epiphany:
		return 1
	case Divine:
		return 2
	default:
		return -1
	}
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t.rank() >= 0
}

// ParseTier accepts any casing.
func ParseTier(s string) (Tier, error) {
	for _, t := range []Tier{Normal, Epiphany, Divine} {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tier %q: %w", s, calcerrors.ErrInvalidInput)
}

// CanUpgrade reports whether a card may move from one tier to another.
// Epiphany is only reachable from Normal; Divine from any non-Divine tier.
func CanUpgrade(from, to Tier) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	switch to {
	case Epiphany:
		return from == Normal
	case Divine:
		return from != Divine
	default:
		return false
	}
}

// Provenance records how a live card entered the deck. It decides the removal policy.
type Provenance int

const (
	Starting  Provenance = iota // present at session start, never converted
	Copied                      // produced by Copy
	Converted                   // a starting slot replaced by a catalog card
	Added                       // added manually from the catalog
)

// String returns the wire name of a Provenance.
func (p Provenance) String() string {
	switch p {
	case Starting:
		return "starting"
	case Copied:
		return "copy"
	case Converted:
		return "converted"
	case Added:
		return "added"
	default:
		return "unknown"
	}
}

// MarshalText encodes a Provenance as its wire name.
func (p Provenance) MarshalText() ([]byte, error) {
	if p < Starting || p > Added {
		return nil, fmt.Errorf("unknown provenance %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a wire name produced by MarshalText.
func (p *Provenance) UnmarshalText(b []byte) error {
	switch string(b) {
	case "starting":
		*p = Starting
	case "copy":
		*p = Copied
	case "converted":
		*p = Converted
	case "added":
		*p = Added
	default:
		return fmt.Errorf("unknown provenance %q: %w", string(b), calcerrors.ErrInvalidInput)
	}
	return nil
}
