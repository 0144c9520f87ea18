package rules

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"faint-memory-server/calcerrors"
)

// Stable rule keys.
const (
	KeyCapBase          = "cap_base_tier_1"
	KeyCapIncrement     = "cap_tier_increment"
	KeyCostNeutral      = "cost_neutral"
	KeyCostMonster      = "cost_monster"
	KeyCostForbidden    = "cost_forbidden"
	KeyBonusEpiphany    = "bonus_epiphany"
	KeyBonusDivine      = "bonus_divine"
	KeyActionConvert    = "action_convert"
	KeyScalingDuplicate = "scaling_duplication"
	KeyScalingRemoval   = "scaling_removal"
)

// Fallbacks used when a key is missing from the store.
const (
	DefaultCapBase       = 30
	DefaultCapIncrement  = 10
	DefaultBonusEpiphany = 10
	DefaultBonusDivine   = 20
	DefaultActionConvert = 10
)

// costKeyPrefix + lowercase card type gives the base-value key, e.g. "cost_monster".
const costKeyPrefix = "cost_"

// Entry is a single named constant as stored by the admin collaborator.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       int    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// Set is an immutable view over rule entries. A nil *Set answers every
// lookup with the caller's default.
type Set struct {
	values  map[string]int
	entries []Entry
}

// New builds a Set from entries. Empty input, blank keys and duplicate keys
// are rejected: the engine must not start from a partial load.
func New(entries []Entry) (*Set, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("rules: no entries: %w", calcerrors.ErrIncompleteData)
	}
	var problems []string
	values := make(map[string]int, len(entries))
	for i, e := range entries {
		key := strings.TrimSpace(e.Key)
		if key == "" {
			problems = append(problems, fmt.Sprintf("entries[%d]: empty key", i))
			continue
		}
		if _, dup := values[key]; dup {
			problems = append(problems, fmt.Sprintf("entries[%d]: duplicate key %q", i, key))
			continue
		}
		values[key] = e.Value
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("rules: %s: %w", strings.Join(problems, "; "), calcerrors.ErrIncompleteData)
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	return &Set{values: values, entries: sorted}, nil
}

// Get returns the value stored under key, or def when the key is absent.
func (s *Set) Get(key string, def int) int {
	if s == nil {
		return def
	}
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

// Has reports whether key is present.
func (s *Set) Has(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.values[key]
	return ok
}

// Entries returns a copy of the entries sorted by key.
func (s *Set) Entries() []Entry {
	if s == nil {
		return nil
	}
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// CostKey returns the base-value key for a card type name.
func CostKey(cardType string) string {
	return costKeyPrefix + strings.ToLower(cardType)
}

// ParseValue parses a whole-number rule value from user input. Fractions are
// truncated toward zero; quotes and surrounding whitespace are ignored.
func ParseValue(s string) (int, error) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if s == "" {
		return 0, fmt.Errorf("rules: empty value: %w", calcerrors.ErrInvalidInput)
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("rules: invalid value %q: %w", s, calcerrors.ErrInvalidInput)
	}
	f = math.Trunc(f)
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("rules: value %q out of range: %w", s, calcerrors.ErrInvalidInput)
	}
	return int(f), nil
}
