package catalog

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Match scores, higher is better.
const (
	scoreExact  = 100
	scorePrefix = 80
	scoreSubstr = 60
	scoreFuzzy  = 40
)

// matchName scores name against a search query. An empty query matches everything.
// Fuzzy matching is only tried for queries of at least three characters.
func matchName(name, query string) (int, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0, true
	}
	n := strings.ToLower(name)
	switch {
	case n == q:
		return scoreExact, true
	case strings.HasPrefix(n, q):
		return scorePrefix, true
	case strings.Contains(n, q):
		return scoreSubstr, true
	}
	if len(q) < 3 {
		return 0, false
	}

	best := -1
	candidates := append([]string{n}, strings.Fields(n)...)
	for _, cand := range candidates {
		dist := levenshtein.ComputeDistance(q, cand)
		if dist > distanceLimit(len(cand)) {
			continue
		}
		if best < 0 || dist < best {
			best = dist
		}
	}
	if best < 0 {
		return 0, false
	}
	return scoreFuzzy - best, true
}

func distanceLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}

type scored struct {
	idx   int
	score int
	name  string
}

// rank returns the indices of names that match query, best first, ties by name.
func rank(names []string, query string) []int {
	var hits []scored
	for i, n := range names {
		if s, ok := matchName(n, query); ok {
			hits = append(hits, scored{idx: i, score: s, name: n})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score == hits[j].score {
			return strings.ToLower(hits[i].name) < strings.ToLower(hits[j].name)
		}
		return hits[i].score > hits[j].score
	})
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.idx
	}
	return out
}
