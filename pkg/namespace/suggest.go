package namespace

import (
	"slices"
	"sort"
	"strings"
)

// tiers are the maturity segments a procedure moves through between releases.
var tiers = map[string]bool{"alpha": true, "beta": true}

// Suggest returns up to limit known names close to target. When target is a
// proper prefix of known names, prefix is true and the suggestions are the
// names below it.
func Suggest(target string, names []string, limit int) (suggestions []string, prefix bool) {
	if limit <= 0 || target == "" {
		return nil, false
	}

	dotted := target + "."
	var below []string
	for _, n := range names {
		if strings.HasPrefix(n, dotted) {
			below = append(below, n)
		}
	}
	if len(below) > 0 {
		slices.Sort(below)
		if len(below) > limit {
			below = below[:limit]
		}
		return below, true
	}

	type candidate struct {
		name string
		rank int
		dist int
	}
	lower := strings.ToLower(target)
	stripped := stripTiers(lower)
	threshold := max(2, len(target)/4)

	var cands []candidate
	for _, n := range names {
		ln := strings.ToLower(n)
		switch {
		case ln == lower:
			cands = append(cands, candidate{n, 0, 0})
		case stripTiers(ln) == stripped:
			cands = append(cands, candidate{n, 1, 0})
		default:
			if d := levenshtein(lower, ln); d <= threshold {
				cands = append(cands, candidate{n, 2, d})
			}
		}
	}

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		return a.name < b.name
	})

	for i := 0; i < len(cands) && i < limit; i++ {
		suggestions = append(suggestions, cands[i].name)
	}
	return suggestions, false
}

func stripTiers(name string) string {
	segs := strings.Split(name, ".")
	out := segs[:0]
	for _, s := range segs {
		if !tiers[s] {
			out = append(out, s)
		}
	}
	return strings.Join(out, ".")
}

// levenshtein computes edit distance with two rolling rows.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	if len(a) < len(b) {
		a, b = b, a
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
