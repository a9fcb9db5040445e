package normalize

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

type Options struct {
	// DropConnectives removes Spanish connective words before comparison.
	// Used for careers, where the source data drops them inconsistently.
	DropConnectives bool
	// MaxEditDistance merges two folded forms when their edit distance is
	// at most this value. Zero disables edit-distance merging.
	MaxEditDistance int
	// MinTokenOverlap merges two folded forms when the Jaccard overlap of
	// their token sets reaches this value. Zero disables token merging.
	MinTokenOverlap float64
}

// DefaultOptions matches the thresholds the cleaning stage settled on for
// Spanish program and institution names.
func DefaultOptions() Options {
	return Options{MaxEditDistance: 2, MinTokenOverlap: 0.8}
}

// Group is one canonical entity: a representative display name plus every
// raw variant that maps to it.
type Group struct {
	ID          int
	Canonical   string
	Variants    []string
	Occurrences int
}

// Grouping is a partition over the raw variants of one entity type.
type Grouping struct {
	groups []Group
	byRaw  map[string]int
}

// Canonical resolves a raw variant to its group's representative name.
func (g *Grouping) Canonical(raw string) (string, bool) {
	if g == nil {
		return "", false
	}
	idx, ok := g.byRaw[strings.TrimSpace(raw)]
	if !ok {
		return "", false
	}
	return g.groups[idx].Canonical, true
}

func (g *Grouping) Groups() []Group {
	if g == nil {
		return nil
	}
	return g.groups
}

// Cluster partitions raw names into canonical groups. Blank names are
// dropped. The result is deterministic for a fixed input multiset: variants
// are folded, folded forms are merged by similarity in sorted order, and the
// representative is picked by highest frequency, then shortest string, then
// lexical order.
func Cluster(names []string, opts Options) *Grouping {
	// Count raw variants; folding maps each to a comparison key.
	rawCount := map[string]int{}
	rawOrder := []string{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, seen := rawCount[n]; !seen {
			rawOrder = append(rawOrder, n)
		}
		rawCount[n]++
	}

	keyVariants := map[string][]string{}
	for _, raw := range rawOrder {
		key := Fold(raw, opts.DropConnectives)
		if key == "" {
			continue
		}
		keyVariants[key] = append(keyVariants[key], raw)
	}

	keys := make([]string, 0, len(keyVariants))
	for k := range keyVariants {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parent := make(map[string]string, len(keys))
	for _, k := range keys {
		parent[k] = k
	}
	var find func(string) string
	find = func(k string) string {
		if parent[k] != k {
			parent[k] = find(parent[k])
		}
		return parent[k]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		// Smaller root wins, keeping merges order-independent.
		if rb < ra {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}

	// Near-duplicate merging is blocked by first token: folded forms that
	// do not even share a leading token are never one entity in this data.
	blocks := map[string][]string{}
	for _, k := range keys {
		first, _, _ := strings.Cut(k, " ")
		blocks[first] = append(blocks[first], k)
	}
	blockKeys := make([]string, 0, len(blocks))
	for b := range blocks {
		blockKeys = append(blockKeys, b)
	}
	sort.Strings(blockKeys)

	for _, b := range blockKeys {
		ks := blocks[b]
		for i := 0; i < len(ks); i++ {
			for j := i + 1; j < len(ks); j++ {
				if similar(ks[i], ks[j], opts) {
					union(ks[i], ks[j])
				}
			}
		}
	}

	// Collect groups by root, ordered by root key.
	members := map[string][]string{}
	for _, k := range keys {
		r := find(k)
		members[r] = append(members[r], k)
	}
	roots := make([]string, 0, len(members))
	for r := range members {
		roots = append(roots, r)
	}
	sort.Strings(roots)

	g := &Grouping{byRaw: map[string]int{}}
	for _, r := range roots {
		grp := Group{ID: len(g.groups) + 1}
		for _, k := range members[r] {
			for _, raw := range keyVariants[k] {
				grp.Variants = append(grp.Variants, raw)
				grp.Occurrences += rawCount[raw]
			}
		}
		sort.Strings(grp.Variants)
		grp.Canonical = representative(grp.Variants, rawCount)
		for _, raw := range grp.Variants {
			g.byRaw[raw] = len(g.groups)
		}
		g.groups = append(g.groups, grp)
	}

	return g
}

func similar(a, b string, opts Options) bool {
	if opts.MaxEditDistance > 0 {
		// Lengths that differ by more than the threshold cannot be
		// within it; skips the (quadratic) distance computation.
		la, lb := len(a), len(b)
		if la-lb <= opts.MaxEditDistance && lb-la <= opts.MaxEditDistance {
			if levenshtein.Distance(a, b, nil) <= opts.MaxEditDistance {
				return true
			}
		}
	}
	if opts.MinTokenOverlap > 0 {
		if jaccard(strings.Fields(a), strings.Fields(b)) >= opts.MinTokenOverlap {
			return true
		}
	}
	return false
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := map[string]bool{}
	for _, w := range a {
		set[w] = true
	}
	inter := 0
	seen := map[string]bool{}
	for _, w := range b {
		if seen[w] {
			continue
		}
		seen[w] = true
		if set[w] {
			inter++
		}
	}
	unionSize := len(set) + len(seen) - inter
	return float64(inter) / float64(unionSize)
}

// representative picks the display name for a group: the variant seen most
// often, ties broken by shortest string, then lexical order.
func representative(variants []string, count map[string]int) string {
	best := ""
	for _, v := range variants {
		if best == "" {
			best = v
			continue
		}
		cv, cb := count[v], count[best]
		switch {
		case cv > cb:
			best = v
		case cv == cb && len(v) < len(best):
			best = v
		case cv == cb && len(v) == len(best) && v < best:
			best = v
		}
	}
	return best
}
