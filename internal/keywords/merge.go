package keywords

import (
	"sort"
	"strings"
)

// Merged is a deduplicated keyword plus every provenance tag that reported it.
type Merged struct {
	RawKeyword
	Sources []string
}

// NormalizeKeyword is the dedup key: lowercase with whitespace collapsed.
func NormalizeKeyword(keyword string) string {
	return strings.Join(strings.Fields(strings.ToLower(keyword)), " ")
}

// Merge combines keyword lists into one collection unique by normalized
// keyword. On collision the higher volume wins; on equal volume the earliest
// record wins. Output order is the order in which each key was first seen.
// Records whose keyword normalizes to empty are dropped.
func Merge(lists ...[]RawKeyword) []Merged {
	index := map[string]int{}
	merged := make([]Merged, 0)
	for _, list := range lists {
		for _, item := range list {
			key := NormalizeKeyword(item.Keyword)
			if key == "" {
				continue
			}
			pos, seen := index[key]
			if !seen {
				index[key] = len(merged)
				merged = append(merged, Merged{RawKeyword: item, Sources: appendSource(nil, item.Source)})
				continue
			}
			current := merged[pos]
			if item.Volume > current.Volume {
				sources := appendSource(appendSource(nil, item.Source), current.Sources...)
				merged[pos] = Merged{RawKeyword: item, Sources: sources}
				continue
			}
			merged[pos].Sources = appendSource(current.Sources, item.Source)
		}
	}
	return merged
}

func appendSource(sources []string, values ...string) []string {
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		exists := false
		for _, existing := range sources {
			if existing == value {
				exists = true
				break
			}
		}
		if !exists {
			sources = append(sources, value)
		}
	}
	return sources
}

// Rank scores every merged keyword and sorts by score descending. Equal
// scores keep merge order.
func Rank(merged []Merged, cpcRange CPCRange) []ScoredKeyword {
	scored := make([]ScoredKeyword, 0, len(merged))
	for _, item := range merged {
		result := Score(item.RawKeyword, cpcRange)
		result.Sources = append([]string(nil), item.Sources...)
		scored = append(scored, result)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// CountTiers returns the number of keywords in each tier; every tier key is
// present even when its count is zero.
func CountTiers(items []ScoredKeyword) map[Tier]int {
	counts := make(map[Tier]int, len(Tiers))
	for _, tier := range Tiers {
		counts[tier] = 0
	}
	for _, item := range items {
		counts[item.Tier]++
	}
	return counts
}
