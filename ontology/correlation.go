package ontology

import (
	"sort"
	"strings"
)

// CorrelationTable counts co-occurrences of canonical value pairs for one
// declared (CategoryA, CategoryB) pair. Each symmetric pair is tracked once.
type CorrelationTable struct {
	CategoryA string         `json:"category_a"`
	CategoryB string         `json:"category_b"`
	Counts    map[string]int `json:"counts"` // "valueA|valueB" -> count
}

func NewCorrelationTable(categoryA, categoryB string) *CorrelationTable {
	return &CorrelationTable{
		CategoryA: categoryA,
		CategoryB: categoryB,
		Counts:    make(map[string]int),
	}
}

// Increment bumps the co-occurrence count for one value pair.
func (t *CorrelationTable) Increment(valueA, valueB string) {
	t.Counts[pairKey(valueA, valueB)]++
}

// Total is the sum over all value pairs, i.e. the number of clips where
// both categories resolved to a real (non-unknown) value.
func (t *CorrelationTable) Total() int {
	total := 0
	for _, c := range t.Counts {
		total += c
	}
	return total
}

// PairCount is one (valueA, valueB, count) row of a correlation table.
type PairCount struct {
	ValueA string `json:"value_a"`
	ValueB string `json:"value_b"`
	Count  int    `json:"count"`
}

// Top returns the k most frequent value pairs, ties broken by key order.
func (t *CorrelationTable) Top(k int) []PairCount {
	rows := make([]PairCount, 0, len(t.Counts))
	for key, count := range t.Counts {
		a, b := splitPairKey(key)
		rows = append(rows, PairCount{ValueA: a, ValueB: b, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		if rows[i].ValueA != rows[j].ValueA {
			return rows[i].ValueA < rows[j].ValueA
		}
		return rows[i].ValueB < rows[j].ValueB
	})
	if k > 0 && k < len(rows) {
		rows = rows[:k]
	}
	return rows
}

func pairKey(a, b string) string {
	return a + "|" + b
}

func splitPairKey(key string) (string, string) {
	parts := strings.SplitN(key, "|", 2)
	if len(parts) != 2 {
		return key, ""
	}
	return parts[0], parts[1]
}
