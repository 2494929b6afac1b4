// Package brain maintains the script-clip recipe index: a reverse lookup
// from script segments to the clip annotations that accompanied them,
// grouped by clip function, plus function-to-function transition counts.
package brain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"clipOntology/core"
)

const (
	// DefaultMaxPerBucket caps examples kept per function bucket; the
	// oldest entry is evicted once a bucket is full.
	DefaultMaxPerBucket = 50

	transitionSep = " -> "
)

// RecipeIndex is the durable "playbook" state. Mutated only through the
// merger's critical section; published snapshots are never written again.
type RecipeIndex struct {
	Version           string                        `json:"version"`
	CreatedAt         string                        `json:"created_at"`
	UpdatedAt         string                        `json:"updated_at"`
	VideosLearnedFrom int                           `json:"videos_learned_from"`
	MaxPerBucket      int                           `json:"max_per_bucket"`
	ByFunction        map[string][]core.RecipeEntry `json:"by_function"`
	Transitions       map[string]int                `json:"transitions"` // "prev -> next" -> count
}

func NewRecipeIndex() *RecipeIndex {
	now := time.Now().UTC().Format(time.RFC3339)
	return &RecipeIndex{
		Version:      "1.0",
		CreatedAt:    now,
		UpdatedAt:    now,
		MaxPerBucket: DefaultMaxPerBucket,
		ByFunction:   make(map[string][]core.RecipeEntry),
		Transitions:  make(map[string]int),
	}
}

// Record appends one entry to its function bucket. Entries whose script text
// exactly duplicates an existing entry in the bucket (case-insensitive) are
// skipped; full buckets evict their oldest entry.
func (r *RecipeIndex) Record(entry core.RecipeEntry) {
	function := entry.Function()
	if function == "" {
		return
	}
	bucket := r.ByFunction[function]
	if r.isDuplicate(entry, bucket) {
		return
	}
	max := r.MaxPerBucket
	if max <= 0 {
		max = DefaultMaxPerBucket
	}
	if len(bucket) >= max {
		bucket = bucket[1:]
	}
	r.ByFunction[function] = append(bucket, entry)
	r.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

func (r *RecipeIndex) isDuplicate(entry core.RecipeEntry, bucket []core.RecipeEntry) bool {
	script := strings.ToLower(strings.TrimSpace(entry.Script))
	if script == "" {
		return false
	}
	for _, existing := range bucket {
		if strings.ToLower(strings.TrimSpace(existing.Script)) == script {
			return true
		}
	}
	return false
}

// RecordTransition counts one observed (previous function, next function)
// succession within a video.
func (r *RecipeIndex) RecordTransition(prev, next string) {
	if prev == "" || next == "" {
		return
	}
	r.Transitions[prev+transitionSep+next]++
}

// ExamplesFor returns up to limit entries of a function bucket,
// most-recent-first.
func (r *RecipeIndex) ExamplesFor(function string, limit int) []core.RecipeEntry {
	bucket := r.ByFunction[function]
	out := make([]core.RecipeEntry, 0, len(bucket))
	for i := len(bucket) - 1; i >= 0; i-- {
		out = append(out, bucket[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Search returns every entry whose script segment contains the substring,
// case-insensitive, across all function buckets in declared bucket order.
func (r *RecipeIndex) Search(substring string) []core.RecipeEntry {
	needle := strings.ToLower(strings.TrimSpace(substring))
	if needle == "" {
		return nil
	}
	var out []core.RecipeEntry
	for _, function := range r.sortedFunctions() {
		for _, entry := range r.ByFunction[function] {
			if strings.Contains(strings.ToLower(entry.Script), needle) {
				out = append(out, entry)
			}
		}
	}
	return out
}

// TopTransitions returns the k most frequent successor functions of a given
// function, ties broken alphabetically.
func (r *RecipeIndex) TopTransitions(function string, k int) []core.TransitionCount {
	prefix := function + transitionSep
	var out []core.TransitionCount
	for key, count := range r.Transitions {
		if strings.HasPrefix(key, prefix) {
			out = append(out, core.TransitionCount{Next: strings.TrimPrefix(key, prefix), Count: count})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Next < out[j].Next
	})
	if k > 0 && k < len(out) {
		out = out[:k]
	}
	return out
}

// Functions lists the non-empty function buckets in sorted order.
func (r *RecipeIndex) Functions() []string {
	return r.sortedFunctions()
}

// TotalExamples counts entries across all buckets.
func (r *RecipeIndex) TotalExamples() int {
	n := 0
	for _, bucket := range r.ByFunction {
		n += len(bucket)
	}
	return n
}

func (r *RecipeIndex) sortedFunctions() []string {
	functions := make([]string, 0, len(r.ByFunction))
	for f := range r.ByFunction {
		functions = append(functions, f)
	}
	sort.Strings(functions)
	return functions
}

// Serialize renders the index as one JSON document; map keys marshal sorted,
// so round-trips are byte-identical.
func (r *RecipeIndex) Serialize() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// DeserializeRecipeIndex parses a persisted recipe index document.
func DeserializeRecipeIndex(data []byte) (*RecipeIndex, error) {
	var r RecipeIndex
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse recipe index document: %w", err)
	}
	if r.ByFunction == nil {
		r.ByFunction = make(map[string][]core.RecipeEntry)
	}
	if r.Transitions == nil {
		r.Transitions = make(map[string]int)
	}
	if r.MaxPerBucket <= 0 {
		r.MaxPerBucket = DefaultMaxPerBucket
	}
	return &r, nil
}

// Clone deep-copies the index through its serialized form.
func (r *RecipeIndex) Clone() (*RecipeIndex, error) {
	data, err := r.Serialize()
	if err != nil {
		return nil, err
	}
	return DeserializeRecipeIndex(data)
}
