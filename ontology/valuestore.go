package ontology

import "sort"

// CanonicalValue is the deduplicated representative of a category label.
type CanonicalValue struct {
	Token          string   `json:"token"`
	Frequency      int      `json:"frequency"`
	SurfaceForms   []string `json:"surface_forms"`
	FirstSeenVideo string   `json:"first_seen_video,omitempty"`
}

func (v *CanonicalValue) addSurfaceForm(raw string) {
	for _, f := range v.SurfaceForms {
		if f == raw {
			return
		}
	}
	v.SurfaceForms = append(v.SurfaceForms, raw)
}

// ResolvePolicy holds the tunable similarity-merge constants. Scores at or
// above Threshold+Margin fold into the existing value; scores inside
// [Threshold, Threshold+Margin) are ambiguous and conservatively create a
// new value instead of silently merging.
type ResolvePolicy struct {
	Threshold float64
	Margin    float64
}

// DefaultResolvePolicy mirrors the config defaults.
var DefaultResolvePolicy = ResolvePolicy{Threshold: 0.82, Margin: 0.06}

// ResolveResult records one new-vs-merged decision for auditing.
type ResolveResult struct {
	Token     string  // canonical token the raw value resolved to
	Raw       string  // raw surface form as received
	Created   bool    // a new canonical value was created
	Merged    bool    // folded into an existing value by similarity
	Ambiguous bool    // score fell in the indeterminate band
	Score     float64 // best similarity score against existing values
	BestMatch string  // closest existing token when Created by similarity miss
}

// ValueStore canonicalizes raw label strings within one category.
// It is not safe for concurrent use; the merger serializes access.
type ValueStore struct {
	Category string                     `json:"category"`
	Values   map[string]*CanonicalValue `json:"values"`
}

func NewValueStore(category string) *ValueStore {
	return &ValueStore{
		Category: category,
		Values:   make(map[string]*CanonicalValue),
	}
}

// Resolve maps a raw label to a CanonicalValue, creating one when no
// existing value is similar enough. Deterministic for a fixed store state;
// the only mutator of value frequencies.
func (s *ValueStore) Resolve(raw, videoID string, policy ResolvePolicy) ResolveResult {
	token := Normalize(raw)
	if token == "" {
		token = UnknownToken
	}

	// Exact canonical match.
	if v, ok := s.Values[token]; ok {
		v.Frequency++
		v.addSurfaceForm(raw)
		return ResolveResult{Token: token, Raw: raw}
	}

	if token == UnknownToken {
		s.Values[token] = &CanonicalValue{Token: token, Frequency: 1, FirstSeenVideo: videoID}
		return ResolveResult{Token: token, Raw: raw, Created: true}
	}

	// Similarity pass over existing values, in sorted token order so ties
	// resolve the same way every run. The unknown sentinel never attracts
	// real labels.
	best := ""
	bestScore := 0.0
	for _, existing := range s.sortedTokens() {
		if existing == UnknownToken {
			continue
		}
		score := Similarity(token, existing)
		if score > bestScore {
			bestScore = score
			best = existing
		}
	}

	if best != "" && bestScore >= policy.Threshold+policy.Margin {
		v := s.Values[best]
		v.Frequency++
		v.addSurfaceForm(raw)
		return ResolveResult{Token: best, Raw: raw, Merged: true, Score: bestScore, BestMatch: best}
	}

	ambiguous := best != "" && bestScore >= policy.Threshold
	s.Values[token] = &CanonicalValue{
		Token:          token,
		Frequency:      1,
		SurfaceForms:   []string{raw},
		FirstSeenVideo: videoID,
	}
	return ResolveResult{Token: token, Raw: raw, Created: true, Ambiguous: ambiguous, Score: bestScore, BestMatch: best}
}

// ValueFreq is one (token, frequency) pair of the known vocabulary.
type ValueFreq struct {
	Token     string `json:"token"`
	Frequency int    `json:"frequency"`
}

// KnownValues returns the vocabulary sorted by descending frequency, ties
// broken alphabetically. The unknown sentinel is excluded.
func (s *ValueStore) KnownValues() []ValueFreq {
	out := make([]ValueFreq, 0, len(s.Values))
	for token, v := range s.Values {
		if token == UnknownToken {
			continue
		}
		out = append(out, ValueFreq{Token: token, Frequency: v.Frequency})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Token < out[j].Token
	})
	return out
}

// Len reports the number of canonical values, excluding the sentinel.
func (s *ValueStore) Len() int {
	n := len(s.Values)
	if _, ok := s.Values[UnknownToken]; ok {
		n--
	}
	return n
}

func (s *ValueStore) sortedTokens() []string {
	tokens := make([]string, 0, len(s.Values))
	for t := range s.Values {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}
