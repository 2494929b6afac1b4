package ontology

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"Close-Up", "close_up"},
		{"  Wide SHOT ", "wide_shot"},
		{"close_up", "close_up"},
		{"Social Proof!", "social_proof"},
		{"A/B Test", "a_b_test"},
		{"---", ""},
		{"", ""},
		{"  \t ", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.raw); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestSimilarityIdentical(t *testing.T) {
	if got := Similarity("close_up", "close_up"); got != 1.0 {
		t.Errorf("identical tokens should score 1.0, got %f", got)
	}
}

func TestSimilarityEmpty(t *testing.T) {
	if got := Similarity("", "close_up"); got != 0 {
		t.Errorf("empty token should score 0, got %f", got)
	}
}

func TestSimilarityTokenReorder(t *testing.T) {
	// Same word set in a different order scores 1.0 via Jaccard even
	// though the edit distance is large.
	if got := Similarity("product_close_up", "close_up_product"); got != 1.0 {
		t.Errorf("reordered word sets should score 1.0, got %f", got)
	}
}

func TestSimilarityNearSpelling(t *testing.T) {
	// One edit apart: 1 - 1/8 = 0.875.
	got := Similarity("closeup", "close_up")
	if got < 0.874 || got > 0.876 {
		t.Errorf("Similarity(closeup, close_up) = %f, want ~0.875", got)
	}
}

func TestSimilarityUnrelated(t *testing.T) {
	if got := Similarity("hook", "testimonial"); got > 0.5 {
		t.Errorf("unrelated tokens should score low, got %f", got)
	}
}
