package report

import (
	"strings"
	"testing"
	"unicode/utf8"

	"clipOntology/brain"
	"clipOntology/core"
	"clipOntology/ontology"
)

func seededState(t *testing.T) (*ontology.MasterOntology, *brain.RecipeIndex, []ontology.AnnotatedClip, core.ValidatedBatch) {
	t.Helper()
	batch := core.ValidatedBatch{
		VideoID:         "demo_ad",
		DurationSeconds: 9.0,
		Transcript:      "Stop scrolling. Tired of X? Here is how.",
		Clips: []core.ClipAnnotation{
			{Index: 0, Start: 0, End: 2, ScriptSegment: "Stop scrolling.",
				Labels: map[string]string{"clip_function": "hook", "emotion": "curiosity", "shot_type": "Close-Up"}},
			{Index: 1, Start: 2, End: 5, ScriptSegment: "Tired of X?",
				Labels: map[string]string{"clip_function": "problem", "emotion": "frustration", "shot_type": "medium"}},
			{Index: 2, Start: 5, End: 9, ScriptSegment: "Here is how.",
				Labels: map[string]string{"clip_function": "solution", "emotion": "hope", "shot_type": "wide"}},
		},
		Dropped: []core.ValidationFailure{{ClipIndex: 3, Reason: "end 1.000 <= start 2.000"}},
	}

	mg := ontology.NewMerger(nil, nil, nil, ontology.DefaultResolvePolicy)
	_, annotated, err := mg.MergeVideo(batch)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	master, index := mg.Snapshot()
	return master, index, annotated, batch
}

func TestRenderMasterReport(t *testing.T) {
	master, index, _, _ := seededState(t)
	out := RenderMasterReport(master, index)

	for _, want := range []string{"CLIP FUNCTIONS", "hook", "Videos Analyzed: 1", "DURATION STATISTICS"} {
		if !strings.Contains(out, want) {
			t.Errorf("master report missing %q", want)
		}
	}
}

func TestRenderVideoReport(t *testing.T) {
	_, _, annotated, batch := seededState(t)
	out := RenderVideoReport(batch, annotated)

	for _, want := range []string{"demo_ad", "Stop scrolling.", "hook", "close_up", "DROPPED"} {
		if !strings.Contains(out, want) {
			t.Errorf("video report missing %q", want)
		}
	}
}

func TestRenderPlaybook(t *testing.T) {
	_, index, _, _ := seededState(t)
	out := RenderPlaybook(index)

	for _, want := range []string{"HOOK", "Stop scrolling.", "problem"} {
		if !strings.Contains(out, want) {
			t.Errorf("playbook missing %q", want)
		}
	}
	// Transitions were observed, so at least one bucket names a successor.
	if !strings.Contains(out, "followed by") {
		t.Errorf("playbook missing transition lines")
	}
}

// Long multi-byte scripts and purposes must be cut on rune boundaries, so
// the rendered playbook stays valid UTF-8.
func TestRenderPlaybookTruncatesMultiByteText(t *testing.T) {
	index := brain.NewRecipeIndex()
	index.Record(core.RecipeEntry{
		VideoID: "cn_ad",
		Script:  "a" + strings.Repeat("先抛出一个让人停下的问题", 10),
		Purpose: "a" + strings.Repeat("用痛点问题抓住注意力", 10),
		Labels:  map[string]string{"clip_function": "hook"},
	})

	out := RenderPlaybook(index)
	if !utf8.ValidString(out) {
		t.Fatalf("playbook render contains invalid UTF-8")
	}
	if !strings.Contains(out, "...") {
		t.Errorf("long script/purpose not truncated")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 80); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	long := strings.Repeat("注意", 50)
	got := truncate(long, 60)
	if !utf8.ValidString(got) {
		t.Errorf("truncated string is invalid UTF-8: %q", got)
	}
	if utf8.RuneCountInString(got) != 63 { // 60 runes + "..."
		t.Errorf("rune count = %d, want 63", utf8.RuneCountInString(got))
	}
}
