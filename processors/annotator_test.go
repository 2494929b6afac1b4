package processors

import (
	"strings"
	"testing"
)

func TestFormatHintEmpty(t *testing.T) {
	got := formatHint(nil)
	if !strings.Contains(got, "First analysis") {
		t.Errorf("empty hint = %q", got)
	}
}

func TestFormatHintDeclaredOrder(t *testing.T) {
	hint := map[string][]string{
		"clip_function": {"hook", "problem"},
		"shot_type":     {"close_up"},
	}
	got := formatHint(hint)
	shotIdx := strings.Index(got, "shot_type:")
	funcIdx := strings.Index(got, "clip_function:")
	if shotIdx == -1 || funcIdx == -1 {
		t.Fatalf("hint lines missing: %q", got)
	}
	// shot_type is declared before clip_function in the schema.
	if shotIdx > funcIdx {
		t.Errorf("hint not in declared category order: %q", got)
	}
	if !strings.Contains(got, "hook, problem") {
		t.Errorf("values not comma-joined: %q", got)
	}
}

func TestBuildAnnotationPromptEmbedsHint(t *testing.T) {
	prompt := buildAnnotationPrompt(map[string][]string{"emotion": {"curiosity"}})
	if !strings.Contains(prompt, "KNOWN ONTOLOGY VALUES") {
		t.Errorf("prompt missing vocabulary section")
	}
	if !strings.Contains(prompt, "emotion: curiosity") {
		t.Errorf("prompt missing hint values")
	}
	if !strings.Contains(prompt, "OUTPUT ONLY VALID JSON") {
		t.Errorf("prompt missing output contract")
	}
}

func TestMimeTypeForVideo(t *testing.T) {
	cases := map[string]string{
		"a.mp4":  "video/mp4",
		"b.MOV":  "video/quicktime",
		"c.webm": "video/webm",
		"d.avi":  "video/mp4", // default
	}
	for path, want := range cases {
		if got := mimeTypeForVideo(path); got != want {
			t.Errorf("mimeTypeForVideo(%q) = %q, want %q", path, got, want)
		}
	}
}
