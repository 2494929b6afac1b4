package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clipOntology/core"
	"clipOntology/ontology"
	"clipOntology/processors"
	"clipOntology/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("STORE", "")
	merger := ontology.NewMerger(nil, nil, nil, ontology.DefaultResolvePolicy)
	recipes := storage.NewRecipeVectorStore()
	return New(processors.NewPipeline(&processors.MockVideoAnnotator{}, merger, recipes), recipes)
}

const annotationsBody = `{
  "video_id": "demo_ad",
  "duration_seconds": 9.0,
  "transcript": "Stop scrolling. Here is how.",
  "clips": [
    {"timestamp_start": "00:00.000", "timestamp_end": "00:02.000",
     "script_segment": "Stop scrolling.",
     "labels": {"clip_function": "hook", "emotion": "curiosity"}},
    {"timestamp_start": "00:02.000", "timestamp_end": "00:09.000",
     "script_segment": "Here is how.",
     "labels": {"clip_function": "solution", "emotion": "hope"}}
  ]
}`

func TestMergeAnnotationsHandler(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/merge-annotations", strings.NewReader(annotationsBody))
	w := httptest.NewRecorder()
	s.MergeAnnotationsHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var summary core.MergeSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.VideoID != "demo_ad" || summary.ClipsMerged != 2 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestMergeAnnotationsHandlerRejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/merge-annotations", nil)
	w := httptest.NewRecorder()
	s.MergeAnnotationsHandler(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/merge-annotations", strings.NewReader(`{"clips": []}`))
	w = httptest.NewRecorder()
	s.MergeAnnotationsHandler(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing video_id status = %d, want 400", w.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/merge-annotations", strings.NewReader(annotationsBody))
	s.MergeAnnotationsHandler(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	s.StatusHandler(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["videos_analyzed"].(float64) != 1 || got["total_clips"].(float64) != 2 {
		t.Errorf("status payload = %v", got)
	}
}

func TestVocabularyHandler(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/merge-annotations", strings.NewReader(annotationsBody))
	s.MergeAnnotationsHandler(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	s.VocabularyHandler(w, httptest.NewRequest(http.MethodGet, "/vocabulary?limit=1", nil))
	var hint map[string][]string
	if err := json.Unmarshal(w.Body.Bytes(), &hint); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hint["clip_function"]) != 1 {
		t.Errorf("limit not applied: %v", hint["clip_function"])
	}
}

func TestExamplesHandler(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/merge-annotations", strings.NewReader(annotationsBody))
	s.MergeAnnotationsHandler(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	s.ExamplesHandler(w, httptest.NewRequest(http.MethodGet, "/examples?function=hook", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Stop scrolling.") {
		t.Errorf("examples payload = %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	s.ExamplesHandler(w, httptest.NewRequest(http.MethodGet, "/examples", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing params status = %d, want 400", w.Code)
	}
}

func TestReportHandlerRendersText(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.ReportHandler(w, httptest.NewRequest(http.MethodGet, "/report", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "MASTER CLIP ONTOLOGY REPORT") {
		t.Errorf("report body missing header")
	}
}
