package storage

import (
	"os"
	"path/filepath"
	"testing"

	"clipOntology/brain"
	"clipOntology/core"
	"clipOntology/ontology"
)

func TestFileStateStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStateStore(dir)

	master := ontology.NewMasterOntology()
	master.Stores[ontology.CategoryClipFunction].Resolve("hook", "vid1", ontology.DefaultResolvePolicy)
	master.VideosAnalyzed = 1
	master.TotalClips = 3

	index := brain.NewRecipeIndex()
	index.Record(core.RecipeEntry{
		VideoID: "vid1", Script: "Stop scrolling",
		Labels: map[string]string{"clip_function": "hook"},
	})

	if err := store.SaveState(master, index); err != nil {
		t.Fatalf("save: %v", err)
	}

	loadedMaster, err := store.LoadOntology()
	if err != nil {
		t.Fatalf("load ontology: %v", err)
	}
	if loadedMaster.VideosAnalyzed != 1 || loadedMaster.TotalClips != 3 {
		t.Errorf("counters lost: %+v", loadedMaster)
	}
	if loadedMaster.Stores[ontology.CategoryClipFunction].Values["hook"] == nil {
		t.Errorf("value store lost on disk round-trip")
	}

	loadedIndex, err := store.LoadBrain()
	if err != nil {
		t.Fatalf("load brain: %v", err)
	}
	if loadedIndex.TotalExamples() != 1 {
		t.Errorf("recipe index lost on disk round-trip")
	}
}

func TestFileStateStoreLoadMissingReturnsEmptyState(t *testing.T) {
	store := NewFileStateStore(t.TempDir())

	master, err := store.LoadOntology()
	if err != nil {
		t.Fatalf("load ontology: %v", err)
	}
	if master.VideosAnalyzed != 0 || len(master.Stores) == 0 {
		t.Errorf("expected fresh ontology, got %+v", master)
	}

	index, err := store.LoadBrain()
	if err != nil {
		t.Fatalf("load brain: %v", err)
	}
	if index.TotalExamples() != 0 {
		t.Errorf("expected fresh recipe index")
	}
}

func TestFileStateStoreRejectsCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStateStore(dir)
	if err := os.WriteFile(filepath.Join(dir, "master_ontology.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.LoadOntology(); err == nil {
		t.Fatal("expected error for corrupt ontology document")
	}
}

func TestFileStateStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStateStore(dir)
	if err := store.SaveState(ontology.NewMasterOntology(), brain.NewRecipeIndex()); err != nil {
		t.Fatalf("save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("state dir holds %v, want exactly the two documents", names)
	}
}

func recipeEntry(videoID, script, function string) core.RecipeEntry {
	return core.RecipeEntry{
		VideoID: videoID,
		Script:  script,
		Labels:  map[string]string{"clip_function": function},
	}
}

func TestMemoryRecipeStoreSearchRanksByOverlap(t *testing.T) {
	s := newMemoryRecipeStore()
	s.Upsert("vid1", []core.RecipeEntry{
		recipeEntry("vid1", "stop scrolling right now", "hook"),
		recipeEntry("vid1", "claim your discount today", "cta"),
	})

	hits := s.Search("stop scrolling", 2)
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Entry.Script != "stop scrolling right now" {
		t.Errorf("top hit = %q", hits[0].Entry.Script)
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("hits not ranked: %f vs %f", hits[0].Score, hits[1].Score)
	}
}

func TestMemoryRecipeStoreReUpsertReplaces(t *testing.T) {
	s := newMemoryRecipeStore()
	s.Upsert("vid1", []core.RecipeEntry{recipeEntry("vid1", "old script", "hook")})
	s.Upsert("vid2", []core.RecipeEntry{recipeEntry("vid2", "other video", "cta")})
	s.Upsert("vid1", []core.RecipeEntry{recipeEntry("vid1", "new script", "hook")})

	hits := s.Search("script", 10)
	for _, h := range hits {
		if h.Entry.VideoID == "vid1" && h.Entry.Script == "old script" {
			t.Errorf("stale vid1 entry survived re-upsert")
		}
	}
	if len(s.docs) != 2 {
		t.Errorf("store holds %d docs, want 2", len(s.docs))
	}
}
