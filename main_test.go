package main

import (
	"os"
	"testing"

	"clipOntology/config"
)

// TestInitPipelineAppliesRecipeBucketCap 验证 config.json 的
// max_examples_per_function 会生效到案例桶容量
func TestInitPipelineAppliesRecipeBucketCap(t *testing.T) {
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })

	body := `{"api_key": "test-key", "max_examples_per_function": 7}`
	if err := os.WriteFile("config.json", []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATA_DIR", dir)
	t.Setenv("STATE_STORE", "memory")
	t.Setenv("STORE", "memory")
	t.Setenv("ANNOTATOR", "mock")
	t.Setenv("SIMILARITY_THRESHOLD", "")
	t.Setenv("AMBIGUITY_MARGIN", "")
	config.ResetForTest()
	t.Cleanup(config.ResetForTest)

	if err := initPipeline(); err != nil {
		t.Fatalf("initPipeline: %v", err)
	}

	_, index := pipeline.Merger().Snapshot()
	if index.MaxPerBucket != 7 {
		t.Errorf("MaxPerBucket = %d, want 7", index.MaxPerBucket)
	}
}
