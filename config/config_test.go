package config

import (
	"os"
	"path/filepath"
	"testing"
)

// chdirTemp 切到临时目录，避免读到仓库里的 config.json
func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}

func TestLoadConfigDefaults(t *testing.T) {
	chdirTemp(t)
	ResetForTest()
	t.Setenv("API_KEY", "")
	t.Setenv("SIMILARITY_THRESHOLD", "")
	t.Setenv("AMBIGUITY_MARGIN", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SimilarityThreshold != 0.82 || cfg.AmbiguityMargin != 0.06 {
		t.Errorf("policy defaults = %f/%f, want 0.82/0.06", cfg.SimilarityThreshold, cfg.AmbiguityMargin)
	}
	if cfg.MaxExamplesPerFunc != 50 || cfg.HintValuesPerCat != 10 {
		t.Errorf("bucket defaults = %d/%d, want 50/10", cfg.MaxExamplesPerFunc, cfg.HintValuesPerCat)
	}
	if cfg.HasValidAPI() {
		t.Errorf("HasValidAPI() = true without an API key")
	}
	if err := cfg.Validate(); err == nil {
		t.Errorf("Validate() should fail without an API key")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	chdirTemp(t)
	ResetForTest()
	t.Setenv("API_KEY", "test-key")
	t.Setenv("SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("AMBIGUITY_MARGIN", "0.05")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIKey != "test-key" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.SimilarityThreshold != 0.9 || cfg.AmbiguityMargin != 0.05 {
		t.Errorf("policy = %f/%f, want env values", cfg.SimilarityThreshold, cfg.AmbiguityMargin)
	}
	if !cfg.HasValidAPI() {
		t.Errorf("HasValidAPI() = false with key and base URL set")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadConfigGuardsOutOfRangePolicy(t *testing.T) {
	chdirTemp(t)
	ResetForTest()
	t.Setenv("SIMILARITY_THRESHOLD", "1.5")
	t.Setenv("AMBIGUITY_MARGIN", "0.9")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SimilarityThreshold != 0.82 {
		t.Errorf("out-of-range threshold not guarded: %f", cfg.SimilarityThreshold)
	}
	if cfg.AmbiguityMargin != 0.06 {
		t.Errorf("margin wider than 1-threshold not guarded: %f", cfg.AmbiguityMargin)
	}
}

// 阈值接近1时，模糊带必须收窄到剩余空间，否则相似合并永远达不到阈值+带宽
func TestLoadConfigClampsMarginToThresholdHeadroom(t *testing.T) {
	chdirTemp(t)
	ResetForTest()
	t.Setenv("SIMILARITY_THRESHOLD", "0.96")
	t.Setenv("AMBIGUITY_MARGIN", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SimilarityThreshold != 0.96 {
		t.Fatalf("threshold = %f, want 0.96", cfg.SimilarityThreshold)
	}
	if cfg.AmbiguityMargin <= 0 {
		t.Errorf("margin collapsed to %f", cfg.AmbiguityMargin)
	}
	if cfg.SimilarityThreshold+cfg.AmbiguityMargin > 1+1e-9 {
		t.Errorf("threshold+margin = %f, exceeds 1", cfg.SimilarityThreshold+cfg.AmbiguityMargin)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	chdirTemp(t)
	ResetForTest()
	t.Setenv("API_KEY", "")
	t.Setenv("SIMILARITY_THRESHOLD", "")
	t.Setenv("AMBIGUITY_MARGIN", "")

	doc := []byte(`{"api_key":"file-key","similarity_threshold":0.85}`)
	wd, _ := os.Getwd()
	if err := os.WriteFile(filepath.Join(wd, "config.json"), doc, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIKey != "file-key" || cfg.SimilarityThreshold != 0.85 {
		t.Errorf("config.json values not applied: %+v", cfg)
	}

	// 单例：再次加载返回同一实例
	again, _ := LoadConfig()
	if again != cfg {
		t.Errorf("LoadConfig is not a singleton")
	}
	ResetForTest()
}
