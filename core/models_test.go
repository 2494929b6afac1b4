package core

import (
	"os"
	"path/filepath"
	"testing"

	"clipOntology/config"
)

func TestDataRootPrefersEnv(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/env_state")
	if got := DataRoot(); got != "/tmp/env_state" {
		t.Errorf("DataRoot() = %q, want /tmp/env_state", got)
	}
}

// 未设置 DATA_DIR 时应回落到 config.json 的 data_dir
func TestDataRootUsesConfigDataDir(t *testing.T) {
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })

	body := `{"data_dir": "custom_state"}`
	if err := os.WriteFile("config.json", []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATA_DIR", "")
	config.ResetForTest()
	t.Cleanup(config.ResetForTest)

	if got := DataRoot(); got != "custom_state" {
		t.Errorf("DataRoot() = %q, want custom_state", got)
	}
}

func TestDataRootDefault(t *testing.T) {
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })

	t.Setenv("DATA_DIR", "")
	config.ResetForTest()
	t.Cleanup(config.ResetForTest)

	if got := DataRoot(); got != filepath.Join(".", "data") {
		t.Errorf("DataRoot() = %q, want ./data", got)
	}
}
