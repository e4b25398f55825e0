package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	uniq "github.com/dougcole/resque-uniq"
)

func TestInitConfig_Create(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uniq.yaml")

	if err := initConfig(path); err != nil {
		t.Fatalf("initConfig: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading created file: %v", err)
	}
	content := string(data)
	for _, section := range []string{"redis:", "app:", "workers:", "job_types:"} {
		if !strings.Contains(content, section) {
			t.Errorf("config missing %s section", section)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o644 {
		t.Errorf("file permission = %o, want 644", perm)
	}
}

func TestInitConfig_TemplateIsValid(t *testing.T) {
	cfg, err := uniq.LoadConfig([]byte(configTemplate))
	if err != nil {
		t.Fatalf("template does not load: %v", err)
	}
	if _, err := cfg.Registry(); err != nil {
		t.Fatalf("template registry: %v", err)
	}
	if len(cfg.JobTypes) != 1 || cfg.JobTypes[0].Name != "SendEmail" {
		t.Errorf("job_types = %+v", cfg.JobTypes)
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uniq.yaml")
	os.WriteFile(path, []byte("existing"), 0o644)

	err := initConfig(path)
	if err == nil {
		t.Fatal("expected error for existing file")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("error = %q, want 'already exists'", err)
	}
}

func TestInitConfig_WriteError(t *testing.T) {
	if err := initConfig("/nonexistent/dir/uniq.yaml"); err == nil {
		t.Fatal("expected error for unwritable path")
	}
}

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")

	out, err := runCLI(t, "init", "--config", path)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "Config file created") {
		t.Error("expected success message")
	}
	if !strings.Contains(out, "Next steps") {
		t.Error("expected next steps")
	}

	if _, err := runCLI(t, "init", "--config", path); err == nil {
		t.Error("second init should refuse to overwrite")
	}
}
