package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

func (s *sample) Validate() error {
	if s.Count < 0 {
		return errors.New("count must not be negative")
	}
	return nil
}

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "folio")
	p := writeConfig(t, "name: ${SAMPLE_NAME}\ncount: 3\n")

	var got sample
	if err := Load(p, &got); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Name != "folio" || got.Count != 3 {
		t.Errorf("got %+v", got)
	}
}

func TestLoad_Validates(t *testing.T) {
	p := writeConfig(t, "count: -1\n")
	var got sample
	err := Load(p, &got)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("err = %v, want validation failure", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var got sample
	if err := Load(filepath.Join(t.TempDir(), "none.yaml"), &got); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadOptional_MissingKeepsDefaults(t *testing.T) {
	got := sample{Name: "default", Count: 1}
	if err := LoadOptional(filepath.Join(t.TempDir(), "none.yaml"), &got); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if got.Name != "default" {
		t.Errorf("name = %q, want default", got.Name)
	}

	got.Count = -5
	if err := LoadOptional("", &got); err == nil {
		t.Error("defaults should still be validated")
	}
}

func TestLoadOptional_OverridesDefaults(t *testing.T) {
	p := writeConfig(t, "count: 7\n")
	got := sample{Name: "default"}
	if err := LoadOptional(p, &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "default" || got.Count != 7 {
		t.Errorf("got %+v", got)
	}
}
