package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Port      string  `yaml:"port" json:"port"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.yaml")
	if err := os.WriteFile(path, []byte("port: \"9000\"\nthreshold: 42\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var s sample
	if err := LoadFile(path, &s); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if s.Port != "9000" || s.Threshold != 42 {
		t.Errorf("got %+v", s)
	}
}

func TestLoadFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.json")
	if err := os.WriteFile(path, []byte(`{"port":"7000","threshold":12.5}`), 0o644); err != nil {
		t.Fatal(err)
	}

	var s sample
	if err := LoadFile(path, &s); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if s.Port != "7000" || s.Threshold != 12.5 {
		t.Errorf("got %+v", s)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	var s sample
	err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), &s)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CANDLES_TEST_PORT=8123\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CANDLES_TEST_PORT", "")
	os.Unsetenv("CANDLES_TEST_PORT")

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := String("CANDLES_TEST_PORT", ""); got != "8123" {
		t.Errorf("String = %q, want 8123", got)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("CANDLES_INT", "12")
	t.Setenv("CANDLES_FLOAT", "0.5")
	t.Setenv("CANDLES_BOOL", "true")
	t.Setenv("CANDLES_BAD", "x")

	if got := Int("CANDLES_INT", 1); got != 12 {
		t.Errorf("Int = %d, want 12", got)
	}
	if got := Int("CANDLES_BAD", 1); got != 1 {
		t.Errorf("Int bad = %d, want default 1", got)
	}
	if got := Float("CANDLES_FLOAT", 0); got != 0.5 {
		t.Errorf("Float = %v, want 0.5", got)
	}
	if got := Bool("CANDLES_BOOL", false); !got {
		t.Error("Bool = false, want true")
	}
	if got := String("CANDLES_UNSET_VALUE", "dflt"); got != "dflt" {
		t.Errorf("String = %q, want dflt", got)
	}
}
