package sla

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func clearProfileEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"SLA_PROFILE", "SLA_TEMP_MIN", "SLA_TEMP_MAX", "SLA_HUMIDITY_MIN", "SLA_HUMIDITY_MAX"} {
		t.Setenv(key, "")
	}
}

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sla.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return path
}

func TestLoadProfileWithoutFileUsesBuiltins(t *testing.T) {
	clearProfileEnv(t)

	profile, err := LoadProfile()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	band := profile.BandForBox("BOX-0001")
	if band.TempMin != DefaultTempMin || band.TempMax != DefaultTempMax {
		t.Fatalf("expected built-in temperature band, got [%v %v]", band.TempMin, band.TempMax)
	}
	if band.HumidityMin != DefaultHumidityMin || band.HumidityMax != DefaultHumidityMax {
		t.Fatalf("expected built-in humidity band, got [%v %v]", band.HumidityMin, band.HumidityMax)
	}
}

func TestLoadProfileParsesYAML(t *testing.T) {
	clearProfileEnv(t)
	path := writeProfile(t, `
defaults:
  temp_max: 6
boxes:
  BOX-0001:
    temp_min: 3
`)
	t.Setenv("SLA_PROFILE", path)

	profile, err := LoadProfile()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	override := profile.BandForBox("BOX-0001")
	if override.TempMin != 3 || override.TempMax != 6 {
		t.Fatalf("expected merged band [3 6], got [%v %v]", override.TempMin, override.TempMax)
	}

	other := profile.BandForBox("BOX-0002")
	if other.TempMin != DefaultTempMin || other.TempMax != 6 {
		t.Fatalf("expected defaults-only band [2 6], got [%v %v]", other.TempMin, other.TempMax)
	}
	if other.HumidityMin != DefaultHumidityMin || other.HumidityMax != DefaultHumidityMax {
		t.Fatalf("expected built-in humidity band, got [%v %v]", other.HumidityMin, other.HumidityMax)
	}
}

func TestLoadProfileMissingFileFails(t *testing.T) {
	clearProfileEnv(t)
	t.Setenv("SLA_PROFILE", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := LoadProfile(); err == nil {
		t.Fatal("expected error for missing profile path")
	}
}

func TestBandForBoxZeroOverrideKeepsBase(t *testing.T) {
	profile := Profile{
		Boxes: map[string]Override{
			"BOX-0001": {HumidityMax: 60},
		},
	}

	band := profile.BandForBox("BOX-0001")
	if band.TempMin != DefaultTempMin || band.TempMax != DefaultTempMax {
		t.Fatalf("expected untouched temperature band, got [%v %v]", band.TempMin, band.TempMax)
	}
	if band.HumidityMax != 60 {
		t.Fatalf("expected humidity max 60, got %v", band.HumidityMax)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Default("shipping")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.TempMin = 10
	cfg.TempMax = 2
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}

	cfg = Default("ok")
	cfg.Name = "  "
	if err := cfg.Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default("")
	if cfg.Name != DefaultName {
		t.Fatalf("expected name %q, got %q", DefaultName, cfg.Name)
	}

	band := cfg.Band()
	if band.TempMin != 2 || band.TempMax != 8 || band.HumidityMin != 30 || band.HumidityMax != 70 {
		t.Fatalf("unexpected default band: %+v", band)
	}
}
