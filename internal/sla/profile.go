package sla

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/HendrickFS/bio-supply-twin/internal/analytics/compliance"
)

// Override adjusts individual band edges. Zero values keep the base band.
type Override struct {
	TempMin     float64 `yaml:"temp_min"`
	TempMax     float64 `yaml:"temp_max"`
	HumidityMin float64 `yaml:"humidity_min"`
	HumidityMax float64 `yaml:"humidity_max"`
}

// Profile defines file-based thresholds with per-box overrides so the
// alert monitor can tighten bands for sensitive boxes without DB writes.
type Profile struct {
	Defaults Override            `yaml:"defaults"`
	Boxes    map[string]Override `yaml:"boxes"`
}

// LoadProfile loads the profile from yaml or env.
func LoadProfile() (Profile, error) {
	profile := Profile{}

	if path := os.Getenv("SLA_PROFILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return profile, err
		}
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return profile, err
		}
	}

	if profile.Defaults.TempMin == 0 {
		profile.Defaults.TempMin = getenvFloatDefault("SLA_TEMP_MIN", 0)
	}
	if profile.Defaults.TempMax == 0 {
		profile.Defaults.TempMax = getenvFloatDefault("SLA_TEMP_MAX", 0)
	}
	if profile.Defaults.HumidityMin == 0 {
		profile.Defaults.HumidityMin = getenvFloatDefault("SLA_HUMIDITY_MIN", 0)
	}
	if profile.Defaults.HumidityMax == 0 {
		profile.Defaults.HumidityMax = getenvFloatDefault("SLA_HUMIDITY_MAX", 0)
	}
	return profile, nil
}

// BandForBox resolves the threshold band for a box: the built-in band,
// then the profile defaults, then any per-box override.
func (p Profile) BandForBox(boxID string) compliance.Band {
	merged := applyOverride(Default(DefaultName), p.Defaults)
	if p.Boxes != nil {
		if override, ok := p.Boxes[boxID]; ok {
			merged = applyOverride(merged, override)
		}
	}
	return merged.Band()
}

func applyOverride(base Config, override Override) Config {
	if override.TempMin != 0 {
		base.TempMin = override.TempMin
	}
	if override.TempMax != 0 {
		base.TempMax = override.TempMax
	}
	if override.HumidityMin != 0 {
		base.HumidityMin = override.HumidityMin
	}
	if override.HumidityMax != 0 {
		base.HumidityMax = override.HumidityMax
	}
	return base
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
