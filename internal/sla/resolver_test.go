package sla

import (
	"context"
	"errors"
	"testing"

	"github.com/HendrickFS/bio-supply-twin/internal/analytics/compliance"
)

type stubConfigReader struct {
	byName map[string]*Config
	list   []Config
	err    error
}

func (s stubConfigReader) GetByName(_ context.Context, name string) (*Config, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byName[name], nil
}

func (s stubConfigReader) List(_ context.Context) ([]Config, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.list, nil
}

func TestResolverBuiltinsWithoutStore(t *testing.T) {
	resolver := NewResolver(Profile{}, nil)
	band := resolver.BandForBox(context.Background(), "BOX-0001")
	want := compliance.Band{TempMin: DefaultTempMin, TempMax: DefaultTempMax, HumidityMin: DefaultHumidityMin, HumidityMax: DefaultHumidityMax}
	if band != want {
		t.Fatalf("expected built-in band %+v, got %+v", want, band)
	}
}

func TestResolverPrefersStoredDefault(t *testing.T) {
	stored := Default(DefaultName)
	stored.TempMin = 1
	stored.TempMax = 7
	resolver := NewResolver(Profile{}, stubConfigReader{byName: map[string]*Config{DefaultName: &stored}})

	band := resolver.BandForBox(context.Background(), "BOX-0001")
	if band.TempMin != 1 || band.TempMax != 7 {
		t.Fatalf("expected stored band [1, 7], got [%v, %v]", band.TempMin, band.TempMax)
	}
	if band.HumidityMin != DefaultHumidityMin {
		t.Fatalf("expected stored humidity min %v, got %v", DefaultHumidityMin, band.HumidityMin)
	}
}

func TestResolverFallsBackToNewestConfig(t *testing.T) {
	newest := Default("strict")
	newest.TempMax = 6
	resolver := NewResolver(Profile{}, stubConfigReader{list: []Config{newest, Default("older")}})

	band := resolver.BandForBox(context.Background(), "BOX-0001")
	if band.TempMax != 6 {
		t.Fatalf("expected newest config temp max 6, got %v", band.TempMax)
	}
}

func TestResolverProfileOverridesStored(t *testing.T) {
	stored := Default(DefaultName)
	stored.TempMax = 7
	profile := Profile{
		Defaults: Override{TempMax: 6},
		Boxes:    map[string]Override{"BOX-0002": {TempMin: 3}},
	}
	resolver := NewResolver(profile, stubConfigReader{byName: map[string]*Config{DefaultName: &stored}})

	band := resolver.BandForBox(context.Background(), "BOX-0002")
	if band.TempMin != 3 || band.TempMax != 6 {
		t.Fatalf("expected band [3, 6], got [%v, %v]", band.TempMin, band.TempMax)
	}

	other := resolver.BandForBox(context.Background(), "BOX-0009")
	if other.TempMin != DefaultTempMin || other.TempMax != 6 {
		t.Fatalf("expected band [%v, 6], got [%v, %v]", DefaultTempMin, other.TempMin, other.TempMax)
	}
}

func TestResolverRejectsInvertedBand(t *testing.T) {
	profile := Profile{Defaults: Override{TempMin: 20}}
	resolver := NewResolver(profile, nil)

	band := resolver.BandForBox(context.Background(), "BOX-0001")
	if band.TempMin != DefaultTempMin || band.TempMax != DefaultTempMax {
		t.Fatalf("expected built-in band on inverted override, got %+v", band)
	}
}

func TestResolverSurvivesStoreErrors(t *testing.T) {
	resolver := NewResolver(Profile{}, stubConfigReader{err: errors.New("db down")})
	band := resolver.BandForBox(context.Background(), "BOX-0001")
	if band.TempMin != DefaultTempMin || band.TempMax != DefaultTempMax {
		t.Fatalf("expected built-in band on store error, got %+v", band)
	}
}
