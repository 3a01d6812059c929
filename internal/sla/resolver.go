package sla

import (
	"context"

	"github.com/HendrickFS/bio-supply-twin/internal/analytics/compliance"
)

// ConfigReader loads stored configs.
type ConfigReader interface {
	GetByName(ctx context.Context, name string) (*Config, error)
	List(ctx context.Context) ([]Config, error)
}

// Resolver supplies threshold bands to the alert monitor. The stored default
// config wins over built-ins, profile overrides win over both.
type Resolver struct {
	profile Profile
	configs ConfigReader
}

// NewResolver constructs a resolver. The config reader may be nil.
func NewResolver(profile Profile, configs ConfigReader) *Resolver {
	return &Resolver{profile: profile, configs: configs}
}

// BandForBox resolves the allowed band for a box.
func (r *Resolver) BandForBox(ctx context.Context, boxID string) compliance.Band {
	base := Default(DefaultName)
	if r != nil && r.configs != nil {
		if stored := r.baseConfig(ctx); stored != nil {
			base = *stored
		}
	}
	if r != nil {
		base = applyOverride(base, r.profile.Defaults)
		if r.profile.Boxes != nil {
			if override, ok := r.profile.Boxes[boxID]; ok {
				base = applyOverride(base, override)
			}
		}
	}
	if base.Validate() != nil {
		return Default(DefaultName).Band()
	}
	return base.Band()
}

// baseConfig prefers the config named "default", then the newest stored one.
func (r *Resolver) baseConfig(ctx context.Context) *Config {
	if cfg, err := r.configs.GetByName(ctx, DefaultName); err == nil && cfg != nil {
		return cfg
	}
	list, err := r.configs.List(ctx)
	if err != nil || len(list) == 0 {
		return nil
	}
	return &list[0]
}
