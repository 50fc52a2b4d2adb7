package platform

import (
	"log/slog"
	"sync/atomic"
)

// Features holds the live feature flags. It is safe for concurrent use.
type Features struct {
	sources atomic.Bool
}

// NewFeatures creates Features from cfg.
func NewFeatures(cfg FeaturesConfig) *Features {
	f := &Features{}
	f.sources.Store(cfg.EnableAirbyteSources)
	return f
}

// SourcesEnabled reports whether the source management routes are on.
func (f *Features) SourcesEnabled() bool {
	return f.sources.Load()
}

// Apply swaps in the flags from cfg.
func (f *Features) Apply(cfg FeaturesConfig) {
	if old := f.sources.Swap(cfg.EnableAirbyteSources); old != cfg.EnableAirbyteSources {
		slog.Info("feature flag changed", "flag", "enable_airbyte_sources", "enabled", cfg.EnableAirbyteSources)
	}
}
