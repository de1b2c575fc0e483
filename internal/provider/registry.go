package provider

import (
	"fmt"
	"sort"

	"github.com/deepuonthemove/lessonforge/internal/config"
	"github.com/deepuonthemove/lessonforge/internal/domain"
)

// Registry builds the ordered adapter lists from the configuration object
// injected at process start. Ordering follows the per-provider priority
// values (lower first, config order breaking ties); adapters whose
// Available() is false are filtered out.
type Registry struct {
	cfg *config.ProvidersConfig
}

// NewRegistry creates a registry over the given provider configuration.
func NewRegistry(cfg *config.ProvidersConfig) *Registry {
	return &Registry{cfg: cfg}
}

// TextProviders returns the currently-available text adapters in fallback
// order. An empty result is not an error here; the fallback engine raises
// NoProviderConfigured before making any call.
func (r *Registry) TextProviders() ([]domain.TextProvider, error) {
	configs := append([]config.TextProviderConfig(nil), r.cfg.Text...)
	sort.SliceStable(configs, func(i, j int) bool {
		return configs[i].Priority < configs[j].Priority
	})

	providers := make([]domain.TextProvider, 0, len(configs))
	for _, cfg := range configs {
		f, ok := GetFactory(cfg.Type)
		if !ok {
			return nil, fmt.Errorf("unknown provider type: %s (registered types: %v)", cfg.Type, ListTypes())
		}
		if f.NewText == nil {
			return nil, fmt.Errorf("provider type %s has no text models", cfg.Type)
		}
		p, err := f.NewText(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create text provider %s: %w", cfg.Name, err)
		}
		if !p.Available() {
			continue
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// ImageProviders returns the currently-available image adapters in
// fallback order.
func (r *Registry) ImageProviders() ([]domain.ImageProvider, error) {
	configs := append([]config.ImageProviderConfig(nil), r.cfg.Image...)
	sort.SliceStable(configs, func(i, j int) bool {
		return configs[i].Priority < configs[j].Priority
	})

	providers := make([]domain.ImageProvider, 0, len(configs))
	for _, cfg := range configs {
		f, ok := GetFactory(cfg.Type)
		if !ok {
			return nil, fmt.Errorf("unknown provider type: %s (registered types: %v)", cfg.Type, ListTypes())
		}
		if f.NewImage == nil {
			return nil, fmt.Errorf("provider type %s has no image models", cfg.Type)
		}
		p, err := f.NewImage(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create image provider %s: %w", cfg.Name, err)
		}
		if !p.Available() {
			continue
		}
		providers = append(providers, p)
	}
	return providers, nil
}
