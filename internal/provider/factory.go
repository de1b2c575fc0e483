// Package provider holds adapter factory registration and the registry that
// builds the ordered, availability-filtered adapter lists from process
// configuration.
//
// # Adding a New Provider
//
// Each vendor package registers itself via an explicit registration
// function called from internal/registration (avoiding init() side
// effects in the vendor packages themselves):
//
//	func RegisterFactory() {
//	    if provider.IsRegistered(ProviderType) {
//	        return
//	    }
//	    provider.RegisterFactory(provider.Factory{
//	        Type:        ProviderType,
//	        Description: "Example text API provider",
//	        NewText:     NewFromConfig,
//	    })
//	}
package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/deepuonthemove/lessonforge/internal/config"
	"github.com/deepuonthemove/lessonforge/internal/domain"
)

// Factory defines how to create adapters of a specific type. A vendor
// serving both kinds (e.g. openai) sets both constructors.
type Factory struct {
	// Type is the adapter type identifier used in configuration.
	Type string

	// Description provides a human-readable description of the provider.
	Description string

	// NewText instantiates a text adapter from configuration. Nil when the
	// vendor has no text models.
	NewText func(cfg config.TextProviderConfig) (domain.TextProvider, error)

	// NewImage instantiates an image adapter from configuration. Nil when
	// the vendor has no image models.
	NewImage func(cfg config.ImageProviderConfig) (domain.ImageProvider, error)
}

var (
	factoryMu  sync.RWMutex
	factoryMap = make(map[string]Factory)
)

// RegisterFactory registers an adapter factory for a specific type.
// Panics if a factory with the same type is already registered.
func RegisterFactory(f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if f.Type == "" {
		panic("provider factory type cannot be empty")
	}
	if f.NewText == nil && f.NewImage == nil {
		panic(fmt.Sprintf("provider factory %q must have a constructor", f.Type))
	}
	if _, exists := factoryMap[f.Type]; exists {
		panic(fmt.Sprintf("provider factory %q already registered", f.Type))
	}

	factoryMap[f.Type] = f
}

// GetFactory returns the factory for an adapter type, if registered.
func GetFactory(providerType string) (Factory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factoryMap[providerType]
	return f, ok
}

// IsRegistered returns true if an adapter type is registered.
func IsRegistered(providerType string) bool {
	_, ok := GetFactory(providerType)
	return ok
}

// ListTypes returns all registered adapter type names, sorted.
func ListTypes() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	types := make([]string, 0, len(factoryMap))
	for t := range factoryMap {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ClearFactories removes all registered factories (for testing only).
func ClearFactories() {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	factoryMap = make(map[string]Factory)
}
