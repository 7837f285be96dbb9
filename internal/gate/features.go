package gate

import (
	"slices"

	"shapegen/internal/capability"
)

// defaultFeatures are the capabilities removed by the shapegen_nodefault
// build tag.
var defaultFeatures = []string{"clone", "debug", "typeinfo"}

// CompiledFeatures returns the names of the capabilities compiled into the
// engine, sorted.
func CompiledFeatures() []string {
	return capability.Names()
}

// DefaultFeatures reports whether the engine was built with its default
// capability set.
func DefaultFeatures() bool {
	for _, name := range defaultFeatures {
		if !capability.Known(name) {
			return false
		}
	}
	return true
}

// isDefaultFeature reports whether name belongs to the default set.
func isDefaultFeature(name string) bool {
	return slices.Contains(defaultFeatures, name)
}
