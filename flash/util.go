package flash

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// sortedKeys returns the keys of m in ascending order
func sortedKeys[K constraints.Ordered, V any](m map[K]V) []K {
	ks := maps.Keys(m)
	slices.Sort(ks)
	return ks
}
