package emit

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// title upper-cases the first letter of an identifier. Casers carry state,
// so each call gets its own.
func title(name string) string {
	return cases.Title(language.Und, cases.NoLower).String(name)
}

// HelperName names the package-level helper a capability emits for a sum:
// HelperName("Equal", "shape") == "EqualShape".
func HelperName(prefix, typeName string) string {
	return prefix + title(typeName)
}

// SuffixName names helpers whose capability word trails the type:
// SuffixName("shape", "Key") == "ShapeKey".
func SuffixName(typeName, suffix string) string {
	return title(typeName) + suffix
}
