// Package normalize provides shared package-name normalization.
//
// All three backends (uv, conda, pip) report the same logical package under
// spelling variants such as "Scikit-Learn", "scikit_learn", or "scikit.learn".
// This package defines the single identity rule every layer agrees on:
// lowercase, with runs of '-', '_', and '.' collapsed to a single '-'.
package normalize

import "strings"

// Name normalizes a package name to its canonical form.
//
// Rules applied:
//   - Converts to lowercase
//   - Treats '-', '_', and '.' as equivalent separators
//   - Collapses separator runs to a single '-'
//   - Trims leading/trailing separators
//
// Examples:
//
//	"Scikit-Learn"   -> "scikit-learn"
//	"ruamel.yaml"    -> "ruamel-yaml"
//	"typing__ext"    -> "typing-ext"
func Name(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if r == '-' || r == '_' || r == '.' {
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('-')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	return b.String()
}

// Equal reports whether two package names refer to the same logical package.
func Equal(a, b string) bool {
	return Name(a) == Name(b)
}
