package merge

import "strings"

// NormalizeName returns the comparison key for an ingredient name so simple
// plural forms collapse together: lower-case, drop one trailing "s", then one
// trailing "x", collapse whitespace and trim.
//
// It is a heuristic, not a stemmer; "gaz" and "ga" compare equal.
func NormalizeName(name string) string {
	n := strings.ToLower(name)
	n = strings.TrimSuffix(n, "s")
	n = strings.TrimSuffix(n, "x")
	return strings.Join(strings.Fields(n), " ")
}

// SameLine reports whether two list lines (or a line and a new row) must be
// merged: normalized names and units match. An empty unit counts as "u".
func SameLine(nameA string, unitA string, nameB string, unitB string) bool {
	return sameUnit(unitA, unitB) && NormalizeName(nameA) == NormalizeName(nameB)
}

func sameUnit(a, b string) bool {
	if a == "" {
		a = "u"
	}
	if b == "" {
		b = "u"
	}
	return a == b
}
