// Package scope implements the scope algebra shared by grant and token
// issuance. Scope is always treated as a set of names, never as a literal
// string: "write read" and "read  write" are the same scope.
package scope

import (
	"sort"
	"strings"
)

// Normalize splits a space-delimited scope string into a deduplicated,
// lexicographically sorted list of names. Empty input yields an empty list.
// Normalize is idempotent and order-independent.
func Normalize(scope string) []string {
	names := strings.Fields(scope)
	if len(names) == 0 {
		return []string{}
	}

	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// NormalizeList is Normalize for scope already split into names.
func NormalizeList(names []string) []string {
	return Normalize(strings.Join(names, " "))
}

// String joins normalized scope names back into the canonical
// space-delimited form stored and reported by the server.
func String(scope string) string {
	return strings.Join(Normalize(scope), " ")
}

// Intersect returns the names of requested that also occur in allowed,
// in normalized order.
func Intersect(requested, allowed string) []string {
	allowedSet := make(map[string]bool)
	for _, name := range Normalize(allowed) {
		allowedSet[name] = true
	}

	out := []string{}
	for _, name := range Normalize(requested) {
		if allowedSet[name] {
			out = append(out, name)
		}
	}
	return out
}

// IntersectString is Intersect in canonical string form.
func IntersectString(requested, allowed string) string {
	return strings.Join(Intersect(requested, allowed), " ")
}

// Subset reports whether every name in requested occurs in allowed.
// The empty scope is a subset of everything.
func Subset(requested, allowed string) bool {
	allowedSet := make(map[string]bool)
	for _, name := range Normalize(allowed) {
		allowedSet[name] = true
	}
	for _, name := range Normalize(requested) {
		if !allowedSet[name] {
			return false
		}
	}
	return true
}

// Contains reports whether the normalized scope carries the given name.
func Contains(scope, name string) bool {
	for _, s := range Normalize(scope) {
		if s == name {
			return true
		}
	}
	return false
}
