// Package utils provides small shared helpers: safe type assertions and
// tiktoken-based token counting.
package utils

// SafeAssert performs a type assertion and returns the zero value with
// false if the assertion fails. Used for reading untyped metadata maps
// where callers must defensively check presence.
func SafeAssert[T any](value any) (T, bool) {
	if v, ok := value.(T); ok {
		return v, true
	}
	var zero T
	return zero, false
}

// AssertOr performs a type assertion and returns the fallback if it fails.
func AssertOr[T any](value any, fallback T) T {
	if v, ok := value.(T); ok {
		return v
	}
	return fallback
}
