// Package validation holds fail-fast checks for constructor arguments.
package validation

import "fmt"

// AssertNotNil panics if ptr is nil. Use it for mandatory dependencies while
// wiring components, never for runtime input.
//
//	validation.AssertNotNil(reg, "registry")
func AssertNotNil[T any](ptr *T, name string) {
	if ptr == nil {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
}
