package pattern

import "errors"

// ErrInvalidPattern indicates a path pattern that cannot be compiled.
// Callers wrap it with the offending rule so the settings layer can report it
// while the user is still editing, long before any query reaches the engine.
var ErrInvalidPattern = errors.New("invalid pattern")
