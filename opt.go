package mcp

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt configures a T at construction time. Every constructor in this module
// and its subpackages follows this shape rather than a config struct, per
// the teacher's pkg/mcp/opt.go convention.
type Opt[T any] func(*T) error

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Apply runs opts over t in order, stopping at the first error.
func Apply[T any](t *T, opts ...Opt[T]) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(t); err != nil {
			return err
		}
	}
	return nil
}
