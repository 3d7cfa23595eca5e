package job

import "context"

// Definition is a typed route handler. T is the argument type; job data is
// decoded into it through its JSON form.
type Definition[T any] struct {
	// Route is the name producers post jobs under.
	Route string

	// Handler processes the decoded arguments.
	Handler func(ctx context.Context, args T) error
}

// NewDefinition creates a typed route definition.
func NewDefinition[T any](route string, handler func(ctx context.Context, args T) error) *Definition[T] {
	return &Definition[T]{Route: route, Handler: handler}
}
