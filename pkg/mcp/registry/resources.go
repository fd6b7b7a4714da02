package registry

import (
	// Packages
	mcp "github.com/mutablelogic/go-mcp"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// ResourceContents is the content of a read resource, converted into
// resources/read's wire result. It is an alias of mcp.ResourceContents so a
// handler's return value is the same typed shape a Client's ReadResource
// decodes.
type ResourceContents = mcp.ResourceContents

// ResourceHandler reads a resource by URI.
type ResourceHandler func(hc *HandlerContext, uri string) (*ResourceContents, error)

// Resources is the resource registry, keyed by URI rather than a bare name.
// Subscription state is tracked separately by the session engine (a
// resource is subscribable independent of registry membership); this
// registry only owns enable/disable/list/read.
type Resources struct {
	*Registry[ResourceHandler]
}

func NewResources(onListChanged func()) *Resources {
	return &Resources{Registry: New[ResourceHandler](nil, onListChanged)}
}

func (r *Resources) RegisterResource(uri string, def *mcp.Value, handler ResourceHandler) error {
	return r.Register(uri, def, handler)
}

// Read looks up and invokes a resource's handler, per spec.md §4.6.
func (r *Resources) Read(hc *HandlerContext, uri string) (*ResourceContents, error) {
	handler, _, enabled, ok := r.Lookup(uri)
	if !ok {
		return nil, mcp.ErrResourceNotFound.Withf("resource not found: %q", uri)
	}
	if !enabled {
		return nil, mcp.ErrInvalidParams.Withf("resource disabled: %q", uri)
	}
	return handler(hc, uri)
}
