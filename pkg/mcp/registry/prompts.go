package registry

import (
	// Packages
	mcp "github.com/mutablelogic/go-mcp"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// PromptResult is a rendered prompt: a description plus a sequence of
// messages, converted into prompts/get's wire result. It is an alias of
// mcp.GetPromptResult so a handler's return value is the same typed shape a
// Client's GetPrompt decodes.
type PromptResult = mcp.GetPromptResult

// PromptHandler renders a prompt given its (already-validated) arguments.
type PromptHandler func(hc *HandlerContext, arguments *mcp.Value) (*PromptResult, error)

// Prompts is the prompt registry.
type Prompts struct {
	*Registry[PromptHandler]
}

func NewPrompts(validator Validator, onListChanged func()) *Prompts {
	if validator == nil {
		validator = JSONSchemaValidator{}
	}
	return &Prompts{Registry: New[PromptHandler](validator, onListChanged)}
}

func (p *Prompts) RegisterPrompt(name string, def *mcp.Value, handler PromptHandler) error {
	return p.Register(name, def, handler)
}

// Execute looks up and renders a prompt, per spec.md §4.6.
func (p *Prompts) Execute(hc *HandlerContext, name string, arguments *mcp.Value) (*PromptResult, error) {
	handler, def, enabled, ok := p.Lookup(name)
	if !ok {
		return nil, mcp.ErrMethodNotFound.Withf("prompt not found: %q", name)
	}
	if !enabled {
		return nil, mcp.ErrInvalidParams.Withf("prompt disabled: %q", name)
	}
	if argsSchema := def.Get("argumentsSchema"); argsSchema != nil {
		if err := p.Validator().Validate(argsSchema, arguments); err != nil {
			return nil, err
		}
	}
	return handler(hc, arguments)
}
