package session

import (
	"context"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
	registry "github.com/mutablelogic/go-mcp/pkg/mcp/registry"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// InitializeResult is the client-side view of a completed handshake.
type InitializeResult struct {
	ProtocolVersion string
	Capabilities    *mcp.ServerCapabilities
	ServerInfo      mcp.Implementation
	Instructions    string
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// RegisterPingHandler installs the trivial ping responder on either role,
// per spec.md §3 invariant (iv) "ping is exempt".
func (e *Engine) RegisterPingHandler() {
	e.RegisterRequestHandler(mcp.MethodPing, func(_ *registry.HandlerContext, _ *mcp.Value) (*mcp.Value, error) {
		return mcp.Object(), nil
	})
}

// InitializeClient performs the client side of the handshake of spec.md
// §4.1: send initialize, then notifications/initialized. Until this
// completes the client must not send any method except ping — enforced by
// Request's strict-mode check.
func (e *Engine) InitializeClient(ctx context.Context, info mcp.Implementation, caps *mcp.ClientCapabilities) (*InitializeResult, error) {
	params := mcp.Object().
		Set("protocolVersion", mcp.String(mcp.LatestProtocolVersion)).
		Set("capabilities", clientCapabilitiesValue(caps)).
		Set("clientInfo", implementationValue(info))

	result, err := e.Request(ctx, mcp.MethodInitialize, params, WithTimeout(defaultTimeout))
	if err != nil {
		return nil, err
	}

	protoVersion, _ := result.Get("protocolVersion").String()
	if !mcp.IsSupportedProtocolVersion(protoVersion) {
		protoVersion = mcp.LatestProtocolVersion
	}

	serverCaps := decodeServerCapabilities(result.Get("capabilities"))
	e.setInitialized(serverCaps, caps)
	e.setProtocolVersion(protoVersion)

	if err := e.Notify(ctx, mcp.NotificationInitialized, nil); err != nil {
		return nil, err
	}

	ir := &InitializeResult{ProtocolVersion: protoVersion, Capabilities: serverCaps}
	if si := result.Get("serverInfo"); si != nil {
		ir.ServerInfo.Name, _ = si.Get("name").String()
		ir.ServerInfo.Version, _ = si.Get("version").String()
	}
	ir.Instructions, _ = result.Get("instructions").String()
	return ir, nil
}

// RegisterInitializeHandler installs the server side of the handshake:
// answers initialize with the server's chosen protocol version (falling
// back to latest-supported when the client's offer is unknown), its
// capabilities, serverInfo, and optional instructions, then marks the
// engine initialized once notifications/initialized arrives.
func (e *Engine) RegisterInitializeHandler(info mcp.Implementation, caps *mcp.ServerCapabilities, instructions string) {
	e.RegisterRequestHandler(mcp.MethodInitialize, func(hc *registry.HandlerContext, params *mcp.Value) (*mcp.Value, error) {
		offered, _ := params.Get("protocolVersion").String()
		version := offered
		if !mcp.IsSupportedProtocolVersion(version) {
			version = mcp.LatestProtocolVersion
		}
		clientCaps := decodeClientCapabilities(params.Get("capabilities"))

		e.stateMu.Lock()
		e.serverCaps = caps
		e.clientCaps = clientCaps
		e.protocolVersion = version
		e.stateMu.Unlock()

		result := mcp.Object().
			Set("protocolVersion", mcp.String(version)).
			Set("capabilities", serverCapabilitiesValue(caps)).
			Set("serverInfo", implementationValue(info))
		if instructions != "" {
			result.Set("instructions", mcp.String(instructions))
		}
		return result, nil
	})

	e.RegisterNotificationHandler(mcp.NotificationInitialized, func(_ context.Context, _ *mcp.Value) {
		e.stateMu.Lock()
		e.initialized = true
		e.stateMu.Unlock()
	})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE HELPERS — capability <-> Value

func implementationValue(i mcp.Implementation) *mcp.Value {
	return mcp.Object().Set("name", mcp.String(i.Name)).Set("version", mcp.String(i.Version))
}

func clientCapabilitiesValue(c *mcp.ClientCapabilities) *mcp.Value {
	v := mcp.Object()
	if c == nil {
		return v
	}
	if c.Sampling != nil {
		v.Set("sampling", mcp.Object())
	}
	if c.Elicitation != nil {
		v.Set("elicitation", mcp.Object().
			Set("form", mcp.Bool(c.Elicitation.Form)).
			Set("url", mcp.Bool(c.Elicitation.URL)))
	}
	if c.Roots != nil {
		v.Set("roots", mcp.Object().Set("listChanged", mcp.Bool(c.Roots.ListChanged)))
	}
	return v
}

func serverCapabilitiesValue(c *mcp.ServerCapabilities) *mcp.Value {
	v := mcp.Object()
	if c == nil {
		return v
	}
	if c.Tools != nil {
		v.Set("tools", mcp.Object().Set("listChanged", mcp.Bool(c.Tools.ListChanged)))
	}
	if c.Resources != nil {
		v.Set("resources", mcp.Object().
			Set("subscribe", mcp.Bool(c.Resources.Subscribe)).
			Set("listChanged", mcp.Bool(c.Resources.ListChanged)))
	}
	if c.Prompts != nil {
		v.Set("prompts", mcp.Object().Set("listChanged", mcp.Bool(c.Prompts.ListChanged)))
	}
	if c.Logging != nil {
		v.Set("logging", mcp.Object())
	}
	if c.Completions != nil {
		v.Set("completions", mcp.Object())
	}
	return v
}

func decodeServerCapabilities(v *mcp.Value) *mcp.ServerCapabilities {
	if v == nil {
		return &mcp.ServerCapabilities{}
	}
	c := &mcp.ServerCapabilities{}
	if t := v.Get("tools"); t != nil {
		lc, _ := t.Get("listChanged").Bool()
		c.Tools = &mcp.ToolsCapability{ListChanged: lc}
	}
	if r := v.Get("resources"); r != nil {
		sub, _ := r.Get("subscribe").Bool()
		lc, _ := r.Get("listChanged").Bool()
		c.Resources = &mcp.ResourcesCapability{Subscribe: sub, ListChanged: lc}
	}
	if p := v.Get("prompts"); p != nil {
		lc, _ := p.Get("listChanged").Bool()
		c.Prompts = &mcp.PromptsCapability{ListChanged: lc}
	}
	if v.Get("logging") != nil {
		c.Logging = &struct{}{}
	}
	if v.Get("completions") != nil {
		c.Completions = &struct{}{}
	}
	return c
}

func decodeClientCapabilities(v *mcp.Value) *mcp.ClientCapabilities {
	if v == nil {
		return &mcp.ClientCapabilities{}
	}
	c := &mcp.ClientCapabilities{}
	if v.Get("sampling") != nil {
		c.Sampling = &struct{}{}
	}
	if el := v.Get("elicitation"); el != nil {
		form, _ := el.Get("form").Bool()
		url, _ := el.Get("url").Bool()
		c.Elicitation = &mcp.ElicitationCapability{Form: form, URL: url}
	}
	if r := v.Get("roots"); r != nil {
		lc, _ := r.Get("listChanged").Bool()
		c.Roots = &mcp.RootsCapability{ListChanged: lc}
	}
	return c
}
