package session

import (
	"context"
	"sync"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
	registry "github.com/mutablelogic/go-mcp/pkg/mcp/registry"
	transport "github.com/mutablelogic/go-mcp/pkg/mcp/transport"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Server wraps a RoleServer Engine, wiring the tool/prompt/resource
// registries into the default request handlers of spec.md §4.6, grounded on
// the teacher's pkg/mcp/server.go dispatch table generalized from a single
// toolkit to three registries plus resource subscriptions.
type Server struct {
	*Engine

	Tools     *registry.Tools
	Prompts   *registry.Prompts
	Resources *registry.Resources

	subMu sync.Mutex
	subs  map[string]map[string]bool // uri -> sessionID -> subscribed (single-session engine: sessionID is always "")
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// ServerOpt configures NewServer beyond the Engine's own Opt set.
type ServerOpt func(*serverConfig)

type serverConfig struct {
	validator    registry.Validator
	instructions string
}

func WithValidator(v registry.Validator) ServerOpt {
	return func(c *serverConfig) { c.validator = v }
}

func WithInstructions(s string) ServerOpt {
	return func(c *serverConfig) { c.instructions = s }
}

// NewServer creates a server-role Engine over t, registers the initialize
// and ping handlers, and wires fresh Tools/Prompts/Resources registries into
// the default tools/*, prompts/*, resources/* request handlers. caps
// determines which of those handlers are actually registered, matching the
// capability set the server advertises at initialize.
func NewServer(ctx context.Context, t transport.Transport, info mcp.Implementation, caps *mcp.ServerCapabilities, opts []Opt, sopts ...ServerOpt) (*Server, error) {
	e, err := New(ctx, RoleServer, t, opts...)
	if err != nil {
		return nil, err
	}

	cfg := serverConfig{}
	for _, o := range sopts {
		o(&cfg)
	}

	s := &Server{Engine: e, subs: make(map[string]map[string]bool)}

	if caps.HasTools() {
		s.Tools = registry.NewTools(cfg.validator, func() {
			_ = e.Notify(context.Background(), mcp.NotificationToolsListChanged, nil)
		})
		s.registerToolHandlers()
	}
	if caps.HasPrompts() {
		s.Prompts = registry.NewPrompts(cfg.validator, func() {
			_ = e.Notify(context.Background(), mcp.NotificationPromptsListChanged, nil)
		})
		s.registerPromptHandlers()
	}
	if caps != nil && caps.Resources != nil {
		s.Resources = registry.NewResources(func() {
			_ = e.Notify(context.Background(), mcp.NotificationResourcesListChanged, nil)
		})
		s.registerResourceHandlers(caps.Resources.Subscribe)
	}

	e.RegisterInitializeHandler(info, caps, cfg.instructions)
	e.RegisterPingHandler()
	return s, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS — resource update fan-out

// NotifyResourceUpdated sends notifications/resources/updated to every
// subscriber of uri, per spec.md §4.6's subscribe/unsubscribe pair.
func (s *Server) NotifyResourceUpdated(ctx context.Context, uri string) {
	s.subMu.Lock()
	_, subscribed := s.subs[uri][""]
	s.subMu.Unlock()
	if !subscribed {
		return
	}
	params := mcp.Object().Set("uri", mcp.String(uri))
	_ = s.Notify(ctx, mcp.NotificationResourcesUpdated, params)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS — handler registration

func (s *Server) registerToolHandlers() {
	s.RegisterRequestHandler(mcp.MethodToolsList, func(hc *registry.HandlerContext, params *mcp.Value) (*mcp.Value, error) {
		cursor, limit := pageArgs(params)
		page, next := s.Tools.ListEnabledPage(cursor, limit)
		result := mcp.Object().Set("tools", mcp.Array(page...))
		if next != "" {
			result.Set("nextCursor", mcp.String(next))
		}
		return result, nil
	})

	s.RegisterRequestHandler(mcp.MethodToolsCall, func(hc *registry.HandlerContext, params *mcp.Value) (*mcp.Value, error) {
		name, _ := params.Get("name").String()
		result, err := s.Tools.Execute(hc, name, params.Get("arguments"))
		if err != nil {
			return nil, err
		}
		return result.Value(), nil
	})
}

func (s *Server) registerPromptHandlers() {
	s.RegisterRequestHandler(mcp.MethodPromptsList, func(hc *registry.HandlerContext, params *mcp.Value) (*mcp.Value, error) {
		cursor, limit := pageArgs(params)
		page, next := s.Prompts.ListEnabledPage(cursor, limit)
		result := mcp.Object().Set("prompts", mcp.Array(page...))
		if next != "" {
			result.Set("nextCursor", mcp.String(next))
		}
		return result, nil
	})

	s.RegisterRequestHandler(mcp.MethodPromptsGet, func(hc *registry.HandlerContext, params *mcp.Value) (*mcp.Value, error) {
		name, _ := params.Get("name").String()
		result, err := s.Prompts.Execute(hc, name, params.Get("arguments"))
		if err != nil {
			return nil, err
		}
		return result.Value(), nil
	})
}

func (s *Server) registerResourceHandlers(subscribable bool) {
	s.RegisterRequestHandler(mcp.MethodResourcesList, func(hc *registry.HandlerContext, params *mcp.Value) (*mcp.Value, error) {
		cursor, limit := pageArgs(params)
		page, next := s.Resources.ListEnabledPage(cursor, limit)
		result := mcp.Object().Set("resources", mcp.Array(page...))
		if next != "" {
			result.Set("nextCursor", mcp.String(next))
		}
		return result, nil
	})

	s.RegisterRequestHandler(mcp.MethodResourcesRead, func(hc *registry.HandlerContext, params *mcp.Value) (*mcp.Value, error) {
		uri, _ := params.Get("uri").String()
		contents, err := s.Resources.Read(hc, uri)
		if err != nil {
			return nil, err
		}
		return mcp.Object().Set("contents", mcp.Array(contents.Value())), nil
	})

	if !subscribable {
		return
	}

	s.RegisterRequestHandler(mcp.MethodResourcesSubscribe, func(hc *registry.HandlerContext, params *mcp.Value) (*mcp.Value, error) {
		uri, _ := params.Get("uri").String()
		if !s.Resources.Has(uri) {
			return nil, mcp.ErrResourceNotFound.Withf("resource not found: %q", uri)
		}
		s.subMu.Lock()
		if s.subs[uri] == nil {
			s.subs[uri] = make(map[string]bool)
		}
		s.subs[uri][""] = true
		s.subMu.Unlock()
		return mcp.Object(), nil
	})

	s.RegisterRequestHandler(mcp.MethodResourcesUnsubscribe, func(hc *registry.HandlerContext, params *mcp.Value) (*mcp.Value, error) {
		uri, _ := params.Get("uri").String()
		s.subMu.Lock()
		delete(s.subs[uri], "")
		s.subMu.Unlock()
		return mcp.Object(), nil
	})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE HELPERS

func pageArgs(params *mcp.Value) (cursor string, limit int) {
	if params == nil {
		return "", 0
	}
	cursor, _ = params.Get("cursor").String()
	if l, ok := params.Get("limit").Int(); ok {
		limit = int(l)
	}
	return cursor, limit
}

