package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"livebid/internal/apperr"
)

var errUnknownEvent = errors.New("unknown_event")

// ConnContext identifies the connection a frame arrived on. UserID is empty
// for anonymous viewers.
type ConnContext struct {
	AuctionID string
	UserID    string
}

// Access says who may send an event.
type Access int

const (
	Anyone Access = iota
	SignedIn
)

// validatable bodies are checked after decoding, before the handler runs.
type validatable interface {
	Validate() error
}

type route struct {
	access Access
	handle func(ctx context.Context, c *ConnContext, body json.RawMessage) (any, error)
}

// Router maps inbound event names to typed handlers.
type Router struct {
	mu     sync.RWMutex
	routes map[string]route
}

func NewRouter() *Router { return &Router{routes: make(map[string]route)} }

// Register binds event to h. Frames from anonymous viewers are refused
// with apperr.ErrUnauthorized when access is SignedIn.
func Register[Req any, Res any](
	r *Router,
	event string,
	access Access,
	h func(ctx context.Context, c *ConnContext, req Req) (Res, error),
) {
	if event == "" {
		panic("ws router: empty event")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes[event] = route{
		access: access,
		handle: func(ctx context.Context, c *ConnContext, body json.RawMessage) (any, error) {
			var req Req
			if len(body) > 0 {
				if err := json.Unmarshal(body, &req); err != nil {
					return nil, apperr.Input("body", "malformed "+event+" body")
				}
			}
			if v, ok := any(req).(validatable); ok {
				if err := v.Validate(); err != nil {
					return nil, err
				}
			}
			return h(ctx, c, req)
		},
	}
}

func (r *Router) dispatch(ctx context.Context, c *ConnContext, env Envelope) (any, error) {
	r.mu.RLock()
	rt, ok := r.routes[env.Event]
	r.mu.RUnlock()
	if !ok {
		return nil, errUnknownEvent
	}
	if rt.access == SignedIn && c.UserID == "" {
		return nil, apperr.ErrUnauthorized
	}
	return rt.handle(ctx, c, env.Body)
}
