// Package router resolves outbound routes, allocates correlated stream ids
// and keeps the receiver and throttle registries for one dispatcher thread.
// Everything here is single-threaded by contract; there are no locks.
package router

import (
	"github.com/akrambek/nukleus-proxy/internal/codec"
)

// Route binds an application route id to the resolved upstream route.
// Authorization zero matches any credential.
type Route struct {
	ID            uint64
	ResolvedID    uint64
	Authorization uint64
}

// Router is the per-thread route table plus stream registries.
type Router struct {
	routes    []Route
	bindings  map[uint64]codec.MessageHandler
	throttles map[uint64]codec.MessageHandler
	owners    map[uint64]uint64
	seq       uint64
}

// New creates an empty Router.
func New() *Router {
	return &Router{
		bindings:  make(map[uint64]codec.MessageHandler),
		throttles: make(map[uint64]codec.MessageHandler),
		owners:    make(map[uint64]uint64),
	}
}

// AddRoute registers a route.
func (r *Router) AddRoute(route Route) {
	r.routes = append(r.routes, route)
}

// Bind registers the upstream message sink for a resolved route id.
func (r *Router) Bind(resolvedID uint64, h codec.MessageHandler) {
	r.bindings[resolvedID] = h
}

// ResolveApp looks up the route for an application Begin. Returns nil when
// no route matches.
func (r *Router) ResolveApp(routeID, authorization uint64) *Route {
	for i := range r.routes {
		route := &r.routes[i]
		if route.ID != routeID {
			continue
		}
		if route.Authorization != 0 && route.Authorization != authorization {
			continue
		}
		return route
	}
	return nil
}

// SupplyInitialID allocates a fresh initial-direction (odd) stream id owned
// by the given resolved route.
func (r *Router) SupplyInitialID(routeID uint64) uint64 {
	r.seq++
	id := r.seq<<1 | 1
	r.owners[id] = routeID
	return id
}

// SupplyReplyID derives the reply-direction id paired with an initial id.
func SupplyReplyID(initialID uint64) uint64 {
	return initialID ^ 1
}

// SupplyReceiver returns the message sink for an initial stream id.
func (r *Router) SupplyReceiver(streamID uint64) codec.MessageHandler {
	routeID, ok := r.owners[streamID]
	if !ok {
		panic("router: no owner for stream id")
	}
	h, ok := r.bindings[routeID]
	if !ok {
		panic("router: no binding for route id")
	}
	return h
}

// SetThrottle registers the reverse-direction handler for a stream id.
func (r *Router) SetThrottle(streamID uint64, h codec.MessageHandler) {
	r.throttles[streamID] = h
}

// Throttle returns the registered reverse-direction handler, or nil.
func (r *Router) Throttle(streamID uint64) codec.MessageHandler {
	return r.throttles[streamID]
}

// ClearThrottle removes a throttle registration.
func (r *Router) ClearThrottle(streamID uint64) {
	delete(r.throttles, streamID)
}
