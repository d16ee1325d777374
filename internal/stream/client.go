// Package stream implements the client-side PROXY protocol v2 egress
// adapter. Each session pairs an application-facing half with a
// network-facing half; the network half prefixes the upstream byte stream
// with an encoded PROXY v2 header before any payload flows.
//
// Everything in this package runs on a single dispatcher thread. Handlers
// complete before returning control; back-pressure is expressed by not
// emitting a frame until a Window arrives.
package stream

import (
	"context"

	"github.com/akrambek/nukleus-proxy/internal/buffer"
	"github.com/akrambek/nukleus-proxy/internal/codec"
	"github.com/akrambek/nukleus-proxy/internal/obs"
	"github.com/akrambek/nukleus-proxy/internal/router"
)

const writeBufferCapacity = 64 * 1024

// Config sizes the encode pool backing pending PROXY headers.
type Config struct {
	Slots        int
	SlotCapacity int
}

func (c Config) withDefaults() Config {
	if c.Slots == 0 {
		c.Slots = 64
	}
	if c.SlotCapacity == 0 {
		c.SlotCapacity = 8192
	}
	return c
}

// ClientFactory admits application streams and bridges each one to a fresh
// upstream stream pair.
type ClientFactory struct {
	ctx          context.Context
	router       *router.Router
	writeBuffer  []byte
	encodePool   *buffer.Pool
	correlations map[uint64]codec.MessageHandler
}

// NewClientFactory creates a factory bound to one dispatcher thread.
func NewClientFactory(ctx context.Context, config Config, rt *router.Router) *ClientFactory {
	config = config.withDefaults()
	return &ClientFactory{
		ctx:          ctx,
		router:       rt,
		writeBuffer:  make([]byte, writeBufferCapacity),
		encodePool:   buffer.NewPool(config.Slots, config.SlotCapacity),
		correlations: make(map[uint64]codec.MessageHandler),
	}
}

// NewStream admits a Begin frame. Odd stream ids open a new session when a
// route resolves; even ids claim a pending correlation exactly once. A nil
// return tells the dispatcher to drop the stream.
func (f *ClientFactory) NewStream(typeID int, buf []byte, index, length int, sender codec.MessageHandler) codec.MessageHandler {
	if typeID != codec.TypeBegin {
		return nil
	}
	begin, err := codec.WrapBegin(buf, index, length)
	if err != nil {
		return nil
	}
	streamID := begin.StreamID()

	if streamID&1 != 0 {
		route := f.router.ResolveApp(begin.RouteID(), begin.Authorization())
		if route == nil {
			obs.NoRouteTotal.Inc()
			return nil
		}
		app := newAppStream(f, begin.RouteID(), streamID, sender, route.ResolvedID)
		obs.SessionsTotal.Inc()
		obs.ActiveSessions.Inc()
		return app.onAppMessage
	}

	h, ok := f.correlations[streamID]
	if !ok {
		return nil
	}
	delete(f.correlations, streamID)
	return h
}

// The emitters below share the factory write buffer: a frame is fully built
// and delivered before any other builder runs on this thread.

func (f *ClientFactory) doBegin(receiver codec.MessageHandler, routeID, streamID, traceID, authorization, affinity uint64) {
	begin := codec.Begin{
		RouteID:       routeID,
		StreamID:      streamID,
		TraceID:       traceID,
		Authorization: authorization,
		Affinity:      affinity,
	}
	length := begin.Encode(f.writeBuffer)
	receiver(codec.TypeBegin, f.writeBuffer, 0, length)
}

func (f *ClientFactory) doData(receiver codec.MessageHandler, routeID, streamID, traceID, authorization uint64, flags uint8, budgetID uint64, reserved int32, payload []byte) {
	data := codec.Data{
		RouteID:       routeID,
		StreamID:      streamID,
		TraceID:       traceID,
		Authorization: authorization,
		Flags:         flags,
		BudgetID:      budgetID,
		Reserved:      reserved,
		Payload:       payload,
	}
	length := data.Encode(f.writeBuffer)
	receiver(codec.TypeData, f.writeBuffer, 0, length)
}

func (f *ClientFactory) doEnd(receiver codec.MessageHandler, routeID, streamID, traceID, authorization uint64) {
	end := codec.End{
		RouteID:       routeID,
		StreamID:      streamID,
		TraceID:       traceID,
		Authorization: authorization,
	}
	length := end.Encode(f.writeBuffer)
	receiver(codec.TypeEnd, f.writeBuffer, 0, length)
}

func (f *ClientFactory) doAbort(receiver codec.MessageHandler, routeID, streamID, traceID, authorization uint64) {
	abort := codec.Abort{
		RouteID:       routeID,
		StreamID:      streamID,
		TraceID:       traceID,
		Authorization: authorization,
	}
	length := abort.Encode(f.writeBuffer)
	receiver(codec.TypeAbort, f.writeBuffer, 0, length)
}

func (f *ClientFactory) doFlush(receiver codec.MessageHandler, routeID, streamID, traceID, authorization, budgetID uint64, reserved int32) {
	flush := codec.Flush{
		RouteID:       routeID,
		StreamID:      streamID,
		TraceID:       traceID,
		Authorization: authorization,
		BudgetID:      budgetID,
		Reserved:      reserved,
	}
	length := flush.Encode(f.writeBuffer)
	receiver(codec.TypeFlush, f.writeBuffer, 0, length)
}

func (f *ClientFactory) doReset(receiver codec.MessageHandler, routeID, streamID, traceID, authorization uint64) {
	reset := codec.Reset{
		RouteID:       routeID,
		StreamID:      streamID,
		TraceID:       traceID,
		Authorization: authorization,
	}
	length := reset.Encode(f.writeBuffer)
	receiver(codec.TypeReset, f.writeBuffer, 0, length)
}

func (f *ClientFactory) doWindow(receiver codec.MessageHandler, routeID, streamID, traceID, authorization, budgetID uint64, credit, padding int32) {
	window := codec.Window{
		RouteID:       routeID,
		StreamID:      streamID,
		TraceID:       traceID,
		Authorization: authorization,
		BudgetID:      budgetID,
		Credit:        credit,
		Padding:       padding,
	}
	length := window.Encode(f.writeBuffer)
	receiver(codec.TypeWindow, f.writeBuffer, 0, length)
}

func (f *ClientFactory) doChallenge(receiver codec.MessageHandler, routeID, streamID, traceID, authorization uint64, extension []byte) {
	challenge := codec.Challenge{
		RouteID:       routeID,
		StreamID:      streamID,
		TraceID:       traceID,
		Authorization: authorization,
		Extension:     extension,
	}
	length := challenge.Encode(f.writeBuffer)
	receiver(codec.TypeChallenge, f.writeBuffer, 0, length)
}
