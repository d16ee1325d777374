package stream

import (
	"context"

	"github.com/account-login/ctxlog"

	"github.com/akrambek/nukleus-proxy/internal/buffer"
	"github.com/akrambek/nukleus-proxy/internal/codec"
	"github.com/akrambek/nukleus-proxy/internal/obs"
	"github.com/akrambek/nukleus-proxy/internal/router"
	"github.com/akrambek/nukleus-proxy/proxy2"
)

// netStream terminates the network-side stream pair of a session. It owns
// the PROXY v2 header: the header is encoded into a pool slot at begin time
// and flushed as the first Data frame once the upstream grants enough
// credit to carry it.
type netStream struct {
	f   *ClientFactory
	app *appStream
	ctx context.Context

	routeID   uint64
	initialID uint64
	replyID   uint64
	receiver  codec.MessageHandler

	encodeSlot       int
	encodeSlotOffset int

	initialBudget  int32
	initialPadding int32
	replyBudget    int32
}

func newNetStream(app *appStream, routeID uint64) *netStream {
	n := &netStream{
		f:          app.f,
		app:        app,
		routeID:    routeID,
		encodeSlot: buffer.NoSlot,
	}
	n.initialID = app.f.router.SupplyInitialID(routeID)
	n.replyID = router.SupplyReplyID(n.initialID)
	n.receiver = app.f.router.SupplyReceiver(n.initialID)
	n.ctx = ctxlog.Pushf(app.ctx, "[net][initial:%#x]", n.initialID)
	return n
}

func (n *netStream) onNetMessage(typeID int, buf []byte, index, length int) {
	switch typeID {
	case codec.TypeBegin:
		begin, err := codec.WrapBegin(buf, index, length)
		if err != nil {
			return
		}
		n.onNetBegin(begin)
	case codec.TypeData:
		data, err := codec.WrapData(buf, index, length)
		if err != nil {
			return
		}
		n.onNetData(data)
	case codec.TypeEnd:
		end, err := codec.WrapEnd(buf, index, length)
		if err != nil {
			return
		}
		n.onNetEnd(end)
	case codec.TypeAbort:
		abort, err := codec.WrapAbort(buf, index, length)
		if err != nil {
			return
		}
		n.onNetAbort(abort)
	case codec.TypeFlush:
		flush, err := codec.WrapFlush(buf, index, length)
		if err != nil {
			return
		}
		n.onNetFlush(flush)
	case codec.TypeWindow:
		window, err := codec.WrapWindow(buf, index, length)
		if err != nil {
			return
		}
		n.onNetWindow(window)
	case codec.TypeReset:
		reset, err := codec.WrapReset(buf, index, length)
		if err != nil {
			return
		}
		n.onNetReset(reset)
	case codec.TypeChallenge:
		challenge, err := codec.WrapChallenge(buf, index, length)
		if err != nil {
			return
		}
		n.onNetChallenge(challenge)
	default:
	}
}

func (n *netStream) onNetBegin(begin codec.BeginView) {
	n.app.doAppBegin(begin.TraceID(), begin.Authorization(), begin.Affinity())
}

func (n *netStream) onNetData(data codec.DataView) {
	traceID := data.TraceID()
	authorization := data.Authorization()
	flags := data.Flags()
	budgetID := data.BudgetID()
	reserved := data.Reserved()
	payload := data.Payload()

	n.replyBudget -= reserved

	if n.replyBudget < 0 {
		ctxlog.Warnf(n.ctx, "reply budget violated [reserved:%v]", reserved)
		obs.BudgetViolationsTotal.WithLabelValues("reply").Inc()
		n.doNetReset(traceID, authorization)
		n.app.doAppAbort(traceID, authorization)
	} else {
		n.app.doAppData(traceID, authorization, flags, budgetID, reserved, payload)
	}
}

func (n *netStream) onNetEnd(end codec.EndView) {
	n.app.doAppEnd(end.TraceID(), end.Authorization())
}

func (n *netStream) onNetAbort(abort codec.AbortView) {
	n.app.doAppAbort(abort.TraceID(), abort.Authorization())
}

func (n *netStream) onNetFlush(flush codec.FlushView) {
	n.app.doAppFlush(flush.TraceID(), flush.Authorization(), flush.BudgetID(), flush.Reserved())
}

// onNetWindow accumulates upstream credit. While the pending header is
// held it must claim the first bytes and the first budget: the flush is
// gated on sufficient credit, and no capacity reaches the application
// until the header is on the wire.
func (n *netStream) onNetWindow(window codec.WindowView) {
	traceID := window.TraceID()
	authorization := window.Authorization()
	budgetID := window.BudgetID()

	n.initialBudget += window.Credit()
	n.initialPadding = window.Padding()

	if n.encodeSlot != buffer.NoSlot {
		header := n.f.encodePool.Buffer(n.encodeSlot)[:n.encodeSlotOffset]
		reserved := int32(len(header)) + n.initialPadding
		if n.initialBudget < reserved {
			ctxlog.Debugf(n.ctx, "holding header [budget:%v][reserved:%v]", n.initialBudget, reserved)
			return
		}

		n.doNetData(traceID, authorization, budgetID, codec.DataFlagInit|codec.DataFlagFin, reserved, header)
		n.releaseEncodeSlot()
		ctxlog.Debugf(n.ctx, "header flushed [length:%v]", len(header))
	}

	n.app.doAppWindow(traceID, authorization, budgetID, n.initialBudget, n.initialPadding)
}

func (n *netStream) onNetReset(reset codec.ResetView) {
	n.releaseEncodeSlot()
	n.app.doAppReset(reset.TraceID(), reset.Authorization())
}

func (n *netStream) onNetChallenge(challenge codec.ChallengeView) {
	n.app.doAppChallenge(challenge.TraceID(), challenge.Authorization(), challenge.Extension())
}

func (n *netStream) doNetBegin(traceID, authorization, affinity uint64, beginEx *proxy2.BeginEx) {
	if n.encodeSlot != buffer.NoSlot {
		panic("stream: encode slot already held")
	}
	slot := n.f.encodePool.Acquire(n.initialID)
	if slot == buffer.NoSlot {
		panic("stream: encode pool exhausted")
	}
	n.encodeSlot = slot

	buf := n.f.encodePool.Buffer(slot)
	command := "local"
	if beginEx != nil {
		length, err := proxy2.EncodeProxy(buf, beginEx)
		if err != nil {
			n.f.encodePool.Release(slot)
			n.encodeSlot = buffer.NoSlot
			ctxlog.Errorf(n.ctx, "header encode rejected: %v", err)
			obs.EncodeFailuresTotal.Inc()
			n.app.doAppReset(traceID, authorization)
			return
		}
		n.encodeSlotOffset = length
		command = "proxy"
	} else {
		n.encodeSlotOffset = proxy2.EncodeLocal(buf)
	}
	obs.PendingHeaders.Inc()
	obs.HeadersEncodedTotal.WithLabelValues(command).Inc()

	n.f.correlations[n.replyID] = n.onNetMessage
	n.f.router.SetThrottle(n.initialID, n.onNetMessage)
	n.f.doBegin(n.receiver, n.routeID, n.initialID, traceID, authorization, affinity)
}

func (n *netStream) doNetData(traceID, authorization, budgetID uint64, flags uint8, reserved int32, payload []byte) {
	n.initialBudget -= reserved
	if n.initialBudget < 0 {
		panic("stream: initial budget underflow on send")
	}

	n.f.doData(n.receiver, n.routeID, n.initialID, traceID, authorization, flags, budgetID, reserved, payload)
}

func (n *netStream) doNetEnd(traceID, authorization uint64) {
	n.releaseEncodeSlot()
	n.f.doEnd(n.receiver, n.routeID, n.initialID, traceID, authorization)
	n.app.initialEnded = true
	if n.app.replyEnded {
		n.app.markClosed()
	}
}

func (n *netStream) doNetAbort(traceID, authorization uint64) {
	n.releaseEncodeSlot()
	n.f.doAbort(n.receiver, n.routeID, n.initialID, traceID, authorization)
	n.app.markClosed()
}

func (n *netStream) doNetFlush(traceID, authorization, budgetID uint64, reserved int32) {
	n.f.doFlush(n.receiver, n.routeID, n.initialID, traceID, authorization, budgetID, reserved)
}

func (n *netStream) doNetReset(traceID, authorization uint64) {
	n.releaseEncodeSlot()
	delete(n.f.correlations, n.replyID)
	n.f.doReset(n.receiver, n.routeID, n.replyID, traceID, authorization)
	n.app.markClosed()
}

func (n *netStream) doNetChallenge(traceID, authorization uint64, extension []byte) {
	n.f.doChallenge(n.receiver, n.routeID, n.replyID, traceID, authorization, extension)
}

// doNetWindow converts the absolute maximum advertised by the app half into
// incremental credit toward the upstream reply stream.
func (n *netStream) doNetWindow(traceID, authorization, budgetID uint64, maxBudget, minPadding int32) {
	replyCredit := maxBudget - n.replyBudget
	if replyCredit > 0 {
		n.replyBudget += replyCredit

		n.f.doWindow(n.receiver, n.routeID, n.replyID, traceID, authorization, budgetID, replyCredit, minPadding)
	}
}

func (n *netStream) releaseEncodeSlot() {
	if n.encodeSlot == buffer.NoSlot {
		return
	}
	n.f.encodePool.Release(n.encodeSlot)
	n.encodeSlot = buffer.NoSlot
	obs.PendingHeaders.Dec()
}
