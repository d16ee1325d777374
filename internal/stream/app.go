package stream

import (
	"context"

	"github.com/account-login/ctxlog"

	"github.com/akrambek/nukleus-proxy/internal/codec"
	"github.com/akrambek/nukleus-proxy/internal/obs"
	"github.com/akrambek/nukleus-proxy/internal/router"
	"github.com/akrambek/nukleus-proxy/proxy2"
)

// appStream terminates the application-side stream pair of a session.
// Frames received from the application are relayed to the paired netStream;
// doApp* emissions travel back toward the application peer.
type appStream struct {
	f        *ClientFactory
	ctx      context.Context
	receiver codec.MessageHandler

	routeID   uint64
	initialID uint64
	replyID   uint64

	net *netStream

	initialBudget int32
	replyBudget   int32
	replyPadding  int32

	initialEnded bool
	replyEnded   bool
	closed       bool
}

func newAppStream(f *ClientFactory, routeID, initialID uint64, receiver codec.MessageHandler, resolvedID uint64) *appStream {
	a := &appStream{
		f:         f,
		receiver:  receiver,
		routeID:   routeID,
		initialID: initialID,
		replyID:   router.SupplyReplyID(initialID),
	}
	a.ctx = ctxlog.Pushf(f.ctx, "[proxy-client][initial:%#x]", initialID)
	a.net = newNetStream(a, resolvedID)
	return a
}

func (a *appStream) onAppMessage(typeID int, buf []byte, index, length int) {
	switch typeID {
	case codec.TypeBegin:
		begin, err := codec.WrapBegin(buf, index, length)
		if err != nil {
			return
		}
		a.onAppBegin(begin)
	case codec.TypeData:
		data, err := codec.WrapData(buf, index, length)
		if err != nil {
			return
		}
		a.onAppData(data)
	case codec.TypeEnd:
		end, err := codec.WrapEnd(buf, index, length)
		if err != nil {
			return
		}
		a.onAppEnd(end)
	case codec.TypeAbort:
		abort, err := codec.WrapAbort(buf, index, length)
		if err != nil {
			return
		}
		a.onAppAbort(abort)
	case codec.TypeFlush:
		flush, err := codec.WrapFlush(buf, index, length)
		if err != nil {
			return
		}
		a.onAppFlush(flush)
	case codec.TypeWindow:
		window, err := codec.WrapWindow(buf, index, length)
		if err != nil {
			return
		}
		a.onAppWindow(window)
	case codec.TypeReset:
		reset, err := codec.WrapReset(buf, index, length)
		if err != nil {
			return
		}
		a.onAppReset(reset)
	case codec.TypeChallenge:
		challenge, err := codec.WrapChallenge(buf, index, length)
		if err != nil {
			return
		}
		a.onAppChallenge(challenge)
	default:
	}
}

func (a *appStream) onAppBegin(begin codec.BeginView) {
	traceID := begin.TraceID()
	authorization := begin.Authorization()
	affinity := begin.Affinity()

	beginEx, err := proxy2.DecodeBeginEx(begin.Extension())
	if err != nil {
		ctxlog.Errorf(a.ctx, "rejecting malformed begin extension: %v", err)
		obs.EncodeFailuresTotal.Inc()
		a.doAppReset(traceID, authorization)
		return
	}

	a.f.router.SetThrottle(a.replyID, a.onAppMessage)

	a.net.doNetBegin(traceID, authorization, affinity, beginEx)
}

func (a *appStream) onAppData(data codec.DataView) {
	traceID := data.TraceID()
	authorization := data.Authorization()
	budgetID := data.BudgetID()
	flags := data.Flags()
	reserved := data.Reserved()
	payload := data.Payload()

	a.initialBudget -= reserved

	if a.initialBudget < 0 {
		ctxlog.Warnf(a.ctx, "initial budget violated [reserved:%v]", reserved)
		obs.BudgetViolationsTotal.WithLabelValues("initial").Inc()
		a.doAppReset(traceID, authorization)
		a.net.doNetAbort(traceID, authorization)
	} else {
		a.net.doNetData(traceID, authorization, budgetID, flags, reserved, payload)
	}
}

func (a *appStream) onAppEnd(end codec.EndView) {
	a.net.doNetEnd(end.TraceID(), end.Authorization())
}

func (a *appStream) onAppAbort(abort codec.AbortView) {
	a.net.doNetAbort(abort.TraceID(), abort.Authorization())
}

func (a *appStream) onAppFlush(flush codec.FlushView) {
	a.net.doNetFlush(flush.TraceID(), flush.Authorization(), flush.BudgetID(), flush.Reserved())
}

func (a *appStream) onAppWindow(window codec.WindowView) {
	a.replyBudget += window.Credit()
	a.replyPadding = window.Padding()

	a.net.doNetWindow(window.TraceID(), window.Authorization(), window.BudgetID(), a.replyBudget, a.replyPadding)
}

func (a *appStream) onAppReset(reset codec.ResetView) {
	a.net.doNetReset(reset.TraceID(), reset.Authorization())
}

func (a *appStream) onAppChallenge(challenge codec.ChallengeView) {
	a.net.doNetChallenge(challenge.TraceID(), challenge.Authorization(), challenge.Extension())
}

func (a *appStream) doAppBegin(traceID, authorization, affinity uint64) {
	a.f.doBegin(a.receiver, a.routeID, a.replyID, traceID, authorization, affinity)
}

func (a *appStream) doAppData(traceID, authorization uint64, flags uint8, budgetID uint64, reserved int32, payload []byte) {
	a.replyBudget -= reserved
	if a.replyBudget < 0 {
		panic("stream: reply budget underflow on send")
	}

	a.f.doData(a.receiver, a.routeID, a.replyID, traceID, authorization, flags, budgetID, reserved, payload)
}

func (a *appStream) doAppEnd(traceID, authorization uint64) {
	a.f.doEnd(a.receiver, a.routeID, a.replyID, traceID, authorization)
	a.replyEnded = true
	if a.initialEnded {
		a.markClosed()
	}
}

func (a *appStream) doAppAbort(traceID, authorization uint64) {
	a.f.doAbort(a.receiver, a.routeID, a.replyID, traceID, authorization)
	a.markClosed()
}

func (a *appStream) doAppFlush(traceID, authorization, budgetID uint64, reserved int32) {
	a.f.doFlush(a.receiver, a.routeID, a.replyID, traceID, authorization, budgetID, reserved)
}

// doAppReset travels in the reverse direction of the initial stream, back
// toward the application peer.
func (a *appStream) doAppReset(traceID, authorization uint64) {
	a.f.doReset(a.receiver, a.routeID, a.initialID, traceID, authorization)
	a.markClosed()
}

// doAppWindow converts the absolute maximum advertised by the net half into
// incremental credit toward the application.
func (a *appStream) doAppWindow(traceID, authorization, budgetID uint64, maxBudget, minPadding int32) {
	initialCredit := maxBudget - a.initialBudget
	if initialCredit > 0 {
		a.initialBudget += initialCredit

		a.f.doWindow(a.receiver, a.routeID, a.initialID, traceID, authorization, budgetID, initialCredit, minPadding)
	}
}

func (a *appStream) doAppChallenge(traceID, authorization uint64, extension []byte) {
	a.f.doChallenge(a.receiver, a.routeID, a.initialID, traceID, authorization, extension)
}

func (a *appStream) markClosed() {
	if a.closed {
		return
	}
	a.closed = true
	obs.ActiveSessions.Dec()
}
