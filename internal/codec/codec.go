// Package codec frames the eight stream control messages the dispatcher
// hands around as (typeID, buffer, index, length) tuples. Builders encode
// into a caller-supplied scratch buffer; views are stack-allocated wrappers
// over the input buffer, valid only for the duration of the handler call.
package codec

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// MessageHandler receives one framed message. The buffer contents are only
// valid until the handler returns.
type MessageHandler func(typeID int, buf []byte, index, length int)

// Frame type ids. Stream frames and throttle frames occupy distinct ranges.
const (
	TypeBegin = 0x00000001
	TypeData  = 0x00000002
	TypeEnd   = 0x00000003
	TypeAbort = 0x00000004
	TypeFlush = 0x00000005

	TypeReset     = 0x40000001
	TypeWindow    = 0x40000002
	TypeChallenge = 0x40000003
)

// Data frame flags.
const (
	DataFlagFin  = 0x01
	DataFlagInit = 0x02
)

// Every frame starts with routeID, streamID, traceID and authorization,
// 8 bytes each, big endian.
const frameBase = 32

const (
	offRouteID       = 0
	offStreamID      = 8
	offTraceID       = 16
	offAuthorization = 24
)

func putBase(buf []byte, routeID, streamID, traceID, authorization uint64) {
	binary.BigEndian.PutUint64(buf[offRouteID:], routeID)
	binary.BigEndian.PutUint64(buf[offStreamID:], streamID)
	binary.BigEndian.PutUint64(buf[offTraceID:], traceID)
	binary.BigEndian.PutUint64(buf[offAuthorization:], authorization)
}

type baseView struct {
	buf []byte
}

func (v baseView) RouteID() uint64       { return binary.BigEndian.Uint64(v.buf[offRouteID:]) }
func (v baseView) StreamID() uint64      { return binary.BigEndian.Uint64(v.buf[offStreamID:]) }
func (v baseView) TraceID() uint64       { return binary.BigEndian.Uint64(v.buf[offTraceID:]) }
func (v baseView) Authorization() uint64 { return binary.BigEndian.Uint64(v.buf[offAuthorization:]) }

func wrap(buf []byte, index, length, min int, kind string) ([]byte, error) {
	if length < min || index+length > len(buf) {
		return nil, errors.Errorf("codec: truncated %s frame", kind)
	}
	return buf[index : index+length], nil
}

// Begin opens a stream.
type Begin struct {
	RouteID       uint64
	StreamID      uint64
	TraceID       uint64
	Authorization uint64
	Affinity      uint64
	Extension     []byte
}

// Encode writes the frame into buf and returns its length.
func (f *Begin) Encode(buf []byte) int {
	putBase(buf, f.RouteID, f.StreamID, f.TraceID, f.Authorization)
	binary.BigEndian.PutUint64(buf[frameBase:], f.Affinity)
	binary.BigEndian.PutUint32(buf[frameBase+8:], uint32(len(f.Extension)))
	n := frameBase + 12
	n += copy(buf[n:], f.Extension)
	return n
}

// BeginView is a flyweight over an encoded Begin frame.
type BeginView struct{ baseView }

// WrapBegin bounds-checks buf and returns a view over the Begin frame.
func WrapBegin(buf []byte, index, length int) (BeginView, error) {
	b, err := wrap(buf, index, length, frameBase+12, "begin")
	if err != nil {
		return BeginView{}, err
	}
	if frameBase+12+int(binary.BigEndian.Uint32(b[frameBase+8:])) > length {
		return BeginView{}, errors.New("codec: truncated begin extension")
	}
	return BeginView{baseView{b}}, nil
}

func (v BeginView) Affinity() uint64 { return binary.BigEndian.Uint64(v.buf[frameBase:]) }

func (v BeginView) Extension() []byte {
	n := int(binary.BigEndian.Uint32(v.buf[frameBase+8:]))
	return v.buf[frameBase+12 : frameBase+12+n]
}

// Data carries payload bytes and consumes reserved budget.
type Data struct {
	RouteID       uint64
	StreamID      uint64
	TraceID       uint64
	Authorization uint64
	Flags         uint8
	BudgetID      uint64
	Reserved      int32
	Payload       []byte
}

// Encode writes the frame into buf and returns its length.
func (f *Data) Encode(buf []byte) int {
	putBase(buf, f.RouteID, f.StreamID, f.TraceID, f.Authorization)
	buf[frameBase] = f.Flags
	binary.BigEndian.PutUint64(buf[frameBase+1:], f.BudgetID)
	binary.BigEndian.PutUint32(buf[frameBase+9:], uint32(f.Reserved))
	binary.BigEndian.PutUint32(buf[frameBase+13:], uint32(len(f.Payload)))
	n := frameBase + 17
	n += copy(buf[n:], f.Payload)
	return n
}

// DataView is a flyweight over an encoded Data frame.
type DataView struct{ baseView }

// WrapData bounds-checks buf and returns a view over the Data frame.
func WrapData(buf []byte, index, length int) (DataView, error) {
	b, err := wrap(buf, index, length, frameBase+17, "data")
	if err != nil {
		return DataView{}, err
	}
	if frameBase+17+int(binary.BigEndian.Uint32(b[frameBase+13:])) > length {
		return DataView{}, errors.New("codec: truncated data payload")
	}
	return DataView{baseView{b}}, nil
}

func (v DataView) Flags() uint8     { return v.buf[frameBase] }
func (v DataView) BudgetID() uint64 { return binary.BigEndian.Uint64(v.buf[frameBase+1:]) }
func (v DataView) Reserved() int32  { return int32(binary.BigEndian.Uint32(v.buf[frameBase+9:])) }

func (v DataView) Payload() []byte {
	n := int(binary.BigEndian.Uint32(v.buf[frameBase+13:]))
	return v.buf[frameBase+17 : frameBase+17+n]
}

// End half-closes a stream cleanly.
type End struct {
	RouteID       uint64
	StreamID      uint64
	TraceID       uint64
	Authorization uint64
}

// Encode writes the frame into buf and returns its length.
func (f *End) Encode(buf []byte) int {
	putBase(buf, f.RouteID, f.StreamID, f.TraceID, f.Authorization)
	return frameBase
}

// EndView is a flyweight over an encoded End frame.
type EndView struct{ baseView }

// WrapEnd bounds-checks buf and returns a view over the End frame.
func WrapEnd(buf []byte, index, length int) (EndView, error) {
	b, err := wrap(buf, index, length, frameBase, "end")
	if err != nil {
		return EndView{}, err
	}
	return EndView{baseView{b}}, nil
}

// Abort terminates a stream abruptly from the sending side.
type Abort struct {
	RouteID       uint64
	StreamID      uint64
	TraceID       uint64
	Authorization uint64
}

// Encode writes the frame into buf and returns its length.
func (f *Abort) Encode(buf []byte) int {
	putBase(buf, f.RouteID, f.StreamID, f.TraceID, f.Authorization)
	return frameBase
}

// AbortView is a flyweight over an encoded Abort frame.
type AbortView struct{ baseView }

// WrapAbort bounds-checks buf and returns a view over the Abort frame.
func WrapAbort(buf []byte, index, length int) (AbortView, error) {
	b, err := wrap(buf, index, length, frameBase, "abort")
	if err != nil {
		return AbortView{}, err
	}
	return AbortView{baseView{b}}, nil
}

// Flush asks the receiver to flush buffered state for a budget.
type Flush struct {
	RouteID       uint64
	StreamID      uint64
	TraceID       uint64
	Authorization uint64
	BudgetID      uint64
	Reserved      int32
}

// Encode writes the frame into buf and returns its length.
func (f *Flush) Encode(buf []byte) int {
	putBase(buf, f.RouteID, f.StreamID, f.TraceID, f.Authorization)
	binary.BigEndian.PutUint64(buf[frameBase:], f.BudgetID)
	binary.BigEndian.PutUint32(buf[frameBase+8:], uint32(f.Reserved))
	return frameBase + 12
}

// FlushView is a flyweight over an encoded Flush frame.
type FlushView struct{ baseView }

// WrapFlush bounds-checks buf and returns a view over the Flush frame.
func WrapFlush(buf []byte, index, length int) (FlushView, error) {
	b, err := wrap(buf, index, length, frameBase+12, "flush")
	if err != nil {
		return FlushView{}, err
	}
	return FlushView{baseView{b}}, nil
}

func (v FlushView) BudgetID() uint64 { return binary.BigEndian.Uint64(v.buf[frameBase:]) }
func (v FlushView) Reserved() int32  { return int32(binary.BigEndian.Uint32(v.buf[frameBase+8:])) }

// Window grants credit in the reverse direction of a stream.
type Window struct {
	RouteID       uint64
	StreamID      uint64
	TraceID       uint64
	Authorization uint64
	BudgetID      uint64
	Credit        int32
	Padding       int32
}

// Encode writes the frame into buf and returns its length.
func (f *Window) Encode(buf []byte) int {
	putBase(buf, f.RouteID, f.StreamID, f.TraceID, f.Authorization)
	binary.BigEndian.PutUint64(buf[frameBase:], f.BudgetID)
	binary.BigEndian.PutUint32(buf[frameBase+8:], uint32(f.Credit))
	binary.BigEndian.PutUint32(buf[frameBase+12:], uint32(f.Padding))
	return frameBase + 16
}

// WindowView is a flyweight over an encoded Window frame.
type WindowView struct{ baseView }

// WrapWindow bounds-checks buf and returns a view over the Window frame.
func WrapWindow(buf []byte, index, length int) (WindowView, error) {
	b, err := wrap(buf, index, length, frameBase+16, "window")
	if err != nil {
		return WindowView{}, err
	}
	return WindowView{baseView{b}}, nil
}

func (v WindowView) BudgetID() uint64 { return binary.BigEndian.Uint64(v.buf[frameBase:]) }
func (v WindowView) Credit() int32    { return int32(binary.BigEndian.Uint32(v.buf[frameBase+8:])) }
func (v WindowView) Padding() int32   { return int32(binary.BigEndian.Uint32(v.buf[frameBase+12:])) }

// Reset cancels the sending direction of a stream.
type Reset struct {
	RouteID       uint64
	StreamID      uint64
	TraceID       uint64
	Authorization uint64
}

// Encode writes the frame into buf and returns its length.
func (f *Reset) Encode(buf []byte) int {
	putBase(buf, f.RouteID, f.StreamID, f.TraceID, f.Authorization)
	return frameBase
}

// ResetView is a flyweight over an encoded Reset frame.
type ResetView struct{ baseView }

// WrapReset bounds-checks buf and returns a view over the Reset frame.
func WrapReset(buf []byte, index, length int) (ResetView, error) {
	b, err := wrap(buf, index, length, frameBase, "reset")
	if err != nil {
		return ResetView{}, err
	}
	return ResetView{baseView{b}}, nil
}

// Challenge carries opaque re-authentication bytes in the reverse direction.
type Challenge struct {
	RouteID       uint64
	StreamID      uint64
	TraceID       uint64
	Authorization uint64
	Extension     []byte
}

// Encode writes the frame into buf and returns its length.
func (f *Challenge) Encode(buf []byte) int {
	putBase(buf, f.RouteID, f.StreamID, f.TraceID, f.Authorization)
	binary.BigEndian.PutUint32(buf[frameBase:], uint32(len(f.Extension)))
	n := frameBase + 4
	n += copy(buf[n:], f.Extension)
	return n
}

// ChallengeView is a flyweight over an encoded Challenge frame.
type ChallengeView struct{ baseView }

// WrapChallenge bounds-checks buf and returns a view over the Challenge frame.
func WrapChallenge(buf []byte, index, length int) (ChallengeView, error) {
	b, err := wrap(buf, index, length, frameBase+4, "challenge")
	if err != nil {
		return ChallengeView{}, err
	}
	if frameBase+4+int(binary.BigEndian.Uint32(b[frameBase:])) > length {
		return ChallengeView{}, errors.New("codec: truncated challenge extension")
	}
	return ChallengeView{baseView{b}}, nil
}

func (v ChallengeView) Extension() []byte {
	n := int(binary.BigEndian.Uint32(v.buf[frameBase:]))
	return v.buf[frameBase+4 : frameBase+4+n]
}
