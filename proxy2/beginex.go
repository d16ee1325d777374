package proxy2

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// The BeginEx extension rides inside the extension octets of an application
// Begin frame. Layout: family byte, protocol byte, family-dependent address
// fields, then info items until the end of the buffer. Each info item is a
// kind byte (plus a sub-kind byte for SECURE) followed by a 16-bit
// big-endian value length and the value bytes.

// AppendBeginEx appends the encoded form of ex to dst.
func AppendBeginEx(dst []byte, ex *BeginEx) ([]byte, error) {
	switch a := ex.Address.(type) {
	case *AddrInet:
		if len(a.Source) != 4 || len(a.Destination) != 4 {
			return nil, errors.New("proxy2: inet address must be 4 bytes")
		}
		dst = append(dst, byte(AddrFamilyInet), byte(a.Transport))
		dst = append(dst, a.Source...)
		dst = append(dst, a.Destination...)
		dst = binary.BigEndian.AppendUint16(dst, a.SourcePort)
		dst = binary.BigEndian.AppendUint16(dst, a.DestPort)
	case *AddrInet6:
		if len(a.Source) != 16 || len(a.Destination) != 16 {
			return nil, errors.New("proxy2: inet6 address must be 16 bytes")
		}
		dst = append(dst, byte(AddrFamilyInet6), byte(a.Transport))
		dst = append(dst, a.Source...)
		dst = append(dst, a.Destination...)
		dst = binary.BigEndian.AppendUint16(dst, a.SourcePort)
		dst = binary.BigEndian.AppendUint16(dst, a.DestPort)
	case *AddrUnix:
		dst = append(dst, byte(AddrFamilyUnix), byte(a.Transport))
		dst = binary.BigEndian.AppendUint16(dst, uint16(len(a.Source)))
		dst = append(dst, a.Source...)
		dst = binary.BigEndian.AppendUint16(dst, uint16(len(a.Destination)))
		dst = append(dst, a.Destination...)
	default:
		return nil, errors.Errorf("proxy2: unknown address family %T", ex.Address)
	}

	for _, info := range ex.Infos {
		dst = append(dst, byte(info.Kind))
		if info.Kind == InfoSecure {
			dst = append(dst, byte(info.Secure))
		}
		dst = binary.BigEndian.AppendUint16(dst, uint16(len(info.Value)))
		dst = append(dst, info.Value...)
	}
	return dst, nil
}

// DecodeBeginEx decodes a BeginEx from b. An empty buffer yields nil,
// matching the optional nature of the extension.
func DecodeBeginEx(b []byte) (*BeginEx, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b) < 2 {
		return nil, errors.New("proxy2: truncated begin extension")
	}

	var ex BeginEx
	family := AddrFamily(b[0])
	transport := Proto(b[1])
	b = b[2:]

	switch family {
	case AddrFamilyInet:
		if len(b) < 12 {
			return nil, errors.New("proxy2: truncated inet address")
		}
		ex.Address = &AddrInet{
			Transport:   transport,
			Source:      append([]byte(nil), b[0:4]...),
			Destination: append([]byte(nil), b[4:8]...),
			SourcePort:  binary.BigEndian.Uint16(b[8:]),
			DestPort:    binary.BigEndian.Uint16(b[10:]),
		}
		b = b[12:]
	case AddrFamilyInet6:
		if len(b) < 36 {
			return nil, errors.New("proxy2: truncated inet6 address")
		}
		ex.Address = &AddrInet6{
			Transport:   transport,
			Source:      append([]byte(nil), b[0:16]...),
			Destination: append([]byte(nil), b[16:32]...),
			SourcePort:  binary.BigEndian.Uint16(b[32:]),
			DestPort:    binary.BigEndian.Uint16(b[34:]),
		}
		b = b[36:]
	case AddrFamilyUnix:
		src, rest, err := readBlock(b)
		if err != nil {
			return nil, err
		}
		dst, rest, err := readBlock(rest)
		if err != nil {
			return nil, err
		}
		ex.Address = &AddrUnix{Transport: transport, Source: src, Destination: dst}
		b = rest
	default:
		return nil, errors.Errorf("proxy2: unknown address family 0x%02x", byte(family))
	}

	for len(b) > 0 {
		kind := InfoKind(b[0])
		b = b[1:]
		var info Info
		info.Kind = kind
		if kind == InfoSecure {
			if len(b) < 1 {
				return nil, errors.New("proxy2: truncated secure info")
			}
			info.Secure = SecureKind(b[0])
			b = b[1:]
		}
		value, rest, err := readBlock(b)
		if err != nil {
			return nil, err
		}
		info.Value = value
		ex.Infos = append(ex.Infos, info)
		b = rest
	}
	return &ex, nil
}

func readBlock(b []byte) (value, rest []byte, err error) {
	if len(b) < 2 {
		return nil, nil, errors.New("proxy2: truncated length field")
	}
	n := int(binary.BigEndian.Uint16(b))
	if len(b) < 2+n {
		return nil, nil, errors.New("proxy2: truncated value")
	}
	return append([]byte(nil), b[2:2+n]...), b[2+n:], nil
}
