package proxy2

import (
	"bytes"
	"encoding/binary"
	"net"

	"github.com/pkg/errors"
)

// Header provides information decoded from a PROXY protocol version 2 header.
type Header struct {
	Command  Command
	Family   AddrFamily
	Protocol Proto
	Address  Addr
	TLVs     []TLV
}

// ParseHeader decodes a complete version 2 header from b. The whole header,
// including the address block and TLV list announced by the length field,
// must be present.
func ParseHeader(b []byte) (*Header, error) {
	if len(b) < HeaderMin {
		return nil, errors.New("proxy2: truncated header")
	}
	if !bytes.Equal(b[:12], signature) {
		return nil, errors.New("proxy2: invalid signature")
	}
	// highest 4 indicate version
	if b[12]>>4 != 2 {
		return nil, errors.New("proxy2: invalid version")
	}

	var h Header
	h.Command = Command(b[12] & 0xf)
	if h.Command > CommandProxy {
		return nil, errors.New("proxy2: invalid command")
	}
	h.Family = AddrFamily(b[13] >> 4)
	if h.Family > AddrFamilyUnix {
		return nil, errors.New("proxy2: invalid address family")
	}
	h.Protocol = Proto(b[13] & 0xf)
	if h.Protocol > ProtoDGram {
		return nil, errors.New("proxy2: invalid transport protocol")
	}

	length := int(binary.BigEndian.Uint16(b[lenOffset:]))
	if len(b) < HeaderMin+length {
		return nil, errors.New("proxy2: truncated header body")
	}
	body := b[HeaderMin : HeaderMin+length]

	var addrLen int
	switch h.Family {
	case AddrFamilyInet:
		addrLen = 12
		if len(body) < addrLen {
			return nil, errors.New("proxy2: truncated inet address")
		}
		h.Address = &AddrInet{
			Transport:   h.Protocol,
			Source:      net.IP(body[0:4]),
			Destination: net.IP(body[4:8]),
			SourcePort:  binary.BigEndian.Uint16(body[8:]),
			DestPort:    binary.BigEndian.Uint16(body[10:]),
		}
	case AddrFamilyInet6:
		addrLen = 36
		if len(body) < addrLen {
			return nil, errors.New("proxy2: truncated inet6 address")
		}
		h.Address = &AddrInet6{
			Transport:   h.Protocol,
			Source:      net.IP(body[0:16]),
			Destination: net.IP(body[16:32]),
			SourcePort:  binary.BigEndian.Uint16(body[32:]),
			DestPort:    binary.BigEndian.Uint16(body[34:]),
		}
	case AddrFamilyUnix:
		addrLen = 216
		if len(body) < addrLen {
			return nil, errors.New("proxy2: truncated unix address")
		}
		h.Address = &AddrUnix{
			Transport:   h.Protocol,
			Source:      body[0:108],
			Destination: body[108:216],
		}
	}

	tlvs, err := ParseTLVs(body[addrLen:])
	if err != nil {
		return nil, err
	}
	h.TLVs = tlvs
	return &h, nil
}
