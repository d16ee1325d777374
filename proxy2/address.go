package proxy2

import "net"

// Addr is the address block of a PROXY protocol version 2 header.
type Addr interface {
	Family() AddrFamily
	Protocol() Proto
}

// AddrInet carries IPv4 source and destination endpoints.
type AddrInet struct {
	Transport   Proto
	Source      net.IP
	Destination net.IP
	SourcePort  uint16
	DestPort    uint16
}

// Family returns AddrFamilyInet.
func (AddrInet) Family() AddrFamily { return AddrFamilyInet }

// Protocol returns the transport protocol of the forwarded connection.
func (a *AddrInet) Protocol() Proto { return a.Transport }

// AddrInet6 carries IPv6 source and destination endpoints.
type AddrInet6 struct {
	Transport   Proto
	Source      net.IP
	Destination net.IP
	SourcePort  uint16
	DestPort    uint16
}

// Family returns AddrFamilyInet6.
func (AddrInet6) Family() AddrFamily { return AddrFamilyInet6 }

// Protocol returns the transport protocol of the forwarded connection.
func (a *AddrInet6) Protocol() Proto { return a.Transport }

// AddrUnix carries UNIX domain socket paths. The path bytes are emitted
// exactly as supplied; conforming senders pad them to 108 bytes.
type AddrUnix struct {
	Transport   Proto
	Source      []byte
	Destination []byte
}

// Family returns AddrFamilyUnix.
func (AddrUnix) Family() AddrFamily { return AddrFamilyUnix }

// Protocol returns the transport protocol of the forwarded connection.
func (a *AddrUnix) Protocol() Proto { return a.Transport }
