package proxy2

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var signature = []byte("\x0D\x0A\x0D\x0A\x00\x0D\x0A\x51\x55\x49\x54\x0A")

const (
	// lenOffset is the position of the 16-bit remaining-length field.
	lenOffset = 14

	// HeaderMin is the size of the fixed preamble: signature, version/command,
	// family/protocol and length.
	HeaderMin = 16
)

// EncodeLocal writes a LOCAL command header into buf and returns the number
// of bytes written. A LOCAL header carries no address block and no TLVs.
func EncodeLocal(buf []byte) int {
	progress := copy(buf, signature)
	buf[progress] = 0x20
	progress++
	buf[progress] = 0x00
	progress++
	buf[progress] = 0x00
	progress++
	buf[progress] = 0x00
	progress++
	return progress
}

// EncodeProxy writes a PROXY command header for ex into buf and returns the
// number of bytes written. The 16-bit length field is back-patched once the
// address block and TLV list are in place.
func EncodeProxy(buf []byte, ex *BeginEx) (int, error) {
	progress := copy(buf, signature)
	buf[progress] = 0x21
	progress++

	progress, err := encodeAddr(buf, progress, ex.Address)
	if err != nil {
		return 0, err
	}
	progress = encodeInfos(buf, progress, ex.Infos)

	binary.BigEndian.PutUint16(buf[lenOffset:], uint16(progress-lenOffset-2))
	return progress, nil
}

func encodeAddr(buf []byte, progress int, addr Addr) (int, error) {
	switch a := addr.(type) {
	case *AddrInet:
		if len(a.Source) != 4 || len(a.Destination) != 4 {
			return 0, errors.New("proxy2: inet address must be 4 bytes")
		}
		buf[progress] = byte(AddrFamilyInet)<<4 | byte(a.Transport)
		progress += 3
		progress += copy(buf[progress:], a.Source)
		progress += copy(buf[progress:], a.Destination)
		binary.BigEndian.PutUint16(buf[progress:], a.SourcePort)
		progress += 2
		binary.BigEndian.PutUint16(buf[progress:], a.DestPort)
		progress += 2
		return progress, nil
	case *AddrInet6:
		if len(a.Source) != 16 || len(a.Destination) != 16 {
			return 0, errors.New("proxy2: inet6 address must be 16 bytes")
		}
		buf[progress] = byte(AddrFamilyInet6)<<4 | byte(a.Transport)
		progress += 3
		progress += copy(buf[progress:], a.Source)
		progress += copy(buf[progress:], a.Destination)
		binary.BigEndian.PutUint16(buf[progress:], a.SourcePort)
		progress += 2
		binary.BigEndian.PutUint16(buf[progress:], a.DestPort)
		progress += 2
		return progress, nil
	case *AddrUnix:
		buf[progress] = byte(AddrFamilyUnix)<<4 | byte(a.Transport)
		progress += 3
		progress += copy(buf[progress:], a.Source)
		progress += copy(buf[progress:], a.Destination)
		return progress, nil
	}
	return 0, errors.Errorf("proxy2: unknown address family %T", addr)
}

func encodeInfos(buf []byte, progress int, infos []Info) int {
	for i := 0; i < len(infos); {
		info := infos[i]
		switch info.Kind {
		case InfoALPN:
			progress = encodeTLV(buf, progress, PP2TypeALPN, info.Value)
			i++
		case InfoAuthority:
			progress = encodeTLV(buf, progress, PP2TypeAuthority, info.Value)
			i++
		case InfoIdentity:
			progress = encodeTLV(buf, progress, PP2TypeUniqueID, info.Value)
			i++
		case InfoNamespace:
			progress = encodeTLV(buf, progress, PP2TypeNetNS, info.Value)
			i++
		case InfoSecure:
			// Contiguous SECURE items collapse into a single 0x20 envelope
			// whose 16-bit length is back-patched after the run.
			buf[progress] = byte(PP2TypeSSL)
			progress++
			envelopeLenOffset := progress
			progress += 2
			buf[progress] = 0x07
			progress++
			binary.BigEndian.PutUint32(buf[progress:], 0)
			progress += 4
			for ; i < len(infos) && infos[i].Kind == InfoSecure; i++ {
				progress = encodeSecure(buf, progress, infos[i])
			}
			binary.BigEndian.PutUint16(buf[envelopeLenOffset:],
				uint16(progress-envelopeLenOffset-2))
		default:
			i++
		}
	}
	return progress
}

func encodeSecure(buf []byte, progress int, info Info) int {
	switch info.Secure {
	case SecureProtocol:
		progress = encodeTLV(buf, progress, PP2SubTypeSSLVersion, info.Value)
	case SecureName:
		progress = encodeTLV(buf, progress, PP2SubTypeSSLCN, info.Value)
	case SecureCipher:
		progress = encodeTLV(buf, progress, PP2SubTypeSSLCipher, info.Value)
	case SecureSignature:
		progress = encodeTLV(buf, progress, PP2SubTypeSSLSigAlg, info.Value)
	case SecureKey:
		progress = encodeTLV(buf, progress, PP2SubTypeSSLKeyAlg, info.Value)
	}
	return progress
}

func encodeTLV(buf []byte, progress int, typ PP2Type, value []byte) int {
	buf[progress] = byte(typ)
	binary.BigEndian.PutUint16(buf[progress+1:], uint16(len(value)))
	progress += 3
	progress += copy(buf[progress:], value)
	return progress
}
