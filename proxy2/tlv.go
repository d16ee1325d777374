package proxy2

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// TLV is one Type-Length-Value record of the post-address area.
type TLV struct {
	Type  PP2Type
	Value []byte
}

type PP2Type byte

const (
	PP2TypeALPN      PP2Type = 0x01
	PP2TypeAuthority PP2Type = 0x02
	PP2TypeCRC32C    PP2Type = 0x03
	PP2TypeNOOP      PP2Type = 0x04
	PP2TypeUniqueID  PP2Type = 0x05
	PP2TypeSSL       PP2Type = 0x20
	PP2TypeNetNS     PP2Type = 0x30

	PP2SubTypeSSLVersion PP2Type = 0x21
	PP2SubTypeSSLCN      PP2Type = 0x22
	PP2SubTypeSSLCipher  PP2Type = 0x23
	PP2SubTypeSSLSigAlg  PP2Type = 0x24
	PP2SubTypeSSLKeyAlg  PP2Type = 0x25
)

// ParseTLVs parses a slice of bytes into a slice of TLVs.
//
// No additional validation is performed on the TLVs beyond the
// length field.
func ParseTLVs(b []byte) ([]TLV, error) {
	if len(b) == 0 {
		return nil, nil
	}

	var res []TLV
	for len(b) > 0 {
		if len(b) < 3 {
			return nil, errors.New("proxy2: truncated TLV")
		}
		value := make([]byte, int(binary.BigEndian.Uint16(b[1:])))
		if len(b) < 3+len(value) {
			return nil, errors.New("proxy2: truncated TLV value")
		}
		copy(value, b[3:])
		res = append(res, TLV{
			Type:  PP2Type(b[0]),
			Value: value,
		})
		b = b[3+len(value):]
	}

	return res, nil
}

// ParseSSL splits a PP2TypeSSL envelope value into its client flags, verify
// field and nested sub-TLV list.
func ParseSSL(b []byte) (client byte, verify uint32, subs []TLV, err error) {
	if len(b) < 5 {
		return 0, 0, nil, errors.New("proxy2: truncated SSL envelope")
	}
	client = b[0]
	verify = binary.BigEndian.Uint32(b[1:])
	subs, err = ParseTLVs(b[5:])
	return client, verify, subs, err
}

// FindTLV is a convenience function to find the first value of a TLV
// in a parsed header.
func FindTLV(tlvs []TLV, t PP2Type) (value []byte, has bool) {
	for _, tlv := range tlvs {
		if tlv.Type != t {
			continue
		}
		return tlv.Value, true
	}
	return nil, false
}
