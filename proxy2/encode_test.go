package proxy2

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLocal(t *testing.T) {
	buf := make([]byte, 64)
	n := EncodeLocal(buf)

	assert.Equal(t, []byte{
		0x0D, 0x0A, 0x0D, 0x0A, 0x00, 0x0D, 0x0A, 0x51, 0x55, 0x49, 0x54, 0x0A,
		0x20, 0x00, 0x00, 0x00,
	}, buf[:n])
}

func TestEncodeProxy(t *testing.T) {
	type section struct {
		name  string
		value []byte
	}
	check := func(name string, ex BeginEx, exp []section) {
		t.Run(name, func(t *testing.T) {
			buf := make([]byte, 512)
			n, err := EncodeProxy(buf, &ex)
			require.NoError(t, err)

			got := buf[:n]
			for _, s := range exp {
				require.True(t, len(got) >= len(s.value), s.name)
				assert.Equal(t, s.value, got[:len(s.value)], s.name)
				got = got[len(s.value):]
			}
			assert.Empty(t, got, "trailing bytes")
		})
	}

	check("inet", BeginEx{
		Address: &AddrInet{
			Transport:   ProtoStream,
			Source:      net.IPv4(10, 0, 0, 1).To4(),
			Destination: net.IPv4(10, 0, 0, 2).To4(),
			SourcePort:  1111,
			DestPort:    80,
		},
	},
		[]section{
			{name: "Signature", value: signature},
			{name: "Version", value: []byte{0x21}},   // v2, Proxy
			{name: "Fam/Proto", value: []byte{0x11}}, // INET, STREAM
			{name: "Length", value: []byte{0x00, 0x0C}},

			{name: "SrcAddr", value: []byte{0x0A, 0x00, 0x00, 0x01}},
			{name: "DestAddr", value: []byte{0x0A, 0x00, 0x00, 0x02}},

			{name: "SrcPort", value: []byte{0x04, 0x57}},
			{name: "DstPort", value: []byte{0x00, 0x50}},
		},
	)

	check("inet6-alpn", BeginEx{
		Address: &AddrInet6{
			Transport:   ProtoStream,
			Source:      net.ParseIP("2001::1"),
			Destination: net.ParseIP("2002::2"),
			SourcePort:  80,
			DestPort:    90,
		},
		Infos: []Info{
			{Kind: InfoALPN, Value: []byte("h2")},
		},
	},
		[]section{
			{name: "Signature", value: signature},
			{name: "Version", value: []byte{0x21}},
			{name: "Fam/Proto", value: []byte{0x21}}, // INET6, STREAM
			{name: "Length", value: []byte{0x00, 41}},

			{name: "SrcAddr", value: []byte{0x20, 0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x01}},
			{name: "DestAddr", value: []byte{0x20, 0x02, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x02}},
			{name: "SrcPort", value: []byte{0, 80}},
			{name: "DstPort", value: []byte{0, 90}},

			{name: "ALPN", value: []byte{0x01, 0x00, 0x02, 'h', '2'}},
		},
	)

	check("unix-dgram", BeginEx{
		Address: &AddrUnix{
			Transport:   ProtoDGram,
			Source:      unixPath("/tmp/src.sock"),
			Destination: unixPath("/tmp/dst.sock"),
		},
	},
		[]section{
			{name: "Signature", value: signature},
			{name: "Version", value: []byte{0x21}},
			{name: "Fam/Proto", value: []byte{0x32}}, // UNIX, DGRAM
			{name: "Length", value: []byte{0x00, 216}},
			{name: "SrcPath", value: unixPath("/tmp/src.sock")},
			{name: "DstPath", value: unixPath("/tmp/dst.sock")},
		},
	)

	check("secure-aggregation", BeginEx{
		Address: &AddrInet{
			Transport:   ProtoStream,
			Source:      net.IPv4(10, 0, 0, 1).To4(),
			Destination: net.IPv4(10, 0, 0, 2).To4(),
			SourcePort:  1111,
			DestPort:    80,
		},
		Infos: []Info{
			{Kind: InfoALPN, Value: []byte("h2")},
			{Kind: InfoSecure, Secure: SecureProtocol, Value: []byte("TLSv1.3")},
			{Kind: InfoSecure, Secure: SecureCipher, Value: []byte("TLS_AES_128_GCM_SHA256")},
		},
	},
		[]section{
			{name: "Preamble", value: append(append([]byte{}, signature...), 0x21, 0x11, 0x00, 12+5+3+5+3+7+3+22)},
			{name: "Address", value: []byte{0x0A, 0, 0, 0x01, 0x0A, 0, 0, 0x02, 0x04, 0x57, 0x00, 0x50}},
			{name: "ALPN", value: []byte{0x01, 0x00, 0x02, 'h', '2'}},
			{name: "SSLEnvelope", value: []byte{0x20, 0x00, 5 + 3 + 7 + 3 + 22}},
			{name: "ClientVerify", value: []byte{0x07, 0x00, 0x00, 0x00, 0x00}},
			{name: "SSLVersion", value: append([]byte{0x21, 0x00, 0x07}, "TLSv1.3"...)},
			{name: "SSLCipher", value: append([]byte{0x23, 0x00, 0x16}, "TLS_AES_128_GCM_SHA256"...)},
		},
	)
}

func unixPath(s string) []byte {
	b := make([]byte, 108)
	copy(b, s)
	return b
}

func TestEncodeProxyEmptyInfos(t *testing.T) {
	buf := make([]byte, 512)
	n, err := EncodeProxy(buf, &BeginEx{
		Address: &AddrInet{
			Transport:   ProtoStream,
			Source:      net.IPv4(192, 168, 0, 1).To4(),
			Destination: net.IPv4(192, 168, 0, 2).To4(),
			SourcePort:  80,
			DestPort:    90,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, HeaderMin+12, n)
	assert.Equal(t, uint16(12), binary.BigEndian.Uint16(buf[14:]))
}

func TestEncodeProxyUnknownFamily(t *testing.T) {
	buf := make([]byte, 512)
	_, err := EncodeProxy(buf, &BeginEx{})
	assert.Error(t, err)
}

func TestEncodeProxyUnknownInfoKind(t *testing.T) {
	buf := make([]byte, 512)
	n, err := EncodeProxy(buf, &BeginEx{
		Address: &AddrInet{
			Transport:   ProtoStream,
			Source:      net.IPv4(10, 0, 0, 1).To4(),
			Destination: net.IPv4(10, 0, 0, 2).To4(),
		},
		Infos: []Info{
			{Kind: InfoKind(0x7f), Value: []byte("ignored")},
			{Kind: InfoALPN, Value: []byte("h2")},
		},
	})
	require.NoError(t, err)
	// unknown item skipped; only the ALPN TLV follows the address block
	assert.Equal(t, HeaderMin+12+5, n)
}

func TestEncodeProxyMultipleSecureRuns(t *testing.T) {
	buf := make([]byte, 512)
	n, err := EncodeProxy(buf, &BeginEx{
		Address: &AddrInet{
			Transport:   ProtoStream,
			Source:      net.IPv4(10, 0, 0, 1).To4(),
			Destination: net.IPv4(10, 0, 0, 2).To4(),
		},
		Infos: []Info{
			{Kind: InfoSecure, Secure: SecureProtocol, Value: []byte("TLSv1.3")},
			{Kind: InfoALPN, Value: []byte("h2")},
			{Kind: InfoSecure, Secure: SecureCipher, Value: []byte("c")},
		},
	})
	require.NoError(t, err)

	hdr, err := ParseHeader(buf[:n])
	require.NoError(t, err)
	require.Len(t, hdr.TLVs, 3)
	assert.Equal(t, PP2TypeSSL, hdr.TLVs[0].Type)
	assert.Equal(t, PP2TypeALPN, hdr.TLVs[1].Type)
	assert.Equal(t, PP2TypeSSL, hdr.TLVs[2].Type)
}

func TestParseHeaderRoundTrip(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		buf := make([]byte, 64)
		n := EncodeLocal(buf)

		hdr, err := ParseHeader(buf[:n])
		require.NoError(t, err)
		assert.Equal(t, CommandLocal, hdr.Command)
		assert.Equal(t, AddrFamilyUnspec, hdr.Family)
		assert.Nil(t, hdr.Address)
		assert.Empty(t, hdr.TLVs)
	})

	t.Run("proxy-inet", func(t *testing.T) {
		in := &AddrInet{
			Transport:   ProtoStream,
			Source:      net.IPv4(10, 0, 0, 1).To4(),
			Destination: net.IPv4(10, 0, 0, 2).To4(),
			SourcePort:  1111,
			DestPort:    80,
		}
		buf := make([]byte, 512)
		n, err := EncodeProxy(buf, &BeginEx{
			Address: in,
			Infos: []Info{
				{Kind: InfoAuthority, Value: []byte("example.com")},
				{Kind: InfoSecure, Secure: SecureProtocol, Value: []byte("TLSv1.3")},
				{Kind: InfoSecure, Secure: SecureName, Value: []byte("example.com")},
				{Kind: InfoNamespace, Value: []byte("ns")},
			},
		})
		require.NoError(t, err)

		hdr, err := ParseHeader(buf[:n])
		require.NoError(t, err)
		assert.Equal(t, CommandProxy, hdr.Command)
		assert.Equal(t, AddrFamilyInet, hdr.Family)
		assert.Equal(t, ProtoStream, hdr.Protocol)

		out, ok := hdr.Address.(*AddrInet)
		require.True(t, ok)
		assert.Equal(t, in.Source, out.Source)
		assert.Equal(t, in.Destination, out.Destination)
		assert.Equal(t, in.SourcePort, out.SourcePort)
		assert.Equal(t, in.DestPort, out.DestPort)

		authority, has := FindTLV(hdr.TLVs, PP2TypeAuthority)
		require.True(t, has)
		assert.Equal(t, []byte("example.com"), authority)

		ssl, has := FindTLV(hdr.TLVs, PP2TypeSSL)
		require.True(t, has)
		client, verify, subs, err := ParseSSL(ssl)
		require.NoError(t, err)
		assert.Equal(t, byte(0x07), client)
		assert.Equal(t, uint32(0), verify)
		require.Len(t, subs, 2)
		assert.Equal(t, PP2SubTypeSSLVersion, subs[0].Type)
		assert.Equal(t, []byte("TLSv1.3"), subs[0].Value)
		assert.Equal(t, PP2SubTypeSSLCN, subs[1].Type)
		assert.Equal(t, []byte("example.com"), subs[1].Value)

		netns, has := FindTLV(hdr.TLVs, PP2TypeNetNS)
		require.True(t, has)
		assert.Equal(t, []byte("ns"), netns)
	})
}

func TestSecureEnvelopeLength(t *testing.T) {
	buf := make([]byte, 512)
	n, err := EncodeProxy(buf, &BeginEx{
		Address: &AddrInet{
			Transport:   ProtoStream,
			Source:      net.IPv4(10, 0, 0, 1).To4(),
			Destination: net.IPv4(10, 0, 0, 2).To4(),
		},
		Infos: []Info{
			{Kind: InfoSecure, Secure: SecureKey, Value: []byte("RSA2048")},
		},
	})
	require.NoError(t, err)

	hdr, err := ParseHeader(buf[:n])
	require.NoError(t, err)
	ssl, has := FindTLV(hdr.TLVs, PP2TypeSSL)
	require.True(t, has)
	// envelope = client(1) + verify(4) + one sub-TLV
	assert.Len(t, ssl, 5+3+len("RSA2048"))
}

func TestBeginExRoundTrip(t *testing.T) {
	in := BeginEx{
		Address: &AddrInet6{
			Transport:   ProtoStream,
			Source:      net.ParseIP("2001::1"),
			Destination: net.ParseIP("2002::2"),
			SourcePort:  443,
			DestPort:    8443,
		},
		Infos: []Info{
			{Kind: InfoALPN, Value: []byte("h2")},
			{Kind: InfoSecure, Secure: SecureCipher, Value: []byte("cipher")},
			{Kind: InfoIdentity, Value: []byte{0x01, 0x02}},
		},
	}

	b, err := AppendBeginEx(nil, &in)
	require.NoError(t, err)

	out, err := DecodeBeginEx(b)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in.Address, out.Address)
	assert.Equal(t, in.Infos, out.Infos)
}

func TestDecodeBeginExEmpty(t *testing.T) {
	ex, err := DecodeBeginEx(nil)
	assert.NoError(t, err)
	assert.Nil(t, ex)
}
