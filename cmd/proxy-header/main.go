// Command proxy-header encodes a PROXY protocol v2 header from flags and
// writes the raw bytes to stdout. Useful for priming fixtures and for
// inspecting the exact wire form of a header.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"

	"github.com/akrambek/nukleus-proxy/proxy2"
)

func parseHostPort(s string) (net.IP, int, error) {
	addr, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return nil, 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid port '%s': %w", portStr, err)
	}
	if port < 1 || port > 65535 {
		return nil, 0, fmt.Errorf("invalid port '%d': must be between 1-65535", port)
	}

	ip := net.ParseIP(addr)
	if ip == nil {
		return nil, 0, fmt.Errorf("invalid IP '%s'", addr)
	}

	return ip, port, nil
}

type stringList []string

func (l *stringList) String() string { return fmt.Sprint(*l) }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func buildAddr(src, dst string, dgram bool) proxy2.Addr {
	srcIP, srcPort, err := parseHostPort(src)
	if err != nil {
		log.Fatalf("invalid src: %v", err)
	}
	dstIP, dstPort, err := parseHostPort(dst)
	if err != nil {
		log.Fatalf("invalid dst: %v", err)
	}

	transport := proxy2.ProtoStream
	if dgram {
		transport = proxy2.ProtoDGram
	}

	if ip4 := srcIP.To4(); ip4 != nil {
		dst4 := dstIP.To4()
		if dst4 == nil {
			log.Fatalf("src is IPv4 but dst is not")
		}
		return &proxy2.AddrInet{
			Transport:   transport,
			Source:      ip4,
			Destination: dst4,
			SourcePort:  uint16(srcPort),
			DestPort:    uint16(dstPort),
		}
	}
	return &proxy2.AddrInet6{
		Transport:   transport,
		Source:      srcIP.To16(),
		Destination: dstIP.To16(),
		SourcePort:  uint16(srcPort),
		DestPort:    uint16(dstPort),
	}
}

func main() {
	log.SetFlags(log.Lshortfile)
	local := flag.Bool("local", false, "Emit a LOCAL command header (no address, no TLVs).")
	src := flag.String("src", "127.0.0.1:123", "Source address to use.")
	dst := flag.String("dst", "127.0.1.1:456", "Destination address to use.")
	dgram := flag.Bool("dgram", false, "Use the DGRAM transport protocol instead of STREAM.")
	authority := flag.String("authority", "", "AUTHORITY TLV host name.")
	namespace := flag.String("namespace", "", "NAMESPACE TLV value.")
	hexOut := flag.Bool("hex", false, "Write a hex dump to stdout instead of raw bytes.")
	var alpn, sslVersion, sslCipher stringList
	flag.Var(&alpn, "alpn", "ALPN TLV value (repeatable).")
	flag.Var(&sslVersion, "ssl-version", "SSL version sub-TLV value (repeatable).")
	flag.Var(&sslCipher, "ssl-cipher", "SSL cipher sub-TLV value (repeatable).")
	flag.Parse()

	buf := make([]byte, 8192)

	var n int
	if *local {
		n = proxy2.EncodeLocal(buf)
	} else {
		ex := proxy2.BeginEx{Address: buildAddr(*src, *dst, *dgram)}
		for _, v := range alpn {
			ex.Infos = append(ex.Infos, proxy2.Info{Kind: proxy2.InfoALPN, Value: []byte(v)})
		}
		if *authority != "" {
			ex.Infos = append(ex.Infos, proxy2.Info{Kind: proxy2.InfoAuthority, Value: []byte(*authority)})
		}
		for _, v := range sslVersion {
			ex.Infos = append(ex.Infos, proxy2.Info{Kind: proxy2.InfoSecure, Secure: proxy2.SecureProtocol, Value: []byte(v)})
		}
		for _, v := range sslCipher {
			ex.Infos = append(ex.Infos, proxy2.Info{Kind: proxy2.InfoSecure, Secure: proxy2.SecureCipher, Value: []byte(v)})
		}
		if *namespace != "" {
			ex.Infos = append(ex.Infos, proxy2.Info{Kind: proxy2.InfoNamespace, Value: []byte(*namespace)})
		}

		var err error
		n, err = proxy2.EncodeProxy(buf, &ex)
		if err != nil {
			log.Fatalf("encode: %v", err)
		}
	}

	if *hexOut {
		fmt.Println(hex.Dump(buf[:n]))
		return
	}
	if _, err := os.Stdout.Write(buf[:n]); err != nil {
		log.Fatalf("write: %v", err)
	}
}
