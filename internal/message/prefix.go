package message

import "net/netip"

// Network Layer Reachability Information / Withdrawn Routes encoding.
//
//          Reachability information is encoded as one or more 2-tuples of
//          the form <length, prefix>:
//                   +---------------------------+
//                   |   Length (1 octet)        |
//                   +---------------------------+
//                   |   Prefix (variable)       |
//                   +---------------------------+
//          Length indicates the length in bits of the IP address prefix.
//          Prefix contains the address, followed by enough trailing bits
//          to make the end of the field fall on an octet boundary; the
//          value of the trailing bits is irrelevant on the wire and is
//          masked to zero on decode.

// EncodePrefix renders one prefix as <length, prefix> with the minimal
// number of address octets: ceil(bits/8).
func EncodePrefix(p netip.Prefix) []byte {
	bits := p.Bits()
	n := (bits + 7) / 8
	addr := p.Addr().As4()
	return append([]byte{byte(bits)}, addr[:n]...)
}

// DecodePrefix parses one <length, prefix> tuple from the start of buf
// and returns the prefix plus the number of bytes consumed. Bits beyond
// the declared length are masked to zero.
func DecodePrefix(buf []byte) (netip.Prefix, int, error) {
	if len(buf) < 1 {
		return netip.Prefix{}, 0, newDecodeError(ReasonMalformedAttributeList)
	}
	bits := int(buf[0])
	if bits > 32 {
		return netip.Prefix{}, 0, newDecodeError(ReasonMalformedAttributeList)
	}
	n := (bits + 7) / 8
	if len(buf) < 1+n {
		return netip.Prefix{}, 0, newDecodeError(ReasonMalformedAttributeList)
	}
	var octets [4]byte
	copy(octets[:n], buf[1:1+n])
	addr := netip.AddrFrom4(octets)
	prefix := netip.PrefixFrom(addr, bits).Masked()
	return prefix, 1 + n, nil
}

// Contains reports whether a is a supernet of (or equal to) b: every
// address in b also falls within a. This is the bitwise partial order
// spec.md section 8 requires (reflexive, transitive, antisymmetric).
func Contains(a, b netip.Prefix) bool {
	if a.Bits() > b.Bits() {
		return false
	}
	return a.Masked().Contains(b.Addr())
}

func decodePrefixList(buf []byte) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	offset := 0
	for offset < len(buf) {
		p, n, err := DecodePrefix(buf[offset:])
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, p)
		offset += n
	}
	return prefixes, nil
}

func encodePrefixList(prefixes []netip.Prefix) []byte {
	var b []byte
	for _, p := range prefixes {
		b = append(b, EncodePrefix(p)...)
	}
	return b
}
