package message

import "net/netip"

// 4.3.  UPDATE Message Format (path attribute section)
//
//          Attribute Type is a two-octet field that consists of the
//          Attribute Flags octet, followed by the Attribute Type Code
//          octet.
//                0                   1
//                0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5
//                +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//                |  Attr. Flags  |Attr. Type Code|
//                +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
//          The high-order bit (bit 0) of the Attribute Flags octet is the
//          Optional bit. The second high-order bit (bit 1) is the
//          Transitive bit. The third high-order bit (bit 2) is the
//          Partial bit. The fourth high-order bit (bit 3) is the
//          Extended Length bit: it defines whether the Attribute Length
//          is one octet (0) or two octets (1). The low-order four bits
//          are unused and MUST be zero on transmit.
const (
	flagOptional       = 1 << 7
	flagTransitive     = 1 << 6
	flagPartial        = 1 << 5
	flagExtendedLength = 1 << 4
)

// flagsWellKnown is well-known + transitive + 1-byte length, the only
// flag combination this speaker ever transmits for a known attribute.
const flagsWellKnown = flagTransitive

// flagsOptionalTransitive is used for AGGREGATOR, an optional transitive
// attribute.
const flagsOptionalTransitive = flagOptional | flagTransitive

// AttrCode is the Attribute Type Code octet.
type AttrCode byte

const (
	AttrOrigin          AttrCode = 1
	AttrASPath          AttrCode = 2
	AttrNextHop         AttrCode = 3
	AttrMultiExitDisc   AttrCode = 4
	AttrLocalPref       AttrCode = 5
	AttrAtomicAggregate AttrCode = 6
	AttrAggregator      AttrCode = 7
)

// PathAttribute is the tagged variant over the well-known attributes
// this speaker understands, plus an opaque fallback for anything else.
// Flags and length are never stored on the decoded form: they are
// re-derived from the value when the attribute is re-encoded.
type PathAttribute interface {
	Code() AttrCode
	encodeValue() []byte
}

// Origin (Type Code 1) is a well-known mandatory attribute.
type OriginValue byte

const (
	OriginIGP        OriginValue = 0
	OriginEGP        OriginValue = 1
	OriginIncomplete OriginValue = 2
)

func (o OriginValue) Code() AttrCode    { return AttrOrigin }
func (o OriginValue) encodeValue() []byte { return []byte{byte(o)} }

// AS_PATH (Type Code 2) is a well-known mandatory attribute composed of
// path segments, each an ordered or unordered set of AS numbers.
type ASPathSegmentType byte

const (
	ASSet      ASPathSegmentType = 1
	ASSequence ASPathSegmentType = 2
)

type ASPathSegment struct {
	Type ASPathSegmentType
	ASNs []uint16
}

type ASPath struct {
	Segments []ASPathSegment
}

func (a ASPath) Code() AttrCode { return AttrASPath }

func (a ASPath) encodeValue() []byte {
	var b []byte
	for _, seg := range a.Segments {
		b = append(b, byte(seg.Type), byte(len(seg.ASNs)))
		for _, asn := range seg.ASNs {
			b = append(b, byte(asn>>8), byte(asn))
		}
	}
	return b
}

// NextHop (Type Code 3) is a well-known mandatory attribute giving the
// IP address of the router to use as next hop for the attached NLRI.
type NextHop netip.Addr

func (n NextHop) Code() AttrCode { return AttrNextHop }

func (n NextHop) encodeValue() []byte {
	a4 := netip.Addr(n).As4()
	return a4[:]
}

// LocalPref (Type Code 5) is a well-known attribute used between
// internal peers; this speaker only needs to carry it faithfully.
type LocalPref uint32

func (l LocalPref) Code() AttrCode { return AttrLocalPref }

func (l LocalPref) encodeValue() []byte {
	return []byte{byte(l >> 24), byte(l >> 16), byte(l >> 8), byte(l)}
}

// AtomicAggregate (Type Code 6) is a well-known discretionary attribute
// of length zero.
type AtomicAggregate struct{}

func (a AtomicAggregate) Code() AttrCode      { return AttrAtomicAggregate }
func (a AtomicAggregate) encodeValue() []byte { return nil }

// Aggregator (Type Code 7) is an optional transitive attribute carrying
// the AS and speaker that formed an aggregate route.
type Aggregator struct {
	AS      uint16
	Speaker netip.Addr
}

func (a Aggregator) Code() AttrCode { return AttrAggregator }

func (a Aggregator) encodeValue() []byte {
	b := []byte{byte(a.AS >> 8), byte(a.AS)}
	a4 := a.Speaker.As4()
	return append(b, a4[:]...)
}

// Unknown preserves an attribute this speaker does not understand.
// It re-encodes to an empty value on the outbound path: spec.md section
// 4.1 accepts this as a limitation rather than round-tripping unknown
// attribute bytes verbatim.
type Unknown struct {
	TypeCode byte
	Value    []byte
}

func (u Unknown) Code() AttrCode      { return AttrCode(u.TypeCode) }
func (u Unknown) encodeValue() []byte { return nil }

func flagsFor(code AttrCode) byte {
	if code == AttrAggregator {
		return flagsOptionalTransitive
	}
	return flagsWellKnown
}

// encodeAttribute renders one path attribute (flags, type, length,
// value); length is always re-derived from the value and emitted in
// the one-octet form since no in-scope attribute value exceeds 255
// bytes.
func encodeAttribute(a PathAttribute) []byte {
	v := a.encodeValue()
	b := []byte{flagsFor(a.Code()), byte(a.Code()), byte(len(v))}
	return append(b, v...)
}

// decodeAttribute parses one path attribute starting at buf[0] and
// returns it along with the number of bytes consumed.
func decodeAttribute(buf []byte) (PathAttribute, int, error) {
	if len(buf) < 3 {
		return nil, 0, newDecodeError(ReasonMalformedAttributeList)
	}
	flags := buf[0]
	code := AttrCode(buf[1])
	offset := 2

	var length int
	if flags&flagExtendedLength != 0 {
		if len(buf) < offset+2 {
			return nil, 0, newDecodeError(ReasonMalformedAttributeList)
		}
		length = int(buf[offset])<<8 | int(buf[offset+1])
		offset += 2
	} else {
		length = int(buf[offset])
		offset++
	}
	if len(buf) < offset+length {
		return nil, 0, newDecodeError(ReasonMalformedAttributeList)
	}
	value := buf[offset : offset+length]
	total := offset + length

	attr, err := decodeAttributeValue(code, value)
	if err != nil {
		return nil, 0, err
	}
	return attr, total, nil
}

func decodeAttributeValue(code AttrCode, value []byte) (PathAttribute, error) {
	switch code {
	case AttrOrigin:
		if len(value) != 1 {
			return nil, newDecodeError(ReasonMalformedAttributeList)
		}
		return OriginValue(value[0]), nil
	case AttrASPath:
		segments, err := decodeASPath(value)
		if err != nil {
			return nil, err
		}
		return ASPath{Segments: segments}, nil
	case AttrNextHop:
		if len(value) != 4 {
			return nil, newDecodeError(ReasonInvalidNextHopAttribute)
		}
		return NextHop(netip.AddrFrom4([4]byte{value[0], value[1], value[2], value[3]})), nil
	case AttrLocalPref:
		if len(value) != 4 {
			return nil, newDecodeError(ReasonMalformedAttributeList)
		}
		return LocalPref(uint32(value[0])<<24 | uint32(value[1])<<16 | uint32(value[2])<<8 | uint32(value[3])), nil
	case AttrAtomicAggregate:
		return AtomicAggregate{}, nil
	case AttrAggregator:
		if len(value) != 6 {
			return nil, newDecodeError(ReasonMalformedAttributeList)
		}
		as := uint16(value[0])<<8 | uint16(value[1])
		addr := netip.AddrFrom4([4]byte{value[2], value[3], value[4], value[5]})
		return Aggregator{AS: as, Speaker: addr}, nil
	default:
		return Unknown{TypeCode: byte(code), Value: append([]byte(nil), value...)}, nil
	}
}

func decodeASPath(value []byte) ([]ASPathSegment, error) {
	var segments []ASPathSegment
	offset := 0
	for offset < len(value) {
		if offset+2 > len(value) {
			return nil, newDecodeError(ReasonMalformedAttributeList)
		}
		segType := ASPathSegmentType(value[offset])
		count := int(value[offset+1])
		offset += 2
		if offset+count*2 > len(value) {
			return nil, newDecodeError(ReasonMalformedAttributeList)
		}
		asns := make([]uint16, count)
		for i := 0; i < count; i++ {
			asns[i] = uint16(value[offset])<<8 | uint16(value[offset+1])
			offset += 2
		}
		segments = append(segments, ASPathSegment{Type: segType, ASNs: asns})
	}
	return segments, nil
}
