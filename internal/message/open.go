package message

import "net/netip"

// 4.2.  OPEN Message Format
//
//    After a TCP connection is established, the first message sent by each
//    side is an OPEN message. If the OPEN message is acceptable, a
//    KEEPALIVE message confirming the OPEN is sent back.
//
//    In addition to the fixed-size BGP header, the OPEN message contains
//    the following fields:
//       0                   1                   2                   3
//       0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//       +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//       |    Version    |     My Autonomous System      |   Hold Time   |
//       +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//       |                         BGP Identifier                       |
//       +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//       | Opt Parm Len  |       Optional Parameters (variable)         |
//       +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
type Open struct {
	// Version indicates the protocol version number of the message.
	// The only version this speaker implements is 4.
	Version byte
	// MyAS indicates the Autonomous System number of the sender.
	MyAS uint16
	// HoldTime is the number of seconds the sender proposes for the
	// Hold Timer; the negotiated value is the smaller of the two
	// peers' offers.
	HoldTime uint16
	// Identifier is the BGP Identifier of the sender, conventionally
	// an IPv4 address assigned to the speaker.
	Identifier netip.Addr
}

// Version is fixed at 4; 4-byte AS numbers and capability negotiation
// are out of scope.
const Version = 4

// EncodeOpen renders o as a complete BGP message, including header.
// Optional parameters are never emitted (spec.md section 4.1).
func EncodeOpen(o Open) []byte {
	body := make([]byte, 0, 10)
	body = append(body, o.Version)
	body = append(body, byte(o.MyAS>>8), byte(o.MyAS))
	body = append(body, byte(o.HoldTime>>8), byte(o.HoldTime))
	addr4 := o.Identifier.As4()
	body = append(body, addr4[:]...)
	body = append(body, 0) // Opt Parm Len: always zero

	msg := encodeHeader(uint16(HeaderLength+len(body)), TypeOpen)
	return append(msg, body...)
}

// DecodeOpen parses the body of an OPEN message (the bytes after the
// 19-byte header). A nonzero optional-parameter length is rejected:
// this speaker never negotiates capabilities.
func DecodeOpen(body []byte) (Open, error) {
	if len(body) < 10 {
		return Open{}, newDecodeError(ReasonBadMessageLength)
	}
	var o Open
	o.Version = body[0]
	if o.Version != Version {
		return Open{}, newDecodeError(ReasonUnsupportedVersion)
	}
	o.MyAS = uint16(body[1])<<8 | uint16(body[2])
	o.HoldTime = uint16(body[3])<<8 | uint16(body[4])
	o.Identifier = netip.AddrFrom4([4]byte{body[5], body[6], body[7], body[8]})
	optParmLen := body[9]
	if optParmLen != 0 {
		return Open{}, newDecodeError(ReasonUnsupportedOptionalParameter)
	}
	return o, nil
}
