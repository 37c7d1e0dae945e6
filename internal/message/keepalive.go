package message

// 4.4.  KEEPALIVE Message Format
//
//    BGP does not use any TCP-based, keep-alive mechanism to determine if
//    peers are reachable. Instead, KEEPALIVE messages are exchanged
//    between peers often enough not to cause the Hold Timer to expire.
//
//    A KEEPALIVE message consists of only the message header and has a
//    length of 19 octets.

// EncodeKeepalive renders a complete KEEPALIVE message: header only.
func EncodeKeepalive() []byte {
	return encodeHeader(HeaderLength, TypeKeepalive)
}
