package message

// ExtractMessage peeks the 19-byte header at the front of buf and
// returns the bytes of exactly one complete message (header included).
// It never blocks and never reads beyond buf: if buf is shorter than
// the header, or shorter than the length the header declares, it fails
// with ErrShortBuffer.
func ExtractMessage(buf []byte) ([]byte, error) {
	if len(buf) < HeaderLength {
		return nil, ErrShortBuffer
	}
	h := decodeHeader(buf)
	if int(h.Length) < HeaderLength {
		return nil, newDecodeError(ReasonBadMessageLength)
	}
	if len(buf) < int(h.Length) {
		return nil, ErrShortBuffer
	}
	return buf[:h.Length], nil
}

// ReceiveBuffer accumulates bytes read off a peer's TCP connection
// across non-blocking reads and extracts whole BGP messages from the
// front as they become available. It does not interpret message
// contents — that is the job of Decode.
type ReceiveBuffer struct {
	buf []byte
}

// NewReceiveBuffer returns an empty ReceiveBuffer.
func NewReceiveBuffer() *ReceiveBuffer {
	return &ReceiveBuffer{}
}

// Append adds bytes just read off the socket to the tail of the buffer.
func (r *ReceiveBuffer) Append(b []byte) {
	r.buf = append(r.buf, b...)
}

// Extract returns the bytes of the oldest complete message and advances
// past them, or ErrNeedMore if the buffer does not yet hold one.
func (r *ReceiveBuffer) Extract() ([]byte, error) {
	msg, err := ExtractMessage(r.buf)
	if err == ErrShortBuffer {
		return nil, ErrNeedMore
	}
	if err != nil {
		// A malformed header is a protocol error, not a framing one;
		// surface it so the caller can tear down the session instead
		// of spinning forever on bytes it can never frame.
		return nil, err
	}
	n := len(msg)
	out := append([]byte(nil), msg...)
	r.buf = r.buf[n:]
	return out, nil
}

// Len reports how many bytes are currently buffered but not yet
// extracted as a complete message.
func (r *ReceiveBuffer) Len() int { return len(r.buf) }
