package message

// Message is any decoded BGP message body, tagged with the Header it
// arrived with.
type Message struct {
	Header       Header
	Open         *Open
	Update       *Update
	Notification *Notification
	// Keepalive carries no fields; Header.Type == TypeKeepalive is the tag.
}

// Decode parses one complete BGP message (header included) and
// dispatches to the type-specific decoder named in the header.
func Decode(buf []byte) (Message, error) {
	if len(buf) < HeaderLength {
		return Message{}, newDecodeError(ReasonBadMessageLength)
	}
	h := decodeHeader(buf)
	if int(h.Length) < HeaderLength || int(h.Length) > len(buf) {
		return Message{}, newDecodeError(ReasonBadMessageLength)
	}
	body := buf[HeaderLength:h.Length]

	switch h.Type {
	case TypeOpen:
		o, err := DecodeOpen(body)
		if err != nil {
			return Message{}, err
		}
		return Message{Header: h, Open: &o}, nil
	case TypeUpdate:
		u, err := DecodeUpdate(body)
		if err != nil {
			return Message{}, err
		}
		return Message{Header: h, Update: &u}, nil
	case TypeNotification:
		n, err := DecodeNotification(body)
		if err != nil {
			return Message{}, err
		}
		return Message{Header: h, Notification: &n}, nil
	case TypeKeepalive:
		if h.Length != HeaderLength {
			return Message{}, newDecodeError(ReasonBadMessageLength)
		}
		return Message{Header: h}, nil
	default:
		return Message{}, newDecodeError(ReasonBadMessageType)
	}
}
