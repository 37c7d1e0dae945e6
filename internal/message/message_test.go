package message

import (
	"bytes"
	"net/netip"
	"testing"
)

// S1 — OPEN round-trip (spec.md section 8).
func TestEncodeOpenS1(t *testing.T) {
	o := Open{
		Version:    4,
		MyAS:       65001,
		HoldTime:   240,
		Identifier: netip.MustParseAddr("10.0.0.1"),
	}
	got := EncodeOpen(o)
	want := []byte{
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0x00, 0x1D, 0x01,
		0x04, 0xFD, 0xE9, 0x00, 0xF0, 0x0A, 0x00, 0x00, 0x01, 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("EncodeOpen = % X, want % X", got, want)
	}
	if len(got) != 29 {
		t.Fatalf("expected 29 bytes, got %d", len(got))
	}

	msg, err := Decode(got)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Open == nil {
		t.Fatal("expected an OPEN message")
	}
	if *msg.Open != o {
		t.Fatalf("decoded %+v, want %+v", *msg.Open, o)
	}
}

func TestOpenRejectsOptionalParameters(t *testing.T) {
	body := []byte{4, 0xFD, 0xE9, 0x00, 0xF0, 10, 0, 0, 1, 1}
	_, err := DecodeOpen(body)
	de, ok := err.(*DecodeError)
	if !ok || de.Reason != ReasonUnsupportedOptionalParameter {
		t.Fatalf("expected UnsupportedOptionalParameter, got %v", err)
	}
}

// S3 — KEEPALIVE (spec.md section 8).
func TestKeepaliveS3(t *testing.T) {
	got := EncodeKeepalive()
	want := append(bytes.Repeat([]byte{0xFF}, 16), 0x00, 0x13, 0x04)
	if !bytes.Equal(got, want) {
		t.Fatalf("EncodeKeepalive = % X, want % X", got, want)
	}
	msg, err := Decode(got)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Header.Type != TypeKeepalive {
		t.Fatalf("expected KEEPALIVE, got %s", msg.Header.Type)
	}
}

func TestBadMessageType(t *testing.T) {
	buf := append(bytes.Repeat([]byte{0xFF}, 16), 0x00, 0x13, 0x09)
	_, err := Decode(buf)
	de, ok := err.(*DecodeError)
	if !ok || de.Reason != ReasonBadMessageType {
		t.Fatalf("expected BadMessageType, got %v", err)
	}
}

// S2 — prefix encode/decode and containment (spec.md section 8).
func TestPrefixEncodeDecodeS2(t *testing.T) {
	p := netip.MustParsePrefix("192.168.5.0/24")
	got := EncodePrefix(p)
	want := []byte{24, 192, 168, 5}
	if !bytes.Equal(got, want) {
		t.Fatalf("EncodePrefix = % X, want % X", got, want)
	}

	decoded, n, err := DecodePrefix(got)
	if err != nil {
		t.Fatalf("DecodePrefix: %v", err)
	}
	if n != len(got) {
		t.Fatalf("consumed %d bytes, want %d", n, len(got))
	}
	if decoded != p {
		t.Fatalf("decoded %v, want %v", decoded, p)
	}

	outer := netip.MustParsePrefix("192.168.0.0/16")
	if !Contains(outer, p) {
		t.Error("expected 192.168.0.0/16 to contain 192.168.5.0/24")
	}
	if Contains(p, outer) {
		t.Error("did not expect 192.168.5.0/24 to contain 192.168.0.0/16")
	}
}

func TestPrefixBoundaryZero(t *testing.T) {
	p := netip.PrefixFrom(netip.MustParseAddr("0.0.0.0"), 0)
	got := EncodePrefix(p)
	if !bytes.Equal(got, []byte{0}) {
		t.Fatalf("expected a single zero byte, got % X", got)
	}
}

func TestPrefixBoundaryThirtyTwo(t *testing.T) {
	p := netip.MustParsePrefix("1.2.3.4/32")
	got := EncodePrefix(p)
	want := []byte{32, 1, 2, 3, 4}
	if !bytes.Equal(got, want) {
		t.Fatalf("EncodePrefix = % X, want % X", got, want)
	}
}

func TestPrefixContainsIsAPartialOrder(t *testing.T) {
	a := netip.MustParsePrefix("10.0.0.0/8")
	b := netip.MustParsePrefix("10.1.0.0/16")
	c := netip.MustParsePrefix("10.1.2.0/24")

	if !Contains(a, b) || !Contains(b, c) {
		t.Fatal("setup invariant broken")
	}
	if !Contains(a, c) {
		t.Error("expected transitivity: A contains C")
	}
	if !Contains(a, a) {
		t.Error("expected reflexivity: A contains A")
	}
	d := netip.MustParsePrefix("10.1.0.0/16")
	if !(Contains(b, d) && Contains(d, b) && b == d) {
		t.Error("expected antisymmetry to hold for equal prefixes")
	}
}

// S5 — UPDATE round-trip with Origin/AsPath/NextHop and one NLRI prefix.
func TestUpdateRoundTripS5(t *testing.T) {
	u := Update{
		Attrs: []PathAttribute{
			OriginIGP,
			ASPath{Segments: []ASPathSegment{{Type: ASSequence, ASNs: []uint16{65002}}}},
			NextHop(netip.MustParseAddr("10.0.0.2")),
		},
		NLRI: []netip.Prefix{netip.MustParsePrefix("10.1.0.0/16")},
	}
	encoded := EncodeUpdate(u)
	msg, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Update == nil {
		t.Fatal("expected an UPDATE message")
	}
	if len(msg.Update.NLRI) != 1 || msg.Update.NLRI[0] != u.NLRI[0] {
		t.Fatalf("NLRI mismatch: %+v", msg.Update.NLRI)
	}
	nh, ok := NextHopOf(msg.Update.Attrs)
	if !ok || nh != netip.MustParseAddr("10.0.0.2") {
		t.Fatalf("expected NextHop 10.0.0.2, got %v ok=%v", nh, ok)
	}
	if len(msg.Update.Withdrawn) != 0 {
		t.Fatalf("expected no withdrawn routes, got %v", msg.Update.Withdrawn)
	}
}

func TestASPathEmitsSequenceTypeTwo(t *testing.T) {
	// spec.md section 9: the source's AS_SEQUENCE-as-type-1 bug is fixed
	// here — a single-AS local AS_SEQUENCE segment emits type 2.
	a := ASPath{Segments: []ASPathSegment{{Type: ASSequence, ASNs: []uint16{65001}}}}
	v := a.encodeValue()
	want := []byte{2, 1, 0xFD, 0xE9}
	if !bytes.Equal(v, want) {
		t.Fatalf("encodeValue = % X, want % X", v, want)
	}
}

func TestUnknownAttributeDecodesAndEncodesEmpty(t *testing.T) {
	raw := []byte{flagsOptionalTransitive, 200, 3, 1, 2, 3}
	a, n, err := decodeAttribute(raw)
	if err != nil {
		t.Fatalf("decodeAttribute: %v", err)
	}
	if n != len(raw) {
		t.Fatalf("consumed %d, want %d", n, len(raw))
	}
	u, ok := a.(Unknown)
	if !ok || u.TypeCode != 200 || !bytes.Equal(u.Value, []byte{1, 2, 3}) {
		t.Fatalf("unexpected decode: %+v", a)
	}
	if len(a.encodeValue()) != 0 {
		t.Fatalf("expected empty re-encode of unknown attribute, got % X", a.encodeValue())
	}
}

func TestReceiveBufferAccumulatesAcrossAppends(t *testing.T) {
	rb := NewReceiveBuffer()
	full := EncodeKeepalive()
	rb.Append(full[:10])
	if _, err := rb.Extract(); err != ErrNeedMore {
		t.Fatalf("expected ErrNeedMore, got %v", err)
	}
	rb.Append(full[10:])
	got, err := rb.Extract()
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Equal(got, full) {
		t.Fatalf("Extract = % X, want % X", got, full)
	}
	if rb.Len() != 0 {
		t.Fatalf("expected buffer drained, has %d bytes left", rb.Len())
	}
}

func TestInvalidNextHopLength(t *testing.T) {
	_, err := decodeAttributeValue(AttrNextHop, []byte{1, 2, 3})
	de, ok := err.(*DecodeError)
	if !ok || de.Reason != ReasonInvalidNextHopAttribute {
		t.Fatalf("expected InvalidNextHopAttribute, got %v", err)
	}
}
