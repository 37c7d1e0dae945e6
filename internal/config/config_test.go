package config

import (
	"net/netip"
	"strings"
	"testing"
)

func TestParseValidConfig(t *testing.T) {
	input := "# comment line\n\n65001 10.0.0.1 65002 10.0.0.2 active 10.1.0.0/16\n65003 10.0.0.3 65004 10.0.0.4 passive 192.168.0.0/24\n"
	peers, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(peers) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(peers))
	}

	p := peers[0]
	if p.LocalAS != 65001 || p.RemoteAS != 65002 {
		t.Fatalf("unexpected AS numbers: %+v", p)
	}
	if p.LocalIdentifier != netip.MustParseAddr("10.0.0.1") {
		t.Fatalf("unexpected local identifier: %v", p.LocalIdentifier)
	}
	if p.Mode != Active {
		t.Fatalf("expected Active mode, got %v", p.Mode)
	}
	if p.AdvertisedPrefix != netip.MustParsePrefix("10.1.0.0/16") {
		t.Fatalf("unexpected advertised prefix: %v", p.AdvertisedPrefix)
	}
	if peers[1].Mode != Passive {
		t.Fatalf("expected Passive mode for second peer, got %v", peers[1].Mode)
	}
}

func TestParseRejectsWrongFieldCount(t *testing.T) {
	_, err := Parse(strings.NewReader("65001 10.0.0.1 65002\n"))
	if err == nil {
		t.Fatal("expected an error for a malformed line")
	}
	cfgErr, ok := errorsAs(err)
	if !ok {
		t.Fatalf("expected a *Error, got %T: %v", err, err)
	}
	if cfgErr.Line != 1 || cfgErr.Field != "line" {
		t.Fatalf("unexpected error detail: %+v", cfgErr)
	}
}

func TestParseRejectsBadMode(t *testing.T) {
	_, err := Parse(strings.NewReader("65001 10.0.0.1 65002 10.0.0.2 sideways 10.1.0.0/16\n"))
	cfgErr, ok := errorsAs(err)
	if !ok {
		t.Fatalf("expected a *Error, got %T: %v", err, err)
	}
	if cfgErr.Field != "mode" {
		t.Fatalf("expected the mode field to be blamed, got %q", cfgErr.Field)
	}
}

func TestParseRejectsBadPrefix(t *testing.T) {
	_, err := Parse(strings.NewReader("65001 10.0.0.1 65002 10.0.0.2 active not-a-prefix\n"))
	cfgErr, ok := errorsAs(err)
	if !ok {
		t.Fatalf("expected a *Error, got %T: %v", err, err)
	}
	if cfgErr.Field != "advertised_prefix" {
		t.Fatalf("expected the advertised_prefix field to be blamed, got %q", cfgErr.Field)
	}
}

func errorsAs(err error) (*Error, bool) {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if ce, ok := err.(*Error); ok {
			return ce, true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
