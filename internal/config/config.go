// Package config parses the peer configuration file format of spec.md
// section 6: one peer per line, space-separated fields in a fixed
// positional order. This is a hand-rolled line scanner rather than a
// structured-config library — the format is positional and
// BGP-specific, not a generic key/value document (see DESIGN.md).
package config

import (
	"bufio"
	"io"
	"net/netip"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/transitorykris/bgpd/internal/bgperr"
)

// Mode is whether a peer initiates or accepts the TCP connection
// (spec.md section 3, "Session configuration").
type Mode int

const (
	Active Mode = iota
	Passive
)

func (m Mode) String() string {
	if m == Passive {
		return "passive"
	}
	return "active"
}

// Peer is one configured neighbor, immutable once a session starts.
type Peer struct {
	LocalAS          uint16
	LocalIdentifier  netip.Addr
	RemoteAS         uint16
	RemoteIdentifier netip.Addr
	Mode             Mode
	AdvertisedPrefix netip.Prefix
}

// Error names the line and field that failed to parse, per spec.md
// section 4.5.
type Error struct {
	Line  int
	Field string
	cause error
}

func (e *Error) Error() string {
	return "config: line " + strconv.Itoa(e.Line) + ": field " + e.Field + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

func fieldError(line int, field string, cause error) error {
	return bgperr.Wrap(bgperr.Config, bgperr.Code("line-"+strconv.Itoa(line)), &Error{Line: line, Field: field, cause: cause})
}

// Parse reads the peer configuration format from r: one peer per
// non-blank, non-"#"-prefixed line, fields in the order
// `<local_AS> <local_IPv4> <remote_AS> <remote_IPv4> <active|passive> <advertised_prefix>`.
func Parse(r io.Reader) ([]Peer, error) {
	var peers []Peer
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := parseLine(lineNo, line)
		if err != nil {
			return nil, err
		}
		peers = append(peers, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, bgperr.Wrap(bgperr.Config, "scan-failed", errors.WithStack(err))
	}
	return peers, nil
}

func parseLine(lineNo int, line string) (Peer, error) {
	fields := strings.Fields(line)
	if len(fields) != 6 {
		return Peer{}, fieldError(lineNo, "line", errors.Errorf("expected 6 fields, got %d", len(fields)))
	}

	localAS, err := parseAS(fields[0])
	if err != nil {
		return Peer{}, fieldError(lineNo, "local_AS", err)
	}
	localID, err := netip.ParseAddr(fields[1])
	if err != nil {
		return Peer{}, fieldError(lineNo, "local_IPv4", err)
	}
	remoteAS, err := parseAS(fields[2])
	if err != nil {
		return Peer{}, fieldError(lineNo, "remote_AS", err)
	}
	remoteID, err := netip.ParseAddr(fields[3])
	if err != nil {
		return Peer{}, fieldError(lineNo, "remote_IPv4", err)
	}
	mode, err := parseMode(fields[4])
	if err != nil {
		return Peer{}, fieldError(lineNo, "mode", err)
	}
	advertised, err := netip.ParsePrefix(fields[5])
	if err != nil {
		return Peer{}, fieldError(lineNo, "advertised_prefix", err)
	}

	return Peer{
		LocalAS:          localAS,
		LocalIdentifier:  localID,
		RemoteAS:         remoteAS,
		RemoteIdentifier: remoteID,
		Mode:             mode,
		AdvertisedPrefix: advertised,
	}, nil
}

func parseAS(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return uint16(n), nil
}

func parseMode(s string) (Mode, error) {
	switch s {
	case "active":
		return Active, nil
	case "passive":
		return Passive, nil
	default:
		return 0, errors.Errorf("mode must be active or passive, got %q", s)
	}
}
