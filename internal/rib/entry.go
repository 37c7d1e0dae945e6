// Package rib implements the three-stage Routing Information Base
// pipeline of spec.md section 4.3: Adj-RIB-In, Loc-RIB, and Adj-RIB-Out,
// plus the translation between UPDATE messages, kernel routes, and the
// entries that live in each stage.
package rib

import (
	"net/netip"

	"github.com/transitorykris/bgpd/internal/message"
)

// Status tracks an entry's change state across a propagation pass
// (spec.md section 3 invariants).
type Status int

const (
	StatusWithdrawn Status = iota
	StatusUpdated
	StatusUnchanged
)

func (s Status) String() string {
	switch s {
	case StatusWithdrawn:
		return "withdrawn"
	case StatusUpdated:
		return "updated"
	case StatusUnchanged:
		return "unchanged"
	default:
		return "invalid"
	}
}

// InstallStatus tracks whether a Loc-RIB entry still needs installing
// into the kernel routing table.
type InstallStatus int

const (
	ShouldInstall InstallStatus = iota
	Installed
)

// Entry is one routing entry, the unit of storage in every RIB stage.
// Equality for deduplication is defined over (NextHop, Destination)
// only: path attributes never participate in identity (spec.md section
// 3, "Routing entry").
type Entry struct {
	NextHop       netip.Addr
	Destination   netip.Prefix
	Status        Status
	Attrs         []message.PathAttribute
	InstallStatus InstallStatus

	// installAttempts counts retries of a failed kernel installation;
	// see InstallToKernel and spec.md section 9's resolution of
	// the "kernel route-add failures" open question.
	installAttempts int
}

func (e *Entry) sameIdentity(other *Entry) bool {
	return e.NextHop == other.NextHop && e.Destination == other.Destination
}

// clone copies an entry's attributes so stages never alias another
// stage's attribute slice.
func (e *Entry) clone() *Entry {
	c := *e
	if e.Attrs != nil {
		c.Attrs = append([]message.PathAttribute(nil), e.Attrs...)
	}
	c.installAttempts = 0
	return &c
}
