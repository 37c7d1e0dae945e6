package rib

import (
	"net/netip"

	"github.com/transitorykris/bgpd/internal/message"
)

// AddFromUpdateMessage ingests one UPDATE into Adj-RIB-In (spec.md
// section 4.3): the next hop is derived once from the message's
// NextHop attribute, and one entry is created per NLRI prefix,
// carrying a copy of the message's attributes with Origin rewritten to
// EGP (a route learned from a peer is, by definition, not locally
// originated). Insertion is a no-op for an (next_hop, destination) pair
// already present. Withdrawn prefixes mark their existing entries
// Withdrawn. Reports whether any entry was newly added or marked
// withdrawn.
func AddFromUpdateMessage(adjIn *Stage, u message.Update) bool {
	changed := false

	for _, prefix := range u.Withdrawn {
		if adjIn.markWithdrawn(prefix) {
			changed = true
		}
	}

	nextHop, ok := message.NextHopOf(u.Attrs)
	if !ok {
		return changed
	}

	attrs := rewriteOriginEGP(u.Attrs)

	for _, prefix := range u.NLRI {
		e := &Entry{
			NextHop:     nextHop,
			Destination: prefix,
			Attrs:       attrs,
		}
		if adjIn.insert(e) {
			changed = true
		}
	}

	return changed
}

func rewriteOriginEGP(attrs []message.PathAttribute) []message.PathAttribute {
	out := make([]message.PathAttribute, len(attrs))
	copy(out, attrs)
	for i, a := range out {
		if a.Code() == message.AttrOrigin {
			out[i] = message.OriginEGP
		}
	}
	return out
}

// Propagate copies from's entries into to, following the propagation
// discipline of spec.md section 4.3: to is marked Unchanged first, so
// that after the pass, an entry's Status reflects only what this pass
// touched. Reports whether to has any entry with Status != Unchanged
// ("has new") after the pass.
func Propagate(from, to *Stage) bool {
	to.MarkAllUnchanged()
	for _, e := range from.Entries() {
		to.insert(e)
	}
	return to.HasNew()
}

// BuildOutboundUpdate collects every new (Status != Unchanged) entry
// from out and synthesizes one outbound UPDATE per spec.md section
// 4.3's "Outbound UPDATE synthesis": attributes Origin(IGP),
// AsPath(AS_SEQUENCE = [localAS]), NextHop(localIdentifier), no
// withdrawn routes, and the collected prefixes as NLRI. Reports false
// if there is nothing new to advertise.
func BuildOutboundUpdate(out *Stage, localAS uint16, localIdentifier netip.Addr) (message.Update, bool) {
	var nlri []netip.Prefix
	for _, e := range out.Entries() {
		if e.Status == StatusUnchanged {
			continue
		}
		nlri = append(nlri, e.Destination)
	}
	if len(nlri) == 0 {
		return message.Update{}, false
	}

	u := message.Update{
		Attrs: []message.PathAttribute{
			message.OriginIGP,
			message.ASPath{Segments: []message.ASPathSegment{
				{Type: message.ASSequence, ASNs: []uint16{localAS}},
			}},
			message.NextHop(localIdentifier),
		},
		NLRI: nlri,
	}
	return u, true
}
