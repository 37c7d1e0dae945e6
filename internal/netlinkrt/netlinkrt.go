// Package netlinkrt implements spec.md section 6's kernel route-table
// interface against the host's Linux IPv4 routing table over
// AF_NETLINK/RTNETLINK, so the rib package never needs to import a
// netlink library directly.
package netlinkrt

import (
	"context"
	"net/netip"

	"github.com/jsimonetti/rtnetlink"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/transitorykris/bgpd/internal/rib"
)

// Table is the real rib.RouteTable, backed by a netlink connection to
// the kernel's RTM_GETROUTE/RTM_NEWROUTE handlers.
type Table struct {
	conn *rtnetlink.Conn
}

// Dial opens a netlink connection for route enumeration and
// installation. The returned Table must be closed with Close when the
// process is done with it.
func Dial() (*Table, error) {
	conn, err := rtnetlink.Dial(nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial rtnetlink")
	}
	return &Table{conn: conn}, nil
}

// Close releases the underlying netlink connection.
func (t *Table) Close() error {
	return t.conn.Close()
}

// Routes enumerates the kernel's IPv4 unicast routes, matching
// spec.md section 6's "Enumerate IPv4 routes" collaborator operation.
func (t *Table) Routes(ctx context.Context) ([]rib.KernelRoute, error) {
	msgs, err := t.conn.Route.List()
	if err != nil {
		return nil, errors.Wrap(err, "list kernel routes")
	}

	var out []rib.KernelRoute
	for _, m := range msgs {
		if m.Family != unix.AF_INET {
			continue
		}
		if len(m.Attributes.Dst) == 0 || len(m.Attributes.Gateway) == 0 {
			continue
		}
		dstAddr, ok := netip.AddrFromSlice(m.Attributes.Dst.To4())
		if !ok {
			continue
		}
		gw, ok := netip.AddrFromSlice(m.Attributes.Gateway.To4())
		if !ok {
			continue
		}
		out = append(out, rib.KernelRoute{
			Destination: netip.PrefixFrom(dstAddr, int(m.DstLength)),
			Gateway:     gw,
		})
	}
	return out, nil
}

// AddRoute installs one IPv4 route with the protocol tag spec.md
// section 4.3 calls for ("boot"), matching the "Add IPv4 route"
// collaborator operation.
func (t *Table) AddRoute(ctx context.Context, r rib.KernelRoute) error {
	dst4 := r.Destination.Addr().As4()
	gw4 := r.Gateway.As4()

	msg := &rtnetlink.RouteMessage{
		Family:    unix.AF_INET,
		DstLength: uint8(r.Destination.Bits()),
		Table:     unix.RT_TABLE_MAIN,
		Protocol:  rib.RouteTableProtocol,
		Scope:     unix.RT_SCOPE_UNIVERSE,
		Type:      unix.RTN_UNICAST,
		Attributes: rtnetlink.RouteAttributes{
			Dst:     dst4[:],
			Gateway: gw4[:],
		},
	}
	if err := t.conn.Route.Add(msg); err != nil {
		return errors.Wrap(err, "add kernel route")
	}
	return nil
}
