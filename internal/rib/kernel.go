package rib

import (
	"context"
	"net/netip"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/transitorykris/bgpd/internal/message"
)

// KernelRoute is one route as seen in, or destined for, the host's
// IPv4 routing table (spec.md section 6, "Kernel route-table
// interface").
type KernelRoute struct {
	Destination netip.Prefix
	Gateway     netip.Addr
}

// RouteTableProtocol is the protocol tag stamped on routes this speaker
// installs. RTPROT_BOOT (3) per spec.md section 4.3's "boot"
// designation.
const RouteTableProtocol = 3

// maxInstallAttempts bounds the retry described in spec.md section 9's
// resolution of the kernel route-add failure open question: a failed
// install leaves the entry ShouldInstall for up to this many
// propagation passes before the pipeline gives up and only logs.
const maxInstallAttempts = 5

// RouteTable is the external collaborator spec.md section 6 requires:
// enumerate and add IPv4 routes against the host kernel. The rib
// package depends only on this interface, never on a netlink package
// directly, so tests substitute an in-memory fake and the real
// implementation lives in a separate package.
type RouteTable interface {
	Routes(ctx context.Context) ([]KernelRoute, error)
	AddRoute(ctx context.Context, r KernelRoute) error
}

// PopulateFromKernel loads loc at session start from the kernel routes
// contained within advertised, one entry per route with the route's
// gateway as NextHop (spec.md section 4.3, "Loc-RIB" population).
// Reports whether any entry was added.
func PopulateFromKernel(ctx context.Context, loc *Stage, rt RouteTable, advertised netip.Prefix) (bool, error) {
	routes, err := rt.Routes(ctx)
	if err != nil {
		return false, errors.Wrap(err, "enumerate kernel routes")
	}
	added := false
	for _, r := range routes {
		if !message.Contains(advertised, r.Destination) {
			continue
		}
		e := &Entry{
			NextHop:     r.Gateway,
			Destination: r.Destination,
			Attrs: []message.PathAttribute{
				message.OriginIGP,
				message.NextHop(r.Gateway),
			},
		}
		if loc.insert(e) {
			added = true
		}
	}
	return added, nil
}

// InstallToKernel installs every Loc-RIB entry with Status Updated and
// InstallStatus ShouldInstall (spec.md section 4.3, "Kernel
// installation"), plus any ShouldInstall entry whose earlier install
// failed. A failed install is retried on a later call rather
// than torn down immediately: installAttempts is incremented, and once
// it reaches maxInstallAttempts the entry is logged at Error and left
// ShouldInstall permanently (spec.md section 9's resolution of the
// kernel route-add-failure open question).
func InstallToKernel(ctx context.Context, loc *Stage, rt RouteTable, log *zap.Logger) {
	for _, e := range loc.order {
		if e.InstallStatus != ShouldInstall {
			continue
		}
		// An entry whose earlier install failed is retried even after a
		// later propagation pass has marked it Unchanged.
		if e.Status != StatusUpdated && e.installAttempts == 0 {
			continue
		}
		if e.installAttempts >= maxInstallAttempts {
			continue
		}
		err := rt.AddRoute(ctx, KernelRoute{Destination: e.Destination, Gateway: e.NextHop})
		if err != nil {
			e.installAttempts++
			if e.installAttempts >= maxInstallAttempts {
				log.Error("kernel route install abandoned after repeated failure",
					zap.Stringer("destination", e.Destination),
					zap.Stringer("next_hop", e.NextHop),
					zap.Int("attempts", e.installAttempts),
					zap.Error(err))
			} else {
				log.Warn("kernel route install failed, will retry",
					zap.Stringer("destination", e.Destination),
					zap.Int("attempt", e.installAttempts),
					zap.Error(err))
			}
			continue
		}
		e.InstallStatus = Installed
	}
}
