package fsm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/transitorykris/bgpd/internal/bgperr"
	"github.com/transitorykris/bgpd/internal/config"
	"github.com/transitorykris/bgpd/internal/message"
	"github.com/transitorykris/bgpd/internal/rib"
)

// idle implements "Idle + ManualStart" (spec.md section 4.2). Every
// other event is ignored in Idle.
func (f *FSM) idle(ev queuedEvent, now time.Time) {
	if ev.event != ManualStart {
		return
	}

	f.ConnectRetryCounter = 0
	f.ConnectRetryTimer.Reset(now, connectRetryTime)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	var transport Transport
	var err error
	if f.Peer.Mode == config.Active {
		transport, err = f.Connector.Dial(ctx)
	} else {
		transport, err = f.Connector.Accept(ctx)
	}

	if err != nil {
		if f.Log != nil {
			f.Log.Warn("tcp connection attempt failed",
				zap.Stringer("peer", f.Peer.RemoteIdentifier), zap.Error(err))
		}
		f.events.push(queuedEvent{event: TcpConnectionFails})
	} else {
		f.conn = transport
		f.events.push(queuedEvent{event: TcpConnectionConfirmed})
	}
	f.transition(StateConnect, now)
}

// connect implements "Connect + (TcpCrAcked | TcpConnectionConfirmed)"
// and "Connect + TcpConnectionFails" (spec.md section 4.2).
func (f *FSM) connect(ev queuedEvent, now time.Time) {
	switch ev.event {
	case TcpCrAcked, TcpConnectionConfirmed:
		f.ConnectRetryTimer.Stop()
		f.localHoldOffer = uint16(openSentHoldTime / time.Second)
		f.send(message.EncodeOpen(message.Open{
			Version:    message.Version,
			MyAS:       f.Peer.LocalAS,
			HoldTime:   f.localHoldOffer,
			Identifier: f.Peer.LocalIdentifier,
		}))
		f.HoldTimer.Reset(now, openSentHoldTime)
		f.transition(StateOpenSent, now)
	case TcpConnectionFails:
		// Back to Idle with ManualStart re-queued immediately. There is
		// no backoff delay: the retry runs on the next tick, and idle()
		// re-arms ConnectRetryTimer when it handles that ManualStart.
		f.ConnectRetryCounter++
		f.transition(StateIdle, now)
		f.events.push(queuedEvent{event: ManualStart})
	default:
		// ignored: not in the handled transition subset
	}
}

// openSent implements "OpenSent + BgpOpen" (spec.md section 4.2),
// negotiating hold time as min(local, remote) per section 9.
func (f *FSM) openSent(ev queuedEvent, now time.Time) {
	switch ev.event {
	case BgpOpen:
		if ev.open == nil {
			return
		}
		f.ConnectRetryTimer.Stop()
		f.send(message.EncodeKeepalive())
		f.HoldTime = negotiateHoldTime(f.localHoldOffer, ev.open.HoldTime)
		f.HoldTimer.Reset(now, f.HoldTime)
		f.rearmKeepalive(now)
		f.transition(StateOpenConfirm, now)
	case BgpHeaderErr:
		f.failSession(now, bgperr.Protocol, bgperr.Code(message.ReasonBadMessageLength))
	case BgpOpenMsgErr:
		f.failSession(now, bgperr.Protocol, bgperr.Code(message.ReasonUnsupportedOptionalParameter))
	case NotifMsgVerErr, NotifMsg:
		f.failSession(now, bgperr.Protocol, bgperr.Code(message.ReasonUnsupportedVersion))
	default:
	}
}

// openConfirm implements "OpenConfirm + KeepAliveMsg" (spec.md section
// 4.2), including the initial Loc-RIB load from the kernel.
func (f *FSM) openConfirm(ev queuedEvent, now time.Time) {
	switch ev.event {
	case KeepAliveMsg:
		f.HoldTimer.Reset(now, f.HoldTime)
		f.transition(StateEstablished, now)

		added, err := rib.PopulateFromKernel(context.Background(), f.LocRib, f.RouteTable, f.Peer.AdvertisedPrefix)
		if err != nil {
			f.failSession(now, bgperr.External, bgperr.CodeRouteEnumerateFailed)
			return
		}
		if added {
			f.events.push(queuedEvent{event: LocRibChanged})
		}
	case NotifMsg, BgpHeaderErr:
		f.failSession(now, bgperr.Protocol, bgperr.Code(message.ReasonBadMessageLength))
	default:
	}
}

// established implements the Established transitions of spec.md
// section 4.2: message ingest and the three RIB-pipeline-change
// events drive propagation and outbound synthesis.
func (f *FSM) established(ev queuedEvent, now time.Time) {
	switch ev.event {
	case KeepAliveMsg:
		f.HoldTimer.Reset(now, f.HoldTime)
	case UpdateMsg:
		if ev.update == nil {
			return
		}
		if rib.AddFromUpdateMessage(f.AdjRibIn, *ev.update) {
			f.events.push(queuedEvent{event: AdjRibInChanged})
		}
	case AdjRibInChanged:
		changed := rib.Propagate(f.AdjRibIn, f.LocRib)
		rib.InstallToKernel(context.Background(), f.LocRib, f.RouteTable, f.Log)
		if changed {
			f.events.push(queuedEvent{event: LocRibChanged})
		}
	case LocRibChanged:
		if rib.Propagate(f.LocRib, f.AdjRibOut) {
			f.events.push(queuedEvent{event: AdjRibOutChanged})
		}
	case AdjRibOutChanged:
		if u, ok := rib.BuildOutboundUpdate(f.AdjRibOut, f.Peer.LocalAS, f.Peer.LocalIdentifier); ok {
			f.send(message.EncodeUpdate(u))
		}
	case UpdateMsgErr:
		f.failSession(now, bgperr.Protocol, bgperr.Code(message.ReasonMalformedAttributeList))
	case NotifMsg, BgpHeaderErr:
		f.failSession(now, bgperr.Protocol, bgperr.Code(message.ReasonBadMessageLength))
	default:
		// spec.md section 4.2: "Unexpected events in Established ...
		// surface FiniteStateMachineError and restart the session."
		f.failSession(now, bgperr.FSM, bgperr.CodeFiniteStateMachine)
	}
}
