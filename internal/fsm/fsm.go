// Package fsm implements the per-peer BGP finite state machine of
// spec.md section 4.2: Idle, Connect, OpenSent, OpenConfirm, and
// Established, driven by a FIFO event queue and three wall-clock
// timers. Active is kept as a named state but never entered (spec.md
// section 9).
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

// State is one node of the FSM (spec.md section 4.2, "States").
type State int

const (
	StateIdle State = iota
	StateConnect
	StateActive
	StateOpenSent
	StateOpenConfirm
	StateEstablished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnect:
		return "Connect"
	case StateActive:
		return "Active"
	case StateOpenSent:
		return "OpenSent"
	case StateOpenConfirm:
		return "OpenConfirm"
	case StateEstablished:
		return "Established"
	default:
		return "Unknown"
	}
}

const (
	connectRetryTime = 120 * time.Second
	openSentHoldTime = 240 * time.Second
	dialTimeout      = 5 * time.Second
)

// Transport is the BGP TCP connection the FSM writes encoded messages
// to. The supervisor owns reading; the FSM only ever writes (spec.md
// section 4.4).
type Transport interface {
	Write(b []byte) error
	Close() error
}

// Connector establishes the Transport for a peer when the FSM leaves
// Idle: Dial for Active mode, Accept for Passive mode (spec.md section
// 4.2, "Idle + ManualStart").
type Connector interface {
	Dial(ctx context.Context) (Transport, error)
	Accept(ctx context.Context) (Transport, error)
}

// FSM is one peer's complete session state: its place in the protocol
// state machine, its timers, its event queue, and the three RIB stages
// it owns (spec.md section 3, "Per FSM", and section 4.3).
type FSM struct {
	Peer  config.Peer
	State State

	// Log must not be nil; pass zap.NewNop() to discard output.
	Log *zap.Logger

	ConnectRetryCounter int
	ConnectRetryTimer   Timer
	HoldTimer           Timer
	KeepaliveTimer      Timer

	// HoldTime is the negotiated value (spec.md section 9: min(local,
	// remote)), fixed once OpenSent completes.
	HoldTime       time.Duration
	localHoldOffer uint16

	AdjRibIn  *rib.Stage
	AdjRibOut *rib.Stage
	LocRib    *rib.Stage

	RouteTable rib.RouteTable
	Connector  Connector

	conn   Transport
	events eventQueue
}

// New creates an FSM in Idle for peer, sharing locRib with the rest of
// the supervisor (spec.md section 4.4: "a shared Loc-RIB reference").
func New(peer config.Peer, connector Connector, routeTable rib.RouteTable, locRib *rib.Stage, log *zap.Logger) *FSM {
	return &FSM{
		Peer:       peer,
		State:      StateIdle,
		Log:        log,
		AdjRibIn:   rib.NewStage("adj-rib-in"),
		AdjRibOut:  rib.NewStage("adj-rib-out"),
		LocRib:     locRib,
		RouteTable: routeTable,
		Connector:  connector,
	}
}

// EnqueueManualStart pushes the administrative ManualStart event.
func (f *FSM) EnqueueManualStart() {
	f.events.push(queuedEvent{event: ManualStart})
}

// EnqueueManualStop pushes the administrative ManualStop event (driven
// by the process's SIGINT/SIGTERM handler per SPEC_FULL.md section 6).
func (f *FSM) EnqueueManualStop() {
	f.events.push(queuedEvent{event: ManualStop})
}

// EnqueueMessage translates one decoded message into the FIFO event it
// represents and pushes it (spec.md section 4.4, "handle_packet").
func (f *FSM) EnqueueMessage(msg message.Message) {
	switch {
	case msg.Open != nil:
		f.events.push(queuedEvent{event: BgpOpen, open: msg.Open})
	case msg.Update != nil:
		f.events.push(queuedEvent{event: UpdateMsg, update: msg.Update})
	case msg.Notification != nil:
		f.events.push(queuedEvent{event: NotifMsg, notif: msg.Notification})
	default:
		f.events.push(queuedEvent{event: KeepAliveMsg})
	}
}

// EnqueueDecodeError translates a codec failure into the matching
// *Err event (spec.md section 4.2's message events).
func (f *FSM) EnqueueDecodeError(reason string) {
	switch reason {
	case message.ReasonBadMessageType, message.ReasonBadMessageLength:
		f.events.push(queuedEvent{event: BgpHeaderErr})
	case message.ReasonUnsupportedVersion:
		f.events.push(queuedEvent{event: NotifMsgVerErr})
	case message.ReasonUnsupportedOptionalParameter:
		f.events.push(queuedEvent{event: BgpOpenMsgErr})
	default:
		f.events.push(queuedEvent{event: UpdateMsgErr})
	}
}

// PendingEvents reports how many events are queued, for the supervisor
// to decide whether this peer has work this tick.
func (f *FSM) PendingEvents() int { return f.events.len() }

// Conn returns the session's current transport, or nil when no
// connection is established. The FSM only ever writes to it (idle()
// is the only place conn is assigned); the supervisor owns reading
// and uses this accessor to reach the same connection (spec.md
// section 4.4).
func (f *FSM) Conn() Transport { return f.conn }

// Tick checks the three timers for expiry, queuing the corresponding
// event, then drains and dispatches exactly one event (spec.md section
// 4.4, "drain one event" per poll tick).
func (f *FSM) Tick(now time.Time) {
	f.checkTimers(now)
	ev, ok := f.events.pop()
	if !ok {
		return
	}
	f.dispatch(ev, now)
}

func (f *FSM) checkTimers(now time.Time) {
	if f.ConnectRetryTimer.Expired(now) {
		f.ConnectRetryTimer.Stop()
		f.events.push(queuedEvent{event: ConnectRetryTimerExpires})
	}
	if f.HoldTimer.Expired(now) {
		f.HoldTimer.Stop()
		f.events.push(queuedEvent{event: HoldTimerExpires})
	}
	if f.KeepaliveTimer.Expired(now) {
		f.KeepaliveTimer.Stop()
		f.events.push(queuedEvent{event: KeepaliveTimerExpires})
	}
}

func (f *FSM) dispatch(ev queuedEvent, now time.Time) {
	if ev.event == ManualStop {
		f.handleManualStop(now)
		return
	}
	if ev.event == HoldTimerExpires && f.State != StateIdle && f.State != StateConnect {
		f.failSession(now, bgperr.TimerExpired, bgperr.CodeHoldTimerExpired)
		return
	}
	if ev.event == KeepaliveTimerExpires && (f.State == StateOpenConfirm || f.State == StateEstablished) {
		f.send(message.EncodeKeepalive())
		f.rearmKeepalive(now)
		return
	}

	switch f.State {
	case StateIdle:
		f.idle(ev, now)
	case StateConnect:
		f.connect(ev, now)
	case StateActive:
		// spec.md section 9: Active is never entered by this speaker's
		// transition table; reaching here is an implementation defect.
		panic("bgpd: fsm entered StateActive, which no transition drives")
	case StateOpenSent:
		f.openSent(ev, now)
	case StateOpenConfirm:
		f.openConfirm(ev, now)
	case StateEstablished:
		f.established(ev, now)
	}
}

func (f *FSM) rearmKeepalive(now time.Time) {
	if f.HoldTime > 0 {
		f.KeepaliveTimer.Reset(now, f.HoldTime/3)
	}
}

func (f *FSM) transition(to State, now time.Time) {
	if f.Log != nil {
		f.Log.Info("fsm transition",
			zap.Stringer("peer", f.Peer.RemoteIdentifier),
			zap.Stringer("from", f.State),
			zap.Stringer("to", to))
	}
	f.State = to
}

func (f *FSM) send(b []byte) {
	if f.conn == nil {
		return
	}
	if err := f.conn.Write(b); err != nil {
		f.failSession(time.Now(), bgperr.Transport, bgperr.CodeUnexpectedEOF)
	}
}

// handleManualStop implements "Any state + ManualStop" (spec.md
// section 4.2): NOTIFICATION(Cease), close, reset, return to Idle.
func (f *FSM) handleManualStop(now time.Time) {
	f.notify(message.ErrCodeCease, 0)
	f.closeConn()
	f.ConnectRetryCounter = 0
	f.ConnectRetryTimer.Stop()
	f.HoldTimer.Stop()
	f.KeepaliveTimer.Stop()
	f.transition(StateIdle, now)
}

// failSession tears the session down on a protocol, transport, or
// timer failure (spec.md section 4.2, "Failure semantics"): emit
// NOTIFICATION with the corresponding subcode, increment
// connect_retry_counter, return to Idle, and re-queue ManualStart so
// the session restarts. The restart is queued immediately, with no
// backoff delay.
func (f *FSM) failSession(now time.Time, kind bgperr.Kind, code bgperr.Code) {
	errCode, errSubcode := bgperr.NotificationCode(kind, code)
	f.notify(errCode, errSubcode)
	f.closeConn()
	f.ConnectRetryCounter++
	f.ConnectRetryTimer.Stop()
	f.HoldTimer.Stop()
	f.KeepaliveTimer.Stop()
	if f.Log != nil {
		f.Log.Warn("session torn down",
			zap.Stringer("peer", f.Peer.RemoteIdentifier),
			zap.String("kind", kind.String()),
			zap.String("code", string(code)))
	}
	f.transition(StateIdle, now)
	f.events.push(queuedEvent{event: ManualStart})
}

// notify sends a NOTIFICATION best-effort: the session is already
// being torn down, so a write failure here is not itself grounds for
// another teardown.
func (f *FSM) notify(code, subcode byte) {
	if f.conn == nil {
		return
	}
	_ = f.conn.Write(message.EncodeNotification(message.Notification{Code: code, Subcode: subcode}))
}

func (f *FSM) closeConn() {
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}

func negotiateHoldTime(local, remote uint16) time.Duration {
	// spec.md section 9: negotiated as min(local offered, remote
	// offered); a value of 0 from either side disables both timers.
	hold := local
	if remote < hold {
		hold = remote
	}
	return time.Duration(hold) * time.Second
}
