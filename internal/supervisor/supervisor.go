// Package supervisor runs the process-level poll loop that drives every
// configured peer's FSM: one non-blocking read and one event dispatch
// per peer per tick (spec.md section 5, "cooperative, single-threaded
// core").
package supervisor

import (
	"time"

	"go.uber.org/zap"

	"github.com/transitorykris/bgpd/internal/config"
	"github.com/transitorykris/bgpd/internal/fsm"
	"github.com/transitorykris/bgpd/internal/message"
	"github.com/transitorykris/bgpd/internal/rib"
)

// tickInterval is how often the loop sweeps every peer when Run drives
// its own clock (spec.md section 5's poll-tick model).
const tickInterval = 50 * time.Millisecond

// session pairs one peer's FSM with the read-side state the
// supervisor keeps for its connection.
type session struct {
	fsm       *fsm.FSM
	connector *tcpConnector
	recv      *message.ReceiveBuffer
}

// Supervisor owns every configured peer's session and the shared
// Loc-RIB they feed into and read from (spec.md section 3, "shared
// Loc-RIB reference").
type Supervisor struct {
	log      *zap.Logger
	locRib   *rib.Stage
	sessions []*session
}

// New builds a Supervisor for the given peers, sharing routeTable for
// kernel installs and log for every peer's FSM.
func New(peers []config.Peer, routeTable rib.RouteTable, log *zap.Logger) (*Supervisor, error) {
	s := &Supervisor{
		log:    log,
		locRib: rib.NewStage("loc-rib"),
	}
	for _, p := range peers {
		connector, err := newTCPConnector(p)
		if err != nil {
			return nil, err
		}
		sess := &session{
			fsm:       fsm.New(p, connector, routeTable, s.locRib, log),
			connector: connector,
		}
		s.sessions = append(s.sessions, sess)
	}
	return s, nil
}

// Start pushes ManualStart for every configured peer.
func (s *Supervisor) Start() {
	for _, sess := range s.sessions {
		sess.fsm.EnqueueManualStart()
	}
}

// Stop pushes ManualStop for every configured peer (spec.md section
// 4.2, driven by SIGINT/SIGTERM per SPEC_FULL.md section 6).
func (s *Supervisor) Stop() {
	for _, sess := range s.sessions {
		sess.fsm.EnqueueManualStop()
	}
}

// Close releases every peer's listening socket (Passive-mode peers
// only). Call after Idle reports true.
func (s *Supervisor) Close() {
	for _, sess := range s.sessions {
		sess.connector.close()
	}
}

// Idle reports whether every peer has returned to StateIdle, so the
// process can exit cleanly after Stop.
func (s *Supervisor) Idle() bool {
	for _, sess := range s.sessions {
		if sess.fsm.State != fsm.StateIdle {
			return false
		}
	}
	return true
}

// Tick drains one socket read and dispatches one event for every peer.
// It is the unit of work the process entrypoint's loop repeats.
func (s *Supervisor) Tick(now time.Time) {
	for _, sess := range s.sessions {
		s.pollConn(sess)
		sess.fsm.Tick(now)
	}
}

// Run drives Tick on tickInterval until stop is closed, a convenience
// loop for callers that don't need their own clock.
func (s *Supervisor) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

// pollConn reads whatever is waiting on sess's connection, without
// blocking, and feeds complete messages to its FSM. The FSM dials or
// accepts the connection itself (idle()); the supervisor reaches the
// same transport through Conn to do the actual reading.
func (s *Supervisor) pollConn(sess *session) {
	conn, ok := sess.fsm.Conn().(*tcpConn)
	if !ok {
		sess.recv = nil
		return
	}
	b, err := conn.read()
	if err != nil {
		sess.fsm.EnqueueDecodeError(message.ReasonBadMessageLength)
		sess.recv = nil
		return
	}
	if b == nil {
		return
	}
	if sess.recv == nil {
		sess.recv = message.NewReceiveBuffer()
	}
	sess.recv.Append(b)
	for {
		raw, err := sess.recv.Extract()
		if err == message.ErrNeedMore {
			return
		}
		if err != nil {
			sess.fsm.EnqueueDecodeError(reasonOf(err))
			return
		}
		msg, err := message.Decode(raw)
		if err != nil {
			sess.fsm.EnqueueDecodeError(reasonOf(err))
			continue
		}
		sess.fsm.EnqueueMessage(msg)
	}
}

func reasonOf(err error) string {
	if de, ok := err.(*message.DecodeError); ok {
		return de.Reason
	}
	return message.ReasonBadMessageLength
}
