package fsm

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/transitorykris/bgpd/internal/config"
	"github.com/transitorykris/bgpd/internal/message"
	"github.com/transitorykris/bgpd/internal/rib"
)

type fakeTransport struct {
	written  [][]byte
	closed   bool
	writeErr error
}

func (t *fakeTransport) Write(b []byte) error {
	if t.writeErr != nil {
		return t.writeErr
	}
	t.written = append(t.written, append([]byte(nil), b...))
	return nil
}

func (t *fakeTransport) Close() error {
	t.closed = true
	return nil
}

type fakeConnector struct {
	transport *fakeTransport
	dialErr   error
}

func (c *fakeConnector) Dial(ctx context.Context) (Transport, error) {
	if c.dialErr != nil {
		return nil, c.dialErr
	}
	return c.transport, nil
}

func (c *fakeConnector) Accept(ctx context.Context) (Transport, error) {
	return c.Dial(ctx)
}

type fakeRouteTable struct{}

func (fakeRouteTable) Routes(ctx context.Context) ([]rib.KernelRoute, error) { return nil, nil }
func (fakeRouteTable) AddRoute(ctx context.Context, r rib.KernelRoute) error { return nil }

type failingRouteTable struct{}

func (failingRouteTable) Routes(ctx context.Context) ([]rib.KernelRoute, error) {
	return nil, errors.New("netlink dial failed")
}
func (failingRouteTable) AddRoute(ctx context.Context, r rib.KernelRoute) error { return nil }

func testPeer() config.Peer {
	return config.Peer{
		LocalAS:          65001,
		LocalIdentifier:  netip.MustParseAddr("10.0.0.1"),
		RemoteAS:         65002,
		RemoteIdentifier: netip.MustParseAddr("10.0.0.2"),
		Mode:             config.Active,
		AdvertisedPrefix: netip.MustParsePrefix("10.1.0.0/16"),
	}
}

func newTestFSM(t *testing.T) (*FSM, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	f := New(testPeer(), &fakeConnector{transport: tr}, fakeRouteTable{}, rib.NewStage("loc-rib"), zap.NewNop())
	return f, tr
}

// Invariant 6 — FSM liveness from ManualStart (spec.md section 8):
// starting in Idle, ManualStart drives the FSM through Connect,
// OpenSent, and OpenConfirm to Established once the peer completes the
// handshake.
func TestFSMLivenessFromManualStart(t *testing.T) {
	f, tr := newTestFSM(t)
	now := time.Unix(1000, 0)

	f.EnqueueManualStart()
	f.Tick(now)
	if f.State != StateConnect {
		t.Fatalf("expected Connect after ManualStart, got %s", f.State)
	}

	// idle() already enqueued TcpConnectionConfirmed synchronously.
	f.Tick(now)
	if f.State != StateOpenSent {
		t.Fatalf("expected OpenSent, got %s", f.State)
	}
	if len(tr.written) != 1 {
		t.Fatalf("expected one OPEN written, got %d", len(tr.written))
	}

	f.EnqueueMessage(message.Message{Open: &message.Open{
		Version: 4, MyAS: 65002, HoldTime: 180, Identifier: netip.MustParseAddr("10.0.0.2"),
	}})
	f.Tick(now)
	if f.State != StateOpenConfirm {
		t.Fatalf("expected OpenConfirm, got %s", f.State)
	}
	if f.HoldTime != 180*time.Second {
		t.Fatalf("expected negotiated hold time 180s (min(240,180)), got %v", f.HoldTime)
	}
	if len(tr.written) != 2 {
		t.Fatalf("expected a KEEPALIVE written, got %d messages", len(tr.written))
	}

	f.EnqueueMessage(message.Message{Header: message.Header{Type: message.TypeKeepalive}})
	f.Tick(now)
	if f.State != StateEstablished {
		t.Fatalf("expected Established, got %s", f.State)
	}
}

// S4 — FSM cold start (spec.md section 8): the sequence ManualStart,
// TcpConnectionConfirmed-already-enqueued, OPEN, KEEPALIVE reaches
// Established with no outstanding events.
func TestFSMColdStartS4(t *testing.T) {
	f, _ := newTestFSM(t)
	now := time.Unix(2000, 0)

	f.EnqueueManualStart()
	f.Tick(now)
	f.Tick(now)
	f.EnqueueMessage(message.Message{Open: &message.Open{
		Version: 4, MyAS: 65002, HoldTime: 240, Identifier: netip.MustParseAddr("10.0.0.2"),
	}})
	f.Tick(now)
	f.EnqueueMessage(message.Message{Header: message.Header{Type: message.TypeKeepalive}})
	f.Tick(now)

	if f.State != StateEstablished {
		t.Fatalf("expected Established, got %s", f.State)
	}
	if f.PendingEvents() != 0 {
		t.Fatalf("expected no pending events at rest, got %d", f.PendingEvents())
	}
}

func TestManualStopReturnsToIdleFromAnyState(t *testing.T) {
	f, tr := newTestFSM(t)
	now := time.Unix(3000, 0)

	f.EnqueueManualStart()
	f.Tick(now) // -> Connect, dials, enqueues TcpConnectionConfirmed
	f.Tick(now) // -> OpenSent

	f.EnqueueManualStop()
	f.Tick(now)

	if f.State != StateIdle {
		t.Fatalf("expected Idle after ManualStop, got %s", f.State)
	}
	if !tr.closed {
		t.Error("expected the transport to be closed")
	}
	last := tr.written[len(tr.written)-1]
	msg, err := message.Decode(last)
	if err != nil {
		t.Fatalf("decode final message: %v", err)
	}
	if msg.Notification == nil || msg.Notification.Code != message.ErrCodeCease {
		t.Fatalf("expected a Cease NOTIFICATION, got %+v", msg)
	}
}

func TestHoldTimerExpiryTearsDownEstablishedSession(t *testing.T) {
	f, _ := newTestFSM(t)
	f.State = StateEstablished
	f.HoldTime = 90 * time.Second
	start := time.Unix(4000, 0)
	f.HoldTimer.Reset(start, f.HoldTime)

	f.Tick(start.Add(91 * time.Second))

	if f.State != StateIdle {
		t.Fatalf("expected Idle after hold timer expiry, got %s", f.State)
	}
	if f.ConnectRetryCounter != 1 {
		t.Fatalf("expected connect_retry_counter incremented, got %d", f.ConnectRetryCounter)
	}
}

// A failed initial kernel route load on entering Established (spec.md
// section 7's ExternalError) must tear the session down, not merely
// log and leave the FSM stuck in Established.
func TestKernelEnumerationFailureTearsDownSession(t *testing.T) {
	tr := &fakeTransport{}
	f := New(testPeer(), &fakeConnector{transport: tr}, failingRouteTable{}, rib.NewStage("loc-rib"), zap.NewNop())
	now := time.Unix(6000, 0)

	f.EnqueueManualStart()
	f.Tick(now) // -> Connect, dials, enqueues TcpConnectionConfirmed
	f.Tick(now) // -> OpenSent

	f.EnqueueMessage(message.Message{Open: &message.Open{
		Version: 4, MyAS: 65002, HoldTime: 180, Identifier: netip.MustParseAddr("10.0.0.2"),
	}})
	f.Tick(now) // -> OpenConfirm

	f.EnqueueMessage(message.Message{Header: message.Header{Type: message.TypeKeepalive}})
	f.Tick(now) // Established briefly, then torn down by the failed enumeration

	if f.State != StateIdle {
		t.Fatalf("expected Idle after kernel enumeration failure, got %s", f.State)
	}
	last := tr.written[len(tr.written)-1]
	msg, err := message.Decode(last)
	if err != nil {
		t.Fatalf("decode final message: %v", err)
	}
	if msg.Notification == nil || msg.Notification.Code != message.ErrCodeCease {
		t.Fatalf("expected a Cease NOTIFICATION, got %+v", msg)
	}
}

func TestUnexpectedEventInEstablishedIsFiniteStateMachineError(t *testing.T) {
	f, tr := newTestFSM(t)
	f.conn = tr
	f.State = StateEstablished
	now := time.Unix(5000, 0)

	f.events.push(queuedEvent{event: TcpConnectionFails})
	f.Tick(now)

	if f.State != StateIdle {
		t.Fatalf("expected Idle after FSM error, got %s", f.State)
	}
	msg, err := message.Decode(tr.written[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Notification == nil || msg.Notification.Code != message.ErrCodeFiniteStateMachine {
		t.Fatalf("expected a Finite State Machine Error NOTIFICATION, got %+v", msg)
	}
}
