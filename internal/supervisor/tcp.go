package supervisor

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/transitorykris/bgpd/internal/config"
	"github.com/transitorykris/bgpd/internal/fsm"
)

// bgpPort is the well-known BGP TCP port (RFC 4271 section 8).
const bgpPort = 179

// readDeadline bounds every socket read so the supervisor's poll loop
// never blocks waiting on one peer (spec.md section 5).
const readDeadline = 10 * time.Millisecond

// tcpConn adapts *net.TCPConn to fsm.Transport and the supervisor's
// own non-blocking read step.
type tcpConn struct {
	conn net.Conn
}

func (t *tcpConn) Write(b []byte) error {
	_, err := t.conn.Write(b)
	return err
}

func (t *tcpConn) Close() error {
	return t.conn.Close()
}

// read performs one non-blocking read attempt: it returns (nil, nil)
// on a deadline timeout (no data waiting) rather than an error, so the
// poll loop can treat "nothing to read yet" and "genuine failure"
// differently.
func (t *tcpConn) read() ([]byte, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		return nil, err
	}
	buf := make([]byte, 4096)
	n, err := t.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	return buf[:n], nil
}

// tcpConnector implements fsm.Connector against a real TCP socket on
// the BGP port (grounded on speaker/speaker.go's net.Listen/net.Dial
// use, generalized to per-peer dial/accept rather than one shared
// listener).
type tcpConnector struct {
	peer     config.Peer
	listener *net.TCPListener
}

// newTCPConnector binds a listener for Passive-mode peers up front so
// Accept can be called without racing a concurrent Listen. Active-mode
// peers get a nil listener; Dial needs none.
func newTCPConnector(peer config.Peer) (*tcpConnector, error) {
	c := &tcpConnector{peer: peer}
	if peer.Mode == config.Passive {
		addr := &net.TCPAddr{Port: bgpPort}
		l, err := net.ListenTCP("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("listening on port %d: %w", bgpPort, err)
		}
		c.listener = l
	}
	return c, nil
}

func (c *tcpConnector) Dial(ctx context.Context) (fsm.Transport, error) {
	var d net.Dialer
	remote := fmt.Sprintf("%s:%d", c.peer.RemoteIdentifier, bgpPort)
	conn, err := d.DialContext(ctx, "tcp", remote)
	if err != nil {
		return nil, err
	}
	return &tcpConn{conn: conn}, nil
}

func (c *tcpConnector) Accept(ctx context.Context) (fsm.Transport, error) {
	if c.listener == nil {
		return nil, fmt.Errorf("peer %s is not configured passive", c.peer.RemoteIdentifier)
	}
	deadline, ok := ctx.Deadline()
	if ok {
		c.listener.SetDeadline(deadline)
	}
	conn, err := c.listener.Accept()
	if err != nil {
		return nil, err
	}
	return &tcpConn{conn: conn}, nil
}

func (c *tcpConnector) close() {
	if c.listener != nil {
		c.listener.Close()
	}
}
