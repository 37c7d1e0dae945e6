package supervisor

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/transitorykris/bgpd/internal/config"
)

func TestTCPConnectorDialAcceptRoundTrip(t *testing.T) {
	passivePeer := config.Peer{Mode: config.Passive}
	passive, err := newTCPConnector(passivePeer)
	if err != nil {
		t.Fatalf("newTCPConnector (passive): %v", err)
	}
	defer passive.close()

	activePeer := config.Peer{Mode: config.Active, RemoteIdentifier: netip.MustParseAddr("127.0.0.1")}
	active, err := newTCPConnector(activePeer)
	if err != nil {
		t.Fatalf("newTCPConnector (active): %v", err)
	}

	acceptErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := passive.Accept(ctx)
		acceptErr <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	transport, err := active.Dial(ctx)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer transport.Close()

	if err := <-acceptErr; err != nil {
		t.Fatalf("Accept: %v", err)
	}
}
