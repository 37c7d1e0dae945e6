// Command bgpd runs a BGP-4 speaker against the peers named in a
// configuration file (spec.md section 6, "Process surface").
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/transitorykris/bgpd/internal/config"
	"github.com/transitorykris/bgpd/internal/logging"
	"github.com/transitorykris/bgpd/internal/netlinkrt"
	"github.com/transitorykris/bgpd/internal/supervisor"
)

// shutdownPoll is how often main checks whether every peer has
// returned to Idle after Stop, before giving up and exiting anyway.
const shutdownPoll = 50 * time.Millisecond

// shutdownTimeout bounds how long main waits for a clean Idle after
// SIGINT/SIGTERM before exiting regardless.
const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <config-file>\n", os.Args[0])
		os.Exit(2)
	}

	level := os.Getenv("BGPD_LOG_LEVEL")
	log, err := logging.New(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bgpd: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	f, err := os.Open(os.Args[1])
	if err != nil {
		log.Sugar().Fatalf("opening config file: %v", err)
	}
	peers, err := config.Parse(f)
	f.Close()
	if err != nil {
		log.Sugar().Fatalf("parsing config file: %v", err)
	}
	if len(peers) == 0 {
		log.Sugar().Fatal("config file names no peers")
	}

	rt, err := netlinkrt.Dial()
	if err != nil {
		log.Sugar().Fatalf("dialing netlink: %v", err)
	}
	defer rt.Close()

	sup, err := supervisor.New(peers, rt, log)
	if err != nil {
		log.Sugar().Fatalf("building supervisor: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sup.Start()

	ticker := time.NewTicker(shutdownPoll)
	defer ticker.Stop()

	stopping := false
	var stopDeadline time.Time

	for {
		select {
		case sig := <-sigCh:
			log.Info("received signal, stopping", zap.String("signal", sig.String()))
			sup.Stop()
			stopping = true
			stopDeadline = time.Now().Add(shutdownTimeout)
		case now := <-ticker.C:
			sup.Tick(now)
			if stopping && (sup.Idle() || now.After(stopDeadline)) {
				sup.Close()
				return
			}
		}
	}
}
