package main

import (
	"context"
	"net"
	"time"

	"github.com/spendbar/spendbar/internal/connectivity"
)

const (
	probeAddr     = "1.1.1.1:443"
	probeInterval = 15 * time.Second
	probeTimeout  = 5 * time.Second
)

// runNetProbe stands in for an OS reachability observer: it dials out
// periodically and pushes path observations into the monitor, which does
// the edge detection.
func runNetProbe(ctx context.Context, monitor *connectivity.Monitor) {
	probe := func() {
		dialer := net.Dialer{Timeout: probeTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", probeAddr)
		if err != nil {
			monitor.Update(connectivity.PathStatus{Connected: false})
			return
		}
		conn.Close()
		monitor.Update(connectivity.PathStatus{Connected: true, InterfaceType: "default"})
	}

	probe()
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
