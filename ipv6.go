package dnstracer

import (
	"net"
	"sync"
	"time"
)

var (
	ipv6Once      sync.Once
	ipv6Available bool
)

// haveIPv6 reports whether the host has working IPv6 egress, detected once
// per process by attempting a UDP connect to a well-known IPv6 destination.
// A failed connect puts the process in IPv4-only mode for the remainder of
// its lifetime.
func haveIPv6() bool {
	ipv6Once.Do(func() {
		// k.root-servers.net.
		conn, err := net.DialTimeout("udp6", "[2001:7fd::1]:53", 1*time.Second)
		if err != nil {
			ipv6Available = false
			return
		}
		conn.Close()
		ipv6Available = true
	})
	return ipv6Available
}
