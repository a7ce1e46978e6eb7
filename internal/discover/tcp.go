package discover

import (
	"context"
	"net"
	"strconv"
	"time"
)

// TCPProber treats a device as reachable when a TCP connection to Port
// completes within Timeout. Useful where ICMP is filtered but the SSH
// daemon is listening.
type TCPProber struct {
	Port    int
	Timeout time.Duration
}

// Probe dials ip:Port and closes the connection immediately.
func (p *TCPProber) Probe(ctx context.Context, ip net.IP) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	d := net.Dialer{Timeout: timeout}
	target := net.JoinHostPort(ip.String(), strconv.Itoa(p.Port))
	conn, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
