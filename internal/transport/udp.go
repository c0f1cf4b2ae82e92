// Package transport wraps the UDP socket: broadcast and unicast sends plus a
// blocking receive loop. Everything above it treats the network through the
// Sender contract only.
package transport

import (
	"context"
	"fmt"
	"net"
	"strings"

	"lsnpeer/internal/logging"
)

// DefaultPort is the fixed LSNP port.
const DefaultPort = 50999

// BufferSize caps one received datagram; larger payloads must be chunked.
const BufferSize = 1024

// Sender is the outbound half of the transport contract.
type Sender interface {
	SendUnicast(msg, ip string) error
	SendBroadcast(msg string) error
}

// Handler processes one received datagram. srcIP is the sender's address
// without port.
type Handler func(raw string, srcIP string)

// UDP is the concrete socket wrapper.
type UDP struct {
	port        int
	conn        *net.UDPConn
	broadcastIP string
}

// NewUDP binds the port on all interfaces with broadcast enabled.
func NewUDP(port int) (*UDP, error) {
	if port <= 0 {
		port = DefaultPort
	}
	lc := net.ListenConfig{Control: reuseAddr}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind udp port %d: %w", port, err)
	}
	conn := pc.(*net.UDPConn)
	return &UDP{port: port, conn: conn, broadcastIP: BroadcastIP()}, nil
}

func (u *UDP) Close() error { return u.conn.Close() }

func (u *UDP) SendUnicast(msg, ip string) error {
	addr := &net.UDPAddr{IP: net.ParseIP(ip), Port: u.port}
	if addr.IP == nil {
		return fmt.Errorf("bad unicast ip %q", ip)
	}
	_, err := u.conn.WriteToUDP([]byte(msg), addr)
	return err
}

func (u *UDP) SendBroadcast(msg string) error {
	addr := &net.UDPAddr{IP: net.ParseIP(u.broadcastIP), Port: u.port}
	_, err := u.conn.WriteToUDP([]byte(msg), addr)
	return err
}

// Listen runs the blocking receive loop until ctx is cancelled or the socket
// closes. This is the only loop allowed to block indefinitely; the handler
// must return quickly or hand off to a worker.
func (u *UDP) Listen(ctx context.Context, handle Handler) {
	go func() {
		<-ctx.Done()
		_ = u.conn.Close()
	}()
	buf := make([]byte, BufferSize)
	for {
		n, src, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Logf("udp receive failed: %v", err)
			return
		}
		handle(string(buf[:n]), src.IP.String())
	}
}

// LocalIP discovers the outbound interface address, falling back to loopback.
func LocalIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// BroadcastIP derives the local /24 broadcast address from the outbound
// interface, falling back to the limited broadcast address.
func BroadcastIP() string {
	local := LocalIP()
	parts := strings.Split(local, ".")
	if len(parts) != 4 || local == "127.0.0.1" {
		return "255.255.255.255"
	}
	parts[3] = "255"
	return strings.Join(parts, ".")
}
