//go:build unix

package broadlink

import (
	"context"
	"net"
	"syscall"
)

// listenBroadcast opens a UDP socket allowed to send to broadcast addresses.
func listenBroadcast(addr string) (net.PacketConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var serr error
			if err := c.Control(func(fd uintptr) {
				serr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
			}); err != nil {
				return err
			}
			return serr
		},
	}
	return lc.ListenPacket(context.Background(), "udp4", addr)
}
