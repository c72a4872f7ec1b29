//go:build !unix

package broadlink

import "net"

func listenBroadcast(addr string) (net.PacketConn, error) {
	return net.ListenPacket("udp4", addr)
}
