package broadlink

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// BroadcastAddress is the default discovery target.
const BroadcastAddress = "255.255.255.255"

// DiscoverOptions configures a discovery probe.
type DiscoverOptions struct {
	// Target is a unit IP for a unicast probe, or BroadcastAddress.
	Target string

	// Port overrides DefaultPort.
	Port int

	// LocalIP is announced in the hello packet and used to bind the socket.
	// Empty selects the interface routing to Target.
	LocalIP string

	// Timeout is how long to collect replies. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Discovered is one unit that answered a hello probe.
type Discovered struct {
	Type   uint16
	Host   string
	MAC    net.HardwareAddr
	Name   string
	Locked bool
}

// Model returns the unit's model name, if known.
func (d Discovered) Model() string { return Model(d.Type) }

// Discover sends a hello probe and collects replies until the timeout
// expires or ctx is cancelled. Replies from the same MAC are reported once.
func Discover(ctx context.Context, opts DiscoverOptions) ([]Discovered, error) {
	if opts.Target == "" {
		opts.Target = BroadcastAddress
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	target, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(opts.Target, strconv.Itoa(opts.Port)))
	if err != nil {
		return nil, fmt.Errorf("%w: target %q: %w", ErrInvalidAddress, opts.Target, err)
	}

	localIP := net.ParseIP(opts.LocalIP).To4()
	if localIP == nil {
		localIP = routeTo(target)
	}

	conn, err := listenBroadcast(net.JoinHostPort(opts.LocalIP, "0"))
	if err != nil {
		return nil, fmt.Errorf("opening discovery socket: %w", err)
	}
	defer conn.Close() //nolint:errcheck // Best effort cleanup

	port := conn.LocalAddr().(*net.UDPAddr).Port
	if _, err := conn.WriteTo(helloPacket(time.Now(), localIP, port), target); err != nil {
		return nil, fmt.Errorf("sending hello to %s: %w", target, err)
	}

	deadline := time.Now().Add(opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now()) //nolint:errcheck // Unblocks ReadFrom on cancel
	})
	defer stop()

	var found []Discovered
	seen := make(map[string]bool)
	buf := make([]byte, maxPacket)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				break
			}
			return found, fmt.Errorf("reading discovery replies: %w", err)
		}
		d, ok := parseHelloReply(buf[:n], from)
		if !ok || seen[d.MAC.String()] {
			continue
		}
		seen[d.MAC.String()] = true
		found = append(found, d)
	}

	if err := ctx.Err(); err != nil && len(found) == 0 {
		return nil, err
	}
	return found, nil
}

// helloPacket builds the discovery probe announcing ip:port.
func helloPacket(now time.Time, ip net.IP, port int) []byte {
	packet := make([]byte, helloLen)

	_, offset := now.Zone()
	binary.LittleEndian.PutUint32(packet[0x08:], uint32(int32(offset/3600))) //nolint:gosec // signed hours fit easily
	binary.LittleEndian.PutUint16(packet[0x0c:], uint16(now.Year()))         //nolint:gosec // calendar year
	packet[0x0e] = byte(now.Minute())
	packet[0x0f] = byte(now.Hour())
	packet[0x10] = byte(now.Year() % 100)
	packet[0x11] = byte(isoWeekday(now))
	packet[0x12] = byte(now.Day())
	packet[0x13] = byte(now.Month())

	if ip4 := ip.To4(); ip4 != nil {
		copy(packet[0x18:0x1c], reverse(ip4))
	}
	binary.LittleEndian.PutUint16(packet[0x1c:], uint16(port)) //nolint:gosec // port range
	packet[offCommand] = cmdHello

	binary.LittleEndian.PutUint16(packet[offChecksum:], checksum(packet))
	return packet
}

// parseHelloReply extracts unit details from a hello reply.
func parseHelloReply(resp []byte, from net.Addr) (Discovered, bool) {
	if len(resp) < offHelloName {
		return Discovered{}, false
	}
	udp, ok := from.(*net.UDPAddr)
	if !ok {
		return Discovered{}, false
	}

	name := resp[offHelloName:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	return Discovered{
		Type:   binary.LittleEndian.Uint16(resp[offHelloDevType:]),
		Host:   udp.IP.String(),
		MAC:    net.HardwareAddr(reverse(resp[offHelloMAC : offHelloMAC+6])),
		Name:   string(name),
		Locked: resp[len(resp)-1] != 0,
	}, true
}

// routeTo returns the local address the kernel would use to reach target.
// No packets are sent by a UDP dial.
func routeTo(target *net.UDPAddr) net.IP {
	c, err := net.DialUDP("udp4", nil, target)
	if err != nil {
		return net.IPv4zero
	}
	defer c.Close() //nolint:errcheck // Best effort cleanup
	return c.LocalAddr().(*net.UDPAddr).IP.To4()
}

func isoWeekday(t time.Time) int {
	if wd := t.Weekday(); wd != time.Sunday {
		return int(wd)
	}
	return 7
}
