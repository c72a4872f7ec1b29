package broadlink

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"strconv"
	"sync"
	"time"
)

// Client defaults.
const (
	DefaultTimeout = 5 * time.Second

	// sendAttempts is how many times a request is written before giving up.
	sendAttempts = 2

	maxPacket = 2048
)

// Config identifies a unit to open.
type Config struct {
	// Type is the device type code, e.g. 0x2737 for an RM Mini.
	Type uint16

	// Host is the unit's IP address or hostname.
	Host string

	// Port overrides DefaultPort.
	Port int

	// MAC is the unit's hardware address.
	MAC net.HardwareAddr

	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration

	// LocalIP binds the client socket to one interface.
	LocalIP string
}

// Client is an authenticated session with one unit.
type Client struct {
	cfg  Config
	addr *net.UDPAddr
	rm4  bool

	mu     sync.Mutex
	conn   net.PacketConn
	count  uint16
	id     uint32
	key    []byte
	closed bool
}

// Open dials the unit described by cfg and authenticates.
//
// Parameters:
//   - ctx: bounds the handshake
//   - cfg: unit identity and transport options
//
// Returns:
//   - *Client: ready for SendData / EnterLearning / CheckData
//   - error: ErrInvalidAddress, ErrTimeout, ErrAuthFailed or a socket error
func Open(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if len(cfg.MAC) != 6 {
		return nil, fmt.Errorf("%w: mac %q", ErrInvalidAddress, cfg.MAC)
	}

	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("%w: host %q: %w", ErrInvalidAddress, cfg.Host, err)
	}

	conn, err := net.ListenPacket("udp4", net.JoinHostPort(cfg.LocalIP, "0"))
	if err != nil {
		return nil, fmt.Errorf("opening socket: %w", err)
	}

	c := &Client{
		cfg:   cfg,
		addr:  addr,
		rm4:   IsRM4(cfg.Type),
		conn:  conn,
		count: uint16(rand.IntN(0x8000)) | 0x8000, //nolint:gosec // packet counter, not security sensitive
		key:   initialKey,
	}

	if err := c.auth(ctx); err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}
	return c, nil
}

// Type returns the device type code.
func (c *Client) Type() uint16 { return c.cfg.Type }

// Host returns the unit's address.
func (c *Client) Host() string { return c.cfg.Host }

// MAC returns the unit's hardware address.
func (c *Client) MAC() net.HardwareAddr { return c.cfg.MAC }

// Close releases the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// SendData transmits a stored IR/RF packet.
func (c *Client) SendData(ctx context.Context, packet []byte) error {
	_, err := c.command(ctx, rmSendData, packet)
	return err
}

// EnterLearning puts the unit into IR capture mode.
func (c *Client) EnterLearning(ctx context.Context) error {
	_, err := c.command(ctx, rmEnterLearning, nil)
	return err
}

// CheckData polls for a captured code. It returns ErrNoData or
// ErrStorageNotReady (wrapped in a *DeviceError) while nothing is available.
func (c *Client) CheckData(ctx context.Context) ([]byte, error) {
	return c.command(ctx, rmCheckData, nil)
}

func (c *Client) auth(ctx context.Context) error {
	payload := make([]byte, 0x50)
	for i := 0x04; i < 0x13; i++ {
		payload[i] = 0x31
	}
	payload[0x1e] = 0x01
	payload[0x2d] = 0x01
	copy(payload[0x30:], "Test 1")

	resp, err := c.request(ctx, cmdAuth, payload)
	if err != nil {
		var de *DeviceError
		if errors.As(err, &de) {
			return fmt.Errorf("%w: %w", ErrAuthFailed, err)
		}
		return err
	}
	if len(resp) < 0x14 {
		return fmt.Errorf("%w: auth payload %d bytes", ErrAuthFailed, len(resp))
	}

	c.mu.Lock()
	c.id = binary.LittleEndian.Uint32(resp[0x00:0x04])
	c.key = append([]byte(nil), resp[0x04:0x14]...)
	c.mu.Unlock()
	return nil
}

// command wraps an RM payload command, adding the family-specific prefix.
func (c *Client) command(ctx context.Context, cmd uint32, data []byte) ([]byte, error) {
	var payload []byte
	if c.rm4 {
		payload = binary.LittleEndian.AppendUint16(payload, uint16(len(data)+4))
	}
	payload = binary.LittleEndian.AppendUint32(payload, cmd)
	payload = append(payload, data...)

	resp, err := c.request(ctx, cmdData, payload)
	if err != nil {
		return nil, err
	}

	if c.rm4 {
		if len(resp) < 6 {
			return nil, fmt.Errorf("%w: rm4 payload %d bytes", ErrInvalidResponse, len(resp))
		}
		n := int(binary.LittleEndian.Uint16(resp[0:2]))
		if n+2 > len(resp) || n < 4 {
			return nil, fmt.Errorf("%w: rm4 length %d exceeds payload %d", ErrInvalidResponse, n, len(resp))
		}
		return resp[6 : n+2], nil
	}

	if len(resp) < 4 {
		return nil, fmt.Errorf("%w: payload %d bytes", ErrInvalidResponse, len(resp))
	}
	return resp[4:], nil
}

// request performs one round trip and returns the decrypted payload.
func (c *Client) request(ctx context.Context, command uint16, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	c.count = (c.count + 1) | 0x8000
	packet, err := frame{
		devType: c.cfg.Type,
		command: command,
		count:   c.count,
		mac:     c.cfg.MAC,
		id:      c.id,
		key:     c.key,
		payload: payload,
	}.encode()
	if err != nil {
		return nil, err
	}

	raw, err := c.roundTrip(ctx, packet)
	if err != nil {
		return nil, err
	}

	resp, err := decodeResponse(raw, c.key)
	if err != nil {
		return nil, err
	}
	if resp.code != 0 {
		return nil, &DeviceError{Command: command, Code: resp.code}
	}
	return resp.body, nil
}

// roundTrip writes packet and waits for a reply from the unit, resending
// once if the first attempt times out. Callers hold c.mu.
func (c *Client) roundTrip(ctx context.Context, packet []byte) ([]byte, error) {
	buf := make([]byte, maxPacket)

	for attempt := 0; attempt < sendAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		deadline := time.Now().Add(c.cfg.Timeout / sendAttempts)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := c.conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("setting deadline: %w", err)
		}

		if _, err := c.conn.WriteTo(packet, c.addr); err != nil {
			return nil, fmt.Errorf("writing to %s: %w", c.addr, err)
		}

		for {
			n, from, err := c.conn.ReadFrom(buf)
			if err != nil {
				if errors.Is(err, os.ErrDeadlineExceeded) {
					break
				}
				return nil, fmt.Errorf("reading from %s: %w", c.addr, err)
			}
			if udp, ok := from.(*net.UDPAddr); ok && !udp.IP.Equal(c.addr.IP) {
				continue
			}
			return append([]byte(nil), buf[:n]...), nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, c.addr, c.cfg.Timeout)
}
