package broadlink

import (
	"bytes"
	"encoding/binary"
	"net"
	"sync"
	"testing"
)

// fakeUnit answers the Broadlink protocol on a loopback socket.
type fakeUnit struct {
	t       *testing.T
	conn    net.PacketConn
	devType uint16
	rm4     bool
	key     []byte
	id      uint32

	mu       sync.Mutex
	authCode int16
	silent   bool
	checks   []int16 // queued CheckData results; 0 returns learned
	learned  []byte
	sent     [][]byte
	learning int
	requests int
}

func newFakeUnit(t *testing.T, devType uint16) *fakeUnit {
	t.Helper()

	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() error = %v", err)
	}

	f := &fakeUnit{
		t:       t,
		conn:    conn,
		devType: devType,
		rm4:     IsRM4(devType),
		key:     []byte("0123456789abcdef"),
		id:      0x01020304,
	}
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck // Test cleanup

	go f.serve()
	return f
}

func (f *fakeUnit) port() int {
	return f.conn.LocalAddr().(*net.UDPAddr).Port
}

func (f *fakeUnit) config() Config {
	return Config{
		Type: f.devType,
		Host: "127.0.0.1",
		Port: f.port(),
		MAC:  net.HardwareAddr{0x34, 0xea, 0x34, 0x01, 0x02, 0x03},
	}
}

func (f *fakeUnit) serve() {
	buf := make([]byte, maxPacket)
	for {
		n, from, err := f.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		if reply := f.handle(buf[:n]); reply != nil {
			f.conn.WriteTo(reply, from) //nolint:errcheck // Test fake
		}
	}
}

func (f *fakeUnit) handle(req []byte) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests++
	if f.silent || len(req) < headerLen {
		return nil
	}

	command := binary.LittleEndian.Uint16(req[offCommand:])
	key := f.key
	if command == cmdAuth {
		key = initialKey
	}

	payload, err := decrypt(key, req[headerLen:])
	if err != nil {
		f.t.Errorf("fake unit: decrypt: %v", err)
		return nil
	}
	if got := binary.LittleEndian.Uint16(req[offPayloadSum:]); got != checksum(payload) {
		f.t.Errorf("fake unit: payload checksum %#04x, want %#04x", got, checksum(payload))
	}

	switch command {
	case cmdAuth:
		if f.authCode != 0 {
			return f.reply(command, f.authCode, key, nil)
		}
		body := binary.LittleEndian.AppendUint32(nil, f.id)
		body = append(body, f.key...)
		return f.reply(command, 0, key, body)

	case cmdData:
		if got := binary.LittleEndian.Uint32(req[offID:]); got != f.id {
			f.t.Errorf("fake unit: session id %#x, want %#x", got, f.id)
		}
		return f.handleData(payload)
	}

	return nil
}

func (f *fakeUnit) handleData(payload []byte) []byte {
	var n int
	if f.rm4 {
		n = int(binary.LittleEndian.Uint16(payload[0:2]))
		payload = payload[2 : 2+n]
	}
	cmd := binary.LittleEndian.Uint32(payload[0:4])
	data := payload[4:]

	var out []byte
	switch cmd {
	case rmSendData:
		f.sent = append(f.sent, bytes.Clone(data))
	case rmEnterLearning:
		f.learning++
	case rmCheckData:
		code := int16(0)
		if len(f.checks) > 0 {
			code, f.checks = f.checks[0], f.checks[1:]
		}
		if code != 0 {
			return f.reply(cmdData, code, f.key, nil)
		}
		out = f.learned
	}

	var body []byte
	if f.rm4 {
		body = binary.LittleEndian.AppendUint16(body, uint16(len(out)+4))
	}
	body = binary.LittleEndian.AppendUint32(body, cmd)
	body = append(body, out...)
	return f.reply(cmdData, 0, f.key, body)
}

func (f *fakeUnit) reply(command uint16, code int16, key, body []byte) []byte {
	packet, err := frame{
		devType: f.devType,
		command: command,
		id:      f.id,
		mac:     net.HardwareAddr{0, 0, 0, 0, 0, 0},
		key:     key,
		payload: body,
	}.encode()
	if err != nil {
		f.t.Errorf("fake unit: encode: %v", err)
		return nil
	}
	binary.LittleEndian.PutUint16(packet[offErrorCode:], uint16(code))
	binary.LittleEndian.PutUint16(packet[offChecksum:], 0)
	binary.LittleEndian.PutUint16(packet[offChecksum:], checksum(packet))
	return packet
}

func (f *fakeUnit) sentPackets() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}
