package registry

import (
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Identity describes how to reach one transceiver.
type Identity struct {
	Name string
	Type uint16
	Host string
	MAC  net.HardwareAddr
}

// ParseIdentity parses the stored form "<hex-type> <host> <mac>".
//
// The type may carry a 0x prefix. The MAC accepts colon, dash or bare
// 12-digit hex notation.
func ParseIdentity(name, text string) (Identity, error) {
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return Identity{}, fmt.Errorf("%w: %q: want \"<type> <host> <mac>\"", ErrInvalidIdentity, text)
	}

	t := strings.TrimPrefix(strings.ToLower(fields[0]), "0x")
	devType, err := strconv.ParseUint(t, 16, 16)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: type %q: %w", ErrInvalidIdentity, fields[0], err)
	}

	mac, err := parseMAC(fields[2])
	if err != nil {
		return Identity{}, fmt.Errorf("%w: mac %q: %w", ErrInvalidIdentity, fields[2], err)
	}

	return Identity{
		Name: name,
		Type: uint16(devType),
		Host: fields[1],
		MAC:  mac,
	}, nil
}

// String renders the stored form, e.g. "0x2737 192.168.1.50 34:ea:34:01:02:03".
func (i Identity) String() string {
	return fmt.Sprintf("0x%04x %s %s", i.Type, i.Host, i.MAC)
}

func parseMAC(s string) (net.HardwareAddr, error) {
	if len(s) == 12 {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, err
		}
		return net.HardwareAddr(b), nil
	}

	mac, err := net.ParseMAC(s)
	if err != nil {
		return nil, err
	}
	if len(mac) != 6 {
		return nil, fmt.Errorf("want 6 bytes, got %d", len(mac))
	}
	return mac, nil
}
