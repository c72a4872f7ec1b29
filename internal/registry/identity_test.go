package registry

import (
	"errors"
	"testing"
)

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantType uint16
		wantHost string
		wantMAC  string
		wantErr  bool
	}{
		{name: "prefixed type", text: "0x2737 192.168.1.50 34:ea:34:01:02:03", wantType: 0x2737, wantHost: "192.168.1.50", wantMAC: "34:ea:34:01:02:03"},
		{name: "bare type upper", text: "51DA rm4.local 34-EA-34-01-02-03", wantType: 0x51da, wantHost: "rm4.local", wantMAC: "34:ea:34:01:02:03"},
		{name: "bare mac", text: "2737  10.0.0.1\t34ea34010203", wantType: 0x2737, wantHost: "10.0.0.1", wantMAC: "34:ea:34:01:02:03"},
		{name: "missing field", text: "0x2737 10.0.0.1", wantErr: true},
		{name: "extra field", text: "0x2737 10.0.0.1 34ea34010203 x", wantErr: true},
		{name: "bad type", text: "0xZZ 10.0.0.1 34ea34010203", wantErr: true},
		{name: "type overflow", text: "0x12345 10.0.0.1 34ea34010203", wantErr: true},
		{name: "bad mac", text: "0x2737 10.0.0.1 34:ea", wantErr: true},
		{name: "eui64 mac", text: "0x2737 10.0.0.1 00:00:00:00:fe:80:00:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseIdentity("dev", tt.text)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIdentity) {
					t.Errorf("ParseIdentity() error = %v, want ErrInvalidIdentity", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseIdentity() error = %v", err)
			}
			if id.Type != tt.wantType || id.Host != tt.wantHost || id.MAC.String() != tt.wantMAC || id.Name != "dev" {
				t.Errorf("ParseIdentity() = %+v", id)
			}
		})
	}
}

func TestIdentity_StringRoundTrip(t *testing.T) {
	id, err := ParseIdentity("dev", "2737 192.168.1.50 34EA34010203")
	if err != nil {
		t.Fatalf("ParseIdentity() error = %v", err)
	}
	if got := id.String(); got != "0x2737 192.168.1.50 34:ea:34:01:02:03" {
		t.Errorf("String() = %q", got)
	}

	again, err := ParseIdentity("dev", id.String())
	if err != nil || again.String() != id.String() {
		t.Errorf("round trip = %q, %v", again.String(), err)
	}
}
