package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/mqtt2broadlink/internal/infrastructure/config"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	return New(config.NewDocument(path)), path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	return string(data)
}

// failingDoc wraps a document whose Save always fails.
type failingDoc struct {
	*config.Document
}

func (failingDoc) Save() error { return errors.New("disk full") }

func TestStore_CommandLifecycle(t *testing.T) {
	s, path := newTestStore(t)

	if err := s.PutCommandHex("power_on", "26 00 0c 00"); err != nil {
		t.Fatalf("PutCommandHex() error = %v", err)
	}

	code, ok, err := s.Command("power_on")
	if err != nil || !ok {
		t.Fatalf("Command() = %v, %v, %v", code, ok, err)
	}
	if !bytes.Equal(code, []byte{0x26, 0x00, 0x0c, 0x00}) {
		t.Errorf("Command() = % x", code)
	}
	if !strings.Contains(readFile(t, path), "26000c00") {
		t.Errorf("file does not contain canonical hex:\n%s", readFile(t, path))
	}

	// Overwrite keeps one entry.
	if err := s.PutCommand("power_on", []byte{0xAB}); err != nil {
		t.Fatalf("PutCommand() error = %v", err)
	}
	if names := s.CommandNames(); len(names) != 1 {
		t.Errorf("CommandNames() = %v, want one entry", names)
	}

	removed, err := s.RemoveCommand("power_on")
	if err != nil || !removed {
		t.Fatalf("RemoveCommand() = %v, %v", removed, err)
	}
	if strings.Contains(readFile(t, path), "power_on") {
		t.Error("removed command still on disk")
	}

	// Removing again is a no-op.
	removed, err = s.RemoveCommand("power_on")
	if err != nil || removed {
		t.Errorf("second RemoveCommand() = %v, %v; want false, nil", removed, err)
	}

	if _, ok, _ := s.Command("power_on"); ok {
		t.Error("Command() found removed entry")
	}
}

func TestStore_InvalidInput(t *testing.T) {
	s, path := newTestStore(t)

	tests := []struct {
		name    string
		fn      func() error
		wantErr error
	}{
		{"odd hex", func() error { return s.PutCommandHex("x", "abc") }, ErrInvalidCode},
		{"non hex", func() error { return s.PutCommandHex("x", "zz") }, ErrInvalidCode},
		{"empty hex", func() error { return s.PutCommandHex("x", "  ") }, ErrInvalidCode},
		{"empty code", func() error { return s.PutCommand("x", nil) }, ErrInvalidCode},
		{"empty name", func() error { return s.PutCommand("", []byte{1}) }, ErrInvalidName},
		{"slash in name", func() error { return s.PutDevice("a/b", "0x2737 h m") }, ErrInvalidName},
		{"wildcard in name", func() error { return s.PutCommand("a#", []byte{1}) }, ErrInvalidName},
		{"comment marker", func() error { return s.PutCommandHex(";mute", "26000200") }, ErrInvalidName},
		{"inline comment marker", func() error { return s.PutDevice("den;tv", "0x2737 h m") }, ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("rejected input must not create the file")
	}
}

func TestStore_NamesSurviveReload(t *testing.T) {
	s, path := newTestStore(t)

	names := []string{"tv:power", "vol up", `a"b`, "`x", "ac.off", "power_on"}
	for i, name := range names {
		if err := s.PutCommand(name, []byte{0x26, byte(i)}); err != nil {
			t.Fatalf("PutCommand(%q) error = %v", name, err)
		}
	}

	doc, err := config.ReadDocument(path)
	if err != nil {
		t.Fatalf("ReadDocument() error = %v", err)
	}
	reloaded := New(doc)

	if got := reloaded.CommandNames(); len(got) != len(names) {
		t.Fatalf("CommandNames() after reload = %v, want %v", got, names)
	}
	for i, name := range names {
		code, ok, err := reloaded.Command(name)
		if err != nil || !ok {
			t.Errorf("Command(%q) after reload = %v, %v", name, ok, err)
			continue
		}
		if !bytes.Equal(code, []byte{0x26, byte(i)}) {
			t.Errorf("Command(%q) after reload = % x", name, code)
		}
	}
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"tv:power", "vol up", "kitchen-ac"} {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) error = %v", name, err)
		}
	}
	for _, name := range []string{"", "  ", "a/b", "a+", "#", ";mute", "k=v", "[x]", "a\nb"} {
		if err := ValidateName(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestStore_CorruptStoredCommand(t *testing.T) {
	doc := config.NewDocument(filepath.Join(t.TempDir(), "config.ini"))
	doc.Set(config.SectionCommands, "broken", "not-hex")
	s := New(doc)

	_, ok, err := s.Command("broken")
	if !ok || !errors.Is(err, ErrInvalidCode) {
		t.Errorf("Command() = %v, %v; want true, ErrInvalidCode", ok, err)
	}
}

func TestStore_Devices(t *testing.T) {
	s, path := newTestStore(t)

	if err := s.PutDevice("kitchen-ac", "0x2737 192.168.1.50 34:ea:34:01:02:03"); err != nil {
		t.Fatalf("PutDevice() error = %v", err)
	}
	if err := s.PutDevice("bedroom", "0x51da 192.168.1.51 34:ea:34:01:02:04"); err != nil {
		t.Fatalf("PutDevice() error = %v", err)
	}

	if got := s.DeviceNames(); len(got) != 2 || got[0] != "kitchen-ac" || got[1] != "bedroom" {
		t.Errorf("DeviceNames() = %v", got)
	}
	if v, ok := s.Device("Kitchen-AC"); !ok || !strings.HasPrefix(v, "0x2737") {
		t.Errorf("Device() = %q, %v; lookups are case-insensitive", v, ok)
	}

	reloaded, err := config.ReadDocument(path)
	if err != nil {
		t.Fatalf("ReadDocument() error = %v", err)
	}
	if v, _ := reloaded.Get(config.SectionDevices, "bedroom"); v != "0x51da 192.168.1.51 34:ea:34:01:02:04" {
		t.Errorf("persisted bedroom = %q", v)
	}

	if removed, err := s.RemoveDevice("bedroom"); err != nil || !removed {
		t.Errorf("RemoveDevice() = %v, %v", removed, err)
	}
}

func TestStore_LogLevel(t *testing.T) {
	s, _ := newTestStore(t)

	if _, ok := s.LogLevel(); ok {
		t.Error("LogLevel() set on empty store")
	}
	if err := s.SetLogLevel("DEBUG"); err != nil {
		t.Fatalf("SetLogLevel() error = %v", err)
	}
	if v, ok := s.LogLevel(); !ok || v != "DEBUG" {
		t.Errorf("LogLevel() = %q, %v", v, ok)
	}
}

func TestStore_SaveFailureRollsBack(t *testing.T) {
	doc := config.NewDocument(filepath.Join(t.TempDir(), "config.ini"))
	doc.Set(config.SectionCommands, "keep", "01")
	s := New(failingDoc{doc})

	if err := s.PutCommandHex("new", "02"); !errors.Is(err, ErrPersist) {
		t.Errorf("PutCommandHex() error = %v, want ErrPersist", err)
	}
	if _, ok := doc.Get(config.SectionCommands, "new"); ok {
		t.Error("failed add left the key in memory")
	}

	if err := s.PutCommandHex("keep", "03"); !errors.Is(err, ErrPersist) {
		t.Errorf("PutCommandHex() error = %v, want ErrPersist", err)
	}
	if v, _ := doc.Get(config.SectionCommands, "keep"); v != "01" {
		t.Errorf("failed overwrite left %q, want 01", v)
	}

	if _, err := s.RemoveCommand("keep"); !errors.Is(err, ErrPersist) {
		t.Errorf("RemoveCommand() error = %v, want ErrPersist", err)
	}
	if _, ok := doc.Get(config.SectionCommands, "keep"); !ok {
		t.Error("failed remove dropped the key")
	}
}
