package router

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/nerrad567/mqtt2broadlink/internal/infrastructure/logging"
	"github.com/nerrad567/mqtt2broadlink/internal/learning"
	"github.com/nerrad567/mqtt2broadlink/internal/registry"
	"github.com/nerrad567/mqtt2broadlink/internal/store"
)

// mockDevice records transmitted packets.
type mockDevice struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
}

func (d *mockDevice) SendData(_ context.Context, packet []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sendErr != nil {
		return d.sendErr
	}
	d.sent = append(d.sent, packet)
	return nil
}

func (d *mockDevice) EnterLearning(context.Context) error       { return nil }
func (d *mockDevice) CheckData(context.Context) ([]byte, error) { return nil, nil }
func (d *mockDevice) Close() error                              { return nil }

// mockDevices is an in-memory Devices.
type mockDevices struct {
	identities map[string]registry.Identity
	handles    map[string]*mockDevice
	unreach    map[string]bool
	rejectHost map[string]bool
	forgotten  []string
	adopted    []registry.Identity
}

func newMockDevices() *mockDevices {
	return &mockDevices{
		identities: make(map[string]registry.Identity),
		handles:    make(map[string]*mockDevice),
		unreach:    make(map[string]bool),
		rejectHost: make(map[string]bool),
	}
}

func (m *mockDevices) with(name string) *mockDevice {
	dev := &mockDevice{}
	m.identities[name] = registry.Identity{Name: name}
	m.handles[name] = dev
	return dev
}

func (m *mockDevices) Get(_ context.Context, name string) (registry.Device, bool) {
	if m.unreach[name] {
		return nil, false
	}
	dev, ok := m.handles[name]
	if !ok {
		return nil, false
	}
	return dev, true
}

func (m *mockDevices) Add(_ context.Context, id registry.Identity) (registry.Device, bool, error) {
	m.identities[id.Name] = id
	if m.unreach[id.Name] {
		return nil, false, nil
	}
	dev := &mockDevice{}
	m.handles[id.Name] = dev
	return dev, true, nil
}

func (m *mockDevices) Adopt(_ context.Context, id registry.Identity) error {
	if m.rejectHost[id.Host] {
		return errors.New("auth failed")
	}
	m.identities[id.Name] = id
	m.handles[id.Name] = &mockDevice{}
	m.adopted = append(m.adopted, id)
	return nil
}

func (m *mockDevices) Remove(_ context.Context, name string) (bool, error) {
	_, ok := m.identities[name]
	delete(m.identities, name)
	delete(m.handles, name)
	return ok, nil
}

func (m *mockDevices) Forget(name string) {
	m.forgotten = append(m.forgotten, name)
	delete(m.handles, name)
}

// mockCommands is an in-memory Commands with store validation.
type mockCommands struct {
	codes    map[string][]byte
	order    []string
	level    string
	putCalls int
}

func newMockCommands() *mockCommands {
	return &mockCommands{codes: make(map[string][]byte)}
}

func (m *mockCommands) Command(name string) ([]byte, bool, error) {
	c, ok := m.codes[name]
	return c, ok, nil
}

func (m *mockCommands) PutCommand(name string, code []byte) error {
	m.putCalls++
	if name == "" || strings.ContainsAny(name, "/+#") {
		return store.ErrInvalidName
	}
	m.codes[name] = code
	m.order = append(m.order, name)
	return nil
}

func (m *mockCommands) PutCommandHex(name, hexCode string) error {
	code, err := decode(hexCode)
	if err != nil {
		return err
	}
	return m.PutCommand(name, code)
}

func (m *mockCommands) RemoveCommand(name string) (bool, error) {
	_, ok := m.codes[name]
	delete(m.codes, name)
	return ok, nil
}

func (m *mockCommands) SetLogLevel(level string) error {
	m.level = level
	return nil
}

func decode(s string) ([]byte, error) {
	code, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil || len(code) == 0 {
		return nil, store.ErrInvalidCode
	}
	return code, nil
}

// mockLearner returns a fixed code or error.
type mockLearner struct {
	code  []byte
	err   error
	panic bool
	calls int
}

func (m *mockLearner) Learn(context.Context, learning.Device) ([]byte, error) {
	m.calls++
	if m.panic {
		panic("learner exploded")
	}
	return m.code, m.err
}

// mockLevels mirrors logging.Logger's level handling.
type mockLevels struct {
	level slog.Level
}

func (m *mockLevels) SetLevel(level string) error {
	l, err := logging.ParseLevel(level)
	if err != nil {
		return err
	}
	m.level = l
	return nil
}

func (m *mockLevels) Level() slog.Level { return m.level }

// captureRecorder stores outcomes.
type captureRecorder struct {
	outcomes []Outcome
}

func (c *captureRecorder) Record(_ context.Context, o Outcome) error {
	c.outcomes = append(c.outcomes, o)
	return nil
}
