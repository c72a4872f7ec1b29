package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Device is an authenticated transceiver session.
type Device interface {
	SendData(ctx context.Context, packet []byte) error
	EnterLearning(ctx context.Context) error
	CheckData(ctx context.Context) ([]byte, error)
	Close() error
}

// Opener dials and authenticates a transceiver.
type Opener interface {
	Open(ctx context.Context, id Identity) (Device, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, id Identity) (Device, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, id Identity) (Device, error) {
	return f(ctx, id)
}

// IdentityStore persists device identities as text.
type IdentityStore interface {
	Device(name string) (string, bool)
	DeviceNames() []string
	PutDevice(name, identity string) error
	RemoveDevice(name string) (bool, error)
}

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry resolves device names to live handles.
//
// Opens are serialised, so concurrent Gets for the same name never create
// two handles. All public methods are thread-safe.
type Registry struct {
	store  IdentityStore
	opener Opener
	logger Logger

	mu      sync.Mutex
	handles map[string]Device

	onOpenCount func(int)
}

// New creates a registry backed by store, opening devices with opener.
func New(store IdentityStore, opener Opener) *Registry {
	return &Registry{
		store:   store,
		opener:  opener,
		logger:  noopLogger{},
		handles: make(map[string]Device),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// OnOpenCount registers a callback invoked with the number of live handles
// whenever it changes.
func (r *Registry) OnOpenCount(fn func(int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onOpenCount = fn
}

// Get returns the handle for name, opening it if needed.
//
// Unknown names and failed opens are logged and reported as false; the next
// call tries again.
func (r *Registry) Get(ctx context.Context, name string) (Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(ctx, name)
}

// Add persists id, replacing any previous identity under the same name and
// dropping its handle, then opens the device eagerly.
//
// The returned error reports persistence failures only; a device that
// cannot be opened yet is still registered and reported as false.
func (r *Registry) Add(ctx context.Context, id Identity) (Device, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.PutDevice(id.Name, id.String()); err != nil {
		return nil, false, fmt.Errorf("storing device %q: %w", id.Name, err)
	}
	r.evict(id.Name)
	r.logger.Info("device registered", "device", id.Name, "identity", id.String())

	dev, ok := r.get(ctx, id.Name)
	return dev, ok, nil
}

// Adopt opens id first and registers it only when authentication succeeds.
func (r *Registry) Adopt(ctx context.Context, id Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, err := r.opener.Open(ctx, id)
	if err != nil {
		return fmt.Errorf("opening %s: %w", id.Host, err)
	}

	if err := r.store.PutDevice(id.Name, id.String()); err != nil {
		dev.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("storing device %q: %w", id.Name, err)
	}

	r.evict(id.Name)
	r.handles[key(id.Name)] = dev
	r.notify()
	r.logger.Info("device adopted", "device", id.Name, "identity", id.String())
	return nil
}

// Remove deletes the identity for name and closes any live handle.
// It reports whether an identity existed.
func (r *Registry) Remove(_ context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed, err := r.store.RemoveDevice(name)
	if err != nil {
		return false, fmt.Errorf("removing device %q: %w", name, err)
	}
	r.evict(name)

	if !removed {
		r.logger.Info("remove for unknown device ignored", "device", name)
		return false, nil
	}
	r.logger.Info("device removed", "device", name)
	return true, nil
}

// Forget closes and drops the live handle for name, keeping its identity.
// The next Get opens a fresh session.
func (r *Registry) Forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evict(name)
}

// Warm opens every configured device and returns how many succeeded.
func (r *Registry) Warm(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	opened := 0
	for _, name := range r.store.DeviceNames() {
		if ctx.Err() != nil {
			break
		}
		r.logger.Info("found device", "device", name)
		if _, ok := r.get(ctx, name); ok {
			opened++
		}
	}
	return opened
}

// Open returns the number of live handles.
func (r *Registry) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Close closes every live handle.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for k, dev := range r.handles {
		if err := dev.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing device %q: %w", k, err)
		}
		delete(r.handles, k)
	}
	r.notify()
	return firstErr
}

// get implements Get. Callers hold r.mu.
func (r *Registry) get(ctx context.Context, name string) (Device, bool) {
	if dev, ok := r.handles[key(name)]; ok {
		return dev, true
	}

	text, ok := r.store.Device(name)
	if !ok {
		r.logger.Warn("unknown device", "device", name)
		return nil, false
	}

	id, err := ParseIdentity(name, text)
	if err != nil {
		r.logger.Error("invalid device identity", "device", name, "error", err)
		return nil, false
	}

	dev, err := r.opener.Open(ctx, id)
	if err != nil {
		r.logger.Error("could not open device", "device", name, "host", id.Host, "error", err)
		return nil, false
	}

	r.handles[key(name)] = dev
	r.notify()
	r.logger.Debug("device opened", "device", name, "host", id.Host)
	return dev, true
}

// evict closes and forgets the handle for name. Callers hold r.mu.
func (r *Registry) evict(name string) {
	k := key(name)
	dev, ok := r.handles[k]
	if !ok {
		return
	}
	if err := dev.Close(); err != nil {
		r.logger.Debug("closing evicted device", "device", name, "error", err)
	}
	delete(r.handles, k)
	r.notify()
}

func (r *Registry) notify() {
	if r.onOpenCount != nil {
		r.onOpenCount(len(r.handles))
	}
}

// key matches the store's case-insensitive naming.
func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
