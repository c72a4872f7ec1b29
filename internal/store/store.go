package store

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/mqtt2broadlink/internal/infrastructure/config"
)

// Document is the subset of *config.Document the store needs.
type Document interface {
	Get(section, key string) (string, bool)
	Set(section, key, value string)
	Delete(section, key string) bool
	Keys(section string) []string
	Save() error
}

var _ Document = (*config.Document)(nil)

// Store reads and mutates the inventory held in a config document.
//
// Thread Safety:
//   - Mutations are serialised so a save always sees a consistent document.
type Store struct {
	mu  sync.Mutex
	doc Document
}

// New creates a Store over doc.
func New(doc Document) *Store {
	return &Store{doc: doc}
}

// Device returns the stored identity text for name.
func (s *Store) Device(name string) (string, bool) {
	return s.doc.Get(config.SectionDevices, name)
}

// DeviceNames lists configured devices in file order.
func (s *Store) DeviceNames() []string {
	return s.doc.Keys(config.SectionDevices)
}

// PutDevice stores or replaces a device identity.
func (s *Store) PutDevice(name, identity string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return s.mutate(config.SectionDevices, name, &identity)
}

// RemoveDevice deletes a device identity and reports whether it existed.
func (s *Store) RemoveDevice(name string) (bool, error) {
	return s.remove(config.SectionDevices, name)
}

// Command returns the decoded code stored under name.
func (s *Store) Command(name string) ([]byte, bool, error) {
	v, ok := s.doc.Get(config.SectionCommands, name)
	if !ok {
		return nil, false, nil
	}
	code, err := decodeHex(v)
	if err != nil {
		return nil, true, fmt.Errorf("command %q: %w", name, err)
	}
	return code, true, nil
}

// CommandNames lists stored commands in file order.
func (s *Store) CommandNames() []string {
	return s.doc.Keys(config.SectionCommands)
}

// PutCommand stores code under name, replacing any previous value.
func (s *Store) PutCommand(name string, code []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if len(code) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidCode)
	}
	v := hex.EncodeToString(code)
	return s.mutate(config.SectionCommands, name, &v)
}

// PutCommandHex validates hexCode and stores it under name. Whitespace
// between digits is ignored.
func (s *Store) PutCommandHex(name, hexCode string) error {
	code, err := decodeHex(hexCode)
	if err != nil {
		return err
	}
	return s.PutCommand(name, code)
}

// RemoveCommand deletes a command and reports whether it existed.
func (s *Store) RemoveCommand(name string) (bool, error) {
	return s.remove(config.SectionCommands, name)
}

// LogLevel returns the persisted log level keyword, if any.
func (s *Store) LogLevel() (string, bool) {
	return s.doc.Get(config.SectionLogging, "level")
}

// SetLogLevel persists the log level keyword.
func (s *Store) SetLogLevel(level string) error {
	return s.mutate(config.SectionLogging, "level", &level)
}

func (s *Store) remove(section, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Get(section, name); !ok {
		return false, nil
	}
	if err := s.apply(section, name, nil); err != nil {
		return false, err
	}
	return true, nil
}

// mutate sets (value != nil) or deletes (value == nil) a key and saves.
func (s *Store) mutate(section, key string, value *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(section, key, value)
}

// apply changes one key and saves, restoring the old value if the save
// fails. Callers hold s.mu.
func (s *Store) apply(section, key string, value *string) error {
	prev, existed := s.doc.Get(section, key)

	if value != nil {
		s.doc.Set(section, key, *value)
	} else {
		s.doc.Delete(section, key)
	}

	if err := s.doc.Save(); err != nil {
		if existed {
			s.doc.Set(section, key, prev)
		} else {
			s.doc.Delete(section, key)
		}
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// ValidateName reports whether name can be used as a device or command
// name. Topic separators and wildcards are refused, and so are characters
// that would not survive a reload of the config file.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, "/+#;=[]\n") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func decodeHex(s string) ([]byte, error) {
	clean := strings.Join(strings.Fields(s), "")
	if clean == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCode)
	}
	code, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCode, err)
	}
	return code, nil
}
