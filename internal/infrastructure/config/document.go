package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-ini/ini"
	"gopkg.in/yaml.v3"
)

// Format selects the on-disk encoding of a Document.
type Format int

const (
	// FormatINI is the sectioned key=value format (default).
	FormatINI Format = iota
	// FormatYAML is a two-level YAML mapping: section -> key -> scalar.
	FormatYAML
)

// String implements fmt.Stringer.
func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "ini"
}

// FormatFor picks the format from a file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatINI
	}
}

// Document is an ordered, sectioned key/value file.
//
// Section and key names are case-insensitive and stored lower-cased, so
// files written by hand or by older releases resolve the same way.
// Document is safe for concurrent use.
type Document struct {
	mu       sync.RWMutex
	path     string
	format   Format
	sections []*section
}

// iniOptions keeps '#' and ';' inside values, which appear in passwords.
var iniOptions = ini.LoadOptions{IgnoreInlineComment: true}

type section struct {
	name   string
	keys   []string
	values map[string]string
}

// NewDocument returns an empty document that saves to path.
func NewDocument(path string) *Document {
	return &Document{path: path, format: FormatFor(path)}
}

// ReadDocument loads path. A missing file yields an empty document that
// will be created on the first Save.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewDocument(path), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	doc, err := ParseDocument(data, FormatFor(path))
	if err != nil {
		return nil, err
	}
	doc.path = path
	return doc, nil
}

// ParseDocument decodes data in the given format. The result has no path,
// so Save returns ErrNoPath.
func ParseDocument(data []byte, format Format) (*Document, error) {
	doc := &Document{format: format}

	var err error
	switch format {
	case FormatYAML:
		err = doc.decodeYAML(data)
	default:
		err = doc.decodeINI(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return doc, nil
}

// Path returns the file the document saves to.
func (d *Document) Path() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.path
}

// Format returns the document encoding.
func (d *Document) Format() Format {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.format
}

// Get returns the value of key in section.
func (d *Document) Get(sectionName, key string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := d.find(sectionName)
	if s == nil {
		return "", false
	}
	v, ok := s.values[normalise(key)]
	return v, ok
}

// Set stores value under key in section, creating either as needed.
// Existing keys keep their position.
func (d *Document) Set(sectionName, key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.set(sectionName, key, value)
}

// Delete removes key from section and reports whether it existed.
func (d *Document) Delete(sectionName, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.find(sectionName)
	if s == nil {
		return false
	}
	k := normalise(key)
	if _, ok := s.values[k]; !ok {
		return false
	}
	delete(s.values, k)
	for i, name := range s.keys {
		if name == k {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the keys of section in file order.
func (d *Document) Keys(sectionName string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := d.find(sectionName)
	if s == nil {
		return nil
	}
	return append([]string(nil), s.keys...)
}

// Sections returns section names in file order.
func (d *Document) Sections() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.sections))
	for _, s := range d.sections {
		names = append(names, s.name)
	}
	return names
}

// Encode renders the document in its format.
func (d *Document) Encode() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.encode()
}

// Save writes the whole document to its path atomically: the content goes
// to a temporary file in the same directory which then replaces the target.
func (d *Document) Save() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.path == "" {
		return fmt.Errorf("saving config: %w", ErrNoPath)
	}

	data, err := d.encode()
	if err != nil {
		return err
	}

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // No-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("writing temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("syncing temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp config: %w", err)
	}

	if err := os.Rename(tmpName, d.path); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

func (d *Document) find(name string) *section {
	name = normalise(name)
	for _, s := range d.sections {
		if s.name == name {
			return s
		}
	}
	return nil
}

func (d *Document) set(sectionName, key, value string) {
	s := d.find(sectionName)
	if s == nil {
		s = &section{name: normalise(sectionName), values: make(map[string]string)}
		d.sections = append(d.sections, s)
	}
	k := normalise(key)
	if _, ok := s.values[k]; !ok {
		s.keys = append(s.keys, k)
	}
	s.values[k] = value
}

func (d *Document) encode() ([]byte, error) {
	if d.format == FormatYAML {
		return d.encodeYAML()
	}
	return d.encodeINI()
}

func (d *Document) decodeINI(data []byte) error {
	f, err := ini.LoadSources(iniOptions, data)
	if err != nil {
		return err
	}

	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection && len(sec.Keys()) == 0 {
			continue
		}
		for _, key := range sec.Keys() {
			d.set(sec.Name(), key.Name(), key.Value())
		}
		if d.find(sec.Name()) == nil {
			d.sections = append(d.sections, &section{name: normalise(sec.Name()), values: make(map[string]string)})
		}
	}
	return nil
}

func (d *Document) encodeINI() ([]byte, error) {
	f := ini.Empty(iniOptions)
	for _, s := range d.sections {
		sec, err := f.NewSection(s.name)
		if err != nil {
			return nil, fmt.Errorf("encoding section %q: %w", s.name, err)
		}
		for _, k := range s.keys {
			if _, err := sec.NewKey(k, s.values[k]); err != nil {
				return nil, fmt.Errorf("encoding key %s.%s: %w", s.name, k, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encoding ini: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *Document) decodeYAML(data []byte) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}
	if root.Kind == 0 {
		return nil // empty file
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 || root.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("%w: top level must be a mapping of sections", ErrInvalidDocument)
	}

	top := root.Content[0]
	for i := 0; i+1 < len(top.Content); i += 2 {
		name, body := top.Content[i].Value, top.Content[i+1]
		if d.find(name) == nil {
			d.sections = append(d.sections, &section{name: normalise(name), values: make(map[string]string)})
		}
		if body.Kind == yaml.ScalarNode && body.Tag == "!!null" {
			continue
		}
		if body.Kind != yaml.MappingNode {
			return fmt.Errorf("%w: section %q must be a mapping", ErrInvalidDocument, name)
		}
		for j := 0; j+1 < len(body.Content); j += 2 {
			key, val := body.Content[j], body.Content[j+1]
			if val.Kind != yaml.ScalarNode {
				return fmt.Errorf("%w: %s.%s must be a scalar", ErrInvalidDocument, name, key.Value)
			}
			d.set(name, key.Value, val.Value)
		}
	}
	return nil
}

func (d *Document) encodeYAML() ([]byte, error) {
	top := &yaml.Node{Kind: yaml.MappingNode}
	for _, s := range d.sections {
		body := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range s.keys {
			body.Content = append(body.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: k},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s.values[k]},
			)
		}
		top.Content = append(top.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: s.name}, body)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{top}}); err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func normalise(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
