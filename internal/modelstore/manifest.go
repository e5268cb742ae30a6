package modelstore

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Common errors.
var (
	ErrUnknownModel    = errors.New("unknown model")
	ErrInvalidManifest = errors.New("invalid manifest")
	ErrDownload        = errors.New("download failed")
	ErrArchive         = errors.New("archive has no weight file")
)

// Entry describes one pretrained weight file.
type Entry struct {
	Name    string `yaml:"name"`
	Error   string `yaml:"error"` // top-1 error on ImageNet-1K, e.g. "0.2875"
	SHA256  string `yaml:"sha256"`
	Release string `yaml:"release,omitempty"`
	URL     string `yaml:"url,omitempty"` // overrides <base_url>/<release>/<file>.zip
}

// FileName returns "<name>-<error>-<sha256[:8]>.safetensors".
func (e Entry) FileName() string {
	short := e.SHA256
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-%s-%s.safetensors", e.Name, e.Error, short)
}

func (e Entry) validate() error {
	switch {
	case e.Name == "":
		return fmt.Errorf("%w: entry without name", ErrInvalidManifest)
	case e.Error == "":
		return fmt.Errorf("%w: %s has no error tag", ErrInvalidManifest, e.Name)
	case len(e.SHA256) != 64:
		return fmt.Errorf("%w: %s needs a 64 character sha256", ErrInvalidManifest, e.Name)
	case e.URL == "" && e.Release == "":
		return fmt.Errorf("%w: %s needs a release tag or url", ErrInvalidManifest, e.Name)
	}
	return nil
}

// Manifest lists the weight files a store can fetch.
type Manifest struct {
	Models []Entry `yaml:"models"`
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifest reads a YAML manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// Validate checks every entry and rejects duplicate names.
func (m *Manifest) Validate() error {
	seen := make(map[string]bool, len(m.Models))
	for _, e := range m.Models {
		if err := e.validate(); err != nil {
			return err
		}
		if seen[e.Name] {
			return fmt.Errorf("%w: duplicate entry %s", ErrInvalidManifest, e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

// Add inserts or replaces the entry with the same name.
func (m *Manifest) Add(e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	for i := range m.Models {
		if m.Models[i].Name == e.Name {
			m.Models[i] = e
			return nil
		}
	}
	m.Models = append(m.Models, e)
	sort.Slice(m.Models, func(i, j int) bool { return m.Models[i].Name < m.Models[j].Name })
	return nil
}

// Lookup returns the entry registered under name.
func (m *Manifest) Lookup(name string) (Entry, error) {
	for _, e := range m.Models {
		if e.Name == name {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
}

// Names returns the model names in manifest order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Models))
	for i, e := range m.Models {
		names[i] = e.Name
	}
	return names
}

// Save writes the manifest to path as YAML.
func (m *Manifest) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
