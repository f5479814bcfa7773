package sourcemap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/bundlekit/internal/vlq"
)

// Version is the only source map revision produced and accepted.
const Version = 3

// SourceMap is a Source Map v3 document. Names is always empty since no
// symbol renaming takes place.
type SourceMap struct {
	Version  int      `json:"version"`
	Sources  []string `json:"sources"`
	Names    []string `json:"names"`
	Mappings string   `json:"mappings"`
	File     string   `json:"file"`
}

// Create builds the document for a generated file from its sources and
// decoded mappings.
func Create(file string, sources []string, mappings vlq.Mappings) *SourceMap {
	src := make([]string, len(sources))
	copy(src, sources)
	return &SourceMap{
		Version:  Version,
		Sources:  src,
		Names:    []string{},
		Mappings: vlq.EncodeMappings(mappings),
		File:     file,
	}
}

// Decode returns the decoded mappings of the document.
func (m *SourceMap) Decode() (vlq.Mappings, error) {
	return vlq.DecodeMappings(m.Mappings)
}

// Encode renders the document as JSON.
func (m *SourceMap) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// WriteFile writes the document to path, creating parent directories.
func (m *SourceMap) WriteFile(path string) error {
	data, err := m.Encode()
	if err != nil {
		return fmt.Errorf("encode source map: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create source map directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write source map %s: %w", path, err)
	}
	return nil
}

// Parse decodes a JSON source map document and checks its version and
// mappings.
func Parse(data []byte) (*SourceMap, error) {
	var m SourceMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse source map: %w", err)
	}
	if m.Version != Version {
		return nil, fmt.Errorf("unsupported source map version %d", m.Version)
	}
	if _, err := m.Decode(); err != nil {
		return nil, err
	}
	if m.Names == nil {
		m.Names = []string{}
	}
	return &m, nil
}

// Read loads and parses the source map at path.
func Read(path string) (*SourceMap, error) {
	// #nosec G304 -- path is supplied by the caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source map %s: %w", path, err)
	}
	return Parse(data)
}
