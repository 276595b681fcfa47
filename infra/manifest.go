package infra

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Endpoint names a port by component and port name. An empty port selects
// the component's default port.
type Endpoint struct {
	Component string `json:"component" yaml:"component"`
	Port      string `json:"port,omitempty" yaml:"port,omitempty"`
}

func (e Endpoint) String() string {
	if e.Port == "" {
		return e.Component
	}
	return e.Component + ":" + e.Port
}

// Link is one manual connection in a manifest.
type Link struct {
	A Endpoint `json:"a" yaml:"a"`
	B Endpoint `json:"b" yaml:"b"`
}

// Codec reads and writes manual connection manifests.
type Codec interface {
	Decode(r io.Reader) ([]Link, error)
	Encode(w io.Writer, links []Link) error
	Format() string
}

// JSONCodec handles the JSON array manifest format.
type JSONCodec struct{}

func (JSONCodec) Format() string { return "json" }

// Decode parses a JSON manifest.
func (JSONCodec) Decode(r io.Reader) ([]Link, error) {
	var links []Link
	if err := json.NewDecoder(r).Decode(&links); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse JSON manifest: %w", err)
	}
	return links, nil
}

// Encode writes links as an indented JSON array.
func (JSONCodec) Encode(w io.Writer, links []Link) error {
	if links == nil {
		links = []Link{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(links); err != nil {
		return fmt.Errorf("failed to encode JSON manifest: %w", err)
	}
	return nil
}

// YAMLCodec handles the YAML manifest format.
type YAMLCodec struct{}

func (YAMLCodec) Format() string { return "yaml" }

// Decode parses a YAML manifest.
func (YAMLCodec) Decode(r io.Reader) ([]Link, error) {
	var links []Link
	if err := yaml.NewDecoder(r).Decode(&links); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse YAML manifest: %w", err)
	}
	return links, nil
}

// Encode writes links as a YAML sequence.
func (YAMLCodec) Encode(w io.Writer, links []Link) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(links); err != nil {
		return fmt.Errorf("failed to encode YAML manifest: %w", err)
	}
	return enc.Close()
}

// CodecForPath picks YAML for .yaml/.yml files and JSON otherwise.
func CodecForPath(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLCodec{}
	default:
		return JSONCodec{}
	}
}

// ReadManifest decodes the manifest at path. The returned error wraps
// os.ErrNotExist when the file is missing.
func ReadManifest(path string) ([]Link, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return CodecForPath(path).Decode(f)
}
