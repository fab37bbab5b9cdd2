package formatter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/tordrt/schemareflect/internal/schema"
)

// Format selects the document encoding
type Format string

const (
	FormatTOML     Format = "toml"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// Formats lists the accepted values of Format in flag help order
var Formats = []Format{FormatTOML, FormatYAML, FormatMarkdown}

var (
	ErrUnknownFormat = errors.New("unknown output format")
	ErrNilSchema     = errors.New("schema is nil")
)

// ParseFormat accepts a format name case-insensitively. "yml" and "md" are
// accepted as aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "toml":
		return FormatTOML, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Marshal renders s in the given format
func Marshal(s *schema.Schema, format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		return MarshalTOML(s)
	case FormatYAML:
		return MarshalYAML(s)
	case FormatMarkdown:
		if s == nil {
			return nil, ErrNilSchema
		}
		var buf bytes.Buffer
		if err := NewMarkdownFormatter(&buf).Format(s); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// MarshalTOML renders the schema document. Table names are emitted in
// sorted order and absent optional values are omitted, so equal schemas
// always produce identical bytes.
func MarshalTOML(s *schema.Schema) ([]byte, error) {
	if s == nil {
		return nil, ErrNilSchema
	}

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(normalize(s)); err != nil {
		return nil, fmt.Errorf("failed to encode toml: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalTOML parses a document produced by MarshalTOML
func UnmarshalTOML(data []byte) (*schema.Schema, error) {
	var s schema.Schema
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode toml: %w", err)
	}
	if s.Version != schema.FormatVersion {
		return nil, fmt.Errorf("unsupported document version %d (want %d)", s.Version, schema.FormatVersion)
	}
	return normalize(&s), nil
}

// MarshalYAML renders the same document structure as YAML
func MarshalYAML(s *schema.Schema) ([]byte, error) {
	if s == nil {
		return nil, ErrNilSchema
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(normalize(s)); err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// normalize returns a copy of s whose slices are all non-nil, so empty
// lists are written as [] instead of being dropped
func normalize(s *schema.Schema) *schema.Schema {
	out := &schema.Schema{
		Version: s.Version,
		Tables:  make(map[string]schema.Table, len(s.Tables)),
	}
	for name, t := range s.Tables {
		if t.PrimaryKey == nil {
			t.PrimaryKey = []string{}
		}
		if t.Columns == nil {
			t.Columns = []schema.Column{}
		}
		if t.Indexes == nil {
			t.Indexes = []schema.Index{}
		} else {
			indexes := make([]schema.Index, len(t.Indexes))
			for i, idx := range t.Indexes {
				if idx.Columns == nil {
					idx.Columns = []string{}
				}
				indexes[i] = idx
			}
			t.Indexes = indexes
		}
		out.Tables[name] = t
	}
	return out
}
