// SPDX-License-Identifier: MPL-2.0

package scene

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/simforge/simserver/pkg/cueutil"
)

// EmptyWorld names the built-in scene used when a new world is requested.
const EmptyWorld = "worlds/empty.world"

const schemaDefinition = "#Scene"

var (
	//go:embed scene_schema.cue
	schema []byte

	//go:embed builtin
	builtinFS embed.FS
)

// Loader resolves scene resources against a list of search directories and the
// built-in resources compiled into the binary.
type Loader struct {
	searchPaths []string
}

// NewLoader creates a loader. Relative names are tried as given first, then
// against each search path in order, then against the built-in resources.
func NewLoader(searchPaths ...string) *Loader {
	return &Loader{searchPaths: searchPaths}
}

// Read returns the raw bytes of the named resource.
func (l *Loader) Read(name string) ([]byte, error) {
	if name == "" {
		return nil, &NotFoundError{Resource: name}
	}

	data, err := os.ReadFile(name)
	if err == nil {
		return data, nil
	}
	firstErr := err

	if !filepath.IsAbs(name) {
		for _, dir := range l.searchPaths {
			if data, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
				return data, nil
			}
		}
		if data, err := fs.ReadFile(builtinFS, path.Join("builtin", filepath.ToSlash(name))); err == nil {
			return data, nil
		}
	}

	return nil, &NotFoundError{Resource: name, Err: firstErr}
}

// Load reads and parses the named resource.
func (l *Loader) Load(name string) (*Document, error) {
	data, err := l.Read(name)
	if err != nil {
		return nil, err
	}
	return Parse(data, name)
}

// Parse decodes a scene document. The format is chosen from the file extension
// of name: ".yaml" and ".yml" are YAML, everything else is CUE (which includes
// plain JSON).
func Parse(data []byte, name string) (*Document, error) {
	var (
		doc *Document
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		doc, err = parseYAML(data, name)
	default:
		doc, err = cueutil.Decode[Document](schema, schemaDefinition, data, cueutil.WithFilename(name))
	}
	if err != nil {
		return nil, &ParseError{Resource: name, Err: err}
	}
	return doc, nil
}

// ParseString decodes an inline CUE document, such as one extracted from a state log.
func ParseString(doc string) (*Document, error) {
	return Parse([]byte(doc), "<inline>")
}

func parseYAML(data []byte, name string) (*Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return cueutil.DecodeValue[Document](schema, schemaDefinition, raw, cueutil.WithFilename(name))
}

// Encode renders the document as CUE source.
func Encode(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, errors.New("scene: nil document")
	}
	return cueutil.Marshal(doc)
}

// WriteFile encodes the document and writes it to filename, creating parent
// directories as needed.
func WriteFile(filename string, doc *Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("create scene directory: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("write scene %s: %w", filename, err)
	}
	return nil
}
