package converter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/naptan-xml-import/internal/types"
)

// Template is an immutable XML skeleton for one entity subtype. Its
// placeholders are empty attributes and empty elements named after fields.
type Template struct {
	// Name is the subtype, e.g. "BCT", "StopArea", "NptgLocality".
	Name string

	// Path is the file the skeleton was read from.
	Path string

	data []byte
}

// NewTemplate wraps skeleton bytes. The bytes are copied.
func NewTemplate(name string, data []byte) *Template {
	return &Template{Name: name, data: append([]byte(nil), data...)}
}

// Library resolves template names to skeleton files in a directory.
type Library struct {
	dir string
}

// NewLibrary creates a Library rooted at dir.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// Dir returns the template directory.
func (l *Library) Dir() string {
	return l.dir
}

// Load reads <dir>/<name>.xml. Every call reads the file again so no merge
// ever sees state left by another.
//
// RETURNS:
//   - The template.
//   - An error wrapping types.ErrTemplateMissing if the name is empty,
//     not a plain file name, or has no file.
func (l *Library) Load(name string) (*Template, error) {
	name = strings.TrimSpace(name)
	if name == "" || types.IsMissing(name) {
		return nil, fmt.Errorf("%w: no template name given", types.ErrTemplateMissing)
	}
	if filepath.Base(name) != name || strings.Contains(name, "..") {
		return nil, fmt.Errorf("%w: invalid template name %q", types.ErrTemplateMissing, name)
	}

	path := filepath.Join(l.dir, name+".xml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", types.ErrTemplateMissing, path)
		}
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}

	t := NewTemplate(name, data)
	t.Path = path
	return t, nil
}
