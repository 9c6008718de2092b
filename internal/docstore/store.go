// =============================================================================
// NaPTAN Import - Document Store
// =============================================================================
//
// This module locates, inserts and removes entity fragments inside the
// registry documents on disk.
//
// DOCUMENT STRUCTURE:
//
//   <NaPTAN xmlns="http://www.naptan.org.uk/" ...>   <!-- 910.xml, 920.xml, ... -->
//     <StopPoints>
//       <StopPoint ...><AtcoCode>9100ABC</AtcoCode>...</StopPoint>
//     </StopPoints>
//     <StopAreas>
//       <StopArea ...><StopAreaCode>910GABC</StopAreaCode>...</StopArea>
//     </StopAreas>
//   </NaPTAN>
//
//   The locality document holds an NptgLocalities section keyed by
//   NptgLocalityCode.
//
// MUTATION DISCIPLINE:
//   Every operation parses the document, walks the section's children,
//   mutates the tree and serialises it again (indented). Nothing is cached
//   between calls. Text is escaped by the serialiser (&, <, >).
//   Writes go to a temporary file that replaces the document on success.
//
// =============================================================================

package docstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/beevik/etree"
	"github.com/ginjaninja78/naptan-xml-import/internal/types"
)

// indentSpaces is the indentation used when a document is written back.
const indentSpaces = 2

// =============================================================================
// STORE
// =============================================================================

// Store operates on registry documents inside one directory.
type Store struct {
	dir         string
	localityDoc string
}

// New creates a Store rooted at dir. localityDoc is the file name of the
// document that holds the NptgLocalities section.
func New(dir, localityDoc string) *Store {
	return &Store{dir: dir, localityDoc: localityDoc}
}

// Dir returns the registry directory.
func (s *Store) Dir() string {
	return s.dir
}

// LocalityDocument returns the locality document file name.
func (s *Store) LocalityDocument() string {
	return s.localityDoc
}

// Path returns the full path of a document.
func (s *Store) Path(document string) string {
	return filepath.Join(s.dir, document)
}

// DocumentFor returns the document an entity belongs in.
//
// PARAMETERS:
//   - kind: The entity kind.
//   - key: The primary key.
//
// RETURNS:
//   - "<first three characters of key>.xml" for stops and stop areas, or
//     the locality document for localities.
//   - An error if the key has no three digit prefix.
func (s *Store) DocumentFor(kind types.Kind, key string) (string, error) {
	if kind == types.KindLocality {
		return s.localityDoc, nil
	}

	r := []rune(key)
	if len(r) < 3 {
		return "", fmt.Errorf("%w: key %q is too short to select a document", types.ErrDocumentIO, key)
	}
	for _, c := range r[:3] {
		if !unicode.IsDigit(c) {
			return "", fmt.Errorf("%w: key %q has no numeric document prefix", types.ErrDocumentIO, key)
		}
	}
	return string(r[:3]) + ".xml", nil
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Exists reports whether an entity with the primary key is in the section.
func (s *Store) Exists(key string, document string, section types.Section) (bool, error) {
	doc, err := s.read(document)
	if err != nil {
		return false, err
	}

	sec := findSection(doc, section)
	if sec == nil {
		return false, nil
	}
	return findEntity(sec, section, key) != nil, nil
}

// Insert appends fragment as the last child of the section. The section is
// created under the document root if absent. fragment is copied, so the
// caller's element is left untouched.
func (s *Store) Insert(fragment *etree.Element, document string, section types.Section) error {
	if fragment == nil {
		return fmt.Errorf("insert into %s: nil fragment", document)
	}

	doc, err := s.read(document)
	if err != nil {
		return err
	}

	sec := findSection(doc, section)
	if sec == nil {
		root := doc.Root()
		sec = root.CreateElement(string(section))
		sec.Space = root.Space
	}
	entity := fragment.Copy()
	if sec.Space != "" {
		adoptPrefix(entity, sec.Space)
	}
	sec.AddChild(entity)

	return s.write(document, doc)
}

// Delete removes the entity with the primary key from the section.
//
// RETURNS:
//   - true if an entity was removed; false (and no write) if none matched.
//   - An error if the document cannot be read or written.
func (s *Store) Delete(key string, document string, section types.Section) (bool, error) {
	doc, err := s.read(document)
	if err != nil {
		return false, err
	}

	sec := findSection(doc, section)
	if sec == nil {
		return false, nil
	}
	entity := findEntity(sec, section, key)
	if entity == nil {
		return false, nil
	}

	sec.RemoveChild(entity)
	return true, s.write(document, doc)
}

// Keys returns the primary keys in the section, in document order.
func (s *Store) Keys(document string, section types.Section) ([]string, error) {
	doc, err := s.read(document)
	if err != nil {
		return nil, err
	}

	sec := findSection(doc, section)
	if sec == nil {
		return nil, nil
	}

	var keys []string
	for _, child := range sec.ChildElements() {
		if k, ok := entityKey(child, section); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Entity returns a copy of the entity with the primary key, or nil.
func (s *Store) Entity(key string, document string, section types.Section) (*etree.Element, error) {
	doc, err := s.read(document)
	if err != nil {
		return nil, err
	}

	sec := findSection(doc, section)
	if sec == nil {
		return nil, nil
	}
	if e := findEntity(sec, section, key); e != nil {
		return e.Copy(), nil
	}
	return nil, nil
}

// =============================================================================
// TREE HELPERS
// =============================================================================

// findSection returns the root's child element named section, or the root
// itself when it is the section.
func findSection(doc *etree.Document, section types.Section) *etree.Element {
	root := doc.Root()
	if root.Tag == string(section) {
		return root
	}
	for _, c := range root.ChildElements() {
		if c.Tag == string(section) {
			return c
		}
	}
	return nil
}

// findEntity returns the section child whose key element equals key.
func findEntity(sec *etree.Element, section types.Section, key string) *etree.Element {
	key = strings.TrimSpace(key)
	for _, child := range sec.ChildElements() {
		if k, ok := entityKey(child, section); ok && k == key {
			return child
		}
	}
	return nil
}

// entityKey reads the section's key element from an entity.
func entityKey(entity *etree.Element, section types.Section) (string, bool) {
	field := section.KeyField()
	for _, c := range entity.ChildElements() {
		if c.Tag == field {
			return strings.TrimSpace(c.Text()), true
		}
	}
	return "", false
}

// adoptPrefix gives e and its unprefixed descendants the namespace prefix
// of the section they are inserted into.
func adoptPrefix(e *etree.Element, space string) {
	if e.Space == "" {
		e.Space = space
	}
	for _, c := range e.ChildElements() {
		adoptPrefix(c, space)
	}
}

// =============================================================================
// FILE I/O
// =============================================================================

// read parses a document.
func (s *Store) read(document string) (*etree.Document, error) {
	path := s.Path(document)

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", types.ErrDocumentIO, path, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%w: %s has no root element", types.ErrDocumentIO, path)
	}
	return doc, nil
}

// write serialises a document through a temporary file in the same directory.
func (s *Store) write(document string, doc *etree.Document) error {
	path := s.Path(document)

	doc.Indent(indentSpaces)

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", types.ErrDocumentIO, path, err)
	}
	tmpName := tmp.Name()

	_, werr := doc.WriteTo(tmp)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", types.ErrDocumentIO, path, err)
	}

	if info, err := os.Stat(path); err == nil {
		_ = os.Chmod(tmpName, info.Mode().Perm())
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", types.ErrDocumentIO, path, err)
	}
	return nil
}
