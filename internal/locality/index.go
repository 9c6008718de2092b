// Package locality holds the set of known NPTG locality codes used to check
// NptgLocalityRef fields.
//
// An Index is immutable once built. Rebuilding, either from a reference
// listing or from the current contents of the locality document, always
// produces a new Index.
package locality

import (
	"io"
	"sort"

	"github.com/ginjaninja78/naptan-xml-import/internal/csvparser"
	"github.com/ginjaninja78/naptan-xml-import/internal/types"
)

// Index is a read-only membership set of locality codes.
type Index struct {
	codes map[string]struct{}
}

// New builds an index from the given codes.
func New(codes []string) *Index {
	idx := &Index{codes: make(map[string]struct{}, len(codes))}
	for _, c := range codes {
		idx.codes[c] = struct{}{}
	}
	return idx
}

// FromReference builds an index from a delimited reference listing
// (first column = code, header row discarded).
func FromReference(r io.Reader, settings csvparser.Settings) (*Index, error) {
	codes, err := csvparser.Parse(r, settings)
	if err != nil {
		return nil, err
	}
	return New(codes), nil
}

// KeyLister lists the primary keys held in one section of a document.
type KeyLister interface {
	Keys(document string, section types.Section) ([]string, error)
}

// FromDocument builds an index from the locality codes currently stored in
// the NptgLocalities section of document.
func FromDocument(src KeyLister, document string) (*Index, error) {
	codes, err := src.Keys(document, types.SectionNptgLocalities)
	if err != nil {
		return nil, err
	}
	return New(codes), nil
}

// Contains reports whether code is a known locality. A nil index knows no codes.
func (i *Index) Contains(code string) bool {
	if i == nil {
		return false
	}
	_, ok := i.codes[code]
	return ok
}

// Len returns the number of known codes.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.codes)
}

// Codes returns the known codes in sorted order.
func (i *Index) Codes() []string {
	if i == nil {
		return nil
	}
	out := make([]string, 0, len(i.codes))
	for c := range i.codes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
