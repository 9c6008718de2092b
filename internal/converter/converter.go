// =============================================================================
// NaPTAN Import - Template Engine
// =============================================================================
//
// This module fills a template skeleton from one request row and returns the
// resulting entity fragment.
//
// SUBSTITUTION RULES (per field, fields are independent):
//   1. A value equal to the missing sentinel is skipped.
//   2. Attribute fields (CreationDateTime, ModificationDateTime, Modification,
//      RevisionNumber, Status) replace empty attributes of the same name.
//      Names containing "Date" are normalised to ISO-8601 first.
//   3. Every other field replaces the text of empty elements of the same name.
//   4. A field with no matching placeholder is dropped silently.
//
// EXAMPLE:
//   Template:  <StopPoint CreationDateTime=""><AtcoCode></AtcoCode></StopPoint>
//   Record:    {AtcoCode: "9100ABC", CreationDateTime: "2020-01-01"}
//   Fragment:  <StopPoint CreationDateTime="2020-01-01T00:00:00"><AtcoCode>9100ABC</AtcoCode></StopPoint>
//
// =============================================================================

package converter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/ginjaninja78/naptan-xml-import/internal/types"
)

// Merge fills the template's placeholders from rec.
//
// PARAMETERS:
//   - t: The template. It is parsed afresh and never modified.
//   - rec: The request row.
//
// RETURNS:
//   - The fragment root element, detached from any document.
//   - An error wrapping types.ErrDateParse if a Date attribute cannot be
//     parsed, or a parse error if the skeleton is not well-formed XML.
func Merge(t *Template, rec types.Record) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(t.data); err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", t.Name, err)
	}

	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("template %s has no root element", t.Name)
	}

	// Deterministic field order.
	fields := make([]string, 0, len(rec))
	for f := range rec {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		raw := rec[field]
		if types.IsMissing(raw) {
			continue
		}

		value, err := fieldValue(field, raw)
		if err != nil {
			return nil, err
		}

		if types.IsAttributeField(field) {
			setAttribute(root, field, value)
		} else {
			setElement(root, field, value)
		}
	}

	doc.RemoveChild(root)
	return root, nil
}

// setAttribute fills every empty attribute named field, on root or any descendant.
func setAttribute(root *etree.Element, field, value string) {
	walk(root, func(e *etree.Element) {
		for i := range e.Attr {
			a := &e.Attr[i]
			if a.Key == field && a.Value == "" {
				a.Value = value
			}
		}
	})
}

// setElement fills every empty leaf element named field.
func setElement(root *etree.Element, field, value string) {
	walk(root, func(e *etree.Element) {
		if e.Tag == field && isPlaceholder(e) {
			e.SetText(value)
		}
	})
}

// isPlaceholder reports whether e has no child elements and no text.
func isPlaceholder(e *etree.Element) bool {
	return len(e.ChildElements()) == 0 && strings.TrimSpace(e.Text()) == ""
}

// walk calls fn on e and all descendant elements, depth first.
func walk(e *etree.Element, fn func(*etree.Element)) {
	fn(e)
	for _, c := range e.ChildElements() {
		walk(c, fn)
	}
}

// Placeholders lists the field names the template can accept, sorted.
func Placeholders(t *Template) ([]string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(t.data); err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", t.Name, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("template %s has no root element", t.Name)
	}

	seen := make(map[string]struct{})
	walk(doc.Root(), func(e *etree.Element) {
		for _, a := range e.Attr {
			if a.Value == "" && types.IsAttributeField(a.Key) {
				seen[a.Key] = struct{}{}
			}
		}
		if isPlaceholder(e) {
			seen[e.Tag] = struct{}{}
		}
	})

	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}
