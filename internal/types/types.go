// =============================================================================
// NaPTAN Import - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - converter   (records, field classification)
//   - docstore    (sections, entity kinds)
//   - importer    (everything, plus the batch report)
//   - validation  (records)
//
// =============================================================================

package types

import "strings"

// =============================================================================
// RECORDS
// =============================================================================

// MissingValue is the sentinel stored for an empty spreadsheet cell.
// A field holding this exact value is never substituted into a template.
const MissingValue = "nan"

// Record is one spreadsheet row: column header -> cell text.
// Records carry more columns than any template uses; unmatched ones are ignored.
type Record map[string]string

// Value returns the field value and whether it is present and not missing.
func (r Record) Value(field string) (string, bool) {
	v, ok := r[field]
	if !ok || IsMissing(v) {
		return "", false
	}
	return v, true
}

// IsMissing reports whether a cell value is the missing-value sentinel.
func IsMissing(value string) bool {
	return value == MissingValue
}

// =============================================================================
// FIELD CLASSIFICATION
// =============================================================================

// attributeFields are written as XML attributes rather than element text.
// The set is global; it does not vary per template.
var attributeFields = map[string]struct{}{
	"CreationDateTime":     {},
	"ModificationDateTime": {},
	"Modification":         {},
	"RevisionNumber":       {},
	"Status":               {},
}

// IsAttributeField reports whether the field is substituted into an attribute.
func IsAttributeField(field string) bool {
	_, ok := attributeFields[field]
	return ok
}

// IsDateField reports whether the field value must be normalised to ISO-8601.
func IsDateField(field string) bool {
	return strings.Contains(field, "Date")
}

// =============================================================================
// ENTITY KINDS AND SECTIONS
// =============================================================================

// Section names a grouping of entity fragments inside a registry document.
type Section string

const (
	SectionStopPoints     Section = "StopPoints"
	SectionStopAreas      Section = "StopAreas"
	SectionNptgLocalities Section = "NptgLocalities"
)

// KeyField returns the element holding the primary key of entities in the section.
func (s Section) KeyField() string {
	switch s {
	case SectionStopAreas:
		return "StopAreaCode"
	case SectionNptgLocalities:
		return "NptgLocalityCode"
	default:
		return "AtcoCode"
	}
}

// Kind identifies the entity type a request sheet describes.
type Kind string

const (
	KindStop     Kind = "stop"
	KindStopArea Kind = "stop area"
	KindLocality Kind = "locality"
)

// KeyField returns the primary key element name for the kind.
func (k Kind) KeyField() string {
	return k.Section().KeyField()
}

// Section returns the document section entities of this kind live in.
func (k Kind) Section() Section {
	switch k {
	case KindStopArea:
		return SectionStopAreas
	case KindLocality:
		return SectionNptgLocalities
	default:
		return SectionStopPoints
	}
}

// Fixed template names for kinds that do not select a template per row.
const (
	StopAreaTemplate = "StopArea"
	LocalityTemplate = "NptgLocality"

	// StopTypeField selects the stop template for each stop row.
	StopTypeField = "StopType"
)

// =============================================================================
// BATCH INPUT
// =============================================================================

// Batch holds the rows of one request workbook, in sheet order.
type Batch struct {
	// Source is the path of the workbook the rows came from.
	Source string

	Localities []Record
	Stops      []Record
	StopAreas  []Record
}

// Len returns the total number of rows in the batch.
func (b Batch) Len() int {
	return len(b.Localities) + len(b.Stops) + len(b.StopAreas)
}
