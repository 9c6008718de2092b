// =============================================================================
// NaPTAN Import - Validation Engine
// =============================================================================
//
// This module provides field-level correctness checks for request rows. Each
// checked field maps to one Rule variant:
//
//   | Field            | Rule          | Context used            |
//   |------------------|---------------|-------------------------|
//   | AtcoCode         | CodeRule      | stop type of the row    |
//   | StopAreaRef      | CodeRule      | stop type of the row    |
//   | TiplocRef        | TiplocRule    | none                    |
//   | CommonName       | LengthRule    | none                    |
//   | NptgLocalityRef  | LocalityRule  | carries a locality.Index|
//
// Rules are pure predicates. The Validator is a standalone service: the
// importer consults it according to the configured policy, and the
// validate/selftest commands call it directly.
//
// =============================================================================

package validation

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ginjaninja78/naptan-xml-import/internal/locality"
	"github.com/ginjaninja78/naptan-xml-import/internal/types"
)

// =============================================================================
// RULE VARIANTS
// =============================================================================

// Rule is a field validation rule. The set of variants is closed.
type Rule interface {
	// Name identifies the rule in reports.
	Name() string

	isRule()
}

// CodeRule checks ATCO-style stop and area reference codes.
type CodeRule struct{}

// TiplocRule checks rail TIPLOC references.
type TiplocRule struct{}

// LengthRule checks free-text length. A zero Max means DefaultMaxLength.
type LengthRule struct {
	Max int
}

// LocalityRule checks membership of the NPTG locality index.
type LocalityRule struct {
	Index *locality.Index
}

func (CodeRule) Name() string     { return "code" }
func (TiplocRule) Name() string   { return "tiploc" }
func (LengthRule) Name() string   { return "length" }
func (LocalityRule) Name() string { return "locality" }

func (CodeRule) isRule()     {}
func (TiplocRule) isRule()   {}
func (LengthRule) isRule()   {}
func (LocalityRule) isRule() {}

// DefaultMaxLength is the free-text limit for LengthRule.
const DefaultMaxLength = 100

// typePrefixes restricts the stop types allowed for national code prefixes.
// Prefixes not listed carry no stop type constraint.
var typePrefixes = map[string][]string{
	"900": {"BST"},
	"910": {"RLY", "RPL"},
	"920": {"GAT"},
	"930": {"FER", "FBT"},
	"940": {"MET", "PLT"},
}

// =============================================================================
// DISPATCH
// =============================================================================

// Validate applies rule to value. context is the row's stop type and is only
// read by CodeRule.
func Validate(rule Rule, value, context string) bool {
	switch r := rule.(type) {
	case CodeRule:
		return validCode(value, context)
	case TiplocRule:
		return validTiploc(value)
	case LengthRule:
		limit := r.Max
		if limit <= 0 {
			limit = DefaultMaxLength
		}
		return utf8.RuneCountInString(value) <= limit
	case LocalityRule:
		return r.Index.Contains(value)
	default:
		return false
	}
}

// validCode checks an ATCO or stop area code.
//
// RULES:
//   - 5 to 12 characters, letters and digits only (either case)
//   - the first four characters are digits and the fourth is '0'
//   - national prefixes (first three digits) only admit their stop types
func validCode(value, stopType string) bool {
	r := []rune(value)
	if len(r) < 5 || len(r) > 12 || !isAlphanumeric(r) {
		return false
	}
	for _, c := range r[:4] {
		if !unicode.IsDigit(c) {
			return false
		}
	}
	// Many existing stops omit the leading zeros, but the schema guide requires them.
	if r[3] != '0' {
		return false
	}

	if allowed, ok := typePrefixes[string(r[:3])]; ok {
		for _, t := range allowed {
			if t == stopType {
				return true
			}
		}
		return false
	}
	return true
}

// validTiploc checks a TIPLOC: 2 to 7 letters and digits.
func validTiploc(value string) bool {
	r := []rune(value)
	return len(r) >= 2 && len(r) <= 7 && isAlphanumeric(r)
}

// isAlphanumeric rejects whitespace along with every other non letter/digit.
func isAlphanumeric(r []rune) bool {
	for _, c := range r {
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) {
			return false
		}
	}
	return true
}

// =============================================================================
// VALIDATOR SERVICE
// =============================================================================

// FieldError describes one field that failed its rule.
type FieldError struct {
	Field string
	Value string
	Rule  string
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return fmt.Sprintf("field '%s' failed %s check (value: '%s')", e.Field, e.Rule, e.Value)
}

// Validator maps field names to rules and checks whole records.
type Validator struct {
	rules map[string]Rule
}

// New creates a Validator with the standard field rules. idx backs the
// NptgLocalityRef check; a nil index rejects every locality reference.
func New(idx *locality.Index) *Validator {
	return &Validator{
		rules: map[string]Rule{
			"AtcoCode":        CodeRule{},
			"StopAreaRef":     CodeRule{},
			"TiplocRef":       TiplocRule{},
			"CommonName":      LengthRule{Max: DefaultMaxLength},
			"NptgLocalityRef": LocalityRule{Index: idx},
		},
	}
}

// WithIndex returns a copy of v whose locality rule uses idx.
func (v *Validator) WithIndex(idx *locality.Index) *Validator {
	rules := make(map[string]Rule, len(v.rules))
	for f, r := range v.rules {
		if _, ok := r.(LocalityRule); ok {
			r = LocalityRule{Index: idx}
		}
		rules[f] = r
	}
	return &Validator{rules: rules}
}

// RuleFor returns the rule checked for field, if any.
func (v *Validator) RuleFor(field string) (Rule, bool) {
	r, ok := v.rules[field]
	return r, ok
}

// ValidateField checks a single field. Fields without a rule are valid.
func (v *Validator) ValidateField(field, value, stopType string) bool {
	rule, ok := v.rules[field]
	if !ok {
		return true
	}
	return Validate(rule, value, stopType)
}

// ValidateRecord checks every ruled field present in rec. Missing values are
// skipped, matching the merge which leaves those placeholders empty. The
// StopType field supplies the code rule context.
//
// RETURNS:
//   - The failing fields sorted by name; empty when the record is valid.
func (v *Validator) ValidateRecord(rec types.Record) []FieldError {
	stopType, _ := rec.Value(types.StopTypeField)

	var errs []FieldError
	for field, value := range rec {
		if types.IsMissing(value) {
			continue
		}
		rule, ok := v.rules[field]
		if !ok {
			continue
		}
		if !Validate(rule, value, stopType) {
			errs = append(errs, FieldError{Field: field, Value: value, Rule: rule.Name()})
		}
	}

	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

// FormatErrors joins field errors for a single log line.
func FormatErrors(errs []FieldError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}
