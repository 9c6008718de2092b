package types

import "errors"

// Row and operation errors. Components wrap these with context using %w;
// callers classify with errors.Is.
var (
	// ErrDuplicateKey means the primary key already exists and overwrite was not requested.
	ErrDuplicateKey = errors.New("primary key already present")

	// ErrTemplateMissing means no template skeleton exists for the row's subtype.
	ErrTemplateMissing = errors.New("template not found")

	// ErrDateParse means a Date attribute value could not be parsed as ISO-8601.
	ErrDateParse = errors.New("invalid date/time value")

	// ErrDocumentIO means a registry document could not be read, parsed or written.
	ErrDocumentIO = errors.New("registry document error")

	// ErrReferenceFetch means a reference dataset or registry download failed.
	ErrReferenceFetch = errors.New("reference fetch failed")

	// ErrMissingKey means the row has no primary key value.
	ErrMissingKey = errors.New("primary key missing")

	// ErrValidation means the enforce policy rejected the row.
	ErrValidation = errors.New("field validation failed")
)
