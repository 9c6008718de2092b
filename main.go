// =============================================================================
// NaPTAN Import - Main Entry Point
// =============================================================================
//
// USAGE:
//   naptan-import import    - Merge a request workbook into the registry documents
//   naptan-import refresh   - Delete and re-download the registry documents
//   naptan-import validate  - Check a request workbook against the field rules
//   naptan-import selftest  - Run the validator self-test suite
//   naptan-import version   - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Core merge engine, validation, document store, readers
//   - pkg/       : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/naptan-xml-import/cmd"
)

func main() {
	cmd.Execute()
}
