// =============================================================================
// NaPTAN Import - Reference CSV Parser
// =============================================================================
//
// This module parses the delimited locality reference listing published
// alongside the NPTG. Only the first column matters: it holds the locality
// code. The first row is a header and is discarded.
//
// EXAMPLE INPUT:
//   NptgLocalityCode,LocalityName,...
//   E0034964,Hyde Park,...
//   E0057898,Marble Arch,...
//
// =============================================================================

package csvparser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Settings contains settings for parsing the reference listing.
type Settings struct {
	// Delimiter is the character used to separate fields.
	// Common values: "," (comma), "|" (pipe), "\t" (tab)
	// Default: ","
	Delimiter string

	// HeaderRows is the number of leading rows to discard.
	// Default: 1
	HeaderRows int
}

// DefaultSettings returns the settings of the published listing.
func DefaultSettings() Settings {
	return Settings{Delimiter: ",", HeaderRows: 1}
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ParseFile reads the reference listing from a file.
func ParseFile(filePath string, settings Settings) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(file, settings)
}

// Parse reads a reference listing and returns the first-column codes.
//
// PARAMETERS:
//   - r: The listing contents.
//   - settings: Delimiter and header handling.
//
// RETURNS:
//   - The codes, in file order, with blank entries dropped.
//   - An error if the CSV is malformed.
func Parse(r io.Reader, settings Settings) ([]string, error) {
	reader := csv.NewReader(r)
	configureReader(reader, settings)

	var codes []string
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		line++
		if line <= settings.HeaderRows || len(record) == 0 {
			continue
		}

		code := strings.TrimSpace(record[0])
		if code == "" {
			continue
		}
		codes = append(codes, code)
	}

	return codes, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings Settings) {
	// Handle special cases for common delimiters.
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if d := []rune(settings.Delimiter); len(d) > 0 {
			reader.Comma = d[0]
		} else {
			reader.Comma = ','
		}
	}

	// Only the first column is used; row widths may differ.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true
}
