// =============================================================================
// NaPTAN Import - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the importer, including:
//   - Registry directory management
//   - Detection of missing registry documents
//   - Atomic replacement of downloaded documents
//   - Run log generation
//
// REFRESH STRATEGY:
//   - A refresh deletes the downloaded documents and fetches each again; other
//     files in the registry directory are kept
//   - A download is written to a temporary file and renamed into place, so a
//     failed transfer never leaves a truncated document behind
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ginjaninja78/naptan-xml-import/internal/types"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations on the registry directory.
type FileManager struct {
	// RegistryDir is the directory holding the registry documents.
	RegistryDir string
}

// NewFileManager creates a new FileManager for the registry directory.
func NewFileManager(registryDir string) *FileManager {
	return &FileManager{RegistryDir: registryDir}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the registry directory if it doesn't exist.
//
// RETURNS:
//   - An error if the directory cannot be created.
func (fm *FileManager) EnsureDirectories() error {
	if err := os.MkdirAll(fm.RegistryDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fm.RegistryDir, err)
	}
	return nil
}

// Reset removes the named documents from the registry directory. Every other
// file in the directory, such as the locality document, is left in place.
//
// PARAMETERS:
//   - names: Registry file names, e.g. "910.xml". Absent files are skipped.
func (fm *FileManager) Reset(names []string) error {
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}
	for _, name := range names {
		if filepath.Base(name) != name {
			return fmt.Errorf("invalid document name %q", name)
		}
		path := filepath.Join(fm.RegistryDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

// =============================================================================
// DOCUMENT DISCOVERY
// =============================================================================

// MissingDocuments returns the required documents absent from the registry
// directory, sorted.
//
// PARAMETERS:
//   - required: Registry file names, e.g. "910.xml".
func (fm *FileManager) MissingDocuments(required []string) []string {
	var missing []string
	for _, name := range required {
		if !FileExists(filepath.Join(fm.RegistryDir, name)) {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Documents lists the .xml files in the registry directory, sorted.
func (fm *FileManager) Documents() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(fm.RegistryDir, "*.xml"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", fm.RegistryDir, err)
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Strings(names)
	return names, nil
}

// =============================================================================
// DOCUMENT WRITES
// =============================================================================

// WriteDocument stores the contents of r as the named registry document.
//
// PARAMETERS:
//   - name: The registry file name.
//   - r: The document bytes.
//
// RETURNS:
//   - The path written.
//   - An error if writing fails. The previous document, if any, is kept.
func (fm *FileManager) WriteDocument(name string, r io.Reader) (string, error) {
	if filepath.Base(name) != name {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	if err := fm.EnsureDirectories(); err != nil {
		return "", err
	}

	path := filepath.Join(fm.RegistryDir, name)
	tmp, err := os.CreateTemp(fm.RegistryDir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return path, nil
}

// =============================================================================
// RUN LOG
// =============================================================================

// WriteRunLog writes the progress log and row outcomes of a batch.
//
// PARAMETERS:
//   - report: The batch report.
//   - outputDir: The directory to write the log file.
//
// RETURNS:
//   - The path to the log file.
//   - An error if writing fails.
func WriteRunLog(report *types.Report, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", outputDir, err)
	}

	short := report.RunID
	if len(short) > 8 {
		short = short[:8]
	}
	name := fmt.Sprintf("import_log_%s_%s.txt", report.Started.Format("20060102_150405"), short)
	logPath := filepath.Join(outputDir, name)

	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create run log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "NaPTAN Import - Run Log\n"+
		"Run ID:      %s\n"+
		"Source:      %s\n"+
		"Started:     %s\n"+
		"Duration:    %s\n"+
		"Created:     %d\n"+
		"Overwritten: %d\n"+
		"Rejected:    %d\n"+
		"Failed:      %d\n"+
		"================================================================================\n\n",
		report.RunID,
		report.Source,
		report.Started.Format("2006-01-02 15:04:05"),
		report.Elapsed().Round(time.Millisecond),
		report.Count(types.StatusCreated),
		report.Count(types.StatusOverwritten),
		report.Count(types.StatusRejected),
		report.Count(types.StatusFailed))

	writer.WriteString("--OUTPUT LOG--\n")
	for _, entry := range report.Log {
		writer.WriteString(entry.String() + "\n")
	}

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush run log: %w", err)
	}

	return logPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
