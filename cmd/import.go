// =============================================================================
// NaPTAN Import - Import Command
// =============================================================================
//
// This file defines the 'import' command, the main command for merging a
// request workbook into the registry documents.
//
// COMMAND USAGE:
//   naptan-import import --file request.xlsx [flags]
//
// FLAGS:
//   --file       : Path to the request workbook (required)
//   --overwrite  : Replace entities whose primary key already exists
//   --policy     : Validation policy: off, advisory, enforce
//   --log-dir    : Also write the run log to a file in this directory
//
// PROCESSING PIPELINE:
//   1. Download the registry documents if any are missing
//   2. Build the locality index
//   3. Read the workbook sheets
//   4. Merge every row (localities, stops, stop areas)
//   5. Print the run log and summary
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ginjaninja78/naptan-xml-import/internal/config"
	"github.com/ginjaninja78/naptan-xml-import/internal/csvparser"
	"github.com/ginjaninja78/naptan-xml-import/internal/docstore"
	"github.com/ginjaninja78/naptan-xml-import/internal/importer"
	"github.com/ginjaninja78/naptan-xml-import/internal/locality"
	"github.com/ginjaninja78/naptan-xml-import/internal/types"
	"github.com/ginjaninja78/naptan-xml-import/internal/xlsxparser"
	"github.com/ginjaninja78/naptan-xml-import/pkg/utils"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// importFile is the path of the request workbook.
var importFile string

// overwrite replaces existing entities.
var overwrite bool

// policyName overrides the configured validation policy.
var policyName string

// logDir is where the run log file is written; empty means no file.
var logDir string

// =============================================================================
// IMPORT COMMAND DEFINITION
// =============================================================================

// importCmd represents the 'import' command.
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Merge a request workbook into the registry documents",
	Long: `The import command reads the stop, stop area and locality sheets of a
request workbook and merges every row into the registry document its primary
key belongs to.

Rows are processed one at a time. A row whose primary key already exists is
rejected unless --overwrite is given. A row that fails for any reason is
reported and the import continues with the next row.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		opts := importer.Options{Overwrite: cfg.Overwrite, Policy: cfg.ValidationPolicy}
		if cmd.Flags().Changed("overwrite") {
			opts.Overwrite = overwrite
		}
		if cmd.Flags().Changed("policy") {
			p, err := config.ParsePolicy(policyName)
			if err != nil {
				return err
			}
			opts.Policy = p
		}
		return runImport(cmd.Context(), cmd.OutOrStdout(), importFile, opts)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "Path to the request workbook (.xlsx)")
	importCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace entities whose primary key already exists")
	importCmd.Flags().StringVar(&policyName, "policy", "", "Validation policy: off, advisory or enforce")
	importCmd.Flags().StringVar(&logDir, "log-dir", "", "Directory to write the run log file to")
	importCmd.MarkFlagRequired("file")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runImport merges one workbook and prints its report.
func runImport(ctx context.Context, out io.Writer, path string, opts importer.Options) error {
	fm := newFileManager()
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}

	// =========================================================================
	// STEP 1: REGISTRY DOCUMENTS
	// =========================================================================

	if missing := fm.MissingDocuments(documentNames()); len(missing) > 0 {
		if !cfg.NaPTAN.AutoDownloadEnabled() {
			logger.Warn("registry documents missing", "documents", missing)
		} else {
			fmt.Fprintln(out, "Missing registry documents found, downloading from the NaPTAN website")
			if err := downloadDocuments(ctx, out, fm, newClient(), missing); err != nil {
				return err
			}
		}
	}

	// =========================================================================
	// STEP 2: LOCALITY INDEX
	// =========================================================================

	store := newStore()
	idx, err := loadLocalityIndex(ctx, store)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 3: READ THE WORKBOOK
	// =========================================================================

	batch, err := xlsxparser.ReadBatch(path, cfg.Sheets)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 4: MERGE
	// =========================================================================

	im := importer.New(store, newLibrary(), idx, opts, logger)
	report := im.Run(ctx, batch)

	// =========================================================================
	// STEP 5: REPORT
	// =========================================================================

	printReport(out, report)

	if logDir != "" {
		logPath, err := utils.WriteRunLog(report, logDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Run log written to %s\n", logPath)
	}

	return ctx.Err()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// loadLocalityIndex builds the locality index from the configured reference
// listing, or from the locality document when none is configured.
//
// RETURNS:
//   - The index. When the locality document is absent the index is empty
//     and a warning is logged.
//   - An error if a configured reference listing cannot be read.
func loadLocalityIndex(ctx context.Context, store *docstore.Store) (*locality.Index, error) {
	ref := cfg.LocalityReference
	settings := csvparser.DefaultSettings()
	settings.Delimiter = ref.Delimiter

	switch {
	case ref.File != "":
		f, err := os.Open(ref.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open locality reference: %w", err)
		}
		defer f.Close()
		idx, err := locality.FromReference(f, settings)
		if err != nil {
			return nil, err
		}
		logger.Info("locality index loaded", "source", ref.File, "codes", idx.Len())
		return idx, nil

	case ref.URL != "":
		body, err := newClient().Get(ctx, ref.URL)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		idx, err := locality.FromReference(body, settings)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrReferenceFetch, err)
		}
		logger.Info("locality index loaded", "source", ref.URL, "codes", idx.Len())
		return idx, nil
	}

	idx, err := locality.FromDocument(store, store.LocalityDocument())
	if err != nil {
		if errors.Is(err, types.ErrDocumentIO) {
			logger.Warn("locality document unavailable, locality references will not validate", "error", err)
			return locality.New(nil), nil
		}
		return nil, err
	}
	logger.Info("locality index loaded", "source", store.Path(store.LocalityDocument()), "codes", idx.Len())
	return idx, nil
}

// printReport writes the run log and a summary.
func printReport(out io.Writer, report *types.Report) {
	fmt.Fprintln(out, "--OUTPUT LOG--")
	for _, entry := range report.Log {
		fmt.Fprintln(out, entry.String())
	}

	fmt.Fprintln(out, "\n=== Import Complete ===")
	fmt.Fprintf(out, "Run ID:          %s\n", report.RunID)
	fmt.Fprintf(out, "Rows:            %d\n", len(report.Rows))
	fmt.Fprintf(out, "Created:         %d\n", report.Count(types.StatusCreated))
	fmt.Fprintf(out, "Overwritten:     %d\n", report.Count(types.StatusOverwritten))
	fmt.Fprintf(out, "Rejected:        %d\n", report.Count(types.StatusRejected))
	fmt.Fprintf(out, "Failed:          %d\n", report.Count(types.StatusFailed))
	fmt.Fprintf(out, "Time elapsed:    %s\n", report.Elapsed())
}
