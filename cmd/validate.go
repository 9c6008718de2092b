// =============================================================================
// NaPTAN Import - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which checks a request workbook
// without touching the registry documents.
//
// COMMAND USAGE:
//   naptan-import validate --file request.xlsx
//
// CHECKS (per row):
//   - Field rules: AtcoCode, StopAreaRef, TiplocRef, CommonName, NptgLocalityRef
//   - A template exists for the row
//   - Columns no template placeholder accepts (reported once per template)
//
// The command exits non-zero when any row fails a field rule or has no
// template.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ginjaninja78/naptan-xml-import/internal/converter"
	"github.com/ginjaninja78/naptan-xml-import/internal/importer"
	"github.com/ginjaninja78/naptan-xml-import/internal/types"
	"github.com/ginjaninja78/naptan-xml-import/internal/validation"
	"github.com/ginjaninja78/naptan-xml-import/internal/xlsxparser"
	"github.com/spf13/cobra"
)

// validateFile is the path of the workbook to check.
var validateFile string

// validateCmd represents the 'validate' command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a request workbook against the field rules",
	Long: `The validate command runs the field rules over every row of a request
workbook and checks that each row has a template. No registry document is
modified.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd.Context(), cmd.OutOrStdout(), validateFile)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "Path to the request workbook (.xlsx)")
	validateCmd.MarkFlagRequired("file")
}

// runValidate checks every row of the workbook.
func runValidate(ctx context.Context, out io.Writer, path string) error {
	idx, err := loadLocalityIndex(ctx, newStore())
	if err != nil {
		return err
	}

	batch, err := xlsxparser.ReadBatch(path, cfg.Sheets)
	if err != nil {
		return err
	}

	v := validation.New(idx)
	lib := newLibrary()
	unused := make(map[string]map[string]struct{})
	placeholders := make(map[string]map[string]struct{})

	sheets := []struct {
		kind types.Kind
		rows []types.Record
	}{
		{types.KindLocality, batch.Localities},
		{types.KindStop, batch.Stops},
		{types.KindStopArea, batch.StopAreas},
	}

	failed := 0
	for _, sheet := range sheets {
		for i, rec := range sheet.rows {
			label := rowLabel(sheet.kind, i+1, rec)
			bad := false

			if errs := v.ValidateRecord(rec); len(errs) > 0 {
				fmt.Fprintf(out, "%s: %s\n", label, validation.FormatErrors(errs))
				bad = true
			}

			name := importer.TemplateName(sheet.kind, rec)
			accepted, ok := placeholders[name]
			if !ok {
				accepted, err = templateFields(lib, name)
				if err != nil && !errors.Is(err, types.ErrTemplateMissing) {
					return err
				}
				placeholders[name] = accepted
			}
			if accepted == nil {
				fmt.Fprintf(out, "%s: no template %q in %s\n", label, name, lib.Dir())
				bad = true
			} else {
				collectUnused(unused, name, accepted, rec)
			}

			if bad {
				failed++
			}
		}
	}

	printUnused(out, unused)

	fmt.Fprintf(out, "\n%d of %d rows failed validation\n", failed, batch.Len())
	if failed > 0 {
		return fmt.Errorf("%d rows failed validation", failed)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// rowLabel names a row in the output.
func rowLabel(kind types.Kind, row int, rec types.Record) string {
	if key, ok := rec.Value(kind.KeyField()); ok {
		return fmt.Sprintf("%s row %d (%s)", kind, row, key)
	}
	return fmt.Sprintf("%s row %d", kind, row)
}

// templateFields returns the placeholder set of a template, or nil if the
// template does not exist.
func templateFields(lib *converter.Library, name string) (map[string]struct{}, error) {
	tmpl, err := lib.Load(name)
	if err != nil {
		return nil, err
	}
	fields, err := converter.Placeholders(tmpl)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set, nil
}

// collectUnused records the non-missing columns of rec the template ignores.
func collectUnused(unused map[string]map[string]struct{}, name string, accepted map[string]struct{}, rec types.Record) {
	for field, value := range rec {
		if types.IsMissing(value) || field == types.StopTypeField {
			continue
		}
		if _, ok := accepted[field]; ok {
			continue
		}
		if unused[name] == nil {
			unused[name] = make(map[string]struct{})
		}
		unused[name][field] = struct{}{}
	}
}

// printUnused lists, per template, the columns that will be dropped on import.
func printUnused(out io.Writer, unused map[string]map[string]struct{}) {
	names := make([]string, 0, len(unused))
	for name := range unused {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fields := make([]string, 0, len(unused[name]))
		for f := range unused[name] {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		fmt.Fprintf(out, "template %s ignores columns: %v\n", name, fields)
	}
}
