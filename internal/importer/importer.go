// =============================================================================
// NaPTAN Import - Merge Orchestrator
// =============================================================================
//
// This module drives one batch of request rows into the registry documents.
//
// PER-ROW STATE MACHINE (keyed by primary key within the target section):
//
//   NotPresent                 --insert-->          Present   (created)
//   Present, overwrite=false   --reject-->          Present   (duplicate key, no mutation)
//   Present, overwrite=true    --delete, insert-->  Present   (overwritten, full replace)
//
// PROCESSING PIPELINE (per row):
//   1. Read the primary key and select the target document
//   2. Check whether the key is already present
//   3. Apply the validation policy
//   4. Load the template and merge the row into a fragment
//   5. Delete the old fragment when overwriting, then insert the new one
//   6. Rebuild the locality index after a locality mutation
//
// Rows run one at a time in sheet order: localities, then stops, then stop
// areas. A failing row is recorded in the report and the batch moves on.
//
// =============================================================================

package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/ginjaninja78/naptan-xml-import/internal/config"
	"github.com/ginjaninja78/naptan-xml-import/internal/converter"
	"github.com/ginjaninja78/naptan-xml-import/internal/locality"
	"github.com/ginjaninja78/naptan-xml-import/internal/types"
	"github.com/ginjaninja78/naptan-xml-import/internal/validation"
	"github.com/google/uuid"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options controls how rows are merged.
type Options struct {
	// Overwrite replaces entities whose primary key is already present.
	Overwrite bool

	// Policy decides what a validation failure does to a row.
	Policy config.Policy
}

// Documents is the registry document store rows are merged into.
// *docstore.Store implements it.
type Documents interface {
	locality.KeyLister
	LocalityDocument() string
	Path(document string) string
	DocumentFor(kind types.Kind, key string) (string, error)
	Exists(key string, document string, section types.Section) (bool, error)
	Insert(fragment *etree.Element, document string, section types.Section) error
	Delete(key string, document string, section types.Section) (bool, error)
}

// =============================================================================
// IMPORTER
// =============================================================================

// Importer merges request rows into registry documents. It owns the
// locality index for the duration of a batch and is not safe for
// concurrent use.
type Importer struct {
	store     Documents
	templates *converter.Library
	index     *locality.Index
	validator *validation.Validator
	opts      Options
	logger    *slog.Logger
	now       func() time.Time

	report *types.Report
}

// New creates an Importer.
//
// PARAMETERS:
//   - store: The registry document store.
//   - templates: The template library.
//   - index: The initial locality index; may be nil.
//   - opts: Overwrite and validation settings.
//   - logger: Receives a structured copy of every report log entry.
func New(store Documents, templates *converter.Library, index *locality.Index, opts Options, logger *slog.Logger) *Importer {
	if opts.Policy == "" {
		opts.Policy = config.PolicyAdvisory
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		store:     store,
		templates: templates,
		index:     index,
		validator: validation.New(index),
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Index returns the current locality index.
func (im *Importer) Index() *locality.Index {
	return im.index
}

// Run processes every row of the batch.
//
// PARAMETERS:
//   - ctx: Checked between rows. A cancelled batch stops before its next
//     row; rows already merged stay merged.
//   - batch: The request rows.
//
// RETURNS:
//   - The batch report: one result per processed row and the ordered log.
func (im *Importer) Run(ctx context.Context, batch types.Batch) *types.Report {
	runID := uuid.New().String()
	im.report = &types.Report{
		RunID:   runID,
		Source:  batch.Source,
		Started: im.now(),
		Rows:    make([]types.RowResult, 0, batch.Len()),
	}
	logger := im.logger.With("run_id", runID)
	defer func() { im.report = nil }()

	im.log(logger, types.LevelInfo, fmt.Sprintf("importing %s (%d rows)", batch.Source, batch.Len()))

	sheets := []struct {
		kind types.Kind
		rows []types.Record
	}{
		{types.KindLocality, batch.Localities},
		{types.KindStop, batch.Stops},
		{types.KindStopArea, batch.StopAreas},
	}

rows:
	for _, sheet := range sheets {
		for i, rec := range sheet.rows {
			if err := ctx.Err(); err != nil {
				im.log(logger, types.LevelWarn, fmt.Sprintf("import cancelled: %v", err))
				break rows
			}
			im.report.Rows = append(im.report.Rows, im.importRow(logger, sheet.kind, i+1, rec))
		}
	}

	report := im.report
	report.Finished = im.now()
	im.log(logger, types.LevelInfo, fmt.Sprintf("finished: %d created, %d overwritten, %d rejected, %d failed",
		report.Count(types.StatusCreated),
		report.Count(types.StatusOverwritten),
		report.Count(types.StatusRejected),
		report.Count(types.StatusFailed)))
	return report
}

// importRow merges one row and records its outcome in the log.
func (im *Importer) importRow(logger *slog.Logger, kind types.Kind, row int, rec types.Record) types.RowResult {
	res := types.RowResult{Kind: kind, Row: row}
	logger = logger.With("kind", string(kind), "row", row)

	status, removed, err := im.merge(logger, &res, rec)
	if err != nil {
		res.Status = types.StatusFor(err)
		res.Err = err
		im.log(logger, types.LevelError, rowError(res))
		if removed && kind == types.KindLocality {
			im.rebuildIndex(logger)
		}
		return res
	}

	res.Status = status
	verb, prep := "added", "to"
	if status == types.StatusOverwritten {
		verb, prep = "overwrote", "in"
	}
	im.log(logger, types.LevelInfo, fmt.Sprintf("%s %s %s %s file: %s", verb, kind, res.Key, prep, im.store.Path(res.Document)))

	if kind == types.KindLocality {
		im.rebuildIndex(logger)
	}
	return res
}

// merge runs the per-row pipeline. It fills res.Key and res.Document as
// soon as they are known. removed reports whether the previous entity was
// deleted, which stays true when the following insert fails.
func (im *Importer) merge(logger *slog.Logger, res *types.RowResult, rec types.Record) (status types.Status, removed bool, err error) {
	kind := res.Kind
	section := kind.Section()

	key, ok := rec.Value(kind.KeyField())
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", false, fmt.Errorf("%w: %s", types.ErrMissingKey, kind.KeyField())
	}
	res.Key = key

	document, err := im.store.DocumentFor(kind, key)
	if err != nil {
		return "", false, err
	}
	res.Document = document

	exists, err := im.store.Exists(key, document, section)
	if err != nil {
		return "", false, err
	}
	if exists && !im.opts.Overwrite {
		return "", false, fmt.Errorf("%w: %s %s", types.ErrDuplicateKey, kind.KeyField(), key)
	}

	if err := im.checkFields(logger, res, rec); err != nil {
		return "", false, err
	}

	tmpl, err := im.templates.Load(TemplateName(kind, rec))
	if err != nil {
		return "", false, err
	}
	fragment, err := converter.Merge(tmpl, rec)
	if err != nil {
		return "", false, err
	}

	status = types.StatusCreated
	if exists {
		removed, err = im.store.Delete(key, document, section)
		if err != nil {
			return "", false, err
		}
		if removed {
			status = types.StatusOverwritten
		} else {
			logger.Warn("entity disappeared before overwrite, inserting it as new", "key", key, "document", document)
		}
	}
	if err := im.store.Insert(fragment, document, section); err != nil {
		if removed {
			err = fmt.Errorf("%w (previous %s %s was already removed)", err, kind, key)
		}
		return "", removed, err
	}
	return status, removed, nil
}

// checkFields applies the validation policy to rec.
func (im *Importer) checkFields(logger *slog.Logger, res *types.RowResult, rec types.Record) error {
	if im.opts.Policy == config.PolicyOff {
		return nil
	}

	failures := im.validator.ValidateRecord(rec)
	if len(failures) == 0 {
		return nil
	}

	msg := validation.FormatErrors(failures)
	if im.opts.Policy == config.PolicyEnforce {
		return fmt.Errorf("%w: %s", types.ErrValidation, msg)
	}

	im.log(logger, types.LevelWarn, fmt.Sprintf("WARNING! %s %s: %s", res.Kind, res.Key, msg))
	return nil
}

// rebuildIndex reloads the locality index from the locality document.
func (im *Importer) rebuildIndex(logger *slog.Logger) {
	idx, err := locality.FromDocument(im.store, im.store.LocalityDocument())
	if err != nil {
		im.log(logger, types.LevelWarn, fmt.Sprintf("locality index not rebuilt: %v", err))
		return
	}
	im.index = idx
	im.validator = im.validator.WithIndex(idx)
	logger.Debug("locality index rebuilt", "codes", idx.Len())
}

// log appends an entry to the report and mirrors it to slog.
func (im *Importer) log(logger *slog.Logger, level types.Level, msg string) {
	if im.report != nil {
		im.report.Log = append(im.report.Log, types.LogEntry{Time: im.now(), Level: level, Message: msg})
	}

	switch level {
	case types.LevelError:
		logger.Error(msg)
	case types.LevelWarn:
		logger.Warn(msg)
	default:
		logger.Info(msg)
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// TemplateName returns the template a row of the kind is merged into:
// the row's StopType for stops, a fixed name for stop areas and localities.
func TemplateName(kind types.Kind, rec types.Record) string {
	switch kind {
	case types.KindStopArea:
		return types.StopAreaTemplate
	case types.KindLocality:
		return types.LocalityTemplate
	default:
		name, _ := rec.Value(types.StopTypeField)
		return name
	}
}

// rowError renders a failed or rejected row for the log.
func rowError(res types.RowResult) string {
	if errors.Is(res.Err, types.ErrDuplicateKey) {
		return fmt.Sprintf("ERROR! %s %s already in xml file!", res.Kind.KeyField(), res.Key)
	}
	if res.Key == "" {
		return fmt.Sprintf("ERROR! %s row %d: %v", res.Kind, res.Row, res.Err)
	}
	return fmt.Sprintf("ERROR! %s %s (row %d): %v", res.Kind, res.Key, res.Row, res.Err)
}
