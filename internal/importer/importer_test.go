package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/ginjaninja78/naptan-xml-import/internal/config"
	"github.com/ginjaninja78/naptan-xml-import/internal/converter"
	"github.com/ginjaninja78/naptan-xml-import/internal/docstore"
	"github.com/ginjaninja78/naptan-xml-import/internal/locality"
	"github.com/ginjaninja78/naptan-xml-import/internal/logging"
	"github.com/ginjaninja78/naptan-xml-import/internal/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const railTemplate = `<StopPoint CreationDateTime="" ModificationDateTime="" Modification="" RevisionNumber="" Status="">
  <AtcoCode></AtcoCode>
  <Descriptor>
    <CommonName></CommonName>
    <Landmark></Landmark>
  </Descriptor>
  <Place>
    <NptgLocalityRef></NptgLocalityRef>
  </Place>
  <StopClassification>
    <StopType>RLY</StopType>
  </StopClassification>
</StopPoint>
`

const areaTemplate = `<StopArea CreationDateTime="" Status="">
  <StopAreaCode></StopAreaCode>
  <Name></Name>
</StopArea>
`

const localityTemplate = `<NptgLocality CreationDateTime="">
  <NptgLocalityCode></NptgLocalityCode>
  <LocalityName></LocalityName>
</NptgLocality>
`

const railDocument = `<?xml version="1.0" encoding="UTF-8"?>
<NaPTAN xmlns="http://www.naptan.org.uk/">
  <StopPoints>
    <StopPoint Status="active">
      <AtcoCode>9100AAA</AtcoCode>
      <Descriptor>
        <CommonName>Alpha</CommonName>
        <Landmark>Old</Landmark>
      </Descriptor>
    </StopPoint>
  </StopPoints>
  <StopAreas/>
</NaPTAN>
`

const gazetteer = `<?xml version="1.0" encoding="UTF-8"?>
<NationalPublicTransportGazetteer>
  <NptgLocalities>
    <NptgLocality><NptgLocalityCode>E0000001</NptgLocalityCode></NptgLocality>
  </NptgLocalities>
</NationalPublicTransportGazetteer>
`

type fixture struct {
	store     *docstore.Store
	templates *converter.Library
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()

	tmplDir := filepath.Join(root, "xml templates")
	regDir := filepath.Join(root, "downloaded_xmls")
	require.NoError(t, os.MkdirAll(tmplDir, 0755))
	require.NoError(t, os.MkdirAll(regDir, 0755))

	files := map[string]string{
		filepath.Join(tmplDir, "RLY.xml"):           railTemplate,
		filepath.Join(tmplDir, "StopArea.xml"):      areaTemplate,
		filepath.Join(tmplDir, "NptgLocality.xml"):  localityTemplate,
		filepath.Join(regDir, "910.xml"):            railDocument,
		filepath.Join(regDir, "NptgLocalities.xml"): gazetteer,
	}
	for path, content := range files {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	return fixture{
		store:     docstore.New(regDir, "NptgLocalities.xml"),
		templates: converter.NewLibrary(tmplDir),
	}
}

func (f fixture) importer(t *testing.T, opts Options) *Importer {
	t.Helper()
	idx, err := locality.FromDocument(f.store, f.store.LocalityDocument())
	require.NoError(t, err)
	return New(f.store, f.templates, idx, opts, logging.Discard())
}

func (f fixture) keys(t *testing.T, document string, section types.Section) []string {
	t.Helper()
	keys, err := f.store.Keys(document, section)
	require.NoError(t, err)
	return keys
}

func stop(code string, fields ...string) types.Record {
	rec := types.Record{"AtcoCode": code, "StopType": "RLY"}
	for i := 0; i+1 < len(fields); i += 2 {
		rec[fields[i]] = fields[i+1]
	}
	return rec
}

func logText(r *types.Report) string {
	lines := make([]string, len(r.Log))
	for i, e := range r.Log {
		lines[i] = e.Message
	}
	return strings.Join(lines, "\n")
}

func TestRun_CreatesEntities(t *testing.T) {
	f := newFixture(t)
	im := f.importer(t, Options{})

	report := im.Run(context.Background(), types.Batch{
		Source:     "request.xlsx",
		Stops:      []types.Record{stop("9100BBB", "CommonName", "Beta & Sons", "CreationDateTime", "2020-01-01")},
		StopAreas:  []types.Record{{"StopAreaCode": "910GBBB", "Name": "Beta", "Status": "active"}},
		Localities: []types.Record{{"NptgLocalityCode": "E0000002", "LocalityName": "Beta"}},
	})

	_, err := uuid.Parse(report.RunID)
	assert.NoError(t, err)
	assert.Equal(t, "request.xlsx", report.Source)
	assert.False(t, report.Finished.Before(report.Started))

	require.Len(t, report.Rows, 3)
	assert.Equal(t, types.KindLocality, report.Rows[0].Kind)
	assert.Equal(t, types.KindStop, report.Rows[1].Kind)
	assert.Equal(t, types.KindStopArea, report.Rows[2].Kind)
	for _, row := range report.Rows {
		assert.Equal(t, types.StatusCreated, row.Status, row.Key)
		assert.NoError(t, row.Err)
		assert.Equal(t, 1, row.Row)
	}
	assert.Equal(t, 3, report.Count(types.StatusCreated))

	assert.Equal(t, []string{"9100AAA", "9100BBB"}, f.keys(t, "910.xml", types.SectionStopPoints))
	assert.Equal(t, []string{"910GBBB"}, f.keys(t, "910.xml", types.SectionStopAreas))
	assert.Equal(t, []string{"E0000001", "E0000002"}, f.keys(t, "NptgLocalities.xml", types.SectionNptgLocalities))

	el, err := f.store.Entity("9100BBB", "910.xml", types.SectionStopPoints)
	require.NoError(t, err)
	assert.Equal(t, "Beta & Sons", el.FindElement("./Descriptor/CommonName").Text())
	assert.Equal(t, "2020-01-01T00:00:00", el.SelectAttrValue("CreationDateTime", ""))

	logs := logText(report)
	assert.Contains(t, logs, "added stop 9100BBB to file: "+f.store.Path("910.xml"))
	assert.Contains(t, logs, "added stop area 910GBBB to file: "+f.store.Path("910.xml"))
	assert.Contains(t, logs, "added locality E0000002 to file: "+f.store.Path("NptgLocalities.xml"))
	assert.True(t, im.Index().Contains("E0000002"))
}

func TestRun_DuplicateRejected(t *testing.T) {
	f := newFixture(t)
	im := f.importer(t, Options{})

	before, err := os.ReadFile(f.store.Path("910.xml"))
	require.NoError(t, err)

	report := im.Run(context.Background(), types.Batch{
		Stops: []types.Record{stop("9100AAA", "CommonName", "Replacement")},
	})

	require.Len(t, report.Rows, 1)
	row := report.Rows[0]
	assert.Equal(t, types.StatusRejected, row.Status)
	assert.ErrorIs(t, row.Err, types.ErrDuplicateKey)
	assert.Equal(t, "9100AAA", row.Key)
	assert.Equal(t, "910.xml", row.Document)

	after, err := os.ReadFile(f.store.Path("910.xml"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Contains(t, logText(report), "ERROR! AtcoCode 9100AAA already in xml file!")
}

func TestRun_SecondInsertOfSameKeyInBatch(t *testing.T) {
	f := newFixture(t)
	im := f.importer(t, Options{})

	report := im.Run(context.Background(), types.Batch{
		Stops: []types.Record{
			stop("9100CCC", "CommonName", "First"),
			stop("9100CCC", "CommonName", "Second"),
		},
	})

	require.Len(t, report.Rows, 2)
	assert.Equal(t, types.StatusCreated, report.Rows[0].Status)
	assert.Equal(t, types.StatusRejected, report.Rows[1].Status)
	assert.Equal(t, 2, report.Rows[1].Row)

	el, err := f.store.Entity("9100CCC", "910.xml", types.SectionStopPoints)
	require.NoError(t, err)
	assert.Equal(t, "First", el.FindElement("./Descriptor/CommonName").Text())
}

func TestRun_OverwriteReplaces(t *testing.T) {
	f := newFixture(t)
	im := f.importer(t, Options{Overwrite: true})

	report := im.Run(context.Background(), types.Batch{
		Stops: []types.Record{stop("9100AAA", "CommonName", "Alpha Two", "Landmark", types.MissingValue)},
	})

	require.Len(t, report.Rows, 1)
	assert.Equal(t, types.StatusOverwritten, report.Rows[0].Status)
	assert.Equal(t, []string{"9100AAA"}, f.keys(t, "910.xml", types.SectionStopPoints))

	el, err := f.store.Entity("9100AAA", "910.xml", types.SectionStopPoints)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Two", el.FindElement("./Descriptor/CommonName").Text())
	assert.Equal(t, "", el.FindElement("./Descriptor/Landmark").Text(), "no residue from the replaced entity")
	assert.Equal(t, "", el.SelectAttrValue("Status", "x"))
	assert.Contains(t, logText(report), "overwrote stop 9100AAA in file:")
}

func TestRun_OverwriteMergeFailureKeepsExisting(t *testing.T) {
	f := newFixture(t)
	im := f.importer(t, Options{Overwrite: true})

	report := im.Run(context.Background(), types.Batch{
		Stops: []types.Record{stop("9100AAA", "CommonName", "Broken", "ModificationDateTime", "last tuesday")},
	})

	require.Len(t, report.Rows, 1)
	assert.Equal(t, types.StatusFailed, report.Rows[0].Status)
	assert.ErrorIs(t, report.Rows[0].Err, types.ErrDateParse)

	el, err := f.store.Entity("9100AAA", "910.xml", types.SectionStopPoints)
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Equal(t, "Alpha", el.FindElement("./Descriptor/CommonName").Text())
}

func TestRun_RowFailuresDoNotStopBatch(t *testing.T) {
	f := newFixture(t)
	im := f.importer(t, Options{})

	report := im.Run(context.Background(), types.Batch{
		Stops: []types.Record{
			{"AtcoCode": "9100DDD", "StopType": "MET"},
			{"AtcoCode": types.MissingValue, "StopType": "RLY"},
			stop("9100EEE", "CreationDateTime", "01/02/2020"),
			stop("9300FFF"),
			{"AtcoCode": "9100GGG"},
			stop("9100HHH", "CommonName", "Last"),
		},
	})

	require.Len(t, report.Rows, 6)
	assert.ErrorIs(t, report.Rows[0].Err, types.ErrTemplateMissing)
	assert.ErrorIs(t, report.Rows[1].Err, types.ErrMissingKey)
	assert.ErrorIs(t, report.Rows[2].Err, types.ErrDateParse)
	assert.ErrorIs(t, report.Rows[3].Err, types.ErrDocumentIO)
	assert.ErrorIs(t, report.Rows[4].Err, types.ErrTemplateMissing)
	assert.Equal(t, types.StatusCreated, report.Rows[5].Status)

	assert.Equal(t, 5, report.Count(types.StatusFailed))
	assert.Equal(t, []string{"9100AAA", "9100HHH"}, f.keys(t, "910.xml", types.SectionStopPoints))
	assert.Contains(t, logText(report), "ERROR! stop row 2:")
}

func TestRun_EnforcePolicy(t *testing.T) {
	f := newFixture(t)
	im := f.importer(t, Options{Policy: config.PolicyEnforce})

	report := im.Run(context.Background(), types.Batch{
		Localities: []types.Record{{"NptgLocalityCode": "E0000009", "LocalityName": "New"}},
		Stops: []types.Record{
			stop("9100JJJ", "NptgLocalityRef", "E0000009"),
			stop("9100KKK", "NptgLocalityRef", "E0000404"),
			stop("9100LLL", "CommonName", strings.Repeat("x", 101)),
			{"AtcoCode": "9100MMM", "StopType": "BCT"},
		},
	})

	require.Len(t, report.Rows, 5)
	assert.Equal(t, types.StatusCreated, report.Rows[0].Status)
	assert.Equal(t, types.StatusCreated, report.Rows[1].Status, "locality from the same batch is known")

	for _, row := range report.Rows[2:] {
		assert.Equal(t, types.StatusRejected, row.Status, row.Key)
		assert.ErrorIs(t, row.Err, types.ErrValidation, row.Key)
	}
	assert.Contains(t, report.Rows[2].Err.Error(), "NptgLocalityRef")
	assert.Contains(t, report.Rows[3].Err.Error(), "CommonName")
	assert.Contains(t, report.Rows[4].Err.Error(), "AtcoCode")

	assert.Equal(t, []string{"9100AAA", "9100JJJ"}, f.keys(t, "910.xml", types.SectionStopPoints))
}

func TestRun_AdvisoryPolicy(t *testing.T) {
	f := newFixture(t)
	im := f.importer(t, Options{Policy: config.PolicyAdvisory})

	report := im.Run(context.Background(), types.Batch{
		Stops: []types.Record{stop("9100NNN", "NptgLocalityRef", "E0000404")},
	})

	require.Len(t, report.Rows, 1)
	assert.Equal(t, types.StatusCreated, report.Rows[0].Status)

	var warned bool
	for _, e := range report.Log {
		if e.Level == types.LevelWarn && strings.Contains(e.Message, "NptgLocalityRef") {
			warned = true
		}
	}
	assert.True(t, warned, "advisory failures are logged as warnings")
}

func TestRun_PolicyOff(t *testing.T) {
	f := newFixture(t)
	im := f.importer(t, Options{Policy: config.PolicyOff})

	report := im.Run(context.Background(), types.Batch{
		Stops: []types.Record{stop("9100PPP", "NptgLocalityRef", "E0000404")},
	})

	require.Len(t, report.Rows, 1)
	assert.Equal(t, types.StatusCreated, report.Rows[0].Status)
	for _, e := range report.Log {
		assert.NotEqual(t, types.LevelWarn, e.Level, e.Message)
	}
}

func TestRun_OverwriteLocalityRebuildsIndex(t *testing.T) {
	f := newFixture(t)
	im := f.importer(t, Options{Overwrite: true})
	require.True(t, im.Index().Contains("E0000001"))

	report := im.Run(context.Background(), types.Batch{
		Localities: []types.Record{{"NptgLocalityCode": "E0000001", "LocalityName": "Renamed"}},
	})

	require.Len(t, report.Rows, 1)
	assert.Equal(t, types.StatusOverwritten, report.Rows[0].Status)
	assert.True(t, im.Index().Contains("E0000001"))
	assert.Equal(t, 1, im.Index().Len())
}

// failingInsert is a store whose inserts always fail.
type failingInsert struct {
	*docstore.Store
}

func (failingInsert) Insert(*etree.Element, string, types.Section) error {
	return types.ErrDocumentIO
}

func TestRun_LocalityInsertFailureAfterDeleteRebuildsIndex(t *testing.T) {
	f := newFixture(t)
	idx, err := locality.FromDocument(f.store, f.store.LocalityDocument())
	require.NoError(t, err)
	im := New(failingInsert{f.store}, f.templates, idx, Options{Overwrite: true}, logging.Discard())
	require.True(t, im.Index().Contains("E0000001"))

	report := im.Run(context.Background(), types.Batch{
		Localities: []types.Record{{"NptgLocalityCode": "E0000001", "LocalityName": "Renamed"}},
	})

	require.Len(t, report.Rows, 1)
	assert.Equal(t, types.StatusFailed, report.Rows[0].Status)
	assert.ErrorIs(t, report.Rows[0].Err, types.ErrDocumentIO)
	assert.Contains(t, report.Rows[0].Err.Error(), "already removed")
	assert.Empty(t, f.keys(t, "NptgLocalities.xml", types.SectionNptgLocalities))
	assert.False(t, im.Index().Contains("E0000001"), "index follows the deleted locality")
}

// vanishingStore reports every key as present but never finds one to delete.
type vanishingStore struct {
	*docstore.Store
}

func (vanishingStore) Exists(string, string, types.Section) (bool, error) {
	return true, nil
}

func TestRun_OverwriteOfVanishedEntityInsertsAsNew(t *testing.T) {
	f := newFixture(t)
	im := New(vanishingStore{f.store}, f.templates, locality.New(nil), Options{Overwrite: true}, logging.Discard())

	report := im.Run(context.Background(), types.Batch{Stops: []types.Record{stop("9100ZZZ")}})

	require.Len(t, report.Rows, 1)
	assert.Equal(t, types.StatusCreated, report.Rows[0].Status)
	assert.Equal(t, []string{"9100AAA", "9100ZZZ"}, f.keys(t, "910.xml", types.SectionStopPoints))
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t)
	im := f.importer(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := im.Run(ctx, types.Batch{Stops: []types.Record{stop("9100QQQ")}})
	assert.Empty(t, report.Rows)
	assert.Contains(t, logText(report), "import cancelled")
	assert.Equal(t, []string{"9100AAA"}, f.keys(t, "910.xml", types.SectionStopPoints))
}
