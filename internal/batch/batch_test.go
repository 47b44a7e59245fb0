package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/heartrisk/internal/classifier"
	"github.com/Skufu/heartrisk/internal/patient"
	"github.com/Skufu/heartrisk/internal/table"
)

// stubClassifier returns fixed labels and records what it was given.
type stubClassifier struct {
	labels []classifier.Label
	err    error
	seen   *table.Table
	calls  int
}

func (s *stubClassifier) Predict(_ context.Context, t *table.Table) ([]classifier.Label, error) {
	s.calls++
	s.seen = t
	if s.err != nil {
		return nil, s.err
	}
	return s.labels, nil
}

func (s *stubClassifier) Name() string { return "stub" }

func featureRow(age string) []string {
	return []string{age, "1", "0", "145", "233", "1", "0", "150", "0", "2.3", "0", "0", "0"}
}

// sampleTable has an extra leading id column and three rows.
func sampleTable() *table.Table {
	header := append([]string{"patient_id"}, patient.FeatureColumns...)
	rows := [][]string{
		append([]string{"a"}, featureRow("63")...),
		append([]string{"b"}, featureRow("37")...),
		append([]string{"c"}, featureRow("41")...),
	}
	return &table.Table{Header: header, Rows: rows}
}

func TestValidateRejectsEachMissingColumn(t *testing.T) {
	for _, col := range patient.FeatureColumns {
		t.Run(col, func(t *testing.T) {
			tbl := sampleTable()
			i := tbl.Index(col)
			tbl.Header[i] = col + "_renamed"

			err := Validate(tbl)
			require.Error(t, err)
			assert.ErrorIs(t, err, classifier.ErrSchemaMismatch)

			var se *SchemaError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, []string{col}, se.Missing)

			clf := &stubClassifier{labels: []classifier.Label{0, 0, 0}}
			out := Run(context.Background(), clf, tbl)
			assert.Equal(t, StatusWarning, out.Status)
			assert.Equal(t, MessageWarning, out.Message)
			assert.Equal(t, []string{col}, out.Missing)
			assert.Nil(t, out.Table)
			assert.Zero(t, clf.calls, "no prediction on schema mismatch")
		})
	}
}

func TestValidateIsCaseSensitiveAndOrderFree(t *testing.T) {
	tbl := sampleTable()
	tbl.Header[1] = "Age"
	assert.Error(t, Validate(tbl))

	shuffled, err := sampleTable().Select(append([]string{"thal", "patient_id"}, patient.FeatureColumns[:12]...)...)
	require.NoError(t, err)
	assert.NoError(t, Validate(shuffled))
}

func TestRunSendsCanonicalColumnsOnly(t *testing.T) {
	tbl := sampleTable()
	clf := &stubClassifier{labels: []classifier.Label{classifier.Disease, classifier.NoDisease, classifier.NoDisease}}

	out := Run(context.Background(), clf, tbl)
	require.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, MessageSuccess, out.Message)
	assert.Equal(t, patient.FeatureColumns, clf.seen.Header)
	assert.Equal(t, featureRow("63"), clf.seen.Rows[0])

	assert.Equal(t, append(sampleTable().Header, PredictionColumn), out.Table.Header)
	assert.Equal(t, "Disease", out.Table.Rows[0][14])
	assert.Equal(t, "No disease", out.Table.Rows[1][14])
	assert.Len(t, tbl.Header, 14, "input table left untouched")
}

func TestRunReportsPredictionFailure(t *testing.T) {
	cause := &classifier.PredictionError{Row: 1, Column: "chol", Value: "", Reason: "missing value"}
	clf := &stubClassifier{err: cause}

	out := Run(context.Background(), clf, sampleTable())
	assert.Equal(t, StatusError, out.Status)
	assert.ErrorIs(t, out.Err, classifier.ErrPrediction)
	assert.Equal(t, fmt.Sprintf("Error making predictions: %v", cause), out.Message)
	assert.Nil(t, out.Table)

	// next upload is unaffected
	clf.err = nil
	clf.labels = []classifier.Label{0, 0, 0}
	out = Run(context.Background(), clf, sampleTable())
	assert.Equal(t, StatusSuccess, out.Status)
}

func TestRunLabelCountMismatch(t *testing.T) {
	clf := &stubClassifier{labels: []classifier.Label{0}}
	out := Run(context.Background(), clf, sampleTable())
	assert.Equal(t, StatusError, out.Status)
}

func TestExportRoundTrip(t *testing.T) {
	tbl := sampleTable()
	require.NoError(t, Augment(tbl, []classifier.Label{0, 1, 0}))

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, tbl))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, append(sampleTable().Header, "Prediction"), records[0])
	want := []string{"No disease", "Disease", "No disease"}
	ids := []string{"a", "b", "c"}
	for i, rec := range records[1:] {
		assert.Equal(t, ids[i], rec[0], "row order kept")
		assert.Equal(t, want[i], rec[len(rec)-1])
	}
}

func TestAugmentOverwritesExistingPrediction(t *testing.T) {
	tbl := sampleTable()
	require.NoError(t, tbl.SetColumn(PredictionColumn, []string{"old", "old", "old"}))
	require.NoError(t, Augment(tbl, []classifier.Label{1, 1, 0}))

	assert.Len(t, tbl.Header, 15)
	assert.Equal(t, "Disease", tbl.Rows[0][14])
	assert.Equal(t, "No disease", tbl.Rows[2][14])
}

func TestExportRequiresPredictionColumn(t *testing.T) {
	err := Export(&bytes.Buffer{}, sampleTable())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, classifier.ErrPrediction))
}
