// Package batch validates uploaded tables, runs them through the classifier and
// formats the result for download.
package batch

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Skufu/heartrisk/internal/classifier"
	"github.com/Skufu/heartrisk/internal/patient"
	"github.com/Skufu/heartrisk/internal/table"
)

const (
	PredictionColumn = "Prediction"
	ExportFilename   = "predictions.csv"

	MessageSuccess = "Predictions successfully generated!"
	MessageWarning = "The uploaded file must contain the correct columns in the correct format."
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// SchemaError lists the required columns an upload lacks.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%v: missing columns %s", classifier.ErrSchemaMismatch, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return classifier.ErrSchemaMismatch }

// Validate checks that every required column is present, by exact name.
// Types, nulls and row counts are left to the classifier.
func Validate(t *table.Table) error {
	var missing []string
	for _, col := range patient.FeatureColumns {
		if !t.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

// Outcome is the result of one upload. Exactly one of Table or Err is set
// unless Status is a warning.
type Outcome struct {
	Status  Status
	Message string
	Missing []string
	Labels  []classifier.Label
	Table   *table.Table
	Err     error
}

// Run validates t, predicts every row and returns a copy of t with the
// Prediction column. The input table is not modified.
func Run(ctx context.Context, clf classifier.Classifier, t *table.Table) Outcome {
	if err := Validate(t); err != nil {
		se := err.(*SchemaError)
		return Outcome{Status: StatusWarning, Message: MessageWarning, Missing: se.Missing, Err: err}
	}

	features, err := t.Select(patient.FeatureColumns...)
	if err != nil {
		return failed(err)
	}
	labels, err := clf.Predict(ctx, features)
	if err != nil {
		return failed(err)
	}

	out := t.Clone()
	if err := Augment(out, labels); err != nil {
		return failed(err)
	}
	return Outcome{Status: StatusSuccess, Message: MessageSuccess, Labels: labels, Table: out}
}

func failed(err error) Outcome {
	return Outcome{
		Status:  StatusError,
		Message: fmt.Sprintf("Error making predictions: %v", err),
		Err:     err,
	}
}

// Augment sets the Prediction column from labels, one per row in order.
func Augment(t *table.Table, labels []classifier.Label) error {
	values := make([]string, len(labels))
	for i, l := range labels {
		values[i] = l.String()
	}
	return t.SetColumn(PredictionColumn, values)
}

// Export writes the augmented table as CSV: header then one line per row.
func Export(w io.Writer, t *table.Table) error {
	if !t.Has(PredictionColumn) {
		return fmt.Errorf("table has no %s column", PredictionColumn)
	}
	return t.Write(w)
}
