// Package classifier wraps the pre-trained heart disease model behind a single
// Predict operation. A handle is opened once at startup and shared read-only.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Skufu/heartrisk/internal/table"
)

var (
	// ErrArtifactLoad means the model could not be loaded; fatal for the process.
	ErrArtifactLoad = errors.New("model artifact load failed")
	// ErrSchemaMismatch means the input lacks columns the model was trained on.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrPrediction means the model rejected the input rows.
	ErrPrediction = errors.New("prediction failed")
	// ErrUnavailable means a remote model server is not answering.
	ErrUnavailable = errors.New("model server unavailable")
)

// Label is the binary outcome of one record.
type Label int

const (
	NoDisease Label = 0
	Disease   Label = 1
)

// Verdict is the sentence shown to the user.
func (l Label) Verdict() string {
	if l == NoDisease {
		return "No heart disease detected."
	}
	return "Heart disease detected."
}

// Style is the visual style of the verdict: "success" or "error".
func (l Label) Style() string {
	if l == NoDisease {
		return "success"
	}
	return "error"
}

// String is the value written to the exported Prediction column.
func (l Label) String() string {
	if l == NoDisease {
		return "No disease"
	}
	return "Disease"
}

type Classifier interface {
	// Predict returns one label per row of t, in row order.
	Predict(ctx context.Context, t *table.Table) ([]Label, error)
	Name() string
}

// PredictionError points at the cell the model could not use.
type PredictionError struct {
	Row    int // zero-based data row
	Column string
	Value  string
	Reason string
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("row %d, column %q: %s (%q)", e.Row+1, e.Column, e.Reason, e.Value)
}

func (e *PredictionError) Unwrap() error { return ErrPrediction }

// LoadError describes why an artifact could not be used.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrArtifactLoad, e.Source, e.Err)
}

func (e *LoadError) Is(target error) bool { return target == ErrArtifactLoad }

func (e *LoadError) Unwrap() error { return e.Err }

// Options selects and configures the backend.
type Options struct {
	// Path of the local artifact. Ignored when URL is set.
	Path string
	// URL of a remote model server.
	URL       string
	Timeout   time.Duration
	RateLimit float64
	// Features is the column order the caller expects the model to use.
	Features []string
}

// Open loads the configured backend and fails fast when it is not usable.
func Open(ctx context.Context, opts Options) (Classifier, error) {
	if opts.URL != "" {
		return Dial(ctx, RemoteConfig{
			URL:       opts.URL,
			Timeout:   opts.Timeout,
			RateLimit: opts.RateLimit,
			Features:  opts.Features,
		})
	}
	return Load(opts.Path, opts.Features)
}

// matrix converts the feature columns of t into row-major float64 data.
func matrix(t *table.Table, features []string) ([]float64, error) {
	sel, err := t.Select(features...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if sel.Len() == 0 {
		return nil, fmt.Errorf("%w: no rows to predict", ErrPrediction)
	}

	data := make([]float64, 0, sel.Len()*len(features))
	for r, row := range sel.Rows {
		for c, cell := range row {
			s := strings.TrimSpace(cell)
			if s == "" {
				return nil, &PredictionError{Row: r, Column: features[c], Value: cell, Reason: "missing value"}
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, &PredictionError{Row: r, Column: features[c], Value: cell, Reason: "not a number"}
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &PredictionError{Row: r, Column: features[c], Value: cell, Reason: "missing value"}
			}
			data = append(data, v)
		}
	}
	return data, nil
}
