package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/Skufu/heartrisk/internal/table"
)

const kindLogistic = "logistic_regression"

// Artifact is the serialized form of a fitted logistic regression pipeline.
// JSON artifacts decode too.
type Artifact struct {
	Kind         string    `yaml:"kind"`
	Version      string    `yaml:"version,omitempty"`
	Features     []string  `yaml:"features"`
	Coefficients []float64 `yaml:"coefficients"`
	Intercept    float64   `yaml:"intercept"`
	// Standard scaler applied before the linear step, if present.
	Mean      []float64 `yaml:"mean,omitempty"`
	Scale     []float64 `yaml:"scale,omitempty"`
	Threshold *float64  `yaml:"threshold,omitempty"`
}

// Model is the local, in-process classifier. Immutable after Load.
type Model struct {
	source    string
	artifact  Artifact
	weights   *mat.VecDense
	threshold float64
}

// Load reads the artifact at path and checks it was trained on features.
func Load(path string, features []string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	m, err := Decode(raw, features)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	m.source = path
	return m, nil
}

// Decode builds a model from artifact bytes.
func Decode(raw []byte, features []string) (*Model, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var a Artifact
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if err := a.check(features); err != nil {
		return nil, err
	}

	thr := 0.5
	if a.Threshold != nil {
		thr = *a.Threshold
	}
	return &Model{
		source:    "memory",
		artifact:  a,
		weights:   mat.NewVecDense(len(a.Coefficients), slices.Clone(a.Coefficients)),
		threshold: thr,
	}, nil
}

func (a Artifact) check(features []string) error {
	if a.Kind != kindLogistic {
		return fmt.Errorf("unsupported model kind %q", a.Kind)
	}
	if len(a.Features) == 0 {
		return errors.New("artifact lists no features")
	}
	if len(features) > 0 && !slices.Equal(a.Features, features) {
		return fmt.Errorf("artifact features %v do not match expected %v", a.Features, features)
	}
	if len(a.Coefficients) != len(a.Features) {
		return fmt.Errorf("%d coefficients for %d features", len(a.Coefficients), len(a.Features))
	}
	if a.Mean != nil || a.Scale != nil {
		if len(a.Mean) != len(a.Features) || len(a.Scale) != len(a.Features) {
			return errors.New("scaler mean/scale length does not match features")
		}
		for i, s := range a.Scale {
			if s == 0 {
				return fmt.Errorf("scaler scale for %q is zero", a.Features[i])
			}
		}
	}
	if a.Threshold != nil && (*a.Threshold <= 0 || *a.Threshold >= 1) {
		return fmt.Errorf("threshold %v outside (0,1)", *a.Threshold)
	}
	return nil
}

func (m *Model) Name() string {
	return fmt.Sprintf("local:%s (%s)", m.source, m.artifact.Kind)
}

// Features returns the columns the model reads, in order.
func (m *Model) Features() []string { return slices.Clone(m.artifact.Features) }

func (m *Model) Predict(_ context.Context, t *table.Table) ([]Label, error) {
	probs, err := m.Probabilities(t)
	if err != nil {
		return nil, err
	}
	labels := make([]Label, len(probs))
	for i, p := range probs {
		if p >= m.threshold {
			labels[i] = Disease
		}
	}
	return labels, nil
}

// Probabilities returns the disease probability of every row.
func (m *Model) Probabilities(t *table.Table) ([]float64, error) {
	k := len(m.artifact.Features)
	data, err := matrix(t, m.artifact.Features)
	if err != nil {
		return nil, err
	}
	if m.artifact.Mean != nil {
		for i := range data {
			j := i % k
			data[i] = (data[i] - m.artifact.Mean[j]) / m.artifact.Scale[j]
		}
	}

	n := len(data) / k
	x := mat.NewDense(n, k, data)
	var z mat.VecDense
	z.MulVec(x, m.weights)

	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / (1 + math.Exp(-(z.AtVec(i) + m.artifact.Intercept)))
	}
	return out, nil
}
