package patient

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Skufu/heartrisk/internal/table"
)

var (
	ErrMissingField = errors.New("missing field")
	ErrOutOfRange   = errors.New("value out of range")
)

// FeatureColumns is the column order the classifier was trained on.
var FeatureColumns = []string{
	"age", "sex", "cp", "trestbps", "chol", "fbs", "restecg",
	"thalach", "exang", "oldpeak", "slope", "ca", "thal",
}

// FieldError reports which field of a submission was rejected.
type FieldError struct {
	Field string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	if errors.Is(e.Err, ErrMissingField) {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v %q", e.Field, e.Err, fmt.Sprint(e.Value))
}

func (e *FieldError) Unwrap() error { return e.Err }

// Record is one complete, encoded patient record.
type Record struct {
	Age               int
	Sex               Sex
	ChestPain         ChestPain
	RestingBP         int
	Cholesterol       int
	FastingBloodSugar FastingBloodSugar
	RestingECG        RestingECG
	MaxHeartRate      int
	ExerciseAngina    ExerciseAngina
	Oldpeak           float64
	Slope             Slope
	MajorVessels      int
	Thal              Thal
}

// Validate checks every field against the ranges the input form allows.
func (r Record) Validate() error {
	ranges := []struct {
		field    string
		val      float64
		min, max float64
	}{
		{"age", float64(r.Age), 0, 150},
		{"trestbps", float64(r.RestingBP), 0, 300},
		{"chol", float64(r.Cholesterol), 0, math.MaxInt32},
		{"thalach", float64(r.MaxHeartRate), 60, 220},
		{"oldpeak", r.Oldpeak, 0, 10},
	}
	for _, rg := range ranges {
		if math.IsNaN(rg.val) || rg.val < rg.min || rg.val > rg.max {
			return &FieldError{Field: rg.field, Value: rg.val, Err: ErrOutOfRange}
		}
	}

	codes := []struct {
		field string
		code  int
		opts  []Option
	}{
		{"sex", int(r.Sex), sexOptions},
		{"cp", int(r.ChestPain), chestPainOptions},
		{"fbs", int(r.FastingBloodSugar), sugarOptions},
		{"restecg", int(r.RestingECG), ecgOptions},
		{"exang", int(r.ExerciseAngina), anginaOptions},
		{"slope", int(r.Slope), slopeOptions},
		{"ca", r.MajorVessels, vesselOptions},
		{"thal", int(r.Thal), thalOptions},
	}
	for _, c := range codes {
		if !valid(c.code, c.opts) {
			return &FieldError{Field: c.field, Value: c.code, Err: ErrInvalidSelection}
		}
	}
	return nil
}

// Values returns the encoded values in FeatureColumns order.
func (r Record) Values() []float64 {
	return []float64{
		float64(r.Age),
		float64(r.Sex),
		float64(r.ChestPain),
		float64(r.RestingBP),
		float64(r.Cholesterol),
		float64(r.FastingBloodSugar),
		float64(r.RestingECG),
		float64(r.MaxHeartRate),
		float64(r.ExerciseAngina),
		r.Oldpeak,
		float64(r.Slope),
		float64(r.MajorVessels),
		float64(r.Thal),
	}
}

// Table builds the single-row table handed to the classifier.
func (r Record) Table() *table.Table {
	row := make([]string, 0, len(FeatureColumns))
	for _, f := range r.Fields() {
		row = append(row, f.Value)
	}
	header := make([]string, len(FeatureColumns))
	copy(header, FeatureColumns)
	return &table.Table{Header: header, Rows: [][]string{row}}
}

// Field is a labelled, rendered value of a record.
type Field struct {
	Column string `json:"column"`
	Label  string `json:"label"`
	Value  string `json:"value"`
}

var fieldLabels = []string{
	"Age",
	"Sex",
	"Chest Pain Type",
	"Resting BP (mm Hg)",
	"Cholesterol (mg/dl)",
	"Fasting Blood Sugar",
	"Resting ECG",
	"Max Heart Rate",
	"Exercise-Induced Angina",
	"Oldpeak",
	"Slope",
	"Major Vessels",
	"Thalassemia",
}

// Fields returns the 13 fields in column order. Values are the raw encoded numbers.
func (r Record) Fields() []Field {
	values := r.Values()
	out := make([]Field, len(FeatureColumns))
	for i, col := range FeatureColumns {
		v := strconv.Itoa(int(values[i]))
		if col == "oldpeak" {
			v = FormatDecimal(values[i])
		}
		out[i] = Field{Column: col, Label: fieldLabels[i], Value: v}
	}
	return out
}

// FormatDecimal renders a float the way a decimal input echoes it back: 1 -> "1.0", 2.35 -> "2.35".
func FormatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}
