package patient

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSelection is returned when a categorical label is outside its option set.
var ErrInvalidSelection = errors.New("invalid selection")

// Option is one entry of a categorical field as shown on the form.
type Option struct {
	Label string `json:"label"`
	Code  int    `json:"code"`
}

type Sex int

const (
	Female Sex = 0
	Male   Sex = 1
)

type ChestPain int

const (
	TypicalAngina ChestPain = iota
	AtypicalAngina
	NonAnginalPain
	Asymptomatic
)

type FastingBloodSugar int

const (
	SugarAtMost120 FastingBloodSugar = 0
	SugarAbove120  FastingBloodSugar = 1
)

type RestingECG int

const (
	ECGNormal RestingECG = iota
	ECGSTTAbnormality
	ECGLeftVentricularHypertrophy
)

type ExerciseAngina int

const (
	AnginaNo  ExerciseAngina = 0
	AnginaYes ExerciseAngina = 1
)

type Slope int

const (
	Upsloping Slope = iota
	Flat
	Downsloping
)

type Thal int

const (
	ThalNormal Thal = iota
	ThalFixedDefect
	ThalReversibleDefect
)

// Option lists in form display order. Codes are fixed and do not follow the position
// for binary fields (exang lists "Yes" first).
var (
	sexOptions = []Option{{"Male", int(Male)}, {"Female", int(Female)}}

	chestPainOptions = []Option{
		{"Typical Angina", int(TypicalAngina)},
		{"Atypical Angina", int(AtypicalAngina)},
		{"Non-Anginal Pain", int(NonAnginalPain)},
		{"Asymptomatic", int(Asymptomatic)},
	}

	sugarOptions = []Option{{"<= 120 mg/dl", int(SugarAtMost120)}, {"> 120 mg/dl", int(SugarAbove120)}}

	ecgOptions = []Option{
		{"Normal", int(ECGNormal)},
		{"ST-T Wave Abnormality", int(ECGSTTAbnormality)},
		{"Left Ventricular Hypertrophy", int(ECGLeftVentricularHypertrophy)},
	}

	anginaOptions = []Option{{"Yes", int(AnginaYes)}, {"No", int(AnginaNo)}}

	slopeOptions = []Option{{"Upsloping", int(Upsloping)}, {"Flat", int(Flat)}, {"Downsloping", int(Downsloping)}}

	thalOptions = []Option{
		{"Normal", int(ThalNormal)},
		{"Fixed Defect", int(ThalFixedDefect)},
		{"Reversible Defect", int(ThalReversibleDefect)},
	}

	vesselOptions = []Option{{"0", 0}, {"1", 1}, {"2", 2}, {"3", 3}}

	// short spellings accepted for fasting blood sugar besides the form labels
	sugarAliases = map[string]FastingBloodSugar{
		"<=120": SugarAtMost120,
		"≤120":  SugarAtMost120,
		">120":  SugarAbove120,
	}
)

// Options returns every categorical field's option list keyed by column name.
func Options() map[string][]Option {
	return map[string][]Option{
		"sex":     clone(sexOptions),
		"cp":      clone(chestPainOptions),
		"fbs":     clone(sugarOptions),
		"restecg": clone(ecgOptions),
		"exang":   clone(anginaOptions),
		"slope":   clone(slopeOptions),
		"ca":      clone(vesselOptions),
		"thal":    clone(thalOptions),
	}
}

func clone(opts []Option) []Option {
	out := make([]Option, len(opts))
	copy(out, opts)
	return out
}

func lookup(field, label string, opts []Option) (int, error) {
	for _, o := range opts {
		if o.Label == label {
			return o.Code, nil
		}
	}
	return 0, &FieldError{Field: field, Value: label, Err: ErrInvalidSelection}
}

func labelOf(code int, opts []Option) string {
	for _, o := range opts {
		if o.Code == code {
			return o.Label
		}
	}
	return fmt.Sprintf("invalid(%d)", code)
}

func valid(code int, opts []Option) bool {
	for _, o := range opts {
		if o.Code == code {
			return true
		}
	}
	return false
}

func ParseSex(label string) (Sex, error) {
	code, err := lookup("sex", label, sexOptions)
	return Sex(code), err
}

func ParseChestPain(label string) (ChestPain, error) {
	code, err := lookup("cp", label, chestPainOptions)
	return ChestPain(code), err
}

func ParseFastingBloodSugar(label string) (FastingBloodSugar, error) {
	if v, ok := sugarAliases[strings.ReplaceAll(label, " ", "")]; ok {
		return v, nil
	}
	code, err := lookup("fbs", label, sugarOptions)
	return FastingBloodSugar(code), err
}

func ParseRestingECG(label string) (RestingECG, error) {
	code, err := lookup("restecg", label, ecgOptions)
	return RestingECG(code), err
}

func ParseExerciseAngina(label string) (ExerciseAngina, error) {
	code, err := lookup("exang", label, anginaOptions)
	return ExerciseAngina(code), err
}

func ParseSlope(label string) (Slope, error) {
	code, err := lookup("slope", label, slopeOptions)
	return Slope(code), err
}

func ParseThal(label string) (Thal, error) {
	code, err := lookup("thal", label, thalOptions)
	return Thal(code), err
}

func (s Sex) String() string               { return labelOf(int(s), sexOptions) }
func (c ChestPain) String() string         { return labelOf(int(c), chestPainOptions) }
func (f FastingBloodSugar) String() string { return labelOf(int(f), sugarOptions) }
func (r RestingECG) String() string        { return labelOf(int(r), ecgOptions) }
func (e ExerciseAngina) String() string    { return labelOf(int(e), anginaOptions) }
func (s Slope) String() string             { return labelOf(int(s), slopeOptions) }
func (t Thal) String() string              { return labelOf(int(t), thalOptions) }
