package patient

import (
	"math"
)

// Form is a submission as the user fills it in: numbers plus human-readable choices.
type Form struct {
	Age               *int     `json:"age" form:"age" binding:"required"`
	Sex               string   `json:"sex" form:"sex" binding:"required"`
	ChestPain         string   `json:"cp" form:"cp" binding:"required"`
	RestingBP         *int     `json:"trestbps" form:"trestbps" binding:"required"`
	Cholesterol       *int     `json:"chol" form:"chol" binding:"required"`
	FastingBloodSugar string   `json:"fbs" form:"fbs" binding:"required"`
	RestingECG        string   `json:"restecg" form:"restecg" binding:"required"`
	MaxHeartRate      *int     `json:"thalach" form:"thalach" binding:"required"`
	ExerciseAngina    string   `json:"exang" form:"exang" binding:"required"`
	Oldpeak           *float64 `json:"oldpeak" form:"oldpeak" binding:"required"`
	Slope             string   `json:"slope" form:"slope" binding:"required"`
	MajorVessels      *int     `json:"ca" form:"ca" binding:"required"`
	Thal              string   `json:"thal" form:"thal" binding:"required"`
}

// Record encodes the form. It returns either a complete, validated record or an error.
func (f Form) Record() (Record, error) {
	var (
		rec Record
		err error
	)

	nums := []struct {
		field string
		src   *int
		dst   *int
	}{
		{"age", f.Age, &rec.Age},
		{"trestbps", f.RestingBP, &rec.RestingBP},
		{"chol", f.Cholesterol, &rec.Cholesterol},
		{"thalach", f.MaxHeartRate, &rec.MaxHeartRate},
		{"ca", f.MajorVessels, &rec.MajorVessels},
	}
	for _, n := range nums {
		if n.src == nil {
			return Record{}, &FieldError{Field: n.field, Err: ErrMissingField}
		}
		*n.dst = *n.src
	}
	if f.Oldpeak == nil {
		return Record{}, &FieldError{Field: "oldpeak", Err: ErrMissingField}
	}
	rec.Oldpeak = math.Round(*f.Oldpeak*10) / 10

	if rec.Sex, err = ParseSex(f.Sex); err != nil {
		return Record{}, err
	}
	if rec.ChestPain, err = ParseChestPain(f.ChestPain); err != nil {
		return Record{}, err
	}
	if rec.FastingBloodSugar, err = ParseFastingBloodSugar(f.FastingBloodSugar); err != nil {
		return Record{}, err
	}
	if rec.RestingECG, err = ParseRestingECG(f.RestingECG); err != nil {
		return Record{}, err
	}
	if rec.ExerciseAngina, err = ParseExerciseAngina(f.ExerciseAngina); err != nil {
		return Record{}, err
	}
	if rec.Slope, err = ParseSlope(f.Slope); err != nil {
		return Record{}, err
	}
	if rec.Thal, err = ParseThal(f.Thal); err != nil {
		return Record{}, err
	}

	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}
