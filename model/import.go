package model

import (
	"encoding/json"
	"fmt"
	"io"
)

// Coefficients is the JSON form of a model, as exported from a fitted
// logistic regression.
type Coefficients struct {
	K         int       `json:"k"`
	Weights   []float64 `json:"weights"`
	Bias      float64   `json:"bias"`
	Threshold float64   `json:"threshold"`
}

// ReadJSON reads model coefficients in JSON format.
func ReadJSON(r io.Reader) (*Model, error) {
	var c Coefficients
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return New(c.K, c.Weights, c.Bias, c.Threshold)
}

// Coefficients returns the JSON form of the model.
func (m *Model) Coefficients() Coefficients {
	return Coefficients{
		K:         m.K,
		Weights:   m.Weights,
		Bias:      m.Bias,
		Threshold: m.Threshold,
	}
}
