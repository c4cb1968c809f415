// Package model implements the pretrained logistic regression model
// used to tell coding short ORFs from noncoding ones.
package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"

	"bitbucket.org/Davydov/mipepid/kmer"
)

// ErrDimension is returned when a feature vector length doesn't
// match the model.
var ErrDimension = errors.New("feature vector dimension mismatch")

// Label is a predicted class.
type Label int

const (
	// Noncoding is the label of noncoding sORFs.
	Noncoding Label = iota
	// Coding is the label of coding sORFs.
	Coding
)

func (l Label) String() string {
	if l == Coding {
		return "coding"
	}
	return "noncoding"
}

// Result is a classification of one feature vector.
type Result struct {
	Label Label
	// Probability is the probability of the vector being coding.
	Probability float64
	// Confidence is the probability of the assigned label.
	Confidence float64
}

// Model is a linear model on k-mer frequencies. A model must not be
// changed after it was loaded, so it can be shared between goroutines.
type Model struct {
	// K is the k-mer size the model was trained on.
	K int
	// Weights has 4^K elements.
	Weights []float64
	// Bias is the intercept.
	Bias float64
	// Threshold is the decision threshold on the coding probability.
	Threshold float64
}

// New creates a model checking its dimensions and threshold.
func New(k int, weights []float64, bias, threshold float64) (*Model, error) {
	m := &Model{
		K:         k,
		Weights:   weights,
		Bias:      bias,
		Threshold: threshold,
	}
	if err := m.Check(); err != nil {
		return nil, err
	}
	return m, nil
}

// Check tests if the model is valid.
func (m *Model) Check() error {
	if m.K < 1 || m.K > kmer.MaxK {
		return fmt.Errorf("%w: k=%d out of range", ErrFormat, m.K)
	}
	if len(m.Weights) != kmer.Size(m.K) {
		return fmt.Errorf("%w: %d weights for k=%d, expected %d", ErrFormat, len(m.Weights), m.K, kmer.Size(m.K))
	}
	if !(m.Threshold >= 0 && m.Threshold <= 1) {
		return fmt.Errorf("%w: threshold %v not in [0, 1]", ErrFormat, m.Threshold)
	}
	if !finite(m.Bias) {
		return fmt.Errorf("%w: non-finite bias", ErrFormat)
	}
	for i, w := range m.Weights {
		if !finite(w) {
			return fmt.Errorf("%w: non-finite weight %d", ErrFormat, i)
		}
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Sigmoid is the logistic function.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Decide converts a coding probability into a result. The label is
// coding only if the probability is strictly above the threshold.
func (m *Model) Decide(p float64) Result {
	if p > m.Threshold {
		return Result{Label: Coding, Probability: p, Confidence: p}
	}
	return Result{Label: Noncoding, Probability: p, Confidence: 1 - p}
}

// Predict classifies a single feature vector.
func (m *Model) Predict(v []float64) (Result, error) {
	if len(v) != len(m.Weights) {
		return Result{}, fmt.Errorf("%w: %d, expected %d", ErrDimension, len(v), len(m.Weights))
	}
	return m.Decide(Sigmoid(floats.Dot(m.Weights, v) + m.Bias)), nil
}

// Classify classifies feature vectors, results are in the same order.
// Scores of the whole batch are computed as a single matrix product.
func Classify(m *Model, vs [][]float64) ([]Result, error) {
	if len(vs) == 0 {
		return nil, nil
	}
	d := len(m.Weights)
	data := make([]float64, 0, len(vs)*d)
	for i, v := range vs {
		if len(v) != d {
			return nil, fmt.Errorf("%w: vector %d has length %d, expected %d", ErrDimension, i, len(v), d)
		}
		data = append(data, v...)
	}
	x := mat64.NewDense(len(vs), d, data)
	w := mat64.NewDense(d, 1, m.Weights)
	scores := mat64.NewDense(len(vs), 1, nil)
	scores.Mul(x, w)

	res := make([]Result, len(vs))
	for i := range res {
		res[i] = m.Decide(Sigmoid(scores.At(i, 0) + m.Bias))
	}
	return res, nil
}
