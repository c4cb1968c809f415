// Package kmer converts nucleotide sequences into k-mer count and
// frequency vectors.
//
// A k-mer is numbered as a base-4 number, most significant nucleotide
// first, with digits A=0, T=1, C=2, G=3. For k=2 "AT" is 1 and "TT" is 5.
package kmer

import (
	"errors"
	"fmt"

	"github.com/gonum/floats"

	"bitbucket.org/Davydov/mipepid/bio"
)

// MaxK is the largest supported k-mer size.
const MaxK = 12

// ErrShortSequence is returned when a sequence is shorter than k.
var ErrShortSequence = errors.New("sequence is shorter than k")

// Featurizer computes k-mer vectors for a fixed k. It holds no
// mutable state and can be used concurrently.
type Featurizer struct {
	k int
	n int
	// weights are positional multipliers, 4^(k-1) ... 1
	weights []int
}

// NewFeaturizer creates a new Featurizer for k-mers of size k.
func NewFeaturizer(k int) (*Featurizer, error) {
	if k < 1 || k > MaxK {
		return nil, fmt.Errorf("k=%d is out of range [1, %d]", k, MaxK)
	}
	f := &Featurizer{
		k:       k,
		n:       Size(k),
		weights: make([]int, k),
	}
	m := 1
	for i := k - 1; i >= 0; i-- {
		f.weights[i] = m
		m *= len(bio.Alphabet)
	}
	return f, nil
}

// Size returns the number of distinct k-mers, 4^k.
func Size(k int) int {
	return 1 << (2 * uint(k))
}

// K returns the k-mer size.
func (f *Featurizer) K() int {
	return f.k
}

// Len returns the vector length, 4^k.
func (f *Featurizer) Len() int {
	return f.n
}

// Index returns the number of a k-mer. kmer must be exactly k
// nucleotides long.
func (f *Featurizer) Index(kmer string) (int, error) {
	if len(kmer) != f.k {
		return 0, fmt.Errorf("k-mer %q length is not %d", kmer, f.k)
	}
	idx := 0
	for i := 0; i < f.k; i++ {
		r := bio.Rank(kmer[i])
		if r == bio.NoNucleotide {
			return 0, &bio.NucleotideError{Symbol: kmer[i], Position: i}
		}
		idx += r * f.weights[i]
	}
	return idx, nil
}

// Featurize returns the k-mer vector of a sequence. All the len(seq)-k+1
// overlapping windows are counted. Unless raw is true, counts are
// divided by the number of windows so the vector sums to one.
func (f *Featurizer) Featurize(seq string, raw bool) ([]float64, error) {
	if len(seq) < f.k {
		return nil, fmt.Errorf("%w: length %d, k=%d", ErrShortSequence, len(seq), f.k)
	}
	// ranks are validated once, windows are then rolled
	if err := bio.Validate(seq); err != nil {
		return nil, err
	}
	v := make([]float64, f.n)
	mask := f.n - 1
	idx := 0
	for i := 0; i < len(seq); i++ {
		idx = (idx<<2 | bio.Rank(seq[i])) & mask
		if i >= f.k-1 {
			v[idx]++
		}
	}
	if !raw {
		floats.Scale(1/float64(len(seq)-f.k+1), v)
	}
	return v, nil
}

// BatchError reports which sequence of a batch failed.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("sequence %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// FeaturizeBatch returns k-mer vectors of all the sequences in order.
// The error of the first failing sequence is returned as *BatchError.
func (f *Featurizer) FeaturizeBatch(seqs []string, raw bool) ([][]float64, error) {
	vs := make([][]float64, len(seqs))
	for i, seq := range seqs {
		v, err := f.Featurize(seq, raw)
		if err != nil {
			return nil, &BatchError{Index: i, Err: err}
		}
		vs[i] = v
	}
	return vs, nil
}
