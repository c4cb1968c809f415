package bio

import (
	"errors"
	"fmt"
)

// Alphabet is the nucleotide alphabet in rank order. The rank of a
// nucleotide is its digit in the base-4 k-mer numbering.
const Alphabet = "ATCG"

// NoNucleotide marks bytes outside of the alphabet in the rank table.
const NoNucleotide = -1

// ErrBadNucleotide is returned for symbols outside of A, T, C and G.
var ErrBadNucleotide = errors.New("unrecognized nucleotide")

var rank [256]int8

func init() {
	for i := range rank {
		rank[i] = NoNucleotide
	}
	for i := 0; i < len(Alphabet); i++ {
		rank[Alphabet[i]] = int8(i)
	}
}

// Rank returns the rank of a nucleotide (A=0, T=1, C=2, G=3) or
// NoNucleotide.
func Rank(b byte) int {
	return int(rank[b])
}

// NucleotideError describes an unrecognized symbol in a sequence.
type NucleotideError struct {
	Symbol   byte
	Position int
}

func (e *NucleotideError) Error() string {
	return fmt.Sprintf("%v %q at position %d", ErrBadNucleotide, e.Symbol, e.Position)
}

// Unwrap allows errors.Is(err, ErrBadNucleotide).
func (e *NucleotideError) Unwrap() error {
	return ErrBadNucleotide
}

// Validate checks that the sequence only contains A, T, C and G.
func Validate(seq string) error {
	for i := 0; i < len(seq); i++ {
		if rank[seq[i]] == NoNucleotide {
			return &NucleotideError{Symbol: seq[i], Position: i}
		}
	}
	return nil
}
